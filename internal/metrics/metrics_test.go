package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	if m.registry == nil {
		t.Error("Registry is nil")
	}

	if m.MessagesReceivedTotal == nil {
		t.Error("MessagesReceivedTotal is nil")
	}
	if m.DeliveriesDedupedTotal == nil {
		t.Error("DeliveriesDedupedTotal is nil")
	}
	if m.CommandsTotal == nil {
		t.Error("CommandsTotal is nil")
	}
	if m.RunsTotal == nil {
		t.Error("RunsTotal is nil")
	}
	if m.RunDuration == nil {
		t.Error("RunDuration is nil")
	}
	if m.HandleDuration == nil {
		t.Error("HandleDuration is nil")
	}
	if m.MessagesSentTotal == nil {
		t.Error("MessagesSentTotal is nil")
	}
	if m.SendErrorsTotal == nil {
		t.Error("SendErrorsTotal is nil")
	}
	if m.DeliveriesPrunedTotal == nil {
		t.Error("DeliveriesPrunedTotal is nil")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	// Record some sample metrics so they appear in output
	m.MessagesReceivedTotal.Inc()
	m.DeliveriesDedupedTotal.Inc()
	m.CommandsTotal.WithLabelValues("passthrough").Inc()
	m.RunsTotal.WithLabelValues("completed").Inc()
	m.RunDuration.Observe(1.2)
	m.HandleDuration.Observe(1.5)
	m.MessagesSentTotal.Inc()
	m.SendErrorsTotal.Inc()
	m.DeliveriesPrunedTotal.Add(3)

	handler := m.Handler()
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()

	expectedMetrics := []string{
		"messages_received_total",
		"deliveries_deduped_total",
		"commands_total",
		"runs_total",
		"run_duration_seconds",
		"handle_duration_seconds",
		"messages_sent_total",
		"send_errors_total",
		"deliveries_pruned_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}

func TestMetricsIsolation(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.MessagesSentTotal.Inc()
	m1.MessagesSentTotal.Inc()
	m2.MessagesSentTotal.Inc()

	families1, _ := m1.registry.Gather()
	for _, mf := range families1 {
		if *mf.Name == "messages_sent_total" {
			if len(mf.Metric) > 0 && *mf.Metric[0].Counter.Value != 2 {
				t.Errorf("m1: Expected value 2, got %f", *mf.Metric[0].Counter.Value)
			}
		}
	}

	families2, _ := m2.registry.Gather()
	for _, mf := range families2 {
		if *mf.Name == "messages_sent_total" {
			if len(mf.Metric) > 0 && *mf.Metric[0].Counter.Value != 1 {
				t.Errorf("m2: Expected value 1, got %f", *mf.Metric[0].Counter.Value)
			}
		}
	}
}
