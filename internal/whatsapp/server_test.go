package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/ayra/internal/metrics"
	"github.com/harun/ayra/pkg/taskqueue"
)

// recordingHandler captures inbound events
type recordingHandler struct {
	mu     sync.Mutex
	events []Inbound
}

func (h *recordingHandler) HandleInbound(ctx context.Context, chatID, text, deliveryID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, Inbound{ChatID: chatID, Text: text, DeliveryID: deliveryID})
	return nil
}

func (h *recordingHandler) snapshot() []Inbound {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Inbound(nil), h.events...)
}

func newTestServer(t *testing.T, appSecret string) (*Server, *recordingHandler, *taskqueue.Queue) {
	t.Helper()

	handler := &recordingHandler{}
	queue := taskqueue.New(4, zerolog.Nop())
	t.Cleanup(func() { queue.Close() })

	s, err := NewServer(ServerOptions{
		VerifyToken: "verify-me",
		AppSecret:   appSecret,
	}, handler, queue, metrics.NewMetrics(), zerolog.Nop())
	require.NoError(t, err)
	return s, handler, queue
}

func TestNewServerRequiresDependencies(t *testing.T) {
	queue := taskqueue.New(1, zerolog.Nop())
	defer queue.Close()

	_, err := NewServer(ServerOptions{VerifyToken: "v"}, nil, queue, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewServer(ServerOptions{VerifyToken: "v"}, &recordingHandler{}, nil, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewServer(ServerOptions{}, &recordingHandler{}, queue, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestVerificationHandshake(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	s.handleWebhook(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())
}

func TestVerificationHandshakeRejectsBadToken(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	s.handleWebhook(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNotificationDispatchesInbound(t *testing.T) {
	s, handler, queue := newTestServer(t, "")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(samplePayload))
	w := httptest.NewRecorder()
	s.handleWebhook(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	require.True(t, queue.WaitForActive(2*time.Second))
	events := handler.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "15550002222", events[0].ChatID)
	assert.Equal(t, "hello", events[0].Text)
	assert.Equal(t, "wamid.A1", events[0].DeliveryID)
}

func TestNotificationVerifiesSignature(t *testing.T) {
	s, handler, queue := newTestServer(t, "app-secret")

	t.Run("missing signature", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(samplePayload))
		w := httptest.NewRecorder()
		s.handleWebhook(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong signature", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(samplePayload))
		req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
		w := httptest.NewRecorder()
		s.handleWebhook(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid signature", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(samplePayload))
		req.Header.Set("X-Hub-Signature-256", computeHMACSHA256([]byte(samplePayload), "app-secret"))
		w := httptest.NewRecorder()
		s.handleWebhook(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	require.True(t, queue.WaitForActive(2*time.Second))
	assert.Len(t, handler.snapshot(), 1)
}

func TestNotificationRejectsMalformedPayload(t *testing.T) {
	s, handler, _ := newTestServer(t, "")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	s.handleWebhook(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, handler.snapshot())
}

func TestWebhookRejectsUnknownMethod(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	req := httptest.NewRequest("DELETE", "/webhook", nil)
	w := httptest.NewRecorder()
	s.handleWebhook(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestWebhookRejectsWhileShuttingDown(t *testing.T) {
	s, _, _ := newTestServer(t, "")
	s.isShuttingDown = true

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(samplePayload))
	w := httptest.NewRecorder()
	s.handleWebhook(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
