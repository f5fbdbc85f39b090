// Package whatsapp is the WhatsApp Cloud API transport: the webhook
// server receiving message notifications and the Graph API sender for
// outbound replies.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/ayra/internal/metrics"
	"github.com/harun/ayra/pkg/taskqueue"
)

// inboundLane is the task queue lane all webhook deliveries run on
const inboundLane = "inbound"

// InboundHandler processes one inbound message event
type InboundHandler interface {
	HandleInbound(ctx context.Context, chatID, text, deliveryID string) error
}

// ServerOptions configures the webhook server
type ServerOptions struct {
	Host        string // Server host (default: "0.0.0.0")
	Port        int    // Server port (default: 8080)
	WebhookPath string // Webhook endpoint path (default: "/webhook")
	VerifyToken string // Pre-shared subscription handshake token
	AppSecret   string // Signature verification secret; empty disables verification
	Workers     int    // Concurrent inbound handlers (default: 8)
}

// Server is the webhook HTTP server. Deliveries are acknowledged as
// soon as the payload is parsed; processing happens on the task queue
// after the acknowledgment.
type Server struct {
	options        ServerOptions
	server         *http.Server
	handler        InboundHandler
	queue          *taskqueue.Queue
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new webhook server
func NewServer(options ServerOptions, handler InboundHandler, queue *taskqueue.Queue, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	// Set defaults
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.Port == 0 {
		options.Port = 8080
	}
	if options.WebhookPath == "" {
		options.WebhookPath = "/webhook"
	}
	if options.Workers == 0 {
		options.Workers = 8
	}

	if handler == nil {
		return nil, fmt.Errorf("inbound handler is required")
	}
	if queue == nil {
		return nil, fmt.Errorf("task queue is required")
	}
	if options.VerifyToken == "" {
		return nil, fmt.Errorf("verify token is required")
	}

	queue.InitLane(inboundLane, options.Workers)

	return &Server{
		options:   options,
		handler:   handler,
		queue:     queue,
		metrics:   m,
		logger:    logger.With().Str("component", "webhook").Logger(),
		startTime: time.Now(),
	}, nil
}

// Start starts the webhook server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(s.options.WebhookPath, s.handleWebhook)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: mux,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Str("path", s.options.WebhookPath).
		Msg("Starting webhook server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start webhook server: %w", err)
	}

	return nil
}

// Stop gracefully stops the webhook server: no new requests are
// admitted, in-flight requests finish, then queued processing drains.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down webhook server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if !s.queue.WaitForActive(30 * time.Second) {
		s.logger.Warn().Msg("Queued deliveries still processing at shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown webhook server: %w", err)
		}
	}

	s.logger.Info().Msg("Webhook server stopped")
	return nil
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"queued":    s.queue.QueueSize(inboundLane),
		"running":   s.queue.RunningCount(inboundLane),
		"timestamp": time.Now().UnixMilli(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// handleWebhook routes the webhook endpoint by method: GET is the
// subscription handshake, POST is a notification delivery.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	switch r.Method {
	case http.MethodGet:
		s.handleVerify(w, r)
	case http.MethodPost:
		s.handleNotification(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleVerify answers the subscription handshake: echo the challenge
// when the pre-shared token matches.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode != "subscribe" || token != s.options.VerifyToken {
		s.logger.Warn().
			Str("mode", mode).
			Msg("Webhook verification rejected")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.logger.Info().Msg("Webhook verification succeeded")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, challenge)
}

// handleNotification acknowledges a delivery and hands its message
// events to the task queue. The acknowledgment never waits for
// processing; the platform retries slow or failed acknowledgments with
// the same delivery ids, which the dedup ledger absorbs.
func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := s.logger.With().Str("request_id", requestID).Logger()

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read request body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if s.options.AppSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if signature == "" {
			logger.Warn().Msg("Missing webhook signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !verifySignature(rawBody, signature, s.options.AppSecret) {
			logger.Warn().Msg("Invalid webhook signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var payload Payload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		logger.Warn().Err(err).Msg("Malformed webhook payload")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	inbound := ExtractInbound(&payload)

	// Acknowledge before processing
	w.WriteHeader(http.StatusOK)

	for _, in := range inbound {
		in := in
		s.queue.Dispatch(context.Background(), inboundLane, func(ctx context.Context) {
			if err := s.handler.HandleInbound(ctx, in.ChatID, in.Text, in.DeliveryID); err != nil {
				logger.Error().
					Err(err).
					Str("chat_id", in.ChatID).
					Str("delivery_id", in.DeliveryID).
					Msg("Inbound message handling failed")
			}
		})
	}

	if len(inbound) > 0 {
		logger.Debug().Int("messages", len(inbound)).Msg("Delivery dispatched")
	}
}
