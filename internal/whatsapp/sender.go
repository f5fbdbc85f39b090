package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultGraphBaseURL is the Graph API endpoint messages are sent to
const DefaultGraphBaseURL = "https://graph.facebook.com/v20.0"

// SenderOptions configures the outbound message sender
type SenderOptions struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string        // Graph API base URL (default: production endpoint)
	Timeout       time.Duration // Per-request timeout (default: 10s)
}

// GraphSender sends text messages through the Graph API
type GraphSender struct {
	options SenderOptions
	client  *http.Client
	logger  zerolog.Logger
}

// NewGraphSender creates an outbound message sender
func NewGraphSender(options SenderOptions, logger zerolog.Logger) *GraphSender {
	if options.BaseURL == "" {
		options.BaseURL = DefaultGraphBaseURL
	}
	if options.Timeout == 0 {
		options.Timeout = 10 * time.Second
	}

	return &GraphSender{
		options: options,
		client:  &http.Client{Timeout: options.Timeout},
		logger:  logger.With().Str("component", "sender").Logger(),
	}
}

// Send delivers one text message to a chat
func (s *GraphSender) Send(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               chatID,
		Type:             "text",
		Text:             sendText{Body: text},
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.options.BaseURL, s.options.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.options.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send rejected with status %d: %s", resp.StatusCode, string(detail))
	}

	s.logger.Debug().Str("chat_id", chatID).Msg("Message sent")
	return nil
}
