// Package assistant is the client for the remote conversation service.
// A conversation is a remote thread; a run is the asynchronous unit of
// work that consumes the thread and produces a new assistant message.
// All transport-level failures surface as ErrRemoteUnavailable; callers
// treat them as fatal for the current inbound message and never retry.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrRemoteUnavailable is any non-success response from the remote
// conversation service, with no distinction between authentication,
// rate-limiting, or server error.
var ErrRemoteUnavailable = errors.New("remote conversation service unavailable")

// RunOutcome is the locally observed terminal classification of a run
type RunOutcome string

const (
	OutcomeCompleted RunOutcome = "completed"
	OutcomeFailed    RunOutcome = "failed"
	OutcomeCancelled RunOutcome = "cancelled"
	OutcomeExpired   RunOutcome = "expired"

	// OutcomeTimedOut is a local classification: the wall-clock budget
	// ran out before a terminal status was observed. The remote run may
	// still be progressing; we just stop waiting.
	OutcomeTimedOut RunOutcome = "timed_out"
)

// replyScanLimit bounds how many recent messages are scanned for the
// latest assistant reply.
const replyScanLimit = 20

// threadMessage is the transport-independent view of a thread message
type threadMessage struct {
	role  string
	parts []string
}

// api abstracts the remote service operations so the polling state
// machine can be driven deterministically in tests.
type api interface {
	createThread(ctx context.Context) (string, error)
	addMessage(ctx context.Context, threadID, content string) error
	createRun(ctx context.Context, threadID, instructions string) (string, error)
	getRunStatus(ctx context.Context, threadID, runID string) (string, error)
	listRecentMessages(ctx context.Context, threadID string, limit int) ([]threadMessage, error)
}

// Options configures the client
type Options struct {
	APIKey       string
	AssistantID  string
	BaseURL      string
	PollInterval time.Duration
}

// Client talks to the remote conversation service
type Client struct {
	api          api
	pollInterval time.Duration
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	logger       zerolog.Logger
}

// NewClient creates a client backed by the OpenAI Assistants API
func NewClient(opts Options, logger zerolog.Logger) *Client {
	return newClientWithAPI(newOpenAIAPI(opts), opts.PollInterval, logger)
}

func newClientWithAPI(a api, pollInterval time.Duration, logger zerolog.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Client{
		api:          a,
		pollInterval: pollInterval,
		now:          time.Now,
		sleep:        sleepContext,
		logger:       logger.With().Str("component", "assistant").Logger(),
	}
}

// CreateConversation creates a new remote conversation and returns its handle
func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	id, err := c.api.createThread(ctx)
	if err != nil {
		return "", remoteUnavailable("create conversation", err)
	}

	c.logger.Debug().Str("conversation_id", id).Msg("Conversation created")
	return id, nil
}

// AppendMessage appends user content to the conversation
func (c *Client) AppendMessage(ctx context.Context, conversationID, content string) error {
	if err := c.api.addMessage(ctx, conversationID, content); err != nil {
		return remoteUnavailable("append message", err)
	}
	return nil
}

// StartRun starts a processing run on the conversation. When language is
// set an explicit response-language instruction is attached to the run;
// this is redundant with the content tag but increases compliance.
func (c *Client) StartRun(ctx context.Context, conversationID, language string) (string, error) {
	runID, err := c.api.createRun(ctx, conversationID, languageInstruction(language))
	if err != nil {
		return "", remoteUnavailable("start run", err)
	}

	c.logger.Debug().
		Str("conversation_id", conversationID).
		Str("run_id", runID).
		Str("language", language).
		Msg("Run started")
	return runID, nil
}

// AwaitRun polls the run status at a fixed cadence until a terminal
// status is observed or the wall-clock budget is exhausted. The client
// never cancels the run; TimedOut only stops the local wait.
func (c *Client) AwaitRun(ctx context.Context, conversationID, runID string, timeout time.Duration) (RunOutcome, error) {
	deadline := c.now().Add(timeout)

	for {
		status, err := c.api.getRunStatus(ctx, conversationID, runID)
		if err != nil {
			return "", remoteUnavailable("poll run", err)
		}

		if outcome, terminal := classifyStatus(status); terminal {
			c.logger.Debug().
				Str("run_id", runID).
				Str("status", status).
				Str("outcome", string(outcome)).
				Msg("Run reached terminal status")
			return outcome, nil
		}

		if !c.now().Add(c.pollInterval).After(deadline) {
			if err := c.sleep(ctx, c.pollInterval); err != nil {
				return "", err
			}
			continue
		}

		c.logger.Warn().
			Str("run_id", runID).
			Dur("timeout", timeout).
			Str("last_status", status).
			Msg("Run did not reach terminal status within budget")
		return OutcomeTimedOut, nil
	}
}

// FetchLatestReply returns the text of the most recent assistant-authored
// message among the most recent messages, concatenating its text segments
// in their original order. Returns an empty string, not an error, when no
// assistant message is found.
func (c *Client) FetchLatestReply(ctx context.Context, conversationID string) (string, error) {
	messages, err := c.api.listRecentMessages(ctx, conversationID, replyScanLimit)
	if err != nil {
		return "", remoteUnavailable("fetch reply", err)
	}

	// Newest first
	for _, msg := range messages {
		if msg.role != "assistant" {
			continue
		}

		var sb strings.Builder
		for _, part := range msg.parts {
			sb.WriteString(part)
		}
		return sb.String(), nil
	}

	return "", nil
}

// classifyStatus maps a remote run status to a local outcome. The second
// return is false while the run is still progressing. Statuses that can
// never resolve for this relay (requires_action with no registered tools,
// incomplete) classify as Failed.
func classifyStatus(status string) (RunOutcome, bool) {
	switch status {
	case "completed":
		return OutcomeCompleted, true
	case "failed":
		return OutcomeFailed, true
	case "cancelled":
		return OutcomeCancelled, true
	case "expired":
		return OutcomeExpired, true
	case "requires_action", "incomplete":
		return OutcomeFailed, true
	default:
		// queued, in_progress, cancelling
		return "", false
	}
}

// TagContent prefixes user text with a machine-readable language tag so
// the remote service can honor the preference without a side-channel.
func TagContent(language, text string) string {
	if language == "" {
		return text
	}
	return fmt.Sprintf("[LANG:%s] %s", language, text)
}

// languageInstruction builds the natural-language run instruction for a
// language preference; empty when no preference is set.
func languageInstruction(language string) string {
	name, ok := languageNames[language]
	if !ok {
		return ""
	}
	return fmt.Sprintf("Respond in %s.", name)
}

var languageNames = map[string]string{
	"en": "English",
	"nl": "Dutch",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
}

func remoteUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrRemoteUnavailable, err)
}

// sleepContext sleeps for d or until the context is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
