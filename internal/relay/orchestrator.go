// Package relay composes the store, the command interpreter, and the
// remote conversation client into the end-to-end handling of one inbound
// message.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/ayra/internal/assistant"
	"github.com/harun/ayra/internal/commands"
	"github.com/harun/ayra/internal/metrics"
	"github.com/harun/ayra/internal/store"
)

// Sender delivers a text message to a chat. Failures are logged by the
// orchestrator and never surfaced to the inbound path.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Conversation is the remote conversation contract the orchestrator
// drives. Implemented by assistant.Client.
type Conversation interface {
	CreateConversation(ctx context.Context) (string, error)
	AppendMessage(ctx context.Context, conversationID, content string) error
	StartRun(ctx context.Context, conversationID, language string) (string, error)
	AwaitRun(ctx context.Context, conversationID, runID string, timeout time.Duration) (assistant.RunOutcome, error)
	FetchLatestReply(ctx context.Context, conversationID string) (string, error)
}

// Options configures the orchestrator
type Options struct {
	RunTimeout time.Duration
}

// Orchestrator handles inbound messages end to end
type Orchestrator struct {
	store      store.Store
	convo      Conversation
	replies    *commands.Catalog
	sender     Sender
	metrics    *metrics.Metrics
	runTimeout time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(st store.Store, convo Conversation, replies *commands.Catalog, sender Sender, m *metrics.Metrics, opts Options, logger zerolog.Logger) *Orchestrator {
	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 25 * time.Second
	}
	return &Orchestrator{
		store:      st,
		convo:      convo,
		replies:    replies,
		sender:     sender,
		metrics:    m,
		runTimeout: runTimeout,
		now:        time.Now,
		logger:     logger.With().Str("component", "relay").Logger(),
	}
}

// HandleInbound processes one inbound message. A delivery id, when
// present, admits the message through the dedup ledger before any side
// effect; a duplicate is a silent no-op. Remote-service failures are
// absorbed here and answered with a static apology; only storage and
// context errors propagate.
func (o *Orchestrator) HandleInbound(ctx context.Context, chatID, text, deliveryID string) error {
	start := o.now()
	defer func() {
		o.metrics.HandleDuration.Observe(o.now().Sub(start).Seconds())
	}()

	if deliveryID != "" {
		admitted, err := o.store.MarkSeen(ctx, deliveryID, o.now())
		if err != nil {
			return fmt.Errorf("failed to record delivery: %w", err)
		}
		if !admitted {
			o.metrics.DeliveriesDedupedTotal.Inc()
			o.logger.Debug().
				Str("delivery_id", deliveryID).
				Msg("Duplicate delivery dropped")
			return nil
		}
	}

	o.metrics.MessagesReceivedTotal.Inc()

	reply, language, err := o.process(ctx, chatID, text)
	if err != nil {
		if errors.Is(err, assistant.ErrRemoteUnavailable) {
			o.logger.Warn().
				Err(err).
				Str("chat_id", chatID).
				Msg("Remote conversation service unavailable")
			o.send(ctx, chatID, o.replies.Apology(language))
			return nil
		}
		return err
	}

	if reply != "" {
		o.send(ctx, chatID, reply)
	}
	return nil
}

// process classifies the text and produces the reply. The returned
// language is the best-known preference at the point of failure so the
// caller can localize the apology.
func (o *Orchestrator) process(ctx context.Context, chatID, text string) (reply, language string, err error) {
	cmd := commands.Classify(text)
	o.metrics.CommandsTotal.WithLabelValues(string(cmd.Kind)).Inc()

	sess, err := o.store.Get(ctx, chatID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load session: %w", err)
	}
	if sess != nil {
		language = sess.Language
	}

	switch cmd.Kind {
	case commands.KindPromptForText:
		return o.replies.PromptForText(language), language, nil

	case commands.KindHelp:
		return o.replies.Help(language), language, nil

	case commands.KindLangHelp:
		return o.replies.LangHelp(language), language, nil

	case commands.KindSetLanguage:
		if err := o.setLanguage(ctx, chatID, cmd.Language, sess); err != nil {
			return "", language, err
		}
		// Confirm in the language just set
		return o.replies.Confirm(cmd.Language), cmd.Language, nil
	}

	return o.relayMessage(ctx, chatID, text, sess)
}

// setLanguage persists a language choice, ensuring the session exists
// with a remote conversation on first contact. SetLanguage is the
// overwrite path; the upsert alone would not replace an already-set
// preference.
func (o *Orchestrator) setLanguage(ctx context.Context, chatID, language string, sess *store.Session) error {
	if sess == nil || sess.ConversationID == "" {
		if _, err := o.resolveConversation(ctx, chatID, sess); err != nil {
			return err
		}
	}

	if err := o.store.Upsert(ctx, chatID, "", language, o.now()); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if err := o.store.SetLanguage(ctx, chatID, language); err != nil {
		return fmt.Errorf("failed to set language: %w", err)
	}

	o.logger.Info().
		Str("chat_id", chatID).
		Str("language", language).
		Msg("Language preference set")
	return nil
}

// relayMessage appends the text to the chat's conversation, runs it, and
// fetches the assistant's reply.
func (o *Orchestrator) relayMessage(ctx context.Context, chatID, text string, sess *store.Session) (reply, language string, err error) {
	if sess != nil {
		language = sess.Language
	}

	// Every admitted message refreshes the session timestamp; the upsert
	// leaves the handle and language untouched.
	if err := o.store.Upsert(ctx, chatID, "", "", o.now()); err != nil {
		return "", language, fmt.Errorf("failed to touch session: %w", err)
	}

	conversationID, err := o.resolveConversation(ctx, chatID, sess)
	if err != nil {
		return "", language, err
	}

	content := assistant.TagContent(language, text)
	if err := o.convo.AppendMessage(ctx, conversationID, content); err != nil {
		return "", language, err
	}

	runID, err := o.convo.StartRun(ctx, conversationID, language)
	if err != nil {
		return "", language, err
	}

	runStart := o.now()
	outcome, err := o.convo.AwaitRun(ctx, conversationID, runID, o.runTimeout)
	if err != nil {
		return "", language, err
	}
	o.metrics.RunsTotal.WithLabelValues(string(outcome)).Inc()
	o.metrics.RunDuration.Observe(o.now().Sub(runStart).Seconds())

	if outcome != assistant.OutcomeCompleted {
		o.logger.Warn().
			Str("chat_id", chatID).
			Str("run_id", runID).
			Str("outcome", string(outcome)).
			Msg("Run did not complete")
		return o.replies.Apology(language), language, nil
	}

	fetched, err := o.convo.FetchLatestReply(ctx, conversationID)
	if err != nil {
		return "", language, err
	}
	if fetched == "" {
		return o.replies.TryAgain(language), language, nil
	}
	return fetched, language, nil
}

// resolveConversation returns the chat's conversation handle, creating a
// remote conversation on first contact. The store's upsert keeps the
// first-set handle under concurrent creation, so the handle is re-read
// after the upsert rather than trusting the one just created.
func (o *Orchestrator) resolveConversation(ctx context.Context, chatID string, sess *store.Session) (string, error) {
	if sess != nil && sess.ConversationID != "" {
		return sess.ConversationID, nil
	}

	created, err := o.convo.CreateConversation(ctx)
	if err != nil {
		return "", err
	}

	if err := o.store.Upsert(ctx, chatID, created, "", o.now()); err != nil {
		return "", fmt.Errorf("failed to store conversation handle: %w", err)
	}

	stored, err := o.store.Get(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("failed to reload session: %w", err)
	}
	if stored == nil || stored.ConversationID == "" {
		return created, nil
	}

	if stored.ConversationID != created {
		o.logger.Debug().
			Str("chat_id", chatID).
			Msg("Concurrent conversation creation, using stored handle")
	}
	return stored.ConversationID, nil
}

// send delivers the reply. Send failures are logged and counted, never
// propagated; the webhook was acknowledged long before this point.
func (o *Orchestrator) send(ctx context.Context, chatID, text string) {
	if err := o.sender.Send(ctx, chatID, text); err != nil {
		o.metrics.SendErrorsTotal.Inc()
		o.logger.Error().
			Err(err).
			Str("chat_id", chatID).
			Msg("Failed to send message")
		return
	}
	o.metrics.MessagesSentTotal.Inc()
}
