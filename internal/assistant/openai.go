package assistant

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openaiAPI implements api against the OpenAI Assistants endpoints
type openaiAPI struct {
	client      openai.Client
	assistantID string
}

// newOpenAIAPI creates the SDK-backed api implementation
func newOpenAIAPI(opts Options) *openaiAPI {
	requestOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &openaiAPI{
		client:      openai.NewClient(requestOpts...),
		assistantID: opts.AssistantID,
	}
}

func (a *openaiAPI) createThread(ctx context.Context) (string, error) {
	thread, err := a.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", err
	}
	if thread.ID == "" {
		return "", fmt.Errorf("empty thread id returned")
	}
	return thread.ID, nil
}

func (a *openaiAPI) addMessage(ctx context.Context, threadID, content string) error {
	_, err := a.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(content),
		},
	})
	return err
}

func (a *openaiAPI) createRun(ctx context.Context, threadID, instructions string) (string, error) {
	params := openai.BetaThreadRunNewParams{
		AssistantID: a.assistantID,
	}
	if instructions != "" {
		params.AdditionalInstructions = openai.String(instructions)
	}

	run, err := a.client.Beta.Threads.Runs.New(ctx, threadID, params)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func (a *openaiAPI) getRunStatus(ctx context.Context, threadID, runID string) (string, error) {
	run, err := a.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return "", err
	}
	return string(run.Status), nil
}

func (a *openaiAPI) listRecentMessages(ctx context.Context, threadID string, limit int) ([]threadMessage, error) {
	page, err := a.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		Limit: openai.Int(int64(limit)),
	})
	if err != nil {
		return nil, err
	}

	messages := make([]threadMessage, 0, len(page.Data))
	for _, msg := range page.Data {
		tm := threadMessage{role: string(msg.Role)}
		for _, part := range msg.Content {
			if part.Type == "text" {
				tm.parts = append(tm.parts, part.Text.Value)
			}
		}
		messages = append(messages, tm)
	}
	return messages, nil
}
