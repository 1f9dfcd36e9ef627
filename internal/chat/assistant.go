package chat

import (
	"context"
	"strings"
	"time"

	"github.com/jparrish/portfolio-platform/pkg/logging"
)

const defaultSystemPrompt = `You are the assistant on Jordan Parrish's portfolio site.
Answer questions about Jordan's background, projects, and services concisely and honestly.
If a visitor wants to book a call or start a project, point them to the scheduling widget on the site.
If you do not know something, say so instead of guessing.`

// transcriptAccess is the transcript surface the assistant needs.
type transcriptAccess interface {
	Append(ctx context.Context, sessionID string, msg TranscriptMessage) error
	List(ctx context.Context, sessionID string, limit int64) ([]TranscriptMessage, error)
}

// Assistant turns visitor messages into model replies, threading the stored
// transcript through as conversation history.
type Assistant struct {
	llm          LLMClient
	transcripts  transcriptAccess
	model        string
	systemPrompt string
	historyLimit int64
	timeout      time.Duration
	logger       *logging.Logger
}

// NewAssistant creates the chat assistant. model may be empty for providers
// with a fixed model (Gemini binds it at client construction).
func NewAssistant(llm LLMClient, transcripts *TranscriptStore, model string, logger *logging.Logger) *Assistant {
	if logger == nil {
		logger = logging.Default()
	}
	a := &Assistant{
		llm:          llm,
		model:        model,
		systemPrompt: defaultSystemPrompt,
		historyLimit: 20,
		timeout:      30 * time.Second,
		logger:       logger,
	}
	if transcripts != nil {
		a.transcripts = transcripts
	}
	return a
}

// WithSystemPrompt overrides the assistant persona.
func (a *Assistant) WithSystemPrompt(prompt string) *Assistant {
	if strings.TrimSpace(prompt) != "" {
		a.systemPrompt = prompt
	}
	return a
}

// Reply stores the visitor message, completes against the model with recent
// history, stores the reply, and returns it.
func (a *Assistant) Reply(ctx context.Context, sessionID, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if a.transcripts != nil {
		if err := a.transcripts.Append(ctx, sessionID, TranscriptMessage{Role: RoleUser, Body: text}); err != nil {
			a.logger.Error("chat transcript append failed", "error", err, "session_id", sessionID)
		}
	}

	messages := a.history(ctx, sessionID)
	if len(messages) == 0 || messages[len(messages)-1].Content != text {
		messages = append(messages, Message{Role: RoleUser, Content: text})
	}

	resp, err := a.llm.Complete(ctx, CompletionRequest{
		Model:       a.model,
		System:      []string{a.systemPrompt},
		Messages:    messages,
		MaxTokens:   1024,
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}

	if a.transcripts != nil {
		if err := a.transcripts.Append(ctx, sessionID, TranscriptMessage{Role: RoleAssistant, Body: resp.Text}); err != nil {
			a.logger.Error("chat transcript append failed", "error", err, "session_id", sessionID)
		}
	}
	return resp.Text, nil
}

// History returns the stored transcript for a session, oldest first.
func (a *Assistant) History(ctx context.Context, sessionID string, limit int64) ([]TranscriptMessage, error) {
	if a.transcripts == nil {
		return []TranscriptMessage{}, nil
	}
	return a.transcripts.List(ctx, sessionID, limit)
}

func (a *Assistant) history(ctx context.Context, sessionID string) []Message {
	if a.transcripts == nil {
		return nil
	}
	stored, err := a.transcripts.List(ctx, sessionID, a.historyLimit)
	if err != nil {
		a.logger.Error("chat history load failed", "error", err, "session_id", sessionID)
		return nil
	}
	out := make([]Message, 0, len(stored))
	for _, m := range stored {
		if strings.TrimSpace(m.Body) == "" {
			continue
		}
		out = append(out, Message{Role: m.Role, Content: m.Body})
	}
	return out
}
