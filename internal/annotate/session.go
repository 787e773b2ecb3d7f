package annotate

import (
	"context"
	"fmt"
	"time"

	"bookgloss/internal/book"
	"bookgloss/internal/llm"
	"github.com/avast/retry-go/v4"
)

// SessionConfig controls per-paragraph retry behavior and the context
// token budget of one chapter conversation.
type SessionConfig struct {
	MaxAttempts uint          // Attempts per paragraph including the first
	RetryDelay  time.Duration // Base delay for exponential backoff
	TokenBudget int           // Max estimated tokens of accumulated turns
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		TokenBudget: 24000,
	}
}

// Session is one conversational context bound to one chapter. It is
// seeded with an instruction naming the reader and the chapter, and every
// Annotate call appends the exchange so later paragraphs see accumulated
// context. Annotate must be called in block order; a session is never
// reused across chapters.
type Session struct {
	client     llm.Client
	readerName string
	turns      []llm.Turn
	seedTurns  int
	cfg        SessionConfig
}

func NewSession(client llm.Client, readerName, chapterTitle string, cfg SessionConfig) *Session {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = 24000
	}

	seed := fmt.Sprintf(
		"You are a patient reading companion for %s, who is reading the chapter %q. "+
			"For every paragraph sent to you, explain it in plain, friendly language, "+
			"keeping the chapter's context in mind. Reply with the explanation only.",
		readerName, chapterTitle)

	turns := []llm.Turn{
		{Role: llm.RoleUser, Text: seed},
		{Role: llm.RoleModel, Text: "Understood. Send the first paragraph."},
	}
	return &Session{
		client:     client,
		readerName: readerName,
		turns:      turns,
		seedTurns:  len(turns),
		cfg:        cfg,
	}
}

// Annotate requests an explanation for one paragraph, retrying retryable
// failures with exponential backoff. Non-retryable errors propagate
// immediately and abort the chapter.
func (s *Session) Annotate(ctx context.Context, paragraph string) (*book.Explanation, error) {
	prompt := fmt.Sprintf("Explain this to %s: %q", s.readerName, paragraph)

	var reply string
	err := retry.Do(
		func() error {
			r, err := s.client.Send(ctx, s.turns, prompt)
			if err != nil {
				return err
			}
			reply = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.cfg.MaxAttempts),
		retry.RetryIf(llm.IsRetryable),
		retry.Delay(s.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(30*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	s.turns = append(s.turns,
		llm.Turn{Role: llm.RoleUser, Text: prompt},
		llm.Turn{Role: llm.RoleModel, Text: reply},
	)
	s.trimToBudget()

	return &book.Explanation{Text: reply, GeneratedAt: time.Now()}, nil
}

// trimToBudget drops the oldest non-seed exchange pairs until the
// accumulated context fits the token budget. The seed instruction is
// never dropped.
func (s *Session) trimToBudget() {
	for contextTokens(s.turns) > s.cfg.TokenBudget && len(s.turns) > s.seedTurns+2 {
		rest := s.turns[s.seedTurns+2:]
		s.turns = append(s.turns[:s.seedTurns], rest...)
	}
}
