package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinpj/learnloop/internal/logging"
)

// Metered wraps a Client so every successful completion is recorded against
// the usage tracker under a fixed operation label. Token counts are
// estimated from text length; the providers' usage metadata is not exposed
// by the completion endpoint we use.
type Metered struct {
	client    *Client
	usage     *Usage
	operation string
	log       *zap.Logger
	now       func() time.Time
}

// Metered returns a recording wrapper for one operation label.
func (c *Client) Metered(usage *Usage, operation string) *Metered {
	return &Metered{client: c, usage: usage, operation: operation, now: time.Now}
}

// WithLogger enables per-call event logging on the wrapper.
func (m *Metered) WithLogger(log *zap.Logger) *Metered {
	m.log = log
	return m
}

// Complete calls the underlying client and records the request.
func (m *Metered) Complete(ctx context.Context, model, prompt string, maxTokens int, temperature float64) (string, error) {
	text, err := m.client.Complete(ctx, model, prompt, maxTokens, temperature)
	if err != nil {
		return "", err
	}
	now := m.now()
	in, out := EstimateTokens(prompt), EstimateTokens(text)
	m.usage.Rollover(now.Format("2006-01-02"))
	cost := m.usage.Record(now.Format("2006-01"), model, m.operation, in, out)
	if m.log != nil {
		logging.LLMCall(m.log, model, m.operation, in, out, cost)
	}
	return text, nil
}

// EstimateTokens approximates the token count of a text at 4 chars/token.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
