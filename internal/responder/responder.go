// Package responder produces assistant replies. The Mock implementation
// stands in for a real inference backend; anything satisfying Generator can
// replace it without touching the message router.
package responder

import (
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"strings"
	"time"
)

// Generator produces a reply to a prompt, either as a lazy chunk sequence or
// as a single complete string.
type Generator interface {
	// Stream yields word-granularity chunks of the reply in order, pausing
	// before each one to simulate generation latency. The sequence is
	// finite and ends by exhaustion; there is no terminator chunk. A
	// cancelled context surfaces as a yielded error.
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]

	// Complete returns the whole reply after a single simulated delay.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Templates echo the prompt back. One is chosen uniformly at random per reply.
var templates = []string{
	"I understand you said: '%s'. How can I help you further?",
	"That's interesting! Regarding '%s', let me think...",
	"Thanks for sharing that. Based on '%s', here's my thought...",
	"I see you mentioned '%s'. Let me provide some insight on that.",
}

// Mock is a canned-reply Generator with injectable delays.
type Mock struct {
	chunkDelay    time.Duration
	responseDelay time.Duration
	pick          func(n int) int
}

// NewMock creates a mock generator. chunkDelay precedes each streamed chunk;
// responseDelay precedes a whole reply.
func NewMock(chunkDelay, responseDelay time.Duration) *Mock {
	return &Mock{
		chunkDelay:    chunkDelay,
		responseDelay: responseDelay,
		pick:          rand.IntN,
	}
}

func (m *Mock) reply(prompt string) string {
	return fmt.Sprintf(templates[m.pick(len(templates))], prompt)
}

// Stream yields the reply word by word. Each chunk keeps its separating
// space except the last, so concatenating all chunks reconstructs the reply
// exactly.
func (m *Mock) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	response := m.reply(prompt)
	words := strings.Split(response, " ")

	return func(yield func(string, error) bool) {
		for i, word := range words {
			if err := sleep(ctx, m.chunkDelay); err != nil {
				yield("", err)
				return
			}
			chunk := word
			if i < len(words)-1 {
				chunk += " "
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Complete returns the whole reply after the response delay.
func (m *Mock) Complete(ctx context.Context, prompt string) (string, error) {
	if err := sleep(ctx, m.responseDelay); err != nil {
		return "", err
	}
	return m.reply(prompt), nil
}

// Replies returns every reply the mock can produce for a prompt. Exposed so
// tests can assert on generated content without pinning the random choice.
func Replies(prompt string) []string {
	out := make([]string, len(templates))
	for i, tmpl := range templates {
		out[i] = fmt.Sprintf(tmpl, prompt)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
