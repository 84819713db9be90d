// Package compression keeps the conversational trace bounded.
package compression

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
)

const (
	DefaultThreshold = 6
	DefaultKeepHead  = 2
	DefaultKeepTail  = 2
)

// Compressor is the Compression step. Once the trace grows past the threshold it keeps the
// first and last messages verbatim and asks a summarizer to condense the middle.
type Compressor struct {
	summarizer ports.StepExecutor
	threshold  int
	keepHead   int
	keepTail   int
	logger     *slog.Logger
}

// Option configures a Compressor.
type Option func(*Compressor)

// WithThreshold sets the message count above which compression happens.
func WithThreshold(n int) Option {
	return func(c *Compressor) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithWindow sets how many leading and trailing messages survive unchanged.
func WithWindow(head, tail int) Option {
	return func(c *Compressor) {
		if head >= 0 {
			c.keepHead = head
		}
		if tail >= 0 {
			c.keepTail = tail
		}
	}
}

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compressor) {
		c.logger = logger
	}
}

// New wraps summarizer as the Compression step.
func New(summarizer ports.StepExecutor, opts ...Option) *Compressor {
	c := &Compressor{
		summarizer: summarizer,
		threshold:  DefaultThreshold,
		keepHead:   DefaultKeepHead,
		keepTail:   DefaultKeepTail,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke implements ports.StepExecutor.
func (c *Compressor) Invoke(ctx context.Context, state *domain.State) (domain.StepResult, error) {
	msgs := state.Messages
	if len(msgs) <= c.threshold || len(msgs) <= c.keepHead+c.keepTail {
		return domain.StepResult{Update: map[string]any{}}, nil
	}

	head := msgs[:c.keepHead]
	middle := msgs[c.keepHead : len(msgs)-c.keepTail]
	tail := msgs[len(msgs)-c.keepTail:]

	view := state.Clone()
	view.Messages = append([]domain.Message{}, middle...)

	res, err := c.summarizer.Invoke(ctx, view)
	if err != nil {
		return domain.StepResult{}, fmt.Errorf("failed to summarize %d messages: %w", len(middle), err)
	}

	u, err := domain.DecodeUpdate(res.Update)
	if err != nil {
		return domain.StepResult{}, err
	}
	summary := u.Messages
	if len(summary) == 0 {
		text := strings.TrimSpace(fmt.Sprint(res.Output))
		if res.Output == nil || text == "" {
			return domain.StepResult{}, fmt.Errorf("summarizer returned neither messages nor text")
		}
		summary = []domain.Message{{Role: domain.RoleAssistant, Author: domain.StepCompression.String(), Content: text}}
	}

	out := make([]domain.Message, 0, len(head)+len(summary)+len(tail))
	out = append(out, head...)
	out = append(out, summary...)
	out = append(out, tail...)

	update := make(map[string]any, len(res.Update)+2)
	for k, v := range res.Update {
		update[k] = v
	}
	update[domain.KeyMessages] = out
	update[domain.KeyReplaceMessages] = true

	c.logger.Debug("compressed messages",
		"session", state.SessionID,
		"before", len(msgs),
		"after", len(out),
	)
	return domain.StepResult{Output: res.Output, Update: update}, nil
}
