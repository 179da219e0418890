// Package gate decides whether an inbound chat event is processed at all.
package gate

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"csbridge/internal/constants"

	"github.com/sirupsen/logrus"
)

// Reason names the rule that produced a verdict.
type Reason string

const (
	ReasonAccepted  Reason = "accepted"
	ReasonSelfSent  Reason = "self_sent"
	ReasonExcluded  Reason = "excluded"
	ReasonTooLong   Reason = "too_long"
	ReasonNoKeyword Reason = "no_keyword"
)

// ExclusionSource yields the current exclusion list. It is read on every
// evaluation so edits take effect on the next event.
type ExclusionSource interface {
	Load(ctx context.Context) ([]string, error)
}

// Config holds the gate's tunables.
type Config struct {
	Keywords      []string
	MaxTextLength int
}

// Input is the part of an inbound event the gate looks at.
type Input struct {
	ConversationID string
	IsSelfSent     bool
	RawText        string
	HasMedia       bool
}

// Verdict is the gate's answer. Text is the normalized body, nil when empty.
type Verdict struct {
	Proceed bool
	Text    *string
	Reason  Reason
}

type Gate struct {
	source ExclusionSource
	logger *logrus.Logger
	maxLen int

	mu       sync.RWMutex
	keywords []string
}

func New(cfg Config, source ExclusionSource, logger *logrus.Logger) *Gate {
	if logger == nil {
		logger = logrus.New()
	}
	maxLen := cfg.MaxTextLength
	if maxLen <= 0 {
		maxLen = constants.DefaultMaxTextLength
	}
	g := &Gate{source: source, logger: logger, maxLen: maxLen}
	g.SetKeywords(cfg.Keywords)
	return g
}

// SetKeywords replaces the keyword list. An empty list accepts everything.
func (g *Gate) SetKeywords(keywords []string) {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	g.mu.Lock()
	g.keywords = lowered
	g.mu.Unlock()
}

// Keywords returns a copy of the active, lower-cased keyword list.
func (g *Gate) Keywords() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.keywords...)
}

// Evaluate applies the rules in order and stops at the first rejection.
func (g *Gate) Evaluate(ctx context.Context, in Input) Verdict {
	if in.IsSelfSent {
		return Verdict{Reason: ReasonSelfSent}
	}

	if g.excluded(ctx, in.ConversationID) {
		return Verdict{Reason: ReasonExcluded}
	}

	normalized := Normalize(in.RawText)
	if utf8.RuneCountInString(normalized) > g.maxLen {
		return Verdict{Reason: ReasonTooLong}
	}

	var text *string
	if normalized != "" {
		text = &normalized
	}

	if !g.matchesKeyword(text) {
		return Verdict{Reason: ReasonNoKeyword}
	}

	return Verdict{Proceed: true, Text: text, Reason: ReasonAccepted}
}

func (g *Gate) excluded(ctx context.Context, conversationID string) bool {
	if g.source == nil {
		return false
	}
	list, err := g.source.Load(ctx)
	if err != nil {
		g.logger.WithError(err).Warn("Failed to load exclusion list, treating it as empty")
		return false
	}
	for _, id := range list {
		if id == conversationID {
			return true
		}
	}
	return false
}

func (g *Gate) matchesKeyword(text *string) bool {
	keywords := g.Keywords()
	if len(keywords) == 0 {
		return true
	}
	if text == nil {
		return false
	}
	lower := strings.ToLower(*text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Normalize collapses whitespace runs to a single space and trims the ends.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
