package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"csbridge/internal/constants"
	apperrors "csbridge/internal/errors"
	"csbridge/internal/metrics"
	"csbridge/internal/timestamps"
	"csbridge/internal/tracing"
	"csbridge/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// mediaPlaceholder stands in for the text of a pure-media message in the prompt.
const mediaPlaceholder = "[pesan media]"

var errEmptyReply = errors.New("generator returned an empty reply")

// Generator produces reply text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TextSender is the part of the dispatcher the orchestrator needs.
type TextSender interface {
	SendText(ctx context.Context, conversationID, text string, origin Origin) (*DispatchResult, error)
}

type AutoReplyConfig struct {
	Persona      string
	BusinessName string
	FallbackText string
	Timeout      time.Duration
}

// AutoReplyResult reports what was sent. Dispatch is nil when delivery failed.
type AutoReplyResult struct {
	Text         string
	UsedFallback bool
	Dispatch     *DispatchResult
}

// AutoReplier answers an accepted inbound message with generated text, or the
// fallback text when generation fails.
type AutoReplier struct {
	generator Generator
	sender    TextSender
	breaker   *circuitbreaker.CircuitBreaker
	zone      timestamps.Zone
	clock     timestamps.Clock
	cfg       AutoReplyConfig
	logger    *logrus.Logger
}

func NewAutoReplier(generator Generator, sender TextSender, breaker *circuitbreaker.CircuitBreaker, zone timestamps.Zone, clock timestamps.Clock, cfg AutoReplyConfig, logger *logrus.Logger) *AutoReplier {
	if cfg.FallbackText == "" {
		cfg.FallbackText = constants.DefaultFallbackText
	}
	if cfg.Persona == "" {
		cfg.Persona = constants.DefaultPersona
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Duration(constants.DefaultGenerativeTimeoutSec) * time.Second
	}
	if clock == nil {
		clock = timestamps.SystemClock()
	}
	if breaker == nil {
		breaker = circuitbreaker.NewWithLogger("generation", constants.DefaultBreakerMaxFailures,
			time.Duration(constants.DefaultBreakerResetSec)*time.Second, logger)
	}
	return &AutoReplier{
		generator: generator,
		sender:    sender,
		breaker:   breaker,
		zone:      zone,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Greeting returns the Indonesian salutation for an hour of the day.
func Greeting(hour int) string {
	switch {
	case hour >= 5 && hour < 11:
		return "Selamat pagi"
	case hour >= 11 && hour < 15:
		return "Selamat siang"
	case hour >= 15 && hour < 19:
		return "Selamat sore"
	default:
		return "Selamat malam"
	}
}

// BuildPrompt assembles the generation prompt. A nil or empty text is replaced
// by the media placeholder.
func BuildPrompt(greeting, persona, businessName string, text *string) string {
	body := mediaPlaceholder
	if text != nil && *text != "" {
		body = *text
	}
	instructions := strings.TrimSpace(persona)
	if businessName != "" {
		instructions = fmt.Sprintf("%s Kita adalah CS %s", instructions, businessName)
	}
	return fmt.Sprintf("gunakan %s jika diperlukan. %s:\n\n%s", greeting, instructions, body)
}

// Reply generates and dispatches exactly one auto-reply for the conversation.
// The inbound row is not touched. A dispatch failure is returned; it is not retried.
func (a *AutoReplier) Reply(ctx context.Context, conversationID string, text *string) (*AutoReplyResult, error) {
	ctx, span := tracing.StartSpan(ctx, "autoreply.reply")
	defer span.End()

	hour := a.zone.In(a.clock.Now()).Hour()
	prompt := BuildPrompt(Greeting(hour), a.cfg.Persona, a.cfg.BusinessName, text)

	result := &AutoReplyResult{}
	reply, err := a.generate(ctx, prompt)
	if err != nil {
		result.Text = a.cfg.FallbackText
		result.UsedFallback = true
		metrics.AutoReplies.WithLabelValues("fallback").Inc()
		apperrors.LogWarn(LogWithContext(ctx, a.logger, logrus.Fields{
			LogFieldConversationID: conversationID,
			LogFieldStage:          StageAutoReplyFallback,
		}), apperrors.NewGenerationError(err), "Reply generation failed, using fallback text")
	} else {
		result.Text = reply
		metrics.AutoReplies.WithLabelValues("generated").Inc()
	}
	tracing.AddSpanAttributes(ctx, attribute.Bool("fallback", result.UsedFallback))

	dispatch, err := a.sender.SendText(ctx, conversationID, result.Text, OriginAutoReply)
	if err != nil {
		apperrors.LogError(LogWithContext(ctx, a.logger, logrus.Fields{
			LogFieldConversationID: conversationID,
			LogFieldFallback:       result.UsedFallback,
		}), err, "Failed to dispatch auto-reply")
		return result, err
	}
	result.Dispatch = dispatch
	return result, nil
}

func (a *AutoReplier) generate(ctx context.Context, prompt string) (string, error) {
	if a.generator == nil {
		return "", errors.New("no generator configured")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	var reply string
	timer := metrics.NewTimer(metrics.GenerationDuration)
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		type outcome struct {
			text string
			err  error
		}
		done := make(chan outcome, 1)
		go func() {
			text, err := a.generator.Generate(ctx, prompt)
			done <- outcome{text, err}
		}()
		select {
		case out := <-done:
			reply = out.text
			return out.err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	elapsed := timer.ObserveDuration()
	if err != nil {
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errEmptyReply
	}
	a.logger.WithFields(logrus.Fields{
		LogFieldStage:    StageAutoReplyComplete,
		LogFieldDuration: elapsed.Milliseconds(),
	}).Debug("Reply generated")
	return reply, nil
}
