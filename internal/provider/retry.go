package provider

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	DefaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultBackoffMult    = 2
	defaultMaxBackoff     = 10 * time.Second
)

// WithRetry wraps gen with the pipeline retry policy: maxRetries+1
// attempts with exponential backoff. A ModelNotFoundError bypasses retry;
// every other failure, including empty-content responses, is retried.
func WithRetry(gen TextGenerator, maxRetries int) TextGenerator {
	return &retryingGenerator{inner: gen, maxRetries: maxRetries, sleep: sleepCtx}
}

type retryingGenerator struct {
	inner      TextGenerator
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

func (g *retryingGenerator) Name() string { return g.inner.Name() }

func (g *retryingGenerator) Generate(ctx context.Context, prompt, step string, opts GenerateOptions) (*TextResult, error) {
	attempts := g.maxRetries + 1
	backoff := defaultInitialBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		res, err := g.inner.Generate(ctx, prompt, step, opts)
		if err == nil {
			err = validateText(res)
		}
		if err == nil {
			DeriveTotals(res)
			return res, nil
		}

		var notFound *ModelNotFoundError
		if errors.As(err, &notFound) {
			return nil, &Error{Provider: g.inner.Name(), Step: step, Attempts: attempt, Err: err}
		}
		lastErr = err

		if attempt < attempts {
			if err := g.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= defaultBackoffMult
			if backoff > defaultMaxBackoff {
				backoff = defaultMaxBackoff
			}
		}
	}
	return nil, &Error{Provider: g.inner.Name(), Step: step, Attempts: attempts, Err: lastErr}
}

// WithSpeechRetry applies the same policy to a synthesizer.
func WithSpeechRetry(synth SpeechSynthesizer, maxRetries int) SpeechSynthesizer {
	return &retryingSynthesizer{inner: synth, maxRetries: maxRetries, sleep: sleepCtx}
}

type retryingSynthesizer struct {
	inner      SpeechSynthesizer
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

func (s *retryingSynthesizer) Name() string { return s.inner.Name() }

func (s *retryingSynthesizer) Synthesize(ctx context.Context, text string, opts SpeakOptions) (*SpeechResult, error) {
	attempts := s.maxRetries + 1
	backoff := defaultInitialBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		res, err := s.inner.Synthesize(ctx, text, opts)
		if err == nil && len(res.Audio) == 0 {
			err = ErrEmptyAudio
		}
		if err == nil {
			res.InputCharacters = len(text)
			if res.TotalTokens == 0 && (res.PromptTokens > 0 || res.CompletionTokens > 0) {
				res.TotalTokens = res.PromptTokens + res.CompletionTokens
			}
			return res, nil
		}

		var notFound *ModelNotFoundError
		if errors.As(err, &notFound) {
			return nil, &Error{Provider: s.inner.Name(), Step: "tts", Attempts: attempt, Err: err}
		}
		lastErr = err

		if attempt < attempts {
			if err := s.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= defaultBackoffMult
			if backoff > defaultMaxBackoff {
				backoff = defaultMaxBackoff
			}
		}
	}
	return nil, &Error{Provider: s.inner.Name(), Step: "tts", Attempts: attempts, Err: lastErr}
}

func validateText(res *TextResult) error {
	if res == nil {
		return ErrMissingContent
	}
	if strings.TrimSpace(res.Content) == "" {
		if res.Content == "" {
			return ErrMissingContent
		}
		return ErrEmptyContent
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
