package narrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/steveyegge/jury/internal/cost"
	"github.com/steveyegge/jury/internal/types"
)

// DefaultModel is the model used when none is configured. Notes are a
// couple of sentences, so the cheap tier is plenty.
const DefaultModel = "claude-3-5-haiku-20241022"

// RetryConfig holds retry settings for note requests.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Timeout           time.Duration
}

// DefaultRetryConfig returns the standard retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           30 * time.Second,
	}
}

// Config holds settings for the AI narrator.
type Config struct {
	// APIKey for the Anthropic API. Falls back to ANTHROPIC_API_KEY.
	APIKey string

	// Model to request. Defaults to DefaultModel.
	Model string

	// MaxNoteTokens caps output tokens per request. Defaults to 512.
	MaxNoteTokens int

	// RequestsPerMinute throttles note requests. Defaults to 30.
	RequestsPerMinute int

	// MaxConcurrent bounds in-flight requests. Defaults to 2.
	MaxConcurrent int

	// Tracker enforces the spend budget. Optional; nil disables
	// budget checks.
	Tracker *cost.Tracker

	// Retry controls backoff behavior. Zero value uses defaults.
	Retry RetryConfig

	// Warnings receives fallback notices. Defaults to os.Stderr.
	Warnings io.Writer
}

// AINarrator rewrites the template notes from the run facts using the
// Anthropic API. Every failure path degrades to the template text.
type AINarrator struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	sem       *semaphore.Weighted
	tracker   *cost.Tracker
	retry     RetryConfig
	warnings  io.Writer
	template  TemplateNarrator
}

// NewAINarrator builds an AI narrator. The API key is required; all
// other settings have defaults.
func NewAINarrator(cfg *Config) (*AINarrator, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxNoteTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	concurrent := cfg.MaxConcurrent
	if concurrent <= 0 {
		concurrent = 2
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}
	warnings := cfg.Warnings
	if warnings == nil {
		warnings = os.Stderr
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AINarrator{
		client:    &client,
		model:     model,
		maxTokens: int64(maxTokens),
		limiter:   rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		sem:       semaphore.NewWeighted(int64(concurrent)),
		tracker:   cfg.Tracker,
		retry:     retry,
		warnings:  warnings,
	}, nil
}

// Notes implements Narrator. The template notes are computed first and
// returned whenever the AI path is unavailable, over budget, or fails.
func (n *AINarrator) Notes(ctx context.Context, run *types.EvaluationRun) (string, error) {
	template, err := n.template.Notes(ctx, run)
	if err != nil {
		return "", err
	}

	if n.tracker != nil {
		if ok, reason := n.tracker.CanProceed(run.ID); !ok {
			fmt.Fprintf(n.warnings, "Warning: AI notes skipped: %s (using template notes)\n", reason)
			return template, nil
		}
	}

	if err := n.sem.Acquire(ctx, 1); err != nil {
		fmt.Fprintf(n.warnings, "Warning: AI notes unavailable: %v (using template notes)\n", err)
		return template, nil
	}
	defer n.sem.Release(1)

	if err := n.limiter.Wait(ctx); err != nil {
		fmt.Fprintf(n.warnings, "Warning: AI notes unavailable: %v (using template notes)\n", err)
		return template, nil
	}

	prompt := buildPrompt(run, template)

	var response *anthropic.Message
	err = n.retryWithBackoff(ctx, func(attemptCtx context.Context) error {
		resp, apiErr := n.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(n.model),
			MaxTokens: n.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		fmt.Fprintf(n.warnings, "Warning: AI notes unavailable: %v (using template notes)\n", err)
		return template, nil
	}

	if n.tracker != nil {
		n.tracker.Record(run.ID, response.Usage.InputTokens, response.Usage.OutputTokens)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	notes := strings.TrimSpace(text.String())
	if notes == "" {
		fmt.Fprintf(n.warnings, "Warning: AI notes came back empty (using template notes)\n")
		return template, nil
	}
	return notes, nil
}

// buildPrompt lays out the run facts for the model. The template notes
// anchor the rewrite so the model cannot drift from the numbers.
func buildPrompt(run *types.EvaluationRun, template string) string {
	var sb strings.Builder
	sb.WriteString("You are summarizing a repository evaluation for an engineer. Facts:\n\n")
	fmt.Fprintf(&sb, "Repository: %s\n", run.Repository)
	fmt.Fprintf(&sb, "Overall: %.2f (%s)\n", run.Composite.OverallScore, run.Composite.Grade)
	for _, r := range run.Results {
		fmt.Fprintf(&sb, "- %s: raw %.1f, final %.1f, confidence %.2f", r.AgentName, r.RawScore, r.AdjustedScore, r.Confidence)
		for _, f := range r.Findings {
			fmt.Fprintf(&sb, "; %s=%d", f.Kind, f.Count)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nBaseline summary: %s\n\n", template)
	sb.WriteString("Rewrite the baseline as one or two plain sentences for a report. " +
		"Keep every number exactly as given. No markdown, no preamble.")
	return sb.String()
}

// retryWithBackoff runs fn with per-attempt timeouts and exponential
// backoff on retriable errors.
func (n *AINarrator) retryWithBackoff(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	backoff := n.retry.InitialBackoff

	for attempt := 0; attempt <= n.retry.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, n.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetriableError(err) {
			return err
		}
		if attempt == n.retry.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("note request canceled: %w", ctx.Err())
		}

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * n.retry.BackoffMultiplier)
			if backoff > n.retry.MaxBackoff {
				backoff = n.retry.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("note request canceled during backoff: %w", ctx.Err())
		}
	}
	return fmt.Errorf("note request failed after %d attempts: %w", n.retry.MaxRetries+1, lastErr)
}

// isRetriableError reports whether an API error is worth retrying.
// Rate limits, server errors, and network trouble are transient; other
// client errors are not.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "service unavailable") {
		return true
	}
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") {
		return true
	}
	return false
}
