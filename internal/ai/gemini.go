// Package ai provides the AI fallback used for free text and unknown commands.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/botforge/botforge/pkg/config"
	"github.com/botforge/botforge/pkg/metrics"
)

// ErrNoAPIKey is returned when neither the bot nor the service has a key.
var ErrNoAPIKey = errors.New("ai: no api key")

// Generator produces text for prompt with the given key and model.
type Generator interface {
	Generate(ctx context.Context, apiKey, model, prompt string) (string, error)
}

// GeminiGenerator calls Google Gemini through the official SDK.
type GeminiGenerator struct {
	opts []option.ClientOption
}

// NewGeminiGenerator creates a generator. Extra client options are appended
// after the API key.
func NewGeminiGenerator(opts ...option.ClientOption) *GeminiGenerator {
	return &GeminiGenerator{opts: opts}
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, g.opts...)

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	resp, err := client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

// Responder is the AI fallback. It never returns errors to the caller.
type Responder struct {
	gen        Generator
	defaultKey string
	model      string
	timeout    time.Duration
	log        *slog.Logger
}

// NewResponder creates a Responder. The service key from cfg is used for
// bots that have no key of their own.
func NewResponder(cfg config.AIConfig, gen Generator, log *slog.Logger) *Responder {
	if log == nil {
		log = slog.Default()
	}
	if gen == nil {
		gen = NewGeminiGenerator()
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-pro"
	}

	return &Responder{
		gen:        gen,
		defaultKey: cfg.APIKey,
		model:      model,
		timeout:    cfg.Timeout,
		log:        log,
	}
}

// Respond returns the model's reply to text. ok is false when no key is
// available, the call fails or the model answers with nothing.
func (r *Responder) Respond(ctx context.Context, text, apiKey string) (string, bool) {
	reply, err := r.generate(ctx, text, apiKey)
	if err != nil {
		status := "error"
		if errors.Is(err, ErrNoAPIKey) {
			status = "no_key"
		}
		metrics.RecordAIRequest(status)
		r.log.Warn("ai request failed", slog.String("model", r.model), slog.Any("error", err))
		return "", false
	}

	if reply == "" {
		metrics.RecordAIRequest("empty")
		return "", false
	}

	metrics.RecordAIRequest("success")
	return reply, true
}

func (r *Responder) generate(ctx context.Context, text, apiKey string) (string, error) {
	if apiKey == "" {
		apiKey = r.defaultKey
	}
	if apiKey == "" {
		return "", ErrNoAPIKey
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	return r.gen.Generate(ctx, apiKey, r.model, text)
}
