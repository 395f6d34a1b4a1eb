package summarizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/logger"
	"google.golang.org/genai"
)

const (
	DefaultModel           = "gemini-2.5-flash"
	DefaultMaxRetries      = 3
	DefaultTemperature     = 0.3
	DefaultMaxOutputTokens = 2048
)

// Options configures the Gemini summarizer.
type Options struct {
	APIKeys    []string
	Model      string
	MaxRetries int
	// Temperature nil uses DefaultTemperature; zero is a valid setting.
	Temperature     *float32
	MaxOutputTokens int32
	// PromptTemplate must contain {transcript}. Empty uses the built-in prompt.
	PromptTemplate string
}

// generateFunc performs one GenerateContent call with a specific key.
type generateFunc func(ctx context.Context, apiKey, model, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type implSummarizer struct {
	mu         sync.Mutex
	apiKeys    []string
	currentKey int
	clients    map[string]*genai.Client

	logger          logger.Logger
	model           string
	maxRetries      int
	temperature     float32
	maxOutputTokens int32
	prompt          string

	generate generateFunc
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Summarizer that rotates through the supplied Gemini API keys
// on rate limits and retries other failures with exponential backoff.
func New(opts Options, log logger.Logger) (Summarizer, error) {
	if len(opts.APIKeys) == 0 {
		return nil, errors.New("at least one Gemini API key is required")
	}

	s := &implSummarizer{
		apiKeys:         opts.APIKeys,
		clients:         make(map[string]*genai.Client),
		logger:          log,
		model:           opts.Model,
		maxRetries:      opts.MaxRetries,
		temperature:     DefaultTemperature,
		maxOutputTokens: opts.MaxOutputTokens,
		prompt:          opts.PromptTemplate,
		sleep:           sleepContext,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxRetries
	}
	if opts.Temperature != nil {
		if *opts.Temperature < 0 {
			return nil, fmt.Errorf("temperature must not be negative, got %v", *opts.Temperature)
		}
		s.temperature = *opts.Temperature
	}
	if s.maxOutputTokens <= 0 {
		s.maxOutputTokens = DefaultMaxOutputTokens
	}
	if s.prompt == "" {
		s.prompt = defaultPrompt
	}
	s.generate = s.geminiGenerate

	return s, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
