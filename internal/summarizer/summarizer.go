package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/models"
	"google.golang.org/genai"
)

// ErrSummarization is returned once every retry and key has been tried.
var ErrSummarization = errors.New("summarization failed")

// MaxTranscriptTokens is the largest estimated transcript sent to the model.
const MaxTranscriptTokens = 500_000

const defaultPrompt = `You are summarizing a podcast episode transcript. Your goal is to create a comprehensive yet concise summary that captures the key information from the episode.

Please provide:

1. **Overview** (2-3 sentences): A high-level summary of what the episode is about and the main themes discussed.

2. **Key Topics**: List the main topics discussed in bullet point format. Be specific and include important details.

3. **Notable Quotes or Insights**: Highlight 2-3 interesting quotes, insights, or key points that stood out in the discussion.

4. **Action Items or Takeaways**: If applicable, list any practical advice, recommendations, or conclusions that listeners should remember.

Keep your summary informative but concise. Focus on substance over length.

---

## Transcript:

{transcript}`

// EstimateTokens is a rough count at about four characters per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Summarize sends the transcript to Gemini, retrying with backoff 1s, 2s, 4s...
func (s *implSummarizer) Summarize(ctx context.Context, req models.SummaryRequest) (*models.Summary, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, fmt.Errorf("%w: empty transcript", ErrSummarization)
	}

	prompt := s.buildPrompt(req)

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt - 1)
			s.logger.Warn(ctx, "Gemini attempt %d/%d failed: %v (retrying in %s)", attempt, s.maxRetries, lastErr, wait)
			if err := s.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrSummarization, err)
			}
		}

		summary, err := s.callGemini(ctx, prompt)
		if err == nil {
			return summary, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrSummarization, ctx.Err())
		}
	}

	s.logger.Error(ctx, "Gemini failed after %d attempts: %v", s.maxRetries, lastErr)
	return nil, fmt.Errorf("%w: after %d attempts: %w", ErrSummarization, s.maxRetries, lastErr)
}

func backoff(n int) time.Duration {
	return time.Duration(1<<n) * time.Second
}

func (s *implSummarizer) buildPrompt(req models.SummaryRequest) string {
	var b strings.Builder
	if req.Title != "" {
		fmt.Fprintf(&b, "Episode Title: %s\n", req.Title)
	}
	if req.Channel != "" {
		fmt.Fprintf(&b, "Podcast: %s\n", req.Channel)
	}
	if req.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", models.FormatDuration(req.Duration))
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(strings.ReplaceAll(s.prompt, "{transcript}", req.Transcript))
	return b.String()
}

// callGemini makes one logical attempt, rotating API keys on 429 / quota errors.
func (s *implSummarizer) callGemini(ctx context.Context, prompt string) (*models.Summary, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(s.temperature),
		MaxOutputTokens: s.maxOutputTokens,
	}

	var lastErr error
	for range len(s.apiKeys) {
		key, idx := s.key()

		result, err := s.generate(ctx, key, s.model, prompt, cfg)
		if err != nil {
			if isQuotaError(err) {
				s.logger.Warn(ctx, "Key %d rate limited, rotating...", idx+1)
				s.rotateKey()
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("generate content: %w", err)
		}

		return s.toSummary(result)
	}

	return nil, fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func (s *implSummarizer) toSummary(result *genai.GenerateContentResponse) (*models.Summary, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, errors.New("empty response from Gemini")
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, errors.New("empty response from Gemini")
	}

	summary := &models.Summary{
		Text:  strings.TrimSpace(text.String()),
		Model: s.model,
	}
	if usage := result.UsageMetadata; usage != nil {
		summary.InputTokens = int(usage.PromptTokenCount)
		summary.OutputTokens = int(usage.CandidatesTokenCount)
	}
	return summary, nil
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func (s *implSummarizer) key() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKeys[s.currentKey], s.currentKey
}

func (s *implSummarizer) rotateKey() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
}

// geminiGenerate is the production generateFunc. Clients are created once per key.
func (s *implSummarizer) geminiGenerate(ctx context.Context, apiKey, model, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	client, err := s.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
}

func (s *implSummarizer) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[apiKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	s.clients[apiKey] = c
	return c, nil
}
