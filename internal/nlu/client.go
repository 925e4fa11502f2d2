package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wa-catalog/internal/metrics"
	"wa-catalog/internal/repo"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

var (
	// ErrNoAvailableKey indicates every configured key is on cooldown.
	ErrNoAvailableKey = errors.New("nlu: no gemini key available")
	// ErrUnparsableOutput indicates the model reply did not match the
	// expected shape; callers degrade fail-open.
	ErrUnparsableOutput = errors.New("nlu: unparsable model output")
)

// KeyStore provides rotation state for Gemini API keys.
type KeyStore interface {
	ListActiveGeminiKeys(ctx context.Context) ([]repo.APIKey, error)
	SetCooldownUntil(ctx context.Context, id string, until time.Time) error
	MarkKeyUsed(ctx context.Context, id string) error
}

// Config holds Gemini client configuration.
type Config struct {
	Model    string
	Timeout  time.Duration
	Cooldown time.Duration
	BaseURL  string
}

// Client calls the Gemini generateContent API with DB-backed key rotation.
type Client struct {
	store    KeyStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	http     *http.Client
	baseURL  string
	model    string
	cooldown time.Duration
}

// New creates a Gemini client. Keys come from the api_keys table; a key
// answering 429 is put on cooldown and the next key is tried.
func New(store KeyStore, logger *slog.Logger, metricRegistry *metrics.Metrics, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 2 * time.Minute
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{
		store:    store,
		logger:   logger.With("component", "nlu"),
		metrics:  metricRegistry,
		http:     &http.Client{Timeout: timeout},
		baseURL:  base,
		model:    model,
		cooldown: cooldown,
	}
}

// ClassifyIntent determines the user's intent for a message. The result is
// validated against the closed intent set; anything the model returns
// outside of it is an error so the caller can fall back to "other".
func (c *Client) ClassifyIntent(ctx context.Context, text string) (Classification, error) {
	prompt := fmt.Sprintf(`Classify the intent of this WhatsApp marketplace message.
Message: %q

Possible intents: search_product, search_vendor, search_location, help, greeting, order, complaint, other.

Reply with JSON only, for example:
{"intent": "search_product", "entities": {"product": "iPhone 13", "category": "Electronique"}}`, text)

	raw, err := c.generate(ctx, "classify", prompt)
	if err != nil {
		return Classification{}, err
	}

	var parsed struct {
		Intent   string         `json:"intent"`
		Entities map[string]any `json:"entities"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrUnparsableOutput, err)
	}
	intent, ok := ParseIntent(parsed.Intent)
	if !ok {
		return Classification{}, fmt.Errorf("%w: unknown intent %q", ErrUnparsableOutput, parsed.Intent)
	}
	entities := parsed.Entities
	if entities == nil {
		entities = map[string]any{}
	}
	return Classification{Intent: intent, Entities: entities}, nil
}

// ExtractKeywords normalizes a raw query into keywords plus optional
// category and location hints.
func (c *Client) ExtractKeywords(ctx context.Context, text string) (Keywords, error) {
	prompt := fmt.Sprintf(`Extract search keywords from this marketplace message.
Message: %q

Identify products, brands and categories, any city or place, and notable
attributes (color, size, storage). Ignore stop words.

Reply with JSON only:
{"keywords": ["iPhone", "13"], "category": "Electronique", "location": "Cotonou", "attributes": {"color": "bleu"}}`, text)

	raw, err := c.generate(ctx, "keywords", prompt)
	if err != nil {
		return Keywords{}, err
	}

	var parsed struct {
		Keywords   []string          `json:"keywords"`
		Category   string            `json:"category"`
		Location   string            `json:"location"`
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return Keywords{}, fmt.Errorf("%w: %v", ErrUnparsableOutput, err)
	}
	if len(parsed.Keywords) == 0 {
		return Keywords{}, fmt.Errorf("%w: empty keyword list", ErrUnparsableOutput)
	}
	kws := make([]string, 0, len(parsed.Keywords))
	for _, k := range parsed.Keywords {
		if k = strings.TrimSpace(strings.ToLower(k)); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return Keywords{}, fmt.Errorf("%w: blank keywords", ErrUnparsableOutput)
	}
	return Keywords{
		Keywords:   kws,
		Category:   strings.TrimSpace(parsed.Category),
		Location:   strings.TrimSpace(parsed.Location),
		Attributes: parsed.Attributes,
	}, nil
}

// ImproveQuery rewrites a query for better recall (spelling, synonyms).
func (c *Client) ImproveQuery(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(`Improve this marketplace search query: fix spelling,
normalize terms, keep specific terms. Query: %q

Reply with the improved query as plain text, nothing else.`, text)

	raw, err := c.generate(ctx, "improve", prompt)
	if err != nil {
		return "", err
	}
	improved := strings.TrimSpace(stripFences(raw))
	if improved == "" {
		return "", ErrUnparsableOutput
	}
	return improved, nil
}

type genPart struct {
	Text string `json:"text"`
}

type genContent struct {
	Parts []genPart `json:"parts"`
}

type generateRequest struct {
	Contents []genContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content genContent `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, op, prompt string) (string, error) {
	keys, err := c.store.ListActiveGeminiKeys(ctx)
	if err != nil {
		c.observe(op, "keys_error", 0)
		return "", fmt.Errorf("list gemini keys: %w", err)
	}

	now := time.Now()
	var lastErr error
	for _, key := range keys {
		if key.CooldownUntil != nil && key.CooldownUntil.After(now) {
			continue
		}

		start := time.Now()
		text, status, err := c.call(ctx, key.Value, prompt)
		elapsed := time.Since(start)

		if err == nil {
			c.observe(op, "ok", elapsed)
			if markErr := c.store.MarkKeyUsed(ctx, key.ID); markErr != nil {
				c.logger.Warn("failed marking key used", "error", markErr)
			}
			return text, nil
		}

		lastErr = err
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
			c.observe(op, "cooldown", elapsed)
			c.logger.Warn("gemini key on cooldown", "status", status, "error", err)
			if cdErr := c.store.SetCooldownUntil(ctx, key.ID, time.Now().Add(c.cooldown)); cdErr != nil {
				c.logger.Warn("failed setting key cooldown", "error", cdErr)
			}
			continue
		}
		c.observe(op, "error", elapsed)
		return "", err
	}

	if lastErr != nil {
		return "", lastErr
	}
	c.observe(op, "no_key", 0)
	return "", ErrNoAvailableKey
}

func (c *Client) call(ctx context.Context, apiKey, prompt string) (string, int, error) {
	reqBody := generateRequest{
		Contents: []genContent{{Parts: []genPart{{Text: prompt}}}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", resp.StatusCode, fmt.Errorf("%w: empty candidates", ErrUnparsableOutput)
	}
	return parsed.Candidates[0].Content.Parts[0].Text, resp.StatusCode, nil
}

func (c *Client) observe(op, status string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.GeminiRequests.WithLabelValues(op, status).Inc()
	if elapsed > 0 {
		c.metrics.GeminiLatency.WithLabelValues(op, status).Observe(elapsed.Seconds())
	}
}

// stripFences removes markdown code fences the model sometimes wraps JSON in.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
