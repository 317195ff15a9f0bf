package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aimerfeng/DecideLink/internal/config"
	"github.com/aimerfeng/DecideLink/internal/logging"
	"github.com/aimerfeng/DecideLink/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// Service errors
var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrUpstream      = errors.New("upstream service error")
)

// Vendor names and the models served per tier
const (
	VendorOpenAI     = "openai"
	VendorOpenRouter = "openrouter"

	PremiumModel = "gpt-4o-mini"
	FreeModel    = "z-ai/glm-4.5-air:free"
)

// systemPrompt is the fixed instruction sent on every decision request.
// The strict JSON demand keeps the completion parseable client-side.
const systemPrompt = `
You are a decision-making assistant.
Always return valid JSON ONLY in this format:

{
  "title": "string",
  "summary": "string",
  "recommendation": "string",
  "options": [
    { "label": "string", "likelihood": number (0-100, percentage not decimal), "pros": [ "string" ], "cons": [ "string" ] }
  ]
}
`

const temperature = 0.4

// UpstreamError carries a non-success vendor response so the handler
// can mirror the vendor's status code and attach the raw body for
// diagnostics. The body is never parsed or interpreted.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// AskRequest is the normalized decision request from the client
type AskRequest struct {
	Prompt      string      `json:"prompt"`
	IsPremium   bool        `json:"isPremium"`
	UserProfile UserProfile `json:"userProfile"`
	DeviceID    string      `json:"deviceId"`
}

// UserProfile carries optional caller details interpolated into the prompt
type UserProfile struct {
	Name string `json:"name"`
	Age  string `json:"age"`
}

// ChatMessage is a single turn in the chat payload
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the vendor chat-completion payload
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// vendorTier is the endpoint, credential, and model for one tier
type vendorTier struct {
	name  string
	url   string
	key   string
	model string
}

// Service relays decision requests to the vendor chat-completion APIs
type Service struct {
	config     *config.VendorConfig
	httpClient *http.Client
}

// NewService creates a new relay service
func NewService(cfg *config.VendorConfig) *Service {
	return &Service{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// tier selects the vendor endpoint, key, and model by premium status
func (s *Service) tier(premium bool) vendorTier {
	if premium {
		return vendorTier{
			name:  VendorOpenAI,
			url:   s.config.OpenAIURL,
			key:   s.config.OpenAIKey,
			model: PremiumModel,
		}
	}
	return vendorTier{
		name:  VendorOpenRouter,
		url:   s.config.OpenRouterURL,
		key:   s.config.OpenRouterKey,
		model: FreeModel,
	}
}

// BuildChatRequest builds the single-turn chat payload for a request
func (s *Service) BuildChatRequest(req *AskRequest, model string) *chatRequest {
	return &chatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("User: %s, Age: %s, Prompt: %s",
				req.UserProfile.Name, req.UserProfile.Age, req.Prompt)},
		},
		Temperature: temperature,
	}
}

// Ask relays a decision request to the tier's vendor and returns the
// vendor's JSON response body unmodified. The caller is responsible
// for extracting and parsing the embedded completion text; the relay
// does not validate the shape of the model's answer. A single call is
// made, with no retry.
func (s *Service) Ask(ctx context.Context, req *AskRequest) ([]byte, error) {
	tier := s.tier(req.IsPremium)
	if tier.key == "" {
		return nil, ErrMissingAPIKey
	}

	reqBody, err := json.Marshal(s.BuildChatRequest(req, tier.model))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", tier.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+tier.key)

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		monitoring.RecordUpstreamError(tier.name, "transport")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		monitoring.RecordUpstreamError(tier.name, "read_body")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	latency := time.Since(start)
	monitoring.RecordUpstream(tier.name, tier.model, resp.StatusCode, latency)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().
			Str("vendor", tier.name).
			Int("status", resp.StatusCode).
			Str("body", logging.SanitizeForLog(string(body), 2048)).
			Msg("Upstream error")
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	log.Info().
		Str("vendor", tier.name).
		Str("model", tier.model).
		Int("status", resp.StatusCode).
		Dur("latency", latency).
		Msg("Upstream call")

	return body, nil
}
