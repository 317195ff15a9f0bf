package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aimerfeng/DecideLink/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVendorConfig(freeURL, premiumURL string) *config.VendorConfig {
	return &config.VendorConfig{
		OpenAIKey:     "sk-premium",
		OpenAIURL:     premiumURL,
		OpenRouterKey: "sk-free",
		OpenRouterURL: freeURL,
		Timeout:       5 * time.Second,
	}
}

func TestAsk_FreeTierPayload(t *testing.T) {
	var captured chatRequest
	var auth string
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer vendor.Close()

	svc := NewService(testVendorConfig(vendor.URL, "http://premium.invalid"))
	req := &AskRequest{
		Prompt:      "Should I move to Berlin?",
		UserProfile: UserProfile{Name: "Ana", Age: "29"},
		DeviceID:    "abc",
	}

	body, err := svc.Ask(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"choices":[{"message":{"content":"{}"}}]}`, string(body))

	assert.Equal(t, "Bearer sk-free", auth)
	assert.Equal(t, FreeModel, captured.Model)
	assert.Equal(t, 0.4, captured.Temperature)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "decision-making assistant")
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "User: Ana, Age: 29, Prompt: Should I move to Berlin?", captured.Messages[1].Content)
}

func TestAsk_PremiumTier(t *testing.T) {
	var captured chatRequest
	var auth string
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"id":"cmpl-1"}`))
	}))
	defer vendor.Close()

	svc := NewService(testVendorConfig("http://free.invalid", vendor.URL))
	_, err := svc.Ask(context.Background(), &AskRequest{Prompt: "p", IsPremium: true, DeviceID: "d"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-premium", auth)
	assert.Equal(t, PremiumModel, captured.Model)
}

func TestAsk_MissingKey(t *testing.T) {
	cfg := testVendorConfig("http://free.invalid", "http://premium.invalid")
	cfg.OpenRouterKey = ""

	svc := NewService(cfg)
	_, err := svc.Ask(context.Background(), &AskRequest{Prompt: "p", DeviceID: "d"})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestAsk_UpstreamErrorMirrored(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("rate limited"))
	}))
	defer vendor.Close()

	svc := NewService(testVendorConfig(vendor.URL, "http://premium.invalid"))
	_, err := svc.Ask(context.Background(), &AskRequest{Prompt: "p", DeviceID: "d"})

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusServiceUnavailable, upErr.StatusCode)
	assert.Equal(t, "rate limited", upErr.Body)
}

func TestAsk_TransportError(t *testing.T) {
	// Closed server to force a connection failure
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	vendor.Close()

	svc := NewService(testVendorConfig(vendor.URL, "http://premium.invalid"))
	_, err := svc.Ask(context.Background(), &AskRequest{Prompt: "p", DeviceID: "d"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))

	var upErr *UpstreamError
	assert.False(t, errors.As(err, &upErr), "transport errors must not look like vendor responses")
}

func TestDecisionResult_ParsesCompletion(t *testing.T) {
	completion := `{
		"title": "Berlin move",
		"summary": "A close call",
		"recommendation": "Go",
		"options": [
			{"label": "Move", "emoji": "🛫", "likelihood": 70, "pros": ["new start"], "cons": ["cost"]},
			{"label": "Stay", "likelihood": 30, "pros": ["stability"], "cons": ["stagnation"]}
		],
		"hidden_viewpoints": ["visa timing"]
	}`

	var result DecisionResult
	require.NoError(t, json.Unmarshal([]byte(completion), &result))
	assert.Equal(t, "Berlin move", result.Title)
	require.Len(t, result.Options, 2)
	assert.Equal(t, 70, result.Options[0].Likelihood)
	assert.Equal(t, []string{"visa timing"}, result.HiddenViewpoints)
}
