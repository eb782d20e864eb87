package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"trading-arena/internal/store"
	"trading-arena/internal/types"
)

func newServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newDecider(t *testing.T, baseURL string) *OpenAIDecider {
	t.Helper()
	t.Setenv("TEST_API_KEY", "test-key")
	cfg := &store.Config{}
	cfg.LLM.Provider = "OPENAI"
	cfg.LLM.MaxTokens = 256
	profile := store.AgentConfig{
		Signature: "gpt-test",
		BaseModel: "gpt-4o",
		BaseURL:   baseURL,
		APIKeyEnv: "TEST_API_KEY",
	}
	return NewOpenAIDecider(cfg, profile)
}

func TestDecideParsesTradeDecision(t *testing.T) {
	srv := newServer(t, `{"action":"buy","symbol":"aapl","qty":3,"reason":"momentum","confidence":0.8}`)
	defer srv.Close()

	dec, err := newDecider(t, srv.URL).Decide(context.Background(), types.AgentState{Agent: "gpt-test", Date: "2025-10-13"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if dec.Action != types.DecisionBuy || dec.Symbol != "AAPL" || dec.Qty != 3 {
		t.Errorf("decision = %+v", dec)
	}
	if dec.Confidence != 0.8 {
		t.Errorf("confidence = %v", dec.Confidence)
	}
}

func TestDecideStripsCodeFences(t *testing.T) {
	srv := newServer(t, "```json\n{\"action\":\"SELL\",\"symbol\":\"MSFT\",\"qty\":2,\"reason\":\"take profit\",\"confidence\":0.5}\n```")
	defer srv.Close()

	dec, err := newDecider(t, srv.URL).Decide(context.Background(), types.AgentState{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if dec.Action != types.DecisionSell || dec.Symbol != "MSFT" {
		t.Errorf("decision = %+v", dec)
	}
}

func TestDecideInvalidJSONFallsBackToDone(t *testing.T) {
	srv := newServer(t, "I think you should buy Apple today.")
	defer srv.Close()

	dec, err := newDecider(t, srv.URL).Decide(context.Background(), types.AgentState{})
	if err != nil {
		t.Fatalf("invalid JSON must not error: %v", err)
	}
	if dec.Action != types.DecisionDone || dec.Reason != "invalid_json" {
		t.Errorf("decision = %+v", dec)
	}
}

func TestDecideRejectsIncompleteTrade(t *testing.T) {
	srv := newServer(t, `{"action":"BUY","qty":0,"reason":"vague"}`)
	defer srv.Close()

	dec, err := newDecider(t, srv.URL).Decide(context.Background(), types.AgentState{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if dec.Action != types.DecisionDone {
		t.Errorf("incomplete trade should become DONE, got %+v", dec)
	}
}

func TestDecideMissingAPIKey(t *testing.T) {
	cfg := &store.Config{}
	d := NewOpenAIDecider(cfg, store.AgentConfig{Signature: "x", APIKeyEnv: "DEFINITELY_NOT_SET_KEY"})
	if _, err := d.Decide(context.Background(), types.AgentState{}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestDecideClampsConfidence(t *testing.T) {
	srv := newServer(t, `{"action":"DONE","reason":"hold","confidence":3.5}`)
	defer srv.Close()

	dec, err := newDecider(t, srv.URL).Decide(context.Background(), types.AgentState{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if dec.Confidence != 0 {
		t.Errorf("out-of-range confidence should reset to 0, got %v", dec.Confidence)
	}
}
