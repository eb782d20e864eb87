package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"trading-arena/internal/logger"
	"trading-arena/internal/store"
	"trading-arena/internal/types"
)

const decisionSchema = `{"action":"BUY|SELL|DONE","symbol":"string (required for BUY/SELL)","qty":"number of shares (required for BUY/SELL)","reason":"string","confidence":"number 0..1"}`

// OpenAIDecider talks to an OpenAI-compatible chat completions endpoint.
// Each agent carries its own base URL and API key variable so several
// model providers can compete in the same arena.
type OpenAIDecider struct {
	cfg   *store.Config
	agent store.AgentConfig
	http  *http.Client
}

func NewOpenAIDecider(cfg *store.Config, agent store.AgentConfig) *OpenAIDecider {
	return &OpenAIDecider{
		cfg:   cfg,
		agent: agent,
		http:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (d *OpenAIDecider) Decide(ctx context.Context, state types.AgentState) (types.Decision, error) {
	ctx, span := logger.StartSpan(ctx, "openai-api-call")
	defer span.End()

	keyEnv := d.agent.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return types.Decision{}, fmt.Errorf("%s missing", keyEnv)
	}

	sb, _ := json.Marshal(state)
	prompt := fmt.Sprintf("You will receive today's trading state as JSON. Respond ONLY with compact JSON matching the schema.\nSchema:%s\nState:%s", decisionSchema, string(sb))

	body := map[string]any{
		"model":       d.agent.BaseModel,
		"messages":    []map[string]string{{"role": "system", "content": d.cfg.LLM.System}, {"role": "user", "content": prompt}},
		"temperature": d.cfg.LLM.Temperature,
		"max_tokens":  d.cfg.LLM.MaxTokens,
	}
	bb, _ := json.Marshal(body)

	baseURL := d.agent.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	url := strings.TrimRight(baseURL, "/") + "/chat/completions"

	req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bb))
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return types.Decision{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return types.Decision{}, fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return types.Decision{}, err
	}

	if len(r.Choices) == 0 {
		return types.Decision{}, errors.New("no choices")
	}

	out := strings.TrimSpace(r.Choices[0].Message.Content)
	out = stripFences(out)

	var dec types.Decision
	if err := json.Unmarshal([]byte(out), &dec); err != nil {
		return types.Decision{Action: types.DecisionDone, Reason: "invalid_json", Confidence: 0.0}, nil
	}

	dec.Action = strings.ToUpper(strings.TrimSpace(dec.Action))
	dec.Symbol = strings.ToUpper(strings.TrimSpace(dec.Symbol))
	switch dec.Action {
	case types.DecisionBuy, types.DecisionSell:
		if dec.Symbol == "" || dec.Qty <= 0 {
			dec = types.Decision{Action: types.DecisionDone, Reason: "incomplete_trade_decision", Confidence: 0.0}
		}
	case types.DecisionDone:
	default:
		dec = types.Decision{Action: types.DecisionDone, Reason: "unknown_action", Confidence: 0.0}
	}
	if dec.Confidence < 0 || dec.Confidence > 1 {
		dec.Confidence = 0.0
	}

	return dec, nil
}

// stripFences drops a surrounding markdown code fence if the model
// wrapped its JSON in one.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
