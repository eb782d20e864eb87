package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgentConfig describes one model entry competing in the arena.
type AgentConfig struct {
	Name      string `yaml:"name"`
	Signature string `yaml:"signature"` // directory name under data/agent_data
	BaseModel string `yaml:"basemodel"`
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// NewsConfig controls the headline scraper.
type NewsConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxArticles int  `yaml:"max_articles"`
	TimeoutSec  int  `yaml:"timeout_seconds"`
}

type Config struct {
	Mode string `yaml:"mode"` // SIM only; reserved for future paper/live modes
	Data struct {
		Dir        string `yaml:"dir"`
		PricesFile string `yaml:"prices_file"`
	} `yaml:"data"`
	DateRange struct {
		InitDate string `yaml:"init_date"`
		EndDate  string `yaml:"end_date"`
	} `yaml:"date_range"`
	Agent struct {
		MaxSteps     int     `yaml:"max_steps"`
		MaxRetries   int     `yaml:"max_retries"`
		BaseDelaySec float64 `yaml:"base_delay_seconds"`
		InitialCash  float64 `yaml:"initial_cash"`
	} `yaml:"agent_config"`
	Universe []string `yaml:"universe"`
	LLM      struct {
		Provider    string  `yaml:"provider"` // OPENAI or NOOP
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
		System      string  `yaml:"system"`
	} `yaml:"llm"`
	News NewsConfig `yaml:"news"`
	Agents []AgentConfig `yaml:"agents"`
}

// PricesPath returns the full path of the merged price dataset.
func (c *Config) PricesPath() string {
	return c.Data.Dir + "/" + c.Data.PricesFile
}

func (c *Config) Validate() error {
	if c.Mode != "SIM" {
		return fmt.Errorf("invalid mode '%s': must be 'SIM'", c.Mode)
	}
	if c.DateRange.InitDate == "" || c.DateRange.EndDate == "" {
		return fmt.Errorf("date_range.init_date and date_range.end_date are required")
	}
	if c.DateRange.EndDate < c.DateRange.InitDate {
		return fmt.Errorf("date_range.end_date %s precedes init_date %s", c.DateRange.EndDate, c.DateRange.InitDate)
	}
	if c.Agent.InitialCash <= 0 {
		return fmt.Errorf("agent_config.initial_cash must be positive, got %.2f", c.Agent.InitialCash)
	}
	if c.LLM.Provider != "OPENAI" && c.LLM.Provider != "NOOP" {
		return fmt.Errorf("llm.provider must be 'OPENAI' or 'NOOP', got '%s'", c.LLM.Provider)
	}
	for i, a := range c.Agents {
		if a.Signature == "" {
			return fmt.Errorf("agents[%d]: signature is required", i)
		}
		if a.BaseModel == "" && c.LLM.Provider == "OPENAI" {
			return fmt.Errorf("agents[%d] (%s): basemodel is required for the OPENAI provider", i, a.Signature)
		}
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Mode == "" {
		c.Mode = "SIM"
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "./data"
	}
	if c.Data.PricesFile == "" {
		c.Data.PricesFile = "merged.jsonl"
	}
	if c.Agent.MaxSteps == 0 {
		c.Agent.MaxSteps = 10
	}
	if c.Agent.MaxRetries == 0 {
		c.Agent.MaxRetries = 3
	}
	if c.Agent.BaseDelaySec == 0 {
		c.Agent.BaseDelaySec = 0.5
	}
	if c.Agent.InitialCash == 0 {
		c.Agent.InitialCash = 10000.0
	}
	if len(c.Universe) == 0 {
		c.Universe = DefaultUniverse
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "NOOP"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.News.MaxArticles == 0 {
		c.News.MaxArticles = 5
	}
	if c.News.TimeoutSec == 0 {
		c.News.TimeoutSec = 15
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
