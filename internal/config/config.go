// Package config loads the YAML configuration file described in spec.md §6
// (llm, organism, memory, safety, token_budget, expression, reasoning
// sections) and layers environment-variable secrets on top. Secrets are
// never read from the YAML file itself.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLM configures the language-model client (§6 "llm").
type LLM struct {
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	BaseMaxTokens   int     `yaml:"base_max_tokens"`
	BaseTemperature float64 `yaml:"base_temperature"`
	BaseTopP        float64 `yaml:"base_top_p"`
}

// Organism configures the core runtime (§6 "organism").
type Organism struct {
	DBPath                string        `yaml:"db_path"`
	PersonaDir            string        `yaml:"persona_dir"`
	TickIntervalSecs       float64       `yaml:"tick_interval_secs"`
	TriggerIntervalSecs    float64       `yaml:"trigger_interval_secs"`
	MaxIntegrationStepSecs float64       `yaml:"max_integration_step_secs"`
}

func (o Organism) TickInterval() time.Duration {
	return durationOrDefault(o.TickIntervalSecs, 10*time.Second)
}

func (o Organism) TriggerInterval() time.Duration {
	return durationOrDefault(o.TriggerIntervalSecs, 60*time.Second)
}

func (o Organism) MaxIntegrationStep() time.Duration {
	return durationOrDefault(o.MaxIntegrationStepSecs, 5*time.Second)
}

func durationOrDefault(secs float64, def time.Duration) time.Duration {
	if secs <= 0 {
		return def
	}
	return time.Duration(secs * float64(time.Second))
}

// Memory configures the memory substrate (§6 "memory").
type Memory struct {
	EmbeddingModel string `yaml:"embedding_model"`
	VectorBackend  string `yaml:"vector_backend"` // "sqlite-vec" or "linear-scan"
	RecallK        int    `yaml:"recall_k"`
	StrengthFloor  float64 `yaml:"strength_floor"`
}

// SafetyTier is one of read_only | restricted | full.
type SafetyTier string

const (
	TierReadOnly   SafetyTier = "read_only"
	TierRestricted SafetyTier = "restricted"
	TierFull       SafetyTier = "full"
)

// Safety configures the capability gate (§6 "safety").
type Safety struct {
	Tier                SafetyTier `yaml:"tier"`
	RequireConfirmation bool       `yaml:"require_confirmation"`
	PathAllowlist       []string   `yaml:"path_allowlist"`
	DomainAllowlist     []string   `yaml:"domain_allowlist"`
}

// TokenBudget configures the token-spend accounting (§6 "token_budget").
type TokenBudget struct {
	DailyLimit        int     `yaml:"daily_limit"`
	MonthlyLimit      int     `yaml:"monthly_limit"`
	DowngradeThreshold float64 `yaml:"downgrade_threshold"`
}

// Expression configures the (external) expression layer's pacing (§6
// "expression"). The Organism Core only threads these values through to the
// effector adapters; it does not implement typing or presence itself.
type Expression struct {
	ReadDelayRangeSecs   [2]float64 `yaml:"read_delay_range"`
	TypingSpeedRangeCPS  [2]float64 `yaml:"typing_speed_range"`
	SplitThresholds      []int      `yaml:"split_thresholds"`
	PresenceSchedule     string     `yaml:"presence_schedule"`
}

// Reasoning configures the Reasoning Loop (§6 "reasoning").
type Reasoning struct {
	MaxToolDepth      int `yaml:"max_tool_depth"`
	ContextBaseBudget int `yaml:"context_base_budget"`
}

// Sources configures the poll-based perception sources the sync
// subcommand drives (§6 "sources"). Discord is push-based and configured
// through Secrets instead.
type Sources struct {
	RSSFeeds []string `yaml:"rss_feeds"`
}

// Config is the top-level, fully-parsed configuration.
type Config struct {
	LLM         LLM         `yaml:"llm"`
	Organism    Organism    `yaml:"organism"`
	Memory      Memory      `yaml:"memory"`
	Safety      Safety      `yaml:"safety"`
	TokenBudget TokenBudget `yaml:"token_budget"`
	Expression  Expression  `yaml:"expression"`
	Reasoning   Reasoning   `yaml:"reasoning"`
	Sources     Sources     `yaml:"sources"`

	// Secrets, populated from the environment/.env, never from YAML.
	Secrets Secrets `yaml:"-"`
}

// Secrets holds values that must come only from the environment or a
// dedicated secret file, never from the main config file.
type Secrets struct {
	AnthropicAPIKey string
	DiscordToken    string
	DiscordChannel  string
	DiscordOwnerID  string
}

// Default returns a Config populated with the spec's homeostatic defaults,
// used when no config file is present and by tests.
func Default() *Config {
	return &Config{
		LLM: LLM{
			Provider:        "mock",
			Model:           "",
			BaseMaxTokens:   1024,
			BaseTemperature: 0.7,
			BaseTopP:        0.95,
		},
		Organism: Organism{
			DBPath:                 "state/mneme.db",
			PersonaDir:             "persona",
			TickIntervalSecs:       10,
			TriggerIntervalSecs:    60,
			MaxIntegrationStepSecs: 5,
		},
		Memory: Memory{
			EmbeddingModel: "all-minilm",
			VectorBackend:  "sqlite-vec",
			RecallK:        8,
			StrengthFloor:  0.05,
		},
		Safety: Safety{
			Tier:                TierRestricted,
			RequireConfirmation: true,
		},
		TokenBudget: TokenBudget{
			DailyLimit:         1_000_000,
			MonthlyLimit:       20_000_000,
			DowngradeThreshold: 0.85,
		},
		Reasoning: Reasoning{
			MaxToolDepth:      4,
			ContextBaseBudget: 8000,
		},
	}
}

// Load reads the YAML config at path (if non-empty and present), overlays it
// on Default(), loads secrets from the environment/.env, and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env overlays process environment; missing file is not an error.
	_ = godotenv.Load()

	cfg.Secrets = Secrets{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		DiscordToken:    os.Getenv("DISCORD_TOKEN"),
		DiscordChannel:  os.Getenv("DISCORD_CHANNEL_ID"),
		DiscordOwnerID:  os.Getenv("DISCORD_OWNER_ID"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the system assumes hold.
func (c *Config) Validate() error {
	switch c.Safety.Tier {
	case TierReadOnly, TierRestricted, TierFull:
	default:
		return fmt.Errorf("config: safety.tier must be one of read_only|restricted|full, got %q", c.Safety.Tier)
	}
	if c.Reasoning.MaxToolDepth <= 0 {
		return fmt.Errorf("config: reasoning.max_tool_depth must be positive")
	}
	if c.Memory.RecallK <= 0 {
		c.Memory.RecallK = 8
	}
	return nil
}
