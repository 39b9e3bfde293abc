// Package config loads the example wiring's configuration: provider API
// keys, model role assignments, the Temporal task queue name, optional
// persistence DSNs, and default process budgets. It has no bearing on the
// core engine -- blackboard, planner, dispatcher, and process all take their
// dependencies as explicit constructor arguments (§6 "configuration loading
// is an external collaborator") -- this package only exists to assemble
// those arguments for an embedder's wiring (example/ builds its arguments by
// hand and does not use it), grounded on kadirpekel-hector's
// and None9527-NGOClaw's viper+godotenv loaders.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentforge/agentforge/process"
)

// ModelConfig names one concrete LLM Service entry for the Model Provider's
// role table (§4.2): which provider package to build it from, which wire
// model name to request, and the credentials/region it needs.
type ModelConfig struct {
	Provider string `mapstructure:"provider"` // "anthropic" | "openai" | "bedrock"
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	Region   string `mapstructure:"region"` // bedrock only
}

// BudgetConfig mirrors process.Budget in config-file-friendly form.
type BudgetConfig struct {
	MaxTokens    int           `mapstructure:"max_tokens"`
	MaxWallClock time.Duration `mapstructure:"max_wall_clock"`
	MaxActions   int           `mapstructure:"max_actions"`
}

// Budget converts b to a process.Budget for process.New.
func (b BudgetConfig) Budget() process.Budget {
	return process.Budget{
		MaxTokens:    b.MaxTokens,
		MaxWallClock: b.MaxWallClock,
		MaxActions:   b.MaxActions,
	}
}

// TemporalConfig configures the optional process/engine/temporal backend.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// PersistenceConfig configures the optional persistence adapters.
type PersistenceConfig struct {
	RedisAddr string `mapstructure:"redis_addr"`
	MongoURI  string `mapstructure:"mongo_uri"`
}

// Config is the root of the example wiring's configuration file.
type Config struct {
	// Models maps a role name (e.g. "default", "cheapest", "reasoning") to
	// the concrete model it resolves to, feeding the Model Provider's role
	// table (§4.2).
	Models map[string]ModelConfig `mapstructure:"models"`

	Budget      BudgetConfig      `mapstructure:"budget"`
	Temporal    TemporalConfig    `mapstructure:"temporal"`
	Persistence PersistenceConfig `mapstructure:"persistence"`

	// AgentDefPath points at the YAML agent definition internal/agentdef
	// reads (§6's "annotation-driven agent metadata reader").
	AgentDefPath string `mapstructure:"agent_def_path"`
}

// Load reads configuration in increasing priority: built-in defaults, an
// optional config file named by path (searched as "config.yaml" in the
// current directory when path is empty), then environment variables prefixed
// AGENTFORGE_ (e.g. AGENTFORGE_TEMPORAL_TASK_QUEUE overrides
// temporal.task_queue). A ./.env file, if present, is first loaded into the
// environment via godotenv (ignored if missing; variables already set are
// kept), so its AGENTFORGE_ entries rank with the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AGENTFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	resolveEnvRefs(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("budget.max_tokens", 100_000)
	v.SetDefault("budget.max_wall_clock", "5m")
	v.SetDefault("budget.max_actions", 50)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "agentforge.process")

	v.SetDefault("agent_def_path", "agentdef.yaml")
}

// resolveEnvRefs expands "${VAR}"-style references left in string fields
// that commonly carry secrets, so a checked-in config file can name an
// environment variable instead of a literal API key.
func resolveEnvRefs(cfg *Config) {
	for role, m := range cfg.Models {
		m.APIKey = expandEnv(m.APIKey)
		cfg.Models[role] = m
	}
}

func expandEnv(s string) string {
	if len(s) > 3 && s[0] == '$' && s[1] == '{' && s[len(s)-1] == '}' {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}
