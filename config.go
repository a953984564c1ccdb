package agentswarm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/agentswarm/agent"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/history"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/persist"
	"github.com/hupe1980/agentswarm/storage"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration of an AgentSwarm container. Every
// field has a sensible default from DefaultConfig; override per container
// with functional options or at runtime with SetConfig.
type Config struct {
	// RescueStrategy selects recovery from invalid model output.
	RescueStrategy agent.RescueStrategy `yaml:"rescue_strategy"`
	// RescueFlushPrompt is the synthetic user prompt of the flush strategy.
	RescueFlushPrompt string `yaml:"rescue_flush_prompt"`
	// RescueRecompletePrompt is the synthetic user prompt of the recomplete
	// strategy.
	RescueRecompletePrompt string `yaml:"rescue_recomplete_prompt"`
	// RescueCustomFunction produces the replacement message for the custom
	// strategy.
	RescueCustomFunction func(ctx context.Context, clientID, agentName string) (core.Message, error) `yaml:"-"`
	// EmptyOutputPlaceholders is the pool the flush strategy answers from.
	EmptyOutputPlaceholders []string `yaml:"empty_output_placeholders"`

	// KeepMessages bounds the history projection handed to completions.
	KeepMessages int `yaml:"keep_messages"`
	// ToolWatchdog is how long a tool call may stay silent before a warning
	// is logged.
	ToolWatchdog time.Duration `yaml:"tool_watchdog"`

	// LoggerEnableLog / Debug / Info gate the built-in logger level.
	LoggerEnableLog   bool `yaml:"logger_enable_log"`
	LoggerEnableDebug bool `yaml:"logger_enable_debug"`
	LoggerEnableInfo  bool `yaml:"logger_enable_info"`

	// StorageSearchSimilarity is the minimum Take score.
	StorageSearchSimilarity float64 `yaml:"storage_search_similarity"`
	// StorageSearchPool bounds ranked Take candidates.
	StorageSearchPool int `yaml:"storage_search_pool"`

	// ProcessID identifies this process in logs and events.
	ProcessID string `yaml:"process_id"`
	// PersistBaseDir roots the filesystem persistence layout.
	PersistBaseDir string `yaml:"persist_base_dir"`

	// AgentSystemPrompt is appended to every agent's system preamble.
	AgentSystemPrompt []string `yaml:"agent_system_prompt"`
	// AgentDisallowedTags are stripped from outputs by the default
	// transform.
	AgentDisallowedTags []string `yaml:"agent_disallowed_tags"`
	// AgentDisallowedSymbols reject an output wholesale when present.
	AgentDisallowedSymbols []string `yaml:"agent_disallowed_symbols"`

	// AgentDefaultValidation runs for agents without a Validate hook.
	AgentDefaultValidation func(ctx context.Context, output string) error `yaml:"-"`
	// AgentOutputTransform runs for agents without a Transform hook. Nil
	// selects the built-in tag/symbol stripping transform.
	AgentOutputTransform func(ctx context.Context, input, clientID, agentName string) (string, error) `yaml:"-"`
	// AgentOutputMap runs for agents without a Map hook, normalizing the raw
	// completion message.
	AgentOutputMap func(ctx context.Context, msg core.Message, clientID, agentName string) (core.Message, error) `yaml:"-"`
	// AgentHistoryFilter overrides the default history projection filter.
	AgentHistoryFilter func(agentName string) history.Filter `yaml:"-"`
	// ClientLoggerAdapter supplies a per-client logger for the instances the
	// connection layer builds.
	ClientLoggerAdapter func(clientID string) *logging.SwarmLogger `yaml:"-"`
	// SwarmAgentChanged observes every active-agent switch.
	SwarmAgentChanged func(ctx context.Context, clientID, agentName, swarmName string) `yaml:"-"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		RescueStrategy:          agent.RescueFlush,
		RescueFlushPrompt:       agent.DefaultFlushPrompt,
		RescueRecompletePrompt:  agent.DefaultRecompletePrompt,
		EmptyOutputPlaceholders: agent.DefaultPlaceholders,
		KeepMessages:            history.DefaultKeepMessages,
		ToolWatchdog:            agent.DefaultToolWatchdog,
		LoggerEnableLog:         true,
		LoggerEnableInfo:        false,
		LoggerEnableDebug:       false,
		StorageSearchSimilarity: storage.DefaultSearchSimilarity,
		StorageSearchPool:       storage.DefaultSearchPool,
		ProcessID:               uuid.NewString(),
		PersistBaseDir:          persist.DefaultBaseDir,
	}
}

// LoadConfig reads a yaml file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// logLevel maps the config switches onto a logger level.
func (c Config) logLevel() logging.LogLevel {
	switch {
	case c.LoggerEnableDebug:
		return logging.LogLevelDebug
	case c.LoggerEnableInfo:
		return logging.LogLevelInfo
	case c.LoggerEnableLog:
		return logging.LogLevelWarn
	default:
		return logging.LogLevelError
	}
}

// defaultTransform strips disallowed tags and trims whitespace. An output
// containing a disallowed symbol is replaced by the empty string so the
// default validation rejects it.
func (c Config) defaultTransform(ctx context.Context, input, clientID, agentName string) (string, error) {
	out := input
	for _, tag := range c.AgentDisallowedTags {
		out = strings.ReplaceAll(out, "<"+tag+">", "")
		out = strings.ReplaceAll(out, "</"+tag+">", "")
	}
	for _, symbol := range c.AgentDisallowedSymbols {
		if strings.Contains(out, symbol) {
			return "", nil
		}
	}
	return strings.TrimSpace(out), nil
}

// rescueOptions maps the config onto the turn engine's rescue options.
func (c Config) rescueOptions() agent.RescueOptions {
	return agent.RescueOptions{
		Strategy:         c.RescueStrategy,
		FlushPrompt:      c.RescueFlushPrompt,
		RecompletePrompt: c.RescueRecompletePrompt,
		Custom:           c.RescueCustomFunction,
		Placeholders:     c.EmptyOutputPlaceholders,
	}
}
