// Package config loads the resolved configuration structure the core
// consumes (spec.md §6.1): agent identity and limits, the upstream
// model endpoint, tool enable/policy bits, network timeouts, and tmux
// caps. Parsing the CLI's own flags and the wider buddy.toml schema
// belongs to the out-of-scope CLI layer (§1); this package only owns
// the fields the runtime core actually reads.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/0xfe/buddy-sub001/internal/errs"
)

// AuthMode selects how the API client authenticates.
type AuthMode string

const (
	AuthAPIKey AuthMode = "api-key"
	AuthLogin  AuthMode = "login"
)

// Protocol selects the upstream wire protocol shape.
type Protocol string

const (
	ProtocolResponses        Protocol = "responses"
	ProtocolChatCompletions  Protocol = "chat-completions"
)

// AgentConfig is the `[agent]` table.
type AgentConfig struct {
	Name          string `toml:"name"`
	Model         string `toml:"model"`
	MaxIterations int    `toml:"max_iterations"`
	SystemPrompt  string `toml:"system_prompt"`
}

// APIConfig is the `[api]` table describing the upstream model endpoint.
type APIConfig struct {
	BaseURL      string   `toml:"base_url"`
	Model        string   `toml:"model"`
	APIKey       string   `toml:"api_key"`
	Protocol     Protocol `toml:"protocol"`
	Auth         AuthMode `toml:"auth"`
	ContextLimit *uint64  `toml:"context_limit"`
}

// ToolsConfig is the `[tools]` table: enable bits and approval/access
// policy for each tool family.
type ToolsConfig struct {
	ShellEnabled      bool     `toml:"shell_enabled"`
	ShellConfirm      bool     `toml:"shell_confirm"`
	ShellDenylist     []string `toml:"shell_denylist"`
	FetchEnabled      bool     `toml:"fetch_enabled"`
	FetchConfirm      bool     `toml:"fetch_confirm"`
	FetchAllowedDomains []string `toml:"fetch_allowed_domains"`
	FetchBlockedDomains []string `toml:"fetch_blocked_domains"`
	FilesEnabled      bool     `toml:"files_enabled"`
	FilesAllowedPaths []string `toml:"files_allowed_paths"`
}

// NetworkConfig is the `[network]` table.
type NetworkConfig struct {
	APITimeoutSecs   uint64 `toml:"api_timeout_secs"`
	FetchTimeoutSecs uint64 `toml:"fetch_timeout_secs"`
}

// TmuxConfig is the `[tmux]` table: managed-object caps.
type TmuxConfig struct {
	MaxSessions int `toml:"max_sessions"`
	MaxPanes    int `toml:"max_panes"`
}

// Config is the fully resolved configuration the runtime core consumes.
type Config struct {
	Agent   AgentConfig   `toml:"agent"`
	API     APIConfig     `toml:"api"`
	Tools   ToolsConfig   `toml:"tools"`
	Network NetworkConfig `toml:"network"`
	Tmux    TmuxConfig    `toml:"tmux"`
}

// defaults fills in the fields spec.md §6.1 gives explicit defaults for.
func defaults() Config {
	return Config{
		Agent: AgentConfig{
			MaxIterations: 20,
		},
		API: APIConfig{
			Protocol: ProtocolResponses,
			Auth:     AuthAPIKey,
		},
		Network: NetworkConfig{
			APITimeoutSecs:   60,
			FetchTimeoutSecs: 30,
		},
		Tmux: TmuxConfig{
			MaxSessions: 8,
			MaxPanes:    16,
		},
	}
}

// Brand is the fixed tool-brand prefix baked into ownership-prefix
// derivation and the config-root path (§4.1, §6.5).
const Brand = "buddy"

// ConfigRoot returns `~/<config-root>/buddy`, falling back to a
// process-scoped temp directory when the home directory cannot be
// resolved (§9 Open Question: "the source does not make this
// explicit" — this module chooses to degrade rather than fail).
func ConfigRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		tmp, mkErr := os.MkdirTemp("", "buddy-config-*")
		if mkErr != nil {
			return "", errs.NewConfigIO(fmt.Errorf("resolve home dir (%w) and fallback temp dir (%v)", err, mkErr))
		}
		return tmp, nil
	}
	return filepath.Join(home, ".config", "buddy"), nil
}

// Load reads and validates buddy.toml from path, applying defaults for
// any field the file omits.
func Load(path string) (Config, error) {
	cfg := defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, errs.NewConfigIO(fmt.Errorf("read config %s: %w", path, err))
	}
	if _, err := toml.Decode(string(b), &cfg); err != nil {
		return Config{}, errs.NewConfigTOML(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the minimums spec.md §6.1 names explicitly
// ("Timeouts (min 1)", tmux caps "≥1 forced").
func (c *Config) Validate() error {
	if c.Network.APITimeoutSecs < 1 {
		c.Network.APITimeoutSecs = 1
	}
	if c.Network.FetchTimeoutSecs < 1 {
		c.Network.FetchTimeoutSecs = 1
	}
	if c.Tmux.MaxSessions < 1 {
		c.Tmux.MaxSessions = 1
	}
	if c.Tmux.MaxPanes < 1 {
		c.Tmux.MaxPanes = 1
	}
	if c.API.Protocol != ProtocolResponses && c.API.Protocol != ProtocolChatCompletions {
		return errs.NewConfigInvalid("api.protocol must be %q or %q, got %q", ProtocolResponses, ProtocolChatCompletions, c.API.Protocol)
	}
	if c.API.Auth != AuthAPIKey && c.API.Auth != AuthLogin {
		return errs.NewConfigInvalid("api.auth must be %q or %q, got %q", AuthAPIKey, AuthLogin, c.API.Auth)
	}
	return nil
}

// DeprecatedFields lists config keys that still load but should warn
// once at startup (see internal/diag.Sink.WarnOnce). Empty for now —
// no field has been renamed yet; kept as the hook future deprecations
// attach to.
var DeprecatedFields []string
