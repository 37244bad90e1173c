package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type ProviderConfig struct {
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	TimeoutMS int    `json:"timeout_ms"`
	// 每百万 token 价格，用于会话花费统计
	// Prices per million tokens, used for session cost accounting
	InputPrice  float64 `json:"input_price"`
	OutputPrice float64 `json:"output_price"`
}

type RuntimeConfig struct {
	ContextTokenLimit int    `json:"context_token_limit"`
	SystemPrompt      string `json:"system_prompt"`
}

type SessionLoggingConfig struct {
	// Enabled 打开后每个会话的转录变更写入 SQLite 日志库。
	// Enabled records every transcript change of a session into the SQLite log database.
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
}

type UIConfig struct {
	Locale string `json:"locale"`
}

type LogConfig struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

// Config 会话级配置；按值传递，持有方不修改
// Config describes session behavior; passed by value and never mutated by holders
type Config struct {
	Provider           ProviderConfig       `json:"provider"`
	Runtime            RuntimeConfig        `json:"runtime"`
	SessionLogging     SessionLoggingConfig `json:"session_logging"`
	EnableUpdateChecks bool                 `json:"enable_update_checks"`
	UI                 UIConfig             `json:"ui"`
	Log                LogConfig            `json:"log"`
}

type fileSessionLoggingConfig struct {
	Enabled *bool   `json:"enabled"`
	Dir     *string `json:"dir"`
}

type fileConfig struct {
	Provider           *ProviderConfig           `json:"provider"`
	Runtime            *RuntimeConfig            `json:"runtime"`
	SessionLogging     *fileSessionLoggingConfig `json:"session_logging"`
	EnableUpdateChecks *bool                     `json:"enable_update_checks"`
	UI                 *UIConfig                 `json:"ui"`
	Log                *LogConfig                `json:"log"`
}

const (
	DefaultContextTokenLimit = 32000
	DefaultSystemPrompt      = "You are a helpful assistant running in a terminal chat. Answer concisely and use markdown."
)

func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			TimeoutMS: 120000,
		},
		Runtime: RuntimeConfig{
			ContextTokenLimit: DefaultContextTokenLimit,
			SystemPrompt:      DefaultSystemPrompt,
		},
		SessionLogging: SessionLoggingConfig{
			Enabled: true,
			Dir:     "~/.vibe/logs",
		},
		EnableUpdateChecks: true,
		Log: LogConfig{
			Level: "info",
			Path:  "~/.vibe/vibe.log",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("VIBE_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	cfg, err := applyEnv(cfg)
	if err != nil {
		return Config{}, err
	}
	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".vibe", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"vibe.config.json",
		".vibe/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fileCfg fileConfig
	if err := json.Unmarshal(stripJSONComments(data), &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Runtime != nil {
		if fc.Runtime.ContextTokenLimit > 0 {
			cfg.Runtime.ContextTokenLimit = fc.Runtime.ContextTokenLimit
		}
		if strings.TrimSpace(fc.Runtime.SystemPrompt) != "" {
			cfg.Runtime.SystemPrompt = fc.Runtime.SystemPrompt
		}
	}
	if fc.SessionLogging != nil {
		if fc.SessionLogging.Enabled != nil {
			cfg.SessionLogging.Enabled = *fc.SessionLogging.Enabled
		}
		if fc.SessionLogging.Dir != nil && strings.TrimSpace(*fc.SessionLogging.Dir) != "" {
			cfg.SessionLogging.Dir = *fc.SessionLogging.Dir
		}
	}
	if fc.EnableUpdateChecks != nil {
		cfg.EnableUpdateChecks = *fc.EnableUpdateChecks
	}
	if fc.UI != nil && strings.TrimSpace(fc.UI.Locale) != "" {
		cfg.UI.Locale = fc.UI.Locale
	}
	if fc.Log != nil {
		if strings.TrimSpace(fc.Log.Level) != "" {
			cfg.Log.Level = fc.Log.Level
		}
		if strings.TrimSpace(fc.Log.Path) != "" {
			cfg.Log.Path = fc.Log.Path
		}
	}
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	out := base
	if strings.TrimSpace(override.BaseURL) != "" {
		out.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.Model) != "" {
		out.Model = override.Model
	}
	if strings.TrimSpace(override.APIKey) != "" {
		out.APIKey = override.APIKey
	}
	if override.TimeoutMS > 0 {
		out.TimeoutMS = override.TimeoutMS
	}
	if override.InputPrice > 0 {
		out.InputPrice = override.InputPrice
	}
	if override.OutputPrice > 0 {
		out.OutputPrice = override.OutputPrice
	}
	return out
}

func normalize(cfg *Config) error {
	cfg.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Provider.BaseURL), "/")
	cfg.Provider.Model = strings.TrimSpace(cfg.Provider.Model)
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = 120000
	}
	if cfg.Runtime.ContextTokenLimit <= 0 {
		cfg.Runtime.ContextTokenLimit = DefaultContextTokenLimit
	}
	if strings.TrimSpace(cfg.Runtime.SystemPrompt) == "" {
		cfg.Runtime.SystemPrompt = DefaultSystemPrompt
	}

	dir, err := expandPath(cfg.SessionLogging.Dir)
	if err != nil {
		return fmt.Errorf("session_logging.dir: %w", err)
	}
	cfg.SessionLogging.Dir = dir

	logPath, err := expandPath(cfg.Log.Path)
	if err != nil {
		return fmt.Errorf("log.path: %w", err)
	}
	cfg.Log.Path = logPath

	switch strings.ToLower(strings.TrimSpace(cfg.Log.Level)) {
	case "", "info":
		cfg.Log.Level = "info"
	case "debug", "warn", "error":
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("VIBE_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("VIBE_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("VIBE_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("VIBE_SESSION_LOGGING")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse VIBE_SESSION_LOGGING: %w", err)
		}
		cfg.SessionLogging.Enabled = enabled
	}
	if v := strings.TrimSpace(os.Getenv("VIBE_LANG")); v != "" {
		cfg.UI.Locale = v
	}
	return cfg, nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case c == '"':
				state = stateString
				out.WriteByte(c)
			case c == '/' && next == '/':
				state = stateLineComment
				i++
			case c == '/' && next == '*':
				state = stateBlockComment
				i++
			default:
				out.WriteByte(c)
			}
		case stateString:
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}
