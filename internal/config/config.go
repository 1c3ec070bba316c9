// Package config loads gorepl settings.
//
// Sources, lowest precedence first: built-in defaults, the YAML config file
// (~/.gorepl/config.yaml or --config), .env files, GOREPL_* environment
// variables, command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"gorepl/internal/evaluator"
	"gorepl/internal/history"
	"gorepl/internal/logger"
	"gorepl/internal/session"
)

// EnvPrefix prefixes every environment variable gorepl reads.
const EnvPrefix = "GOREPL"

// Config is the effective configuration.
type Config struct {
	History   HistoryConfig   `yaml:"history"`
	Startup   StartupConfig   `yaml:"startup"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Markdown  MarkdownConfig  `yaml:"markdown"`
	Log       LogConfig       `yaml:"log"`
	Prompt    string          `yaml:"prompt"`
	Results   map[string]any  `yaml:"results,omitempty"`
	// File is the config file that was read, if any.
	File string `yaml:"-"`
}

// HistoryConfig configures history persistence.
type HistoryConfig struct {
	File string `yaml:"file"`
	Max  int    `yaml:"max"`
}

// StartupConfig configures the startup batch.
type StartupConfig struct {
	Expressions []string `yaml:"expressions"`
	Policy      string   `yaml:"policy"`
}

// EvaluatorConfig configures the evaluator.
type EvaluatorConfig struct {
	OutputDir string `yaml:"output-dir"`
}

// MarkdownConfig configures :doc rendering.
type MarkdownConfig struct {
	Style string `yaml:"style"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"config":         "",
	"history-file":   "history.file",
	"history-max":    "history.max",
	"startup-policy": "startup.policy",
	"output-dir":     "evaluator.output-dir",
	"prompt":         "prompt",
	"log-level":      "log.level",
	"log-file":       "log.file",
}

// Loader reads configuration from every source.
type Loader struct {
	v *viper.Viper
	// ConfigFile overrides the default config file location.
	ConfigFile string
	// Home is the directory holding .gorepl. Empty means the user home.
	Home string
	// EnvFiles are .env files to read. Nil means .env in the working
	// directory and in the .gorepl directory.
	EnvFiles []string
}

// NewLoader creates a loader with defaults registered.
func NewLoader() *Loader {
	v := viper.New()
	v.SetDefault("history.file", "")
	v.SetDefault("history.max", history.DefaultMax)
	v.SetDefault("startup.expressions", []string{})
	v.SetDefault("startup.policy", session.StartupContinue.String())
	v.SetDefault("evaluator.output-dir", "")
	v.SetDefault("markdown.style", "auto")
	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")
	v.SetDefault("prompt", "go> ")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// BindFlags binds the known flags of a flag set. Only flags the user changed
// take effect.
func (l *Loader) BindFlags(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil || key == "" {
			continue
		}
		if err := l.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	if flag := flags.Lookup("config"); flag != nil && flag.Changed {
		l.ConfigFile = flag.Value.String()
	}
	return nil
}

// Load reads every source and returns the effective configuration.
func (l *Loader) Load() (*Config, error) {
	dir, err := l.configDir()
	if err != nil {
		return nil, err
	}
	l.v.SetDefault("history.file", filepath.Join(dir, "history.yaml"))

	l.v.SetConfigType("yaml")
	if l.ConfigFile != "" {
		l.v.SetConfigFile(l.ConfigFile)
	} else {
		l.v.SetConfigName("config")
		l.v.AddConfigPath(dir)
	}
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Debug("No config file found", "dir", dir)
	}

	envFiles := l.EnvFiles
	if envFiles == nil {
		envFiles = []string{filepath.Join(dir, ".env"), ".env"}
	}
	for _, path := range envFiles {
		if err := l.mergeDotEnv(path); err != nil {
			return nil, err
		}
	}

	expressions, err := l.expressions()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		History: HistoryConfig{
			File: l.v.GetString("history.file"),
			Max:  l.v.GetInt("history.max"),
		},
		Startup: StartupConfig{
			Expressions: expressions,
			Policy:      l.v.GetString("startup.policy"),
		},
		Evaluator: EvaluatorConfig{OutputDir: l.v.GetString("evaluator.output-dir")},
		Markdown:  MarkdownConfig{Style: l.v.GetString("markdown.style")},
		Log: LogConfig{
			Level: l.v.GetString("log.level"),
			File:  l.v.GetString("log.file"),
		},
		Prompt:  l.v.GetString("prompt"),
		Results: l.v.GetStringMap("results"),
		File:    l.v.ConfigFileUsed(),
	}

	if _, err := session.ParseStartupPolicy(cfg.Startup.Policy); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) configDir() (string, error) {
	home := l.Home
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return "", fmt.Errorf("failed to locate home directory: %w", err)
		}
	}
	return filepath.Join(home, ".gorepl"), nil
}

// mergeDotEnv applies GOREPL_* entries of a .env file as a layer above the
// config file and below the real environment.
func (l *Loader) mergeDotEnv(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read .env file %s: %w", path, err)
	}

	envMap, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}

	layer := map[string]any{}
	for _, key := range l.v.AllKeys() {
		value, ok := envMap[envName(key)]
		if !ok {
			continue
		}
		setNested(layer, strings.Split(key, "."), value)
	}
	if len(layer) == 0 {
		return nil
	}

	logger.Debug("Loaded .env file", "path", path, "keys", len(layer))
	return l.v.MergeConfigMap(layer)
}

// expressions accepts a YAML list or, from the environment, a string of
// expressions separated by semicolons.
func (l *Loader) expressions() ([]string, error) {
	switch value := l.v.Get("startup.expressions").(type) {
	case nil:
		return nil, nil
	case string:
		var out []string
		for _, part := range strings.Split(value, ";") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []string:
		return value, nil
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			out = append(out, fmt.Sprint(item))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("startup.expressions must be a list, got %T", value)
	}
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

func setNested(m map[string]any, path []string, value any) {
	for _, part := range path[:len(path)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// SessionConfig converts the configuration into a session configuration.
// Results are bound in key order.
func (c *Config) SessionConfig() (session.Config, error) {
	policy, err := session.ParseStartupPolicy(c.Startup.Policy)
	if err != nil {
		return session.Config{}, err
	}

	keys := make([]string, 0, len(c.Results))
	for key := range c.Results {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]evaluator.Result, 0, len(keys))
	for _, key := range keys {
		results = append(results, evaluator.Result{Key: key, Value: c.Results[key]})
	}

	return session.Config{
		HistoryFile:   c.History.File,
		HistoryMax:    c.History.Max,
		Expressions:   c.Startup.Expressions,
		Policy:        policy,
		OutputDir:     c.Evaluator.OutputDir,
		Results:       results,
		MarkdownStyle: c.Markdown.Style,
	}, nil
}

// YAML renders the configuration as a config file.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
