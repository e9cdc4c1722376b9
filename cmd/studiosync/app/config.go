package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/studiosync/pkg/authority"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/differ"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/reconciler"
	"github.com/agentstation/studiosync/pkg/registry"
)

// StashConfig locates the host server.
type StashConfig struct {
	Scheme string `yaml:"scheme" mapstructure:"scheme"`
	Host   string `yaml:"host" mapstructure:"host"`
	Port   int    `yaml:"port" mapstructure:"port"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// Connection returns the catalog connection.
func (s StashConfig) Connection() catalog.Connection {
	return catalog.Connection{Scheme: s.Scheme, Host: s.Host, Port: s.Port, APIKey: s.APIKey}
}

// MatchingConfig configures the name matcher and how conflicting registry
// values are resolved.
type MatchingConfig struct {
	Threshold       float64           `yaml:"threshold" mapstructure:"threshold"`
	Fuzzy           bool              `yaml:"fuzzy" mapstructure:"fuzzy"`
	PrimaryRegistry string            `yaml:"primary_registry" mapstructure:"primary_registry"`
	Strategy        string            `yaml:"strategy" mapstructure:"strategy"`
	Authorities     []authority.Field `yaml:"authorities,omitempty" mapstructure:"authorities"`
}

// SyncConfig configures batch runs.
type SyncConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	LockFile    string `yaml:"lock_file" mapstructure:"lock_file"`
	// Apply is all, additive or additions-only.
	Apply string `yaml:"apply" mapstructure:"apply"`
}

// LogConfig is the logging section. An empty level defers to the flags.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// File is the part of the configuration stored in the YAML file.
type File struct {
	Stash         StashConfig       `yaml:"stash" mapstructure:"stash"`
	Registries    []registry.Config `yaml:"registries,omitempty" mapstructure:"registries"`
	TPDBAPIKey    string            `yaml:"tpdb_api_key" mapstructure:"tpdb_api_key"`
	StashDBAPIKey string            `yaml:"stashdb_api_key" mapstructure:"stashdb_api_key"`
	Matching      MatchingConfig    `yaml:"matching" mapstructure:"matching"`
	Sync          SyncConfig        `yaml:"sync" mapstructure:"sync"`
	Log           LogConfig         `yaml:"log" mapstructure:"log"`
}

// Config holds the application configuration loaded from flags, the
// environment, .env files and the config file.
type Config struct {
	File `mapstructure:",squash"`

	// Global flags
	Verbose  bool   `mapstructure:"-"`
	Quiet    bool   `mapstructure:"-"`
	NoColor  bool   `mapstructure:"-"`
	Format   string `mapstructure:"-"`
	LogLevel string `mapstructure:"-"`

	// ConfigFile is the file actually read, if any.
	ConfigFile string `mapstructure:"-"`
}

// defaults are registered with viper so every key can come from the
// environment.
var defaults = map[string]any{
	"stash.scheme":              constants.DefaultStashScheme,
	"stash.host":                constants.DefaultStashHost,
	"stash.port":                constants.DefaultStashPort,
	"stash.api_key":             "",
	"tpdb_api_key":              "",
	"stashdb_api_key":           "",
	"matching.threshold":        constants.DefaultFuzzyThreshold,
	"matching.fuzzy":            true,
	"matching.primary_registry": constants.StashDBEndpoint,
	"matching.strategy":         string(reconciler.StrategyTypeFieldAuthority),
	"sync.concurrency":          constants.DefaultConcurrency,
	"sync.lock_file":            "",
	"sync.apply":                string(differ.ApplyAll),
	"log.level":                 "",
	"log.format":                "auto",
	"log.output":                "stderr",
}

// unprefixed are the conventional names also accepted without the
// STUDIOSYNC_ prefix.
var unprefixed = map[string]string{
	"tpdb_api_key":    "TPDB_API_KEY",
	"stashdb_api_key": "STASHDB_API_KEY",
	"stash.api_key":   "STASH_API_KEY",
	"log.level":       "LOG_LEVEL",
	"log.format":      "LOG_FORMAT",
	"log.output":      "LOG_OUTPUT",
}

// LoadConfig loads configuration in order of precedence:
//  1. Command-line flags (applied later by UpdateFromFlags)
//  2. Environment variables (STUDIOSYNC_ prefixed, then conventional names)
//  3. .env files
//  4. Config file (path, or ~/.studiosync.yaml, or ./.studiosync.yaml)
//  5. Defaults
func LoadConfig(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range unprefixed {
		prefixed := constants.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, errors.NewConfigError("env", "binding "+env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(constants.DefaultConfigName)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit path must exist; the search locations are optional
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("file", "reading "+v.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigError("file", "decoding configuration", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	return cfg, nil
}

// UpdateFromFlags applies the global flags. Flags always win over the
// config file and environment.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// RegistryConfigs returns the configured registries. The StashDB and TPDB
// keys fill the matching entries, or add them when absent.
func (c *Config) RegistryConfigs() []registry.Config {
	configs := make([]registry.Config, 0, len(c.Registries)+2)
	for _, r := range c.Registries {
		r.ID = registry.NormalizeEndpoint(r.ID)
		if r.Kind == "" {
			r.Kind = registry.KindForEndpoint(r.ID)
		}
		configs = append(configs, r)
	}
	withKey := func(endpoint, name, key string, kind registry.Kind) {
		if key == "" {
			return
		}
		for i := range configs {
			if strings.EqualFold(configs[i].ID, endpoint) {
				if configs[i].APIKey == "" {
					configs[i].APIKey = key
				}
				return
			}
		}
		configs = append(configs, registry.Config{ID: endpoint, Name: name, APIKey: key, Kind: kind})
	}
	withKey(constants.StashDBEndpoint, "StashDB", c.StashDBAPIKey, registry.KindStashBox)
	withKey(constants.TPDBEndpoint, "ThePornDB", c.TPDBAPIKey, registry.KindTPDB)
	return configs
}

// LockFile returns the lock file path, defaulting to the temp directory.
func (c *Config) LockFile() string {
	if c.Sync.LockFile != "" {
		return c.Sync.LockFile
	}
	return filepath.Join(os.TempDir(), constants.DefaultLockFile)
}

// DefaultFile returns the starter configuration written by config init.
func DefaultFile() File {
	return File{
		Stash: StashConfig{
			Scheme: constants.DefaultStashScheme,
			Host:   constants.DefaultStashHost,
			Port:   constants.DefaultStashPort,
		},
		Registries: []registry.Config{
			{ID: constants.StashDBEndpoint, Name: "StashDB", Kind: registry.KindStashBox},
			{ID: constants.TPDBEndpoint, Name: "ThePornDB", Kind: registry.KindTPDB},
		},
		Matching: MatchingConfig{
			Threshold:       constants.DefaultFuzzyThreshold,
			Fuzzy:           true,
			PrimaryRegistry: constants.StashDBEndpoint,
			Strategy:        string(reconciler.StrategyTypeFieldAuthority),
		},
		Sync: SyncConfig{Concurrency: constants.DefaultConcurrency, Apply: string(differ.ApplyAll)},
		Log:  LogConfig{Format: "auto", Output: "stderr"},
	}
}

// WriteFile writes f as YAML to path. An existing file is kept unless
// overwrite is set. The file may hold API keys, so it is private.
func WriteFile(path string, f File, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return errors.NewResourceError("write", "config", path, errors.ErrAlreadyExists)
	}
	b, err := yaml.MarshalWithOptions(f, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("mkdir", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, b, constants.SecureFilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

// DefaultConfigPath is the config file location in the home directory.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapIO("resolve", "home directory", err)
	}
	return filepath.Join(home, constants.DefaultConfigName+".yaml"), nil
}

// loadEnvFiles loads .env.local then .env. Variables already set are never
// replaced, so the process environment wins over both files.
func loadEnvFiles() {
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}
}
