package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath string

	Store     StoreConfig
	Engine    EngineConfig
	Discovery DiscoveryConfig
	Log       LogConfig

	// Command flags
	Flags Flags
}

// StoreConfig selects and locates the persistent store
type StoreConfig struct {
	Driver string
	// Path is the JSON or SQLite file; relative paths resolve against ProjectPath.
	Path  string
	MySQL MySQLConfig
}

// MySQLConfig holds MySQL connection settings
type MySQLConfig struct {
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// EngineConfig tunes the execution engine
type EngineConfig struct {
	CriticalThreshold int
	Oracle            string
	Seed              int64
	Command           string
	CommandTimeout    time.Duration
}

// DiscoveryConfig locates automated tests in the project source tree
type DiscoveryConfig struct {
	TestPath      string
	PathsToIgnore []string
	// Patterns are matched against file base names, e.g. "*_test.go"
	Patterns []string
}

// LogConfig configures the zap logger and its optional rotated file
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Flags holds command-line overrides. Zero values leave the loaded config untouched.
type Flags struct {
	ConfigFile  string
	ProjectPath string
	StoreDriver string
	StorePath   string
	Oracle      string
	Seed        int64
	Verbose     bool
	TestPath    string
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath: DefaultProjectPath,
		Store: StoreConfig{
			Driver: DefaultStoreDriver,
			MySQL: MySQLConfig{
				Host:     DefaultMySQLHost,
				Port:     DefaultMySQLPort,
				User:     DefaultMySQLUser,
				Database: DefaultMySQLDatabase,
			},
		},
		Engine: EngineConfig{
			CriticalThreshold: DefaultCriticalThreshold,
			Oracle:            DefaultOracle,
			CommandTimeout:    DefaultCommandTimeout,
		},
		Discovery: DiscoveryConfig{
			TestPath: DefaultTestPath,
		},
		Log: LogConfig{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
	}

	cfg.Discovery.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.Discovery.PathsToIgnore, DefaultPathsToIgnore)
	cfg.Discovery.Patterns = make([]string, len(DefaultTestPatterns))
	copy(cfg.Discovery.Patterns, DefaultTestPatterns)

	return cfg
}

// Load builds the config from defaults, the project .env file, qad.yaml,
// QAD_* environment variables and finally flags, in increasing precedence.
func Load(flags Flags) (*Config, error) {
	cfg := New()
	if flags.ProjectPath != "" {
		cfg.ProjectPath = flags.ProjectPath
	}

	// .env might not exist, that's okay - use environment variables
	_ = godotenv.Load(filepath.Join(cfg.ProjectPath, ".env"))

	v := viper.New()
	cfg.setDefaults(v)
	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Laravel-style DB_* variables also configure MySQL
	_ = v.BindEnv("store.mysql.host", "QAD_STORE_MYSQL_HOST", "DB_HOST")
	_ = v.BindEnv("store.mysql.port", "QAD_STORE_MYSQL_PORT", "DB_PORT")
	_ = v.BindEnv("store.mysql.user", "QAD_STORE_MYSQL_USER", "DB_USERNAME")
	_ = v.BindEnv("store.mysql.password", "QAD_STORE_MYSQL_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("store.mysql.database", "QAD_STORE_MYSQL_DATABASE", "DB_DATABASE")

	if flags.ConfigFile != "" {
		v.SetConfigFile(flags.ConfigFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(cfg.ProjectPath)
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "qad"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if flags.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.Store.Driver = strings.ToLower(v.GetString("store.driver"))
	cfg.Store.Path = v.GetString("store.path")
	cfg.Store.MySQL = MySQLConfig{
		DSN:      v.GetString("store.mysql.dsn"),
		Host:     v.GetString("store.mysql.host"),
		Port:     v.GetString("store.mysql.port"),
		User:     v.GetString("store.mysql.user"),
		Password: v.GetString("store.mysql.password"),
		Database: v.GetString("store.mysql.database"),
	}
	cfg.Engine = EngineConfig{
		CriticalThreshold: v.GetInt("engine.critical_threshold"),
		Oracle:            strings.ToLower(v.GetString("engine.oracle")),
		Seed:              v.GetInt64("engine.seed"),
		Command:           v.GetString("engine.command"),
		CommandTimeout:    v.GetDuration("engine.command_timeout"),
	}
	cfg.Discovery = DiscoveryConfig{
		TestPath:      v.GetString("discovery.test_path"),
		PathsToIgnore: v.GetStringSlice("discovery.paths_to_ignore"),
		Patterns:      v.GetStringSlice("discovery.patterns"),
	}
	cfg.Log = LogConfig{
		Level:      v.GetString("log.level"),
		Format:     v.GetString("log.format"),
		File:       v.GetString("log.file"),
		MaxSizeMB:  v.GetInt("log.max_size_mb"),
		MaxBackups: v.GetInt("log.max_backups"),
		MaxAgeDays: v.GetInt("log.max_age_days"),
	}

	cfg.ApplyFlags(flags)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", c.Store.Driver)
	v.SetDefault("store.path", c.Store.Path)
	v.SetDefault("store.mysql.dsn", "")
	v.SetDefault("store.mysql.host", c.Store.MySQL.Host)
	v.SetDefault("store.mysql.port", c.Store.MySQL.Port)
	v.SetDefault("store.mysql.user", c.Store.MySQL.User)
	v.SetDefault("store.mysql.password", "")
	v.SetDefault("store.mysql.database", c.Store.MySQL.Database)
	v.SetDefault("engine.critical_threshold", c.Engine.CriticalThreshold)
	v.SetDefault("engine.oracle", c.Engine.Oracle)
	v.SetDefault("engine.seed", 0)
	v.SetDefault("engine.command", "")
	v.SetDefault("engine.command_timeout", c.Engine.CommandTimeout)
	v.SetDefault("discovery.test_path", c.Discovery.TestPath)
	v.SetDefault("discovery.paths_to_ignore", c.Discovery.PathsToIgnore)
	v.SetDefault("discovery.patterns", c.Discovery.Patterns)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", c.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", c.Log.MaxBackups)
	v.SetDefault("log.max_age_days", c.Log.MaxAgeDays)
}

// ApplyFlags overlays non-zero flags on the config
func (c *Config) ApplyFlags(flags Flags) {
	c.Flags = flags
	if flags.StoreDriver != "" {
		c.Store.Driver = strings.ToLower(flags.StoreDriver)
	}
	if flags.StorePath != "" {
		c.Store.Path = flags.StorePath
	}
	if flags.Oracle != "" {
		c.Engine.Oracle = strings.ToLower(flags.Oracle)
	}
	if flags.Seed != 0 {
		c.Engine.Seed = flags.Seed
	}
	if flags.Verbose {
		c.Log.Level = "debug"
	}
}

// Validate rejects unknown drivers and oracles
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverJSON, DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unknown store driver %q (want json, sqlite or mysql)", c.Store.Driver)
	}
	switch c.Engine.Oracle {
	case OracleRandom:
	case OracleCommand:
		if c.Engine.Command == "" {
			return errors.New("engine.oracle is command but engine.command is empty")
		}
	default:
		return fmt.Errorf("unknown outcome oracle %q (want random or command)", c.Engine.Oracle)
	}
	return nil
}

// GetStorePath returns the file used by the json and sqlite drivers.
// Relative paths are resolved against the project path and made absolute.
func (c *Config) GetStorePath() string {
	p := c.Store.Path
	if p == "" {
		name := DefaultJSONFile
		if c.Store.Driver == DriverSQLite {
			name = DefaultSQLiteFile
		}
		p = filepath.Join(DefaultStoreDir, name)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.ProjectPath, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetTestPath returns the directory scanned for automated tests, using the flag if provided.
// Relative paths are resolved against the project path.
func (c *Config) GetTestPath() string {
	p := c.Discovery.TestPath
	if c.Flags.TestPath != "" {
		p = c.Flags.TestPath
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectPath, p)
}

// GetLogPath returns the rotated log file path, or "" when file logging is off.
func (c *Config) GetLogPath() string {
	if c.Log.File == "" || filepath.IsAbs(c.Log.File) {
		return c.Log.File
	}
	return filepath.Join(c.ProjectPath, c.Log.File)
}
