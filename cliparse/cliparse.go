package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/clubvote/election"
)

const envPrefix = "CLUBVOTE"

type Config struct {
	Port         int    `yaml:"port"         envconfig:"PORT"`
	DatabaseURL  string `yaml:"databaseUrl"  envconfig:"DATABASE_URL"`
	DatabaseType string `yaml:"databaseType" envconfig:"DATABASE_TYPE"`

	// Secrets
	AdminKey       string `yaml:"adminKey"       split_words:"true"`
	IdentitySecret string `yaml:"identitySecret" split_words:"true"`
	IPHashSalt     string `yaml:"ipHashSalt"     envconfig:"IP_HASH_SALT"`

	Settings election.Settings `yaml:"settings"`

	TallyPollInterval time.Duration `yaml:"tallyPollInterval" split_words:"true"`
	SchedulerInterval time.Duration `yaml:"schedulerInterval" split_words:"true"`

	LogLevel  string `yaml:"logLevel"  split_words:"true"`
	LogFormat string `yaml:"logFormat" split_words:"true"`
}

// Defaults returns the configuration used before any source is applied
func Defaults() Config {
	return Config{
		Port:              3318,
		DatabaseType:      "sqlite",
		Settings:          election.DefaultSettings(),
		TallyPollInterval: 2 * time.Second,
		SchedulerInterval: time.Minute,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// ParseFlags builds the configuration from defaults, an optional YAML file,
// a .env file, the environment and finally command line flags
func ParseFlags(args []string) (Config, error) {
	cfg := Defaults()

	fs := flag.NewFlagSet("clubvote", flag.ContinueOnError)

	configFile := fs.String("c", "", "Path to YAML config file")
	envFile := fs.String("env-file", ".env", "Path to .env file (ignored if missing)")

	// Network config (can be CLI args or env)
	port := fs.Int("p", 0, "Server port")
	dbURL := fs.String("d", "", "Database URL")
	dbType := fs.String("t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	adminKey := fs.String("admin-key", "", "Admin key (prefer env)")
	identitySecret := fs.String("identity-secret", "", "Voter token signing secret (prefer env)")

	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (text or json)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configFile == "" {
		*configFile = os.Getenv("CONFIG_FILE")
	}
	if *configFile != "" {
		if err := loadYAML(*configFile, &cfg); err != nil {
			return Config{}, err
		}
	}

	// Existing environment variables take precedence over the .env file
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading env file: %w", err)
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("error processing environment: %w", err)
	}

	// CLI flags win
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.Port = *port
		case "d":
			cfg.DatabaseURL = *dbURL
		case "t":
			cfg.DatabaseType = *dbType
		case "admin-key":
			cfg.AdminKey = *adminKey
		case "identity-secret":
			cfg.IdentitySecret = *identitySecret
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

// Validate checks that every required value is present
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if c.AdminKey == "" {
		return errors.New("CLUBVOTE_ADMIN_KEY required")
	}
	if c.IdentitySecret == "" {
		return errors.New("CLUBVOTE_IDENTITY_SECRET required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (use text or json)", c.LogFormat)
	}
	return nil
}
