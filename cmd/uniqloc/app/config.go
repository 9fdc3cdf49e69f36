package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/openagenda-tools/uniqloc/internal/openagenda"
	"github.com/openagenda-tools/uniqloc/internal/storage"
	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/reconciler"
	"github.com/openagenda-tools/uniqloc/pkg/similarity"
)

// EnvPrefix prefixes every environment variable read by the configuration.
const EnvPrefix = "UNIQLOC"

// Config holds the application configuration loaded from the config file,
// environment variables and .env files, then overridden by flags.
type Config struct {
	// Global flags
	Verbose bool   `mapstructure:"verbose"`
	Quiet   bool   `mapstructure:"quiet"`
	NoColor bool   `mapstructure:"no_color"`
	Format  string `mapstructure:"format"`

	// ConfigFile is the file actually read, if any.
	ConfigFile string `mapstructure:"-"`

	// Reconciliation
	IDPrefix   string                  `mapstructure:"id_prefix"`
	IDField    string                  `mapstructure:"id_field"`
	Agendas    []reconciler.Collection `mapstructure:"target_agendas"`
	Similarity similarity.Config       `mapstructure:"location_compare"`

	// Collaborators
	OpenAgenda openagenda.Config `mapstructure:"openagenda"`
	Store      storage.Config    `mapstructure:"store"`
	Report     ReportConfig      `mapstructure:"report"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogOutput string `mapstructure:"log_output"`
}

// ReportConfig configures the CSV export.
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig configures the Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
}

// setDefaults registers every key so that environment variables are seen by
// Unmarshal.
func setDefaults(v *viper.Viper) {
	sim := similarity.DefaultConfig()
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("no_color", false)
	v.SetDefault("format", "")
	v.SetDefault("id_prefix", "")
	v.SetDefault("id_field", constants.DefaultIDField)
	v.SetDefault("location_compare.geo_distance_threshold", sim.GeoDistanceThreshold)
	v.SetDefault("location_compare.percent_similar_threshold", sim.PercentSimilarThreshold)
	v.SetDefault("openagenda.secret_key", "")
	v.SetDefault("openagenda.public_url", constants.DefaultPublicURL)
	v.SetDefault("openagenda.api_url", constants.DefaultAPIURL)
	v.SetDefault("openagenda.page_size", constants.DefaultPageSize)
	v.SetDefault("store.driver", constants.DefaultStoreDriver)
	v.SetDefault("store.dsn", constants.DefaultStorePath)
	v.SetDefault("report.dir", constants.DefaultReportDir)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("log_level", "")
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (applied later with UpdateFromFlags)
// 2. Environment variables (UNIQLOC_ID_PREFIX, UNIQLOC_STORE_DRIVER, ...)
// 3. .env and .env.local files
// 4. Config file (--config, or .uniqloc.yaml in $HOME or the working directory)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindSecrets(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".uniqloc")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config file", err.Error(), err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.NewConfigError("config", "cannot decode configuration", err)
	}
	config.ConfigFile = v.ConfigFileUsed()
	return config, nil
}

// UpdateFromFlags updates config values from parsed command flags. Flag values
// take precedence over the config file and the environment.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = c.Verbose || verbose
	c.Quiet = c.Quiet || quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// Validate fails fast on a configuration no run could succeed with. The secret
// key is only required when events are actually patched.
func (c *Config) Validate(dryRun bool) error {
	if err := c.validate(dryRun); err != nil {
		return errors.NewConfigError("config", err.Error(), err)
	}
	return nil
}

func (c *Config) validate(dryRun bool) error {
	if len(c.Agendas) == 0 {
		return errors.NewValidationError("target_agendas", nil, "at least one agenda is required")
	}
	for i, agenda := range c.Agendas {
		if agenda.ID == "" {
			return errors.NewValidationError("target_agendas", i, "agenda uid cannot be empty")
		}
	}
	if c.IDPrefix == "" {
		return errors.NewValidationError("id_prefix", c.IDPrefix, "cannot be empty")
	}
	if c.IDField == "" {
		return errors.NewValidationError("id_field", c.IDField, "cannot be empty")
	}
	if err := c.Similarity.Validate(); err != nil {
		return err
	}
	if c.OpenAgenda.PageSize <= 0 || c.OpenAgenda.PageSize > constants.MaxPageSize {
		return errors.NewValidationError("openagenda.page_size", c.OpenAgenda.PageSize, "must be between 1 and 300")
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if !dryRun && c.OpenAgenda.SecretKey == "" {
		return errors.NewValidationError("openagenda.secret_key", nil, "required unless --dry-run is set")
	}
	return nil
}

// loadEnvFiles loads environment variables from .env files. Variables that
// are already set are never overridden, so .env.local is loaded first to take
// precedence over .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// bindSecrets accepts the bare OPENAGENDA_SECRET_KEY variable as well as the
// prefixed one.
func bindSecrets(v *viper.Viper) {
	_ = v.BindEnv("openagenda.secret_key", EnvPrefix+"_OPENAGENDA_SECRET_KEY", "OPENAGENDA_SECRET_KEY")
}
