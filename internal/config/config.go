package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Import  ImportConfig  `yaml:"import" mapstructure:"import"`
	Dedup   DedupConfig   `yaml:"dedup" mapstructure:"dedup"`
	Geo     GeoConfig     `yaml:"geo" mapstructure:"geo"`
	Notify  NotifyConfig  `yaml:"notify" mapstructure:"notify"`
}

// StoreConfig configures the databases. DatabaseURL points at the
// PostgreSQL/PostGIS directory database; Driver selects the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures dataset downloads.
type FetchConfig struct {
	UserAgent   string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries"`
	TempDir     string        `yaml:"temp_dir" mapstructure:"temp_dir"`
	RatePerHost float64       `yaml:"rate_per_host" mapstructure:"rate_per_host"`
}

// GeocodeConfig configures the geocoder chain.
type GeocodeConfig struct {
	Providers        []string      `yaml:"providers" mapstructure:"providers"`
	BANURL           string        `yaml:"ban_url" mapstructure:"ban_url"`
	GeoplateformeURL string        `yaml:"geoplateforme_url" mapstructure:"geoplateforme_url"`
	OSMURL           string        `yaml:"osm_url" mapstructure:"osm_url"`
	MinScore         float64       `yaml:"min_score" mapstructure:"min_score"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Attempts         int           `yaml:"attempts" mapstructure:"attempts"`
	Cache            string        `yaml:"cache" mapstructure:"cache"`
	CachePath        string        `yaml:"cache_path" mapstructure:"cache_path"`
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset" mapstructure:"breaker_reset"`
	CourtesyDelay    time.Duration `yaml:"courtesy_delay" mapstructure:"courtesy_delay"`
}

// ImportConfig configures dataset imports.
type ImportConfig struct {
	ErrorsDir    string `yaml:"errors_dir" mapstructure:"errors_dir"`
	MetricsFile  string `yaml:"metrics_file" mapstructure:"metrics_file"`
	DatasetsFile string `yaml:"datasets_file" mapstructure:"datasets_file"`
}

// DedupConfig holds the distance thresholds, in meters.
type DedupConfig struct {
	NearRadius      float64 `yaml:"near_radius" mapstructure:"near_radius"`
	WideRadius      float64 `yaml:"wide_radius" mapstructure:"wide_radius"`
	ValidatorRadius float64 `yaml:"validator_radius" mapstructure:"validator_radius"`
	TakeoverRadius  float64 `yaml:"takeover_radius" mapstructure:"takeover_radius"`
}

// GeoConfig configures the municipality reference service.
type GeoConfig struct {
	APIURL      string  `yaml:"api_url" mapstructure:"api_url"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// NotifyConfig configures summary delivery to a chat webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	Channel    string `yaml:"channel" mapstructure:"channel"`
	Username   string `yaml:"username" mapstructure:"username"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ERPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "postgres://localhost:5432/acceslibre")
	v.SetDefault("store.sqlite_path", "erpsync.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.user_agent", "erpsync/1.0 (+https://acceslibre.beta.gouv.fr)")
	v.SetDefault("fetch.timeout", 5*time.Minute)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.temp_dir", "/tmp/erpsync")
	v.SetDefault("fetch.rate_per_host", 0.0)
	v.SetDefault("geocode.providers", []string{"ban", "geoplateforme", "osm"})
	v.SetDefault("geocode.ban_url", "https://api-adresse.data.gouv.fr/search/")
	v.SetDefault("geocode.geoplateforme_url", "https://wxs.ign.fr/essentiels/geoportail/geocodage/rest/0.1/search")
	v.SetDefault("geocode.osm_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.min_score", 0.4)
	v.SetDefault("geocode.timeout", 8*time.Second)
	v.SetDefault("geocode.attempts", 3)
	v.SetDefault("geocode.cache", "none")
	v.SetDefault("geocode.cache_path", "geocode-cache.db")
	v.SetDefault("geocode.breaker_threshold", 10)
	v.SetDefault("geocode.breaker_reset", time.Minute)
	v.SetDefault("geocode.courtesy_delay", time.Duration(0))
	v.SetDefault("import.errors_dir", ".")
	v.SetDefault("import.metrics_file", "")
	v.SetDefault("import.datasets_file", "")
	v.SetDefault("dedup.near_radius", 70.0)
	v.SetDefault("dedup.wide_radius", 500.0)
	v.SetDefault("dedup.validator_radius", 75.0)
	v.SetDefault("dedup.takeover_radius", 2000.0)
	v.SetDefault("geo.api_url", "https://geo.api.gouv.fr")
	v.SetDefault("geo.concurrency", 4)
	v.SetDefault("geo.rate_per_sec", 10.0)
	// AutomaticEnv only resolves keys viper knows, so every key needs a default.
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.channel", "")
	v.SetDefault("notify.username", "erpsync")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	if c.Geocode.MinScore < 0 || c.Geocode.MinScore > 1 {
		return eris.Errorf("config: geocode.min_score must be within [0,1], got %v", c.Geocode.MinScore)
	}
	if len(c.Geocode.Providers) == 0 {
		return eris.New("config: geocode.providers must not be empty")
	}
	if c.Dedup.NearRadius <= 0 || c.Dedup.WideRadius < c.Dedup.NearRadius {
		return eris.Errorf("config: dedup radii must satisfy 0 < near (%v) <= wide (%v)", c.Dedup.NearRadius, c.Dedup.WideRadius)
	}
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
