package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Layers Layers       `yaml:"layers" mapstructure:"layers"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	CRS    CRSConfig    `yaml:"crs" mapstructure:"crs"`
	Policy Policy       `yaml:"policy" mapstructure:"policy"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// Layers names every input layer the pipeline consumes. Planning layers are
// addressed by numeric layer id under PlanningBaseURL; the transit-tier layer
// lives on a separate feature service and carries its own full URL.
type Layers struct {
	PlanningBaseURL string         `yaml:"planning_base_url" mapstructure:"planning_base_url"`
	Parcels         int            `yaml:"parcels" mapstructure:"parcels"`
	Zoning          int            `yaml:"zoning" mapstructure:"zoning"`
	Height          int            `yaml:"height" mapstructure:"height"`
	OpenSpace       int            `yaml:"open_space" mapstructure:"open_space"`
	Historic        map[string]int `yaml:"historic" mapstructure:"historic"`
	SlopeModerate   int            `yaml:"slope_moderate" mapstructure:"slope_moderate"`
	SlopeSteep      int            `yaml:"slope_steep" mapstructure:"slope_steep"`
	TierURL         string         `yaml:"tier_url" mapstructure:"tier_url"`
	BuildingsPath   string         `yaml:"buildings_path" mapstructure:"buildings_path"`
}

// FetchConfig configures the ArcGIS REST client.
type FetchConfig struct {
	PageSize       int     `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// CacheConfig configures the on-disk layer cache.
type CacheConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// CRSConfig selects the planar working reference and the geographic export
// reference. The working CRS is a UTM zone; all area and intersection math
// happens there.
type CRSConfig struct {
	WorkingSRID    int `yaml:"working_srid" mapstructure:"working_srid"`
	UTMZone        int `yaml:"utm_zone" mapstructure:"utm_zone"`
	GeographicSRID int `yaml:"geographic_srid" mapstructure:"geographic_srid"`
}

// StoreConfig configures run/result persistence.
type StoreConfig struct {
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExportConfig configures dataset export.
type ExportConfig struct {
	GeoJSONPath string `yaml:"geojson_path" mapstructure:"geojson_path"`
	XLSXPath    string `yaml:"xlsx_path" mapstructure:"xlsx_path"`
}

// ServerConfig configures the results server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. Policy tables default
// to the San Francisco policy set and may be replaced wholesale by a policy
// file (see LoadPolicyFile).
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("UPZONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("layers.planning_base_url", "https://sfplanninggis.org/arcgiswa/rest/services/PlanningData/MapServer")
	v.SetDefault("layers.parcels", 23)
	v.SetDefault("layers.zoning", 3)
	v.SetDefault("layers.height", 5)
	v.SetDefault("layers.open_space", 20)
	v.SetDefault("layers.slope_moderate", 18)
	v.SetDefault("layers.slope_steep", 19)
	v.SetDefault("layers.historic", map[string]int{
		"historic_resources":  0,
		"landmarks":           11,
		"article10_districts": 17,
		"article11_districts": 16,
		"national_register":   6,
		"california_register": 7,
		"historic_survey":     30,
	})
	v.SetDefault("layers.tier_url", "https://services1.arcgis.com/ZIL9uO234SBBPGL7/arcgis/rest/services/SB79_WFL1/FeatureServer/8")
	v.SetDefault("layers.buildings_path", "Building_Footprints.geojson")

	v.SetDefault("fetch.page_size", 2000)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.requests_per_sec", 5)
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("fetch.user_agent", "upzone-cli/1.0")

	v.SetDefault("cache.dir", "cache")
	v.SetDefault("cache.enabled", true)

	v.SetDefault("crs.working_srid", 26910)
	v.SetDefault("crs.utm_zone", 10)
	v.SetDefault("crs.geographic_srid", 4326)

	v.SetDefault("store.sqlite_path", "upzone.db")

	v.SetDefault("export.geojson_path", "upzone_parcel_results.geojson")

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

	// Policy tables come from code defaults unless the config file set them;
	// viper defaults are awkward for typed maps so the merge happens here.
	cfg.Policy = mergePolicy(DefaultPolicy(), cfg.Policy)

	return &cfg, nil
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
