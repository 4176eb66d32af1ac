package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/obsprep/internal/survey"
)

// EnvPrefix prefixes every environment override, e.g. OBSPREP_LOG_LEVEL.
const EnvPrefix = "OBSPREP"

// Config holds the full application configuration.
type Config struct {
	Log     LogConfig               `yaml:"log" mapstructure:"log"`
	Store   StoreConfig             `yaml:"store" mapstructure:"store"`
	Surveys map[string]SurveyConfig `yaml:"surveys" mapstructure:"surveys"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// StoreConfig configures the run ledger database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

// SurveyConfig locates the inputs and outputs of one survey year.
type SurveyConfig struct {
	RoutesPath          string           `yaml:"routes_path" mapstructure:"routes_path" validate:"required"`
	ResultsPath         string           `yaml:"results_path" mapstructure:"results_path" validate:"required"`
	ResultsSheet        string           `yaml:"results_sheet" mapstructure:"results_sheet"`
	DataDictionaryPath  string           `yaml:"data_dictionary_path" mapstructure:"data_dictionary_path"`
	DataDictionarySheet string           `yaml:"data_dictionary_sheet" mapstructure:"data_dictionary_sheet"`
	SaveDir             string           `yaml:"save_dir" mapstructure:"save_dir" validate:"required"`
	CacheDir            string           `yaml:"cache_dir" mapstructure:"cache_dir"`
	StrictRoutes        bool             `yaml:"strict_routes" mapstructure:"strict_routes"`
	AgeBands            []survey.AgeBand `yaml:"age_bands,omitempty" mapstructure:"age_bands" validate:"omitempty,dive"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:   LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{Path: "./obsprep.db"},
		Surveys: map[string]SurveyConfig{
			"2015": {
				RoutesPath:          "data/external/routes.csv",
				ResultsPath:         "data/raw/obs2015/results.xlsx",
				ResultsSheet:        "Data",
				DataDictionaryPath:  "",
				DataDictionarySheet: "",
				SaveDir:             "data/processed/obs2015",
				CacheDir:            "data/interim",
			},
			"2023": {
				RoutesPath:          "data/external/routes.csv",
				ResultsPath:         "data/raw/obs2023/results.xlsx",
				ResultsSheet:        "Data",
				DataDictionaryPath:  "data/raw/obs2023/results.xlsx",
				DataDictionarySheet: "Data Dictionary",
				SaveDir:             "data/processed/obs2023",
				CacheDir:            "data/interim",
			},
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("store.path", d.Store.Path)
	for year, s := range d.Surveys {
		p := "surveys." + year + "."
		v.SetDefault(p+"routes_path", s.RoutesPath)
		v.SetDefault(p+"results_path", s.ResultsPath)
		v.SetDefault(p+"results_sheet", s.ResultsSheet)
		v.SetDefault(p+"data_dictionary_path", s.DataDictionaryPath)
		v.SetDefault(p+"data_dictionary_sheet", s.DataDictionarySheet)
		v.SetDefault(p+"save_dir", s.SaveDir)
		v.SetDefault(p+"cache_dir", s.CacheDir)
		v.SetDefault(p+"strict_routes", s.StrictRoutes)
	}
}

// Load reads configuration from file and environment. An empty path
// looks for config.yaml in the working directory; a missing default file
// is not an error, a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
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

// Validate checks the settings every command depends on. Survey sections
// are checked on use by Survey, so an incomplete section for a year that
// is never run does not block the other.
func (c *Config) Validate() error {
	if err := validate.Struct(c.Log); err != nil {
		return eris.Wrap(err, "config: log")
	}
	if err := validate.Struct(c.Store); err != nil {
		return eris.Wrap(err, "config: store")
	}
	for key := range c.Surveys {
		if _, err := survey.ParseYear(key); err != nil {
			return eris.Wrap(err, "config: surveys")
		}
	}
	return nil
}

// Survey returns the validated settings of a survey year.
func (c *Config) Survey(y survey.Year) (*SurveyConfig, error) {
	s, ok := c.Surveys[y.String()]
	if !ok {
		return nil, eris.Errorf("config: no surveys.%s section", y)
	}
	if err := validate.Struct(s); err != nil {
		return nil, eris.Wrapf(err, "config: surveys.%s", y)
	}
	if len(s.AgeBands) > 0 {
		if err := survey.ValidateBands(s.AgeBands); err != nil {
			return nil, eris.Wrapf(err, "config: surveys.%s.age_bands", y)
		}
	}
	return &s, nil
}

// Variant applies the survey settings to the built-in variant of y.
func (s *SurveyConfig) Variant(y survey.Year) (survey.Variant, error) {
	v, err := survey.VariantFor(y)
	if err != nil {
		return v, err
	}
	v.StrictRoutes = s.StrictRoutes
	if len(s.AgeBands) > 0 {
		return v.WithAgeBands(s.AgeBands)
	}
	return v, nil
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
