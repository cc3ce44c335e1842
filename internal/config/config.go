// Package config loads attrtables settings from a config file, environment
// variables (ATTRTABLES_ prefix) and defaults.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tordrt/attrtables"
)

// EnvPrefix is the prefix of environment variables overriding settings,
// e.g. ATTRTABLES_DATABASE_URL or ATTRTABLES_TABLES_TARGET_COLUMNS
const EnvPrefix = "ATTRTABLES"

// Config is the complete configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Tables   TablesConfig   `mapstructure:"tables"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig selects the database
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// TablesConfig mirrors attrtables.Options
type TablesConfig struct {
	EntityIDType             string `mapstructure:"entity_id_type"`
	Prefix                   string `mapstructure:"prefix"`
	TargetColumns            int    `mapstructure:"target_columns"`
	DisableComputationIDs    bool   `mapstructure:"disable_computation_ids"`
	DisableComputationGroups bool   `mapstructure:"disable_computation_groups"`
	ComputationIDType        string `mapstructure:"computation_id_type"`
	DefinitionsTable         string `mapstructure:"definitions_table"`
	StagingSuffix            string `mapstructure:"staging_suffix"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")

	v.SetDefault("tables.entity_id_type", attrtables.DefaultEntityIDType)
	v.SetDefault("tables.prefix", attrtables.DefaultTablePrefix)
	v.SetDefault("tables.target_columns", attrtables.DefaultTargetColumns)
	v.SetDefault("tables.disable_computation_ids", false)
	v.SetDefault("tables.disable_computation_groups", false)
	v.SetDefault("tables.computation_id_type", attrtables.DefaultComputationIDType)
	v.SetDefault("tables.definitions_table", attrtables.DefaultDefinitionsTable)
	v.SetDefault("tables.staging_suffix", attrtables.DefaultStagingSuffix)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.development", false)
}

// New returns a viper instance with defaults and environment binding.
// configPath, if not empty, names a config file whose format follows its
// extension (toml, yaml, json).
func New(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
		}
	}
	return v, nil
}

// Load reads the configuration, see New
func Load(configPath string) (*Config, error) {
	v, err := New(configPath)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Tables.TargetColumns < 0 {
		return errors.Newf("tables.target_columns must be positive, got %d", c.Tables.TargetColumns)
	}
	if c.Tables.Prefix != "" && strings.HasPrefix(c.Tables.DefinitionsTable, c.Tables.Prefix) {
		return errors.WithHint(
			errors.Newf("tables.definitions_table %q starts with tables.prefix %q",
				c.Tables.DefinitionsTable, c.Tables.Prefix),
			"the definitions table would be taken for a value table")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "invalid log.level")
	}
	return nil
}

// Options converts the tables settings
func (c *Config) Options(logger *zap.SugaredLogger) *attrtables.Options {
	return &attrtables.Options{
		EntityIDType:             c.Tables.EntityIDType,
		TablePrefix:              c.Tables.Prefix,
		TargetColumns:            c.Tables.TargetColumns,
		DisableComputationIDs:    c.Tables.DisableComputationIDs,
		DisableComputationGroups: c.Tables.DisableComputationGroups,
		ComputationIDType:        c.Tables.ComputationIDType,
		DefinitionsTable:         c.Tables.DefinitionsTable,
		StagingSuffix:            c.Tables.StagingSuffix,
		Logger:                   logger,
	}
}

// Logger builds the zap logger described by the log settings
func (c *Config) Logger() (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log.level")
	}
	zcfg := zap.NewProductionConfig()
	if c.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger.Sugar(), nil
}
