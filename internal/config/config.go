package config

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// INVOICE_ENGINE_SERVER_ADDRESS
const EnvPrefix = "INVOICE_ENGINE"

type Configuration struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Storage    StorageConfig    `mapstructure:"storage" validate:"required"`
	Validation ValidationConfig `mapstructure:"validation" validate:"required"`
	Logging    LoggingConfig    `mapstructure:"logging" validate:"required"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	Debug        bool          `mapstructure:"debug"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite memory"`
	Path   string `mapstructure:"path" validate:"required_if=Driver sqlite"`
}

type ValidationConfig struct {
	BatchConcurrency int           `mapstructure:"batch_concurrency" validate:"min=1,max=256"`
	ItemTimeout      time.Duration `mapstructure:"item_timeout" validate:"min=0"`
	FailFast         bool          `mapstructure:"fail_fast"`
	DefaultSchemas   []string      `mapstructure:"default_schemas" validate:"required,min=1,dive,required"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// NewConfig loads configuration from an optional config.yaml and the
// environment. A non-empty file forces that file to be read.
func NewConfig(file string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v, Default())

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/invoice-engine")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// Default returns the configuration used when nothing is overridden
func Default() *Configuration {
	return &Configuration{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "invoices.db",
		},
		Validation: ValidationConfig{
			BatchConcurrency: 8,
			ItemTimeout:      5 * time.Second,
			DefaultSchemas:   []string{"peppol"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper, d *Configuration) {
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.debug", d.Server.Debug)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)

	v.SetDefault("validation.batch_concurrency", d.Validation.BatchConcurrency)
	v.SetDefault("validation.item_timeout", d.Validation.ItemTimeout)
	v.SetDefault("validation.fail_fast", d.Validation.FailFast)
	v.SetDefault("validation.default_schemas", d.Validation.DefaultSchemas)

	v.SetDefault("logging.level", d.Logging.Level)
}
