package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ReadConfigFromFile read node configuration
func ReadConfigFromFile(name string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.SetConfigName(name)
	v.AutomaticEnv()

	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)

	v.SetDefault("log_level", "debug")
	v.SetDefault("peer.retry_delay", 2)

	err := v.ReadInConfig()
	if err != nil {
		return nil, errors.Wrap(err, "Error reading config file")
	}

	config := &Config{}

	err = v.Unmarshal(config)
	if err != nil {
		return nil, errors.Wrap(err, "Error parsing config file")
	}

	return config, nil
}
