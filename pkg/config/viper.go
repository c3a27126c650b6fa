// Package config initializes the process-wide Viper instance used by the CLI.
// It reads settings from a config file, a .env file, environment variables and
// command-line flags, providing a unified configuration system.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	internalconfig "github.com/JakeFAU/konut-crawler/internal/config"
)

// InitConfig prepares v: it loads .env into the environment, registers defaults,
// enables KONUT_ environment overrides and reads cfgFile, or the first config.*
// found on the search path when cfgFile is empty. It returns the config file used,
// if any. A missing config file on the search path is not an error.
func InitConfig(v *viper.Viper, cfgFile string) (string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("load .env: %w", err)
	}

	internalconfig.SetDefaults(v)

	v.SetEnvPrefix("KONUT") // e.g., KONUT_CRAWLER_MODE=sale
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/konutcrawler/")
		v.AddConfigPath("$HOME/.konutcrawler")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}
