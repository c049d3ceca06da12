package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvConfigFile names an explicit config file; it wins over the search path.
const EnvConfigFile = "CONFIG_FILE"

// Load searches dirs, then "." and "./config", for <name>.yaml and layers
// environment variables on top ("history.driver" ↔ HISTORY_DRIVER). A
// missing file is not an error unless it was named by CONFIG_FILE.
func Load(name string, dirs ...string) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if file := os.Getenv(EnvConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
		return v, nil
	}

	v.SetConfigName(name)
	v.SetConfigType("yaml")
	for _, dir := range append(dirs, ".", "./config") {
		if dir != "" {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}
