package util

import (
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the tunables read from comm.yaml.
type Config struct {
	ActionTimeoutSec  uint32  `yaml:"actionTimeoutSec"`
	SettledCacheSize  int     `yaml:"settledCacheSize"`
	InboundRatePerSec float64 `yaml:"inboundRatePerSec"`
	InboundBurst      int     `yaml:"inboundBurst"`
	WriteTimeoutMs    uint32  `yaml:"writeTimeoutMs"`
	PingIntervalSec   uint32  `yaml:"pingIntervalSec"`
	Codec             string  `yaml:"codec"`
}

func DefaultConfig() Config {
	return Config{
		ActionTimeoutSec:  62,
		SettledCacheSize:  1024,
		InboundRatePerSec: 20,
		InboundBurst:      40,
		WriteTimeoutMs:    5000,
		PingIntervalSec:   5,
		Codec:             "json",
	}
}

// ParseConfig reads configFile on top of the defaults. A missing file is not an error.
// PLAY_TIMEOUT in the environment overrides actionTimeoutSec.
func ParseConfig(configFile string) (Config, error) {
	cfg := DefaultConfig()
	bytes, err := ioutil.ReadFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, errors.Wrap(err, fmt.Sprintf("Error reading config file [%s]", configFile))
		}
		environmentLogger.Info().Msgf("Config file [%s] not found. Using defaults.", configFile)
	} else {
		err = yaml.Unmarshal(bytes, &cfg)
		if err != nil {
			return Config{}, errors.Wrap(err, fmt.Sprintf("Error parsing config YAML file [%s]", configFile))
		}
	}

	if Env.IsPlayTimeoutSet() {
		cfg.ActionTimeoutSec = uint32(Env.GetPlayTimeout())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, fmt.Sprintf("Invalid config [%s]", configFile))
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ActionTimeoutSec == 0 {
		return fmt.Errorf("actionTimeoutSec must be positive")
	}
	if c.SettledCacheSize <= 0 {
		return fmt.Errorf("settledCacheSize must be positive")
	}
	if c.InboundRatePerSec <= 0 || c.InboundBurst <= 0 {
		return fmt.Errorf("inboundRatePerSec and inboundBurst must be positive")
	}
	if c.Codec != "json" && c.Codec != "proto" {
		return fmt.Errorf("unknown codec [%s]", c.Codec)
	}
	return nil
}

func (c Config) ActionTimeout() time.Duration {
	return time.Duration(c.ActionTimeoutSec) * time.Second
}

func (c Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func (c Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSec) * time.Second
}
