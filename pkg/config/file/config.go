// Package file provides configs backed by a viper instance, which is usually
// populated from a settings file, bound flags and the environment.
package file

import (
	"context"

	"github.com/spf13/viper"

	"github.com/code-payments/roleguard/pkg/config"
	"github.com/code-payments/roleguard/pkg/config/wrapper"
)

type conf struct {
	v   *viper.Viper
	key string
}

// NewConfig returns a config for a single viper key. Nothing is cached, so
// values set on v after construction are observed.
func NewConfig(v *viper.Viper, key string) config.Config {
	return &conf{
		v:   v,
		key: key,
	}
}

// Get implements Config.Get
func (c *conf) Get(_ context.Context) (interface{}, error) {
	if c.v == nil || !c.v.IsSet(c.key) {
		return nil, config.ErrNoValue
	}

	val := c.v.Get(c.key)
	if val == nil {
		return nil, config.ErrNoValue
	}
	return val, nil
}

// Shutdown implements Config.Shutdown
func (c *conf) Shutdown() {
}

// NewBoolConfig creates a viper-based bool config
func NewBoolConfig(v *viper.Viper, key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(v, key), defaultValue)
}

// NewInt64Config creates a viper-based int64 config
func NewInt64Config(v *viper.Viper, key string, defaultValue int64) config.Int64 {
	return wrapper.NewInt64Config(NewConfig(v, key), defaultValue)
}

// NewStringConfig creates a viper-based string config
func NewStringConfig(v *viper.Viper, key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(v, key), defaultValue)
}
