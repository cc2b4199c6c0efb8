package env

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/roleguard/pkg/config"
)

func TestConfig(t *testing.T) {
	const env = "ROLEGUARD_ENV_CONFIG_TEST_VAR"

	c := NewConfig(env)

	v, err := c.Get(context.Background())
	assert.Nil(t, v)
	assert.Equal(t, config.ErrNoValue, err)

	t.Setenv(env, "value")

	v, err = c.Get(context.Background())
	assert.Equal(t, []byte("value"), v)
	assert.Nil(t, err)

	v, err = NewConfig("roleguard_env_config_test_var").Get(context.Background())
	assert.Equal(t, []byte("value"), v)
	assert.Nil(t, err)
}

func TestTypedConfigs(t *testing.T) {
	t.Setenv("ROLEGUARD_TEST_BOOL", "true")
	t.Setenv("ROLEGUARD_TEST_INT", "12")

	assert.True(t, NewBoolConfig("ROLEGUARD_TEST_BOOL", false).Get(context.Background()))
	assert.EqualValues(t, 12, NewInt64Config("ROLEGUARD_TEST_INT", 1).Get(context.Background()))

	assert.False(t, NewBoolConfig("ROLEGUARD_TEST_UNSET", false).Get(context.Background()))
}
