package file

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/roleguard/pkg/config"
)

func TestConfig(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
treat_warnings_as_errors: true
max_concurrency: 4
log_format: json
`)))

	ctx := context.Background()

	_, err := NewConfig(v, "missing").Get(ctx)
	assert.Equal(t, config.ErrNoValue, err)

	_, err = NewConfig(nil, "treat_warnings_as_errors").Get(ctx)
	assert.Equal(t, config.ErrNoValue, err)

	assert.True(t, NewBoolConfig(v, "treat_warnings_as_errors", false).Get(ctx))
	assert.EqualValues(t, 4, NewInt64Config(v, "max_concurrency", 1).Get(ctx))
	assert.Equal(t, "json", NewStringConfig(v, "log_format", "text").Get(ctx))

	assert.False(t, NewBoolConfig(v, "disable_enforcement", false).Get(ctx))
}

func TestConfig_ObservesUpdates(t *testing.T) {
	v := viper.New()
	c := NewBoolConfig(v, "log_findings", true)

	assert.True(t, c.Get(context.Background()))

	v.Set("log_findings", "false")
	assert.False(t, c.Get(context.Background()))
}
