package promise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfig(t *testing.T) {
	t.Run(`nil means defaults`, func(t *testing.T) {
		c := resolveConfig(nil)
		require.NotNil(t, c)
		assert.Same(t, &defaultResolvedConfig, c)
		assert.Equal(t, time.Microsecond, c.spin)
		assert.Nil(t, c.logger)
		assert.Nil(t, c.limiter)
		assert.False(t, c.cancelCause)
	})

	t.Run(`zero spin defaults`, func(t *testing.T) {
		c := resolveConfig(&Config{})
		assert.Equal(t, time.Microsecond, c.spin)
	})

	t.Run(`negative spin disables`, func(t *testing.T) {
		c := resolveConfig(&Config{SpinWait: -1})
		assert.Equal(t, time.Duration(-1), c.spin)
	})

	t.Run(`explicit spin preserved`, func(t *testing.T) {
		c := resolveConfig(&Config{SpinWait: 5 * time.Millisecond})
		assert.Equal(t, 5*time.Millisecond, c.spin)
	})

	t.Run(`not retained`, func(t *testing.T) {
		logger, _ := testLogger()
		in := &Config{Logger: logger, CancelCause: true}
		c := resolveConfig(in)
		in.Logger = nil
		in.CancelCause = false
		assert.Same(t, logger, c.logger)
		assert.True(t, c.cancelCause)
	})
}

func TestConfig_sharedAcrossDerivations(t *testing.T) {
	cfg := &Config{CancelCause: true}
	s := New[int](cfg)
	require.True(t, s.Cancel(false))
	_, err := s.Get(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Cancel was called`)
}
