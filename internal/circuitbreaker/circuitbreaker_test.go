package circuitbreaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/handshake-client/internal/apperror"
	"github.com/fd1az/handshake-client/internal/circuitbreaker"
)

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	var transitions []gobreaker.State

	cfg := circuitbreaker.DefaultConfig("node-rest")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}
	cb := circuitbreaker.New[int](cfg)

	boom := errors.New("connection refused")
	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	called := false
	_, err := cb.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	assert.False(t, called)
	assert.Equal(t, apperror.CodeCircuitOpen, apperror.GetCode(err))
}

func TestCircuitBreaker_IsSuccessfulExcludesErrors(t *testing.T) {
	expected := errors.New("404 Not Found")

	cfg := circuitbreaker.DefaultConfig("node-rest")
	cfg.ConsecutiveFailures = 1
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, expected) }
	cb := circuitbreaker.New[string](cfg)

	_, err := cb.Execute(func() (string, error) { return "", expected })
	require.ErrorIs(t, err, expected)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_PassesResult(t *testing.T) {
	cb := circuitbreaker.New[string](circuitbreaker.DefaultConfig("node-rpc"))

	out, err := cb.Execute(func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "node-rpc", cb.Name())
}
