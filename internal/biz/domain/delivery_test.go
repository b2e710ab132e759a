package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	body := []byte(`{"type":"event_callback","event_id":"Ev1","event":{"type":"message","ts":"1.2","channel":"D1","user":"U1","text":"hi","channel_type":"im"}}`)

	env, err := DecodeEnvelope(body)

	require.NoError(t, err)
	assert.Equal(t, EnvelopeEventCallback, env.Type)
	assert.Equal(t, "Ev1:1.2", env.Key().String())
	assert.Equal(t, ChannelTypeIM, env.Event.ChannelType)
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{not json`))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeliveryKey_IsZero(t *testing.T) {
	assert.True(t, DeliveryKey{EventTS: "1.2"}.IsZero())
	assert.False(t, DeliveryKey{EventID: "Ev1"}.IsZero())
}

func TestParseSlackTS(t *testing.T) {
	fallback := time.Unix(42, 0)

	got := ParseSlackTS("1700000000.000100", fallback)
	assert.Equal(t, int64(1700000000), got.Unix())
	assert.Equal(t, 100000, got.Nanosecond())

	assert.Equal(t, fallback, ParseSlackTS("", fallback))
	assert.Equal(t, fallback, ParseSlackTS("abc", fallback))
	assert.Equal(t, int64(1700000000), ParseSlackTS("1700000000", fallback).Unix())
}

func TestShouldRetract(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"authentication", fmt.Errorf("verify: %w", ErrAuthentication), false},
		{"configuration", ErrConfiguration, false},
		{"validation", fmt.Errorf("%w: empty", ErrValidation), false},
		{"dependency", NewDependencyError("completion", errors.New("timeout")), true},
		{"unclassified", errors.New("boom"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRetract(tt.err))
		})
	}
}

func TestDependencyError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewDependencyError("warehouse", cause)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "warehouse", depErr.Dependency)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, NewDependencyError("warehouse", nil))
}
