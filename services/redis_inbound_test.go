package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInboundMessage(t *testing.T) {
	msg, err := DecodeInboundMessage(`{"sender":" Sam ","text":"📍 here","timestamp":"2025-03-10T09:40:00Z","appointment_id":"a1","slack_user_id":"U123"}`)
	require.NoError(t, err)
	assert.Equal(t, "Sam", msg.Sender)
	assert.Equal(t, "📍 here", msg.Text)
	assert.Equal(t, time.Date(2025, time.March, 10, 9, 40, 0, 0, time.UTC), msg.Timestamp.UTC())
	assert.Equal(t, "a1", msg.AppointmentID)
	assert.Equal(t, "U123", msg.SlackUserID)

	msg, err = DecodeInboundMessage(`{"sender":"Sam","text":"done"}`)
	require.NoError(t, err)
	assert.True(t, msg.Timestamp.IsZero())

	invalid := []string{
		`not json`,
		`{"text":"here"}`,
		`{"sender":"   ","text":"here"}`,
		`{"sender":"Sam","text":"  "}`,
	}
	for _, payload := range invalid {
		_, err := DecodeInboundMessage(payload)
		assert.Error(t, err, payload)
	}
}

func TestNewRedisInbound(t *testing.T) {
	inbound, err := NewRedisInbound("redis://localhost:6379/2", "fieldwatch:checkins")
	require.NoError(t, err)
	defer inbound.Close()

	assert.Equal(t, "fieldwatch:checkins", inbound.Channel)
	assert.Equal(t, 2, inbound.Redis.Options().DB)

	_, err = NewRedisInbound("://bad", "x")
	assert.Error(t, err)
}
