package telephony

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherRedirectsWhileRetriesRemain(t *testing.T) {
	r := NewResponder(3)

	xml, err := r.Gather("abc-123", "Hi Ada, this is Alex.", 1)
	require.NoError(t, err)

	assert.Contains(t, xml, "<Gather")
	assert.Contains(t, xml, `input="speech"`)
	assert.Contains(t, xml, `speechTimeout="auto"`)
	assert.Contains(t, xml, `hints="`+speechHints+`"`)
	assert.Contains(t, xml, `action="/api/voice/ivr?sessionId=abc-123"`)
	assert.Contains(t, xml, "Hi Ada, this is Alex.")
	assert.Contains(t, xml, "<Redirect")
	assert.Contains(t, xml, "retryCount=2")
	assert.NotContains(t, xml, "<Hangup")
}

func TestGatherHangsUpAtRetryLimit(t *testing.T) {
	r := NewResponder(3)

	xml, err := r.Gather("abc", "Still there?", 3)
	require.NoError(t, err)
	assert.NotContains(t, xml, "<Redirect")
	assert.Contains(t, xml, "<Hangup")
	assert.Contains(t, xml, "several attempts")
}

func TestHangup(t *testing.T) {
	xml, err := NewResponder(3).Hangup(SessionNotFoundMessage)
	require.NoError(t, err)
	assert.True(t, strings.Index(xml, "Session not found") < strings.Index(xml, "<Hangup"))
	assert.Contains(t, xml, `voice="Polly.Joanna"`)
}

func TestIVRURL(t *testing.T) {
	assert.Equal(t, "https://example.ngrok.app/api/voice/ivr?sessionId=a+b",
		IVRURL("https://example.ngrok.app", "a b"))
}

func TestNewTwilioDialerValidatesCallerID(t *testing.T) {
	_, err := NewTwilioDialer("AC1", "token", "5551234", "https://example.com")
	assert.ErrorIs(t, err, ErrInvalidNumber)

	_, err = NewTwilioDialer("", "", "+15551234", "https://example.com")
	assert.Error(t, err)

	d, err := NewTwilioDialer("AC1", "token", "+15551234", "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", d.publicHost)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Dial(ctx, "+15550000", "s1")
	assert.ErrorIs(t, err, context.Canceled)
}
