package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrInvalidNumber is returned when the caller id is missing or not E.164
var ErrInvalidNumber = errors.New("invalid or missing caller phone number")

// Dialer places outbound screening calls
type Dialer interface {
	Dial(ctx context.Context, to, sessionID string) (callSid string, err error)
}

// TwilioDialer places calls through the Twilio REST API. The call fetches
// its first TwiML from the IVR webhook and reports status changes back.
type TwilioDialer struct {
	client     *twilio.RestClient
	from       string
	publicHost string
}

// NewTwilioDialer creates a dialer for an account and caller id
func NewTwilioDialer(accountSID, authToken, from, publicHost string) (*TwilioDialer, error) {
	if !strings.HasPrefix(from, "+") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, from)
	}
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio credentials not configured")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioDialer{
		client:     client,
		from:       from,
		publicHost: strings.TrimRight(publicHost, "/"),
	}, nil
}

// Dial starts a call to the candidate's phone number for a session
func (d *TwilioDialer) Dial(ctx context.Context, to, sessionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(d.from)
	params.SetUrl(IVRURL(d.publicHost, sessionID))
	params.SetMethod("GET")
	params.SetStatusCallback(d.publicHost + StatusPath)
	params.SetStatusCallbackMethod("POST")

	call, err := d.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("create call: %w", err)
	}
	if call.Sid == nil {
		return "", fmt.Errorf("create call: response has no sid")
	}
	return *call.Sid, nil
}

const (
	// IVRPath is the webhook that drives the conversation
	IVRPath = "/api/voice/ivr"

	// StatusPath receives call status callbacks
	StatusPath = "/api/voice/call-status"
)

// IVRURL returns the conversation webhook for a session under host
func IVRURL(host, sessionID string) string {
	return host + IVRPath + "?sessionId=" + url.QueryEscape(sessionID)
}
