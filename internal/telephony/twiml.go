package telephony

import (
	"fmt"
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

const (
	speechHints  = "yes, no, remote, hybrid, onsite, experience, skills, CTC, notice period"
	defaultVoice = "Polly.Joanna"

	// OpeningUtterance is fed to the dialogue when a call connects
	OpeningUtterance = "Start call"

	// NoResponseMessage ends a call after repeated silence
	NoResponseMessage = "I didn't hear a response after several attempts. We'll try calling you again later. Goodbye."

	// SessionNotFoundMessage ends a call that has no conversation
	SessionNotFoundMessage = "Session not found. Goodbye."

	// ErrorMessage ends a call after an internal failure
	ErrorMessage = "I apologize, but we're experiencing technical difficulties. We'll call you back shortly. Goodbye."
)

// Responder renders TwiML for the IVR webhook
type Responder struct {
	MaxRetries int
	Voice      string
}

// NewResponder creates a responder allowing maxRetries silent redirects
func NewResponder(maxRetries int) *Responder {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Responder{MaxRetries: maxRetries, Voice: defaultVoice}
}

// Hangup says message and ends the call
func (r *Responder) Hangup(message string) (string, error) {
	return twiml.Voice([]twiml.Element{
		r.say(message),
		&twiml.VoiceHangup{},
	})
}

// Gather says message while listening for speech posted back to the
// webhook. Without input the call is redirected to the webhook with an
// incremented retry count until the retry budget is spent.
func (r *Responder) Gather(sessionID, message string, retryCount int) (string, error) {
	action := IVRURL("", sessionID)
	gather := &twiml.VoiceGather{
		Input:         "speech",
		Action:        action,
		Method:        "POST",
		Timeout:       "5",
		SpeechTimeout: "auto",
		Hints:         speechHints,
		InnerElements: []twiml.Element{r.say(message)},
	}

	elements := []twiml.Element{gather}
	if retryCount < r.MaxRetries {
		elements = append(elements, &twiml.VoiceRedirect{
			Url:    fmt.Sprintf("%s&retryCount=%s", action, strconv.Itoa(retryCount+1)),
			Method: "GET",
		})
	} else {
		elements = append(elements, r.say(NoResponseMessage), &twiml.VoiceHangup{})
	}
	return twiml.Voice(elements)
}

func (r *Responder) say(message string) *twiml.VoiceSay {
	return &twiml.VoiceSay{Message: message, Voice: r.Voice}
}
