// Package alert turns the two inbound trigger shapes (platform JSON and CAP
// XML) into a single geofenced broadcast request.
package alert

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirenwatch/siren-backend/internal/geo"
)

// ErrMalformedAlert covers structurally invalid alert payloads other than bad
// polygon coordinates, which report geo.ErrMalformedGeometry.
var ErrMalformedAlert = errors.New("malformed alert")

const (
	ActionOn  = "on"
	ActionOff = "off"

	DefaultLanguage  = "hi"
	DefaultFrequency = 1
)

// Command is the broadcast command delivered to sirens. Action is either a
// control verb (on/off) or a literal message to speak.
type Command struct {
	SirenID   string   `json:"sirenId,omitempty"`
	SirenIDs  []string `json:"sirenIds,omitempty"`
	Action    string   `json:"action"`
	AlertType string   `json:"alertType"`
	GapAudio  float64  `json:"gapAudio"`
	Language  string   `json:"language"`
	Frequency int      `json:"frequency,omitempty"`
	Message   string   `json:"message,omitempty"`
	ConnType  string   `json:"connType,omitempty"`
}

// For returns a copy of the command addressed to a single siren.
func (c Command) For(sirenID string) Command {
	c.SirenID = sirenID
	c.SirenIDs = nil
	return c
}

// Request is a normalized geofence trigger: every siren inside any ring gets
// Command addressed to it.
type Request struct {
	Source  string
	Rings   []geo.Ring
	Command Command
}

// Normalizer applies defaults shared by every entry point.
type Normalizer struct {
	defaultLanguage string
}

func NewNormalizer(defaultLanguage string) *Normalizer {
	if defaultLanguage == "" {
		defaultLanguage = DefaultLanguage
	}
	return &Normalizer{defaultLanguage: defaultLanguage}
}

// DefaultLanguage is the language applied when a command carries none.
func (n *Normalizer) DefaultLanguage() string {
	return n.defaultLanguage
}

// Control fills defaults on a command coming straight from a socket event.
func (n *Normalizer) Control(c Command) Command {
	if c.Language == "" {
		c.Language = n.defaultLanguage
	}
	if c.Frequency <= 0 {
		c.Frequency = DefaultFrequency
	}
	if c.GapAudio < 0 {
		c.GapAudio = 0
	}
	return c
}

// ResolveAction maps a sirenControl verb and optional message to the action
// sent to sirens: exactly "on" plays the message when there is one, anything
// else is "off".
func ResolveAction(sirenControl, message string) string {
	if sirenControl == ActionOn {
		if message != "" {
			return message
		}
		return ActionOn
	}
	return ActionOff
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", ErrMalformedAlert, s)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexInt accepts a JSON integer or an integer string.
type flexInt int

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	if float64(f) != float64(int(f)) {
		return fmt.Errorf("%w: %v is not an integer", ErrMalformedAlert, float64(f))
	}
	*i = flexInt(int(f))
	return nil
}
