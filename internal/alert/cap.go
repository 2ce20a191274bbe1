package alert

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirenwatch/siren-backend/internal/geo"
)

// CAPAlert is the subset of a Common Alerting Protocol 1.2 document the relay
// reads. Element names match regardless of the CAP namespace.
type CAPAlert struct {
	XMLName    xml.Name  `xml:"alert"`
	Identifier string    `xml:"identifier"`
	Sender     string    `xml:"sender"`
	Sent       string    `xml:"sent"`
	Status     string    `xml:"status"`
	MsgType    string    `xml:"msgType"`
	Scope      string    `xml:"scope"`
	Info       []CAPInfo `xml:"info"`
}

type CAPInfo struct {
	Language  string         `xml:"language"`
	Category  []string       `xml:"category"`
	Event     string         `xml:"event"`
	Urgency   string         `xml:"urgency"`
	Severity  string         `xml:"severity"`
	Certainty string         `xml:"certainty"`
	Headline  string         `xml:"headline"`
	Parameter []CAPParameter `xml:"parameter"`
	Area      []CAPArea      `xml:"area"`
}

type CAPParameter struct {
	ValueName string `xml:"valueName"`
	Value     string `xml:"value"`
}

type CAPArea struct {
	AreaDesc string   `xml:"areaDesc"`
	Polygon  []string `xml:"polygon"`
}

// ParseCAP decodes a CAP XML document.
func ParseCAP(r io.Reader) (*CAPAlert, error) {
	var a CAPAlert
	if err := xml.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAlert, err)
	}
	return &a, nil
}

// CAP normalizes a CAP alert. Only the first info block and its first area
// are used.
func (n *Normalizer) CAP(a *CAPAlert) (Request, error) {
	if a == nil || len(a.Info) == 0 {
		return Request{}, fmt.Errorf("%w: alert has no info block", ErrMalformedAlert)
	}
	info := a.Info[0]
	if len(info.Area) == 0 {
		return Request{}, fmt.Errorf("%w: info has no area", ErrMalformedAlert)
	}

	rings, err := geo.ParseRings(info.Area[0].Polygon)
	if err != nil {
		return Request{}, err
	}

	var (
		message      string
		sirenControl string
		alertType    string
		gapAudio     float64
		frequency    = DefaultFrequency
		lang         = n.defaultLanguage
	)
	for _, p := range info.Parameter {
		value := strings.TrimSpace(p.Value)
		switch strings.TrimSpace(p.ValueName) {
		case "message":
			message = value
		case "sirenControl":
			sirenControl = value
		case "alertType":
			alertType = value
		case "gapAudio":
			if gapAudio, err = strconv.ParseFloat(value, 64); err != nil {
				return Request{}, fmt.Errorf("%w: gapAudio %q", ErrMalformedAlert, value)
			}
		case "frequency":
			if frequency, err = strconv.Atoi(value); err != nil {
				return Request{}, fmt.Errorf("%w: frequency %q", ErrMalformedAlert, value)
			}
		}
	}

	if l := strings.TrimSpace(info.Language); l != "" {
		lang = l
	}
	if h := strings.TrimSpace(info.Headline); h != "" {
		message = h
	}

	cmd := n.Control(Command{
		Action:    ResolveAction(sirenControl, message),
		AlertType: alertType,
		GapAudio:  gapAudio,
		Language:  lang,
		Frequency: frequency,
		Message:   message,
	})

	return Request{Source: "cap", Rings: rings, Command: cmd}, nil
}
