package alert

import (
	"github.com/sirenwatch/siren-backend/internal/geo"
)

// PlatformRequest is the free-form JSON trigger posted by operator tooling.
type PlatformRequest struct {
	PolygonData  []string  `json:"polygonData"`
	Message      string    `json:"message"`
	SirenControl string    `json:"sirenControl"`
	AlertType    string    `json:"alertType"`
	GapAudio     flexFloat `json:"gapAudio"`
	Language     string    `json:"language"`
	Frequency    flexInt   `json:"frequency"`
}

// Platform normalizes a platform trigger.
func (n *Normalizer) Platform(p PlatformRequest) (Request, error) {
	rings, err := geo.ParseRings(p.PolygonData)
	if err != nil {
		return Request{}, err
	}

	cmd := n.Control(Command{
		Action:    ResolveAction(p.SirenControl, p.Message),
		AlertType: p.AlertType,
		GapAudio:  float64(p.GapAudio),
		Language:  p.Language,
		Frequency: int(p.Frequency),
		Message:   p.Message,
	})

	return Request{Source: "platform", Rings: rings, Command: cmd}, nil
}
