package alert

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirenwatch/siren-backend/internal/geo"
)

func decodePlatform(t *testing.T, body string) PlatformRequest {
	t.Helper()
	var p PlatformRequest
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unmarshal platform request: %v", err)
	}
	return p
}

func TestResolveAction(t *testing.T) {
	tests := []struct {
		control, message, want string
	}{
		{"on", "", "on"},
		{"on", "Evacuate now", "Evacuate now"},
		{"ON", "", "off"},
		{" on ", "", "off"},
		{"off", "Evacuate now", "off"},
		{"", "", "off"},
		{"toggle", "x", "off"},
	}
	for _, tt := range tests {
		if got := ResolveAction(tt.control, tt.message); got != tt.want {
			t.Errorf("ResolveAction(%q, %q) = %q, want %q", tt.control, tt.message, got, tt.want)
		}
	}
}

func TestPlatform_EmptyMessageFallsBackToOn(t *testing.T) {
	p := decodePlatform(t, `{
		"polygonData": ["10,10 10,20 20,20 20,10"],
		"message": "",
		"sirenControl": "on",
		"alertType": "warning"
	}`)

	req, err := NewNormalizer("hi").Platform(p)
	if err != nil {
		t.Fatalf("Platform: %v", err)
	}
	c := req.Command
	if c.Action != "on" || c.AlertType != "warning" {
		t.Errorf("command = %+v", c)
	}
	if c.GapAudio != 0 || c.Language != "hi" || c.Frequency != 1 {
		t.Errorf("defaults not applied: %+v", c)
	}
	if len(req.Rings) != 1 {
		t.Fatalf("rings = %d", len(req.Rings))
	}
	if !req.Rings[0].Contains(geo.Point{Lat: 15, Lng: 15}) {
		t.Error("(15,15) should be inside the request ring")
	}
	if req.Rings[0].Contains(geo.Point{Lat: 30, Lng: 30}) {
		t.Error("(30,30) should be outside the request ring")
	}
}

func TestPlatform_FieldsAndStringNumbers(t *testing.T) {
	p := decodePlatform(t, `{
		"polygonData": ["0,0 0,5 5,5", "10,10 10,20 20,20"],
		"message": "Cyclone warning",
		"sirenControl": "on",
		"alertType": "navy",
		"gapAudio": "2.5",
		"language": "en-IN",
		"frequency": 4
	}`)

	req, err := NewNormalizer("hi").Platform(p)
	if err != nil {
		t.Fatalf("Platform: %v", err)
	}
	c := req.Command
	if c.Action != "Cyclone warning" || c.Message != "Cyclone warning" {
		t.Errorf("action/message = %q/%q", c.Action, c.Message)
	}
	if c.GapAudio != 2.5 || c.Frequency != 4 || c.Language != "en-IN" {
		t.Errorf("command = %+v", c)
	}
	if len(req.Rings) != 2 || req.Source != "platform" {
		t.Errorf("request = %+v", req)
	}
}

func TestPlatform_MalformedGeometry(t *testing.T) {
	p := decodePlatform(t, `{"polygonData": ["10,10 10,20 20,20", "1,1 2;2 3,3"], "sirenControl": "on"}`)
	_, err := NewNormalizer("hi").Platform(p)
	if !errors.Is(err, geo.ErrMalformedGeometry) {
		t.Fatalf("err = %v, want ErrMalformedGeometry", err)
	}
}

func TestPlatform_BadNumber(t *testing.T) {
	var p PlatformRequest
	err := json.Unmarshal([]byte(`{"polygonData": [], "gapAudio": "soon"}`), &p)
	if !errors.Is(err, ErrMalformedAlert) {
		t.Fatalf("err = %v, want ErrMalformedAlert", err)
	}
	err = json.Unmarshal([]byte(`{"polygonData": [], "frequency": 1.5}`), &p)
	if !errors.Is(err, ErrMalformedAlert) {
		t.Fatalf("fractional frequency: err = %v", err)
	}
}

const capTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<alert xmlns="urn:oasis:names:tc:emergency:cap:1.2">
  <identifier>NDMA-2024-001</identifier>
  <sender>sachet@ndma.gov.in</sender>
  <sent>2024-05-01T10:00:00+05:30</sent>
  <status>Actual</status>
  <msgType>Alert</msgType>
  <scope>Public</scope>
  <info>
    %s
    <category>Met</category>
    <event>Cyclone</event>
    <urgency>Immediate</urgency>
    <severity>Extreme</severity>
    <certainty>Observed</certainty>
    %s
    <area>
      <areaDesc>Coastal block</areaDesc>
      <polygon>10,10 10,20 20,20 20,10 10,10</polygon>
    </area>
  </info>
</alert>`

func capDoc(info, params string) string {
	return strings.Replace(strings.Replace(capTemplate, "%s", info, 1), "%s", params, 1)
}

func TestCAP_DefaultsRetained(t *testing.T) {
	doc := capDoc("", `<parameter><valueName>frequency</valueName><value>3</value></parameter>`)
	a, err := ParseCAP(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseCAP: %v", err)
	}

	req, err := NewNormalizer("hi").CAP(a)
	if err != nil {
		t.Fatalf("CAP: %v", err)
	}
	c := req.Command
	if c.Frequency != 3 {
		t.Errorf("frequency = %d, want 3", c.Frequency)
	}
	if c.Language != "hi" {
		t.Errorf("language = %q, want hi", c.Language)
	}
	if c.Message != "" {
		t.Errorf("message = %q, want empty", c.Message)
	}
	if c.Action != "off" {
		t.Errorf("action = %q, want off (no sirenControl)", c.Action)
	}
	if c.GapAudio != 0 {
		t.Errorf("gapAudio = %v", c.GapAudio)
	}
	if len(req.Rings) != 1 || len(req.Rings[0]) != 4 {
		t.Errorf("rings = %v", req.Rings)
	}
}

func TestCAP_HeadlineAndLanguageOverride(t *testing.T) {
	doc := capDoc(
		`<language>en-US</language><headline>Tsunami warning, move inland</headline>`,
		`<parameter><valueName>message</valueName><value>ignored by headline</value></parameter>
		<parameter><valueName>sirenControl</valueName><value>on</value></parameter>
		<parameter><valueName>alertType</valueName><value>nuclear</value></parameter>
		<parameter><valueName>gapAudio</valueName><value>5</value></parameter>
		<parameter><valueName>colour</valueName><value>red</value></parameter>`,
	)
	a, err := ParseCAP(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseCAP: %v", err)
	}
	req, err := NewNormalizer("hi").CAP(a)
	if err != nil {
		t.Fatalf("CAP: %v", err)
	}
	c := req.Command
	if c.Action != "Tsunami warning, move inland" {
		t.Errorf("action = %q", c.Action)
	}
	if c.Language != "en-US" || c.AlertType != "nuclear" || c.GapAudio != 5 || c.Frequency != 1 {
		t.Errorf("command = %+v", c)
	}
}

func TestCAP_Malformed(t *testing.T) {
	n := NewNormalizer("hi")

	if _, err := ParseCAP(strings.NewReader("<alert><info>")); !errors.Is(err, ErrMalformedAlert) {
		t.Errorf("truncated xml: err = %v", err)
	}
	if _, err := n.CAP(&CAPAlert{}); !errors.Is(err, ErrMalformedAlert) {
		t.Errorf("no info: err = %v", err)
	}
	if _, err := n.CAP(&CAPAlert{Info: []CAPInfo{{}}}); !errors.Is(err, ErrMalformedAlert) {
		t.Errorf("no area: err = %v", err)
	}

	bad := &CAPAlert{Info: []CAPInfo{{Area: []CAPArea{{Polygon: []string{"10,10 x,20 20,20"}}}}}}
	if _, err := n.CAP(bad); !errors.Is(err, geo.ErrMalformedGeometry) {
		t.Errorf("bad polygon: err = %v", err)
	}

	badFreq := &CAPAlert{Info: []CAPInfo{{
		Parameter: []CAPParameter{{ValueName: "frequency", Value: "often"}},
		Area:      []CAPArea{{Polygon: []string{"10,10 10,20 20,20"}}},
	}}}
	if _, err := n.CAP(badFreq); !errors.Is(err, ErrMalformedAlert) {
		t.Errorf("bad frequency: err = %v", err)
	}
}

func TestControlDefaults(t *testing.T) {
	n := NewNormalizer("")
	if n.DefaultLanguage() != DefaultLanguage {
		t.Fatalf("default language = %q", n.DefaultLanguage())
	}
	c := n.Control(Command{SirenID: "S1", Action: "on", GapAudio: -3})
	if c.Language != "hi" || c.Frequency != 1 || c.GapAudio != 0 {
		t.Errorf("Control = %+v", c)
	}

	en := NewNormalizer("en").Control(Command{})
	if en.Language != "en" {
		t.Errorf("configured default not applied: %q", en.Language)
	}
	if kept := n.Control(Command{Language: "mr-IN"}); kept.Language != "mr-IN" {
		t.Errorf("language rewritten to %q", kept.Language)
	}
}

func TestCommandFor(t *testing.T) {
	tpl := Command{SirenIDs: []string{"a", "b"}, Action: "on"}
	c := tpl.For("S9")
	if c.SirenID != "S9" || c.SirenIDs != nil || c.Action != "on" {
		t.Errorf("For = %+v", c)
	}
	if len(tpl.SirenIDs) != 2 {
		t.Error("template mutated")
	}
}
