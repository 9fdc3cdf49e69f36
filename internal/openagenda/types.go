package openagenda

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/reconciler"
)

// eventsPage is the body of GET /agendas/{uid}/events.json.
type eventsPage struct {
	Events []event `json:"events"`
	Total  int     `json:"total"`
}

type event struct {
	UID      flexString                 `json:"uid"`
	Slug     string                     `json:"slug"`
	Location *eventLocation             `json:"location"`
	Custom   map[string]json.RawMessage `json:"custom"`
}

type eventLocation struct {
	Name      string    `json:"name"`
	Latitude  flexFloat `json:"latitude"`
	Longitude flexFloat `json:"longitude"`
}

// toEvent converts a wire event. idField names the custom field holding the
// canonical id.
func (e event) toEvent(collectionID, idField string) reconciler.Event {
	ev := reconciler.Event{ID: string(e.UID), CollectionID: collectionID}
	if e.Location != nil {
		ev.Location.Name = e.Location.Name
		ev.Location.Latitude = e.Location.Latitude.ptr()
		ev.Location.Longitude = e.Location.Longitude.ptr()
	}
	ev.Location.DeclaredID = declaredID(e.Custom[idField])
	return ev
}

// declaredID accepts a string or a number; anything else counts as absent.
func declaredID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat decodes a JSON number or numeric string. Null, empty and
// unparsable values leave it unset.
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = flexFloat{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat{value: n, set: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		*f = flexFloat{value: n, set: true}
	}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.set {
		return nil
	}
	return locations.Float(f.value)
}
