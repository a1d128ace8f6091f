package geo

import (
	"encoding/json"
	"math"
	"strconv"
)

// Coord is a WGS84 point. The zero value doubles as the "unset" sentinel
// used by upstream profile stores, so (0,0) is deliberately not valid.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate can be used in a proximity query:
// both components finite and not simultaneously exactly zero.
func (c Coord) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) {
		return false
	}
	if math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return false
	}
	return !(c.Lat == 0 && c.Lon == 0)
}

// ParseProfileCoordinate normalizes the profile store's saved coordinate into
// a Coord. Two shapes are in the wild: a flat {lat, lon} object and a nested
// geopoint {geopoint: {latitude, longitude}} whose numeric fields may arrive
// wrapped (string-encoded or {"value": n}). All shape handling lives here so
// callers only ever see a Coord and its validity.
func ParseProfileCoordinate(raw json.RawMessage) (Coord, bool) {
	if len(raw) == 0 {
		return Coord{}, false
	}

	var flat struct {
		Lat *wrappedFloat `json:"lat"`
		Lon *wrappedFloat `json:"lon"`
	}
	if err := json.Unmarshal(raw, &flat); err == nil && flat.Lat != nil && flat.Lon != nil {
		c := Coord{Lat: flat.Lat.v, Lon: flat.Lon.v}
		if c.Valid() {
			return c, true
		}
	}

	var nested struct {
		Geopoint *struct {
			Latitude  *wrappedFloat `json:"latitude"`
			Longitude *wrappedFloat `json:"longitude"`
		} `json:"geopoint"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Geopoint != nil &&
		nested.Geopoint.Latitude != nil && nested.Geopoint.Longitude != nil {
		c := Coord{Lat: nested.Geopoint.Latitude.v, Lon: nested.Geopoint.Longitude.v}
		if c.Valid() {
			return c, true
		}
	}

	return Coord{}, false
}

// wrappedFloat accepts a bare number, a string-encoded number, or a
// {"value": n} wrapper object.
type wrappedFloat struct{ v float64 }

func (w *wrappedFloat) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		w.v = f
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		w.v = f
		return nil
	}
	var obj struct {
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	w.v = obj.Value
	return nil
}
