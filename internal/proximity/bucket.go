package proximity

import "fmt"

// Bucket is one entry in the fixed radius ladder, in meters. The ladder is
// the single source of truth for both query radii and display labels.
type Bucket int

const (
	// BucketAll bypasses radius filtering entirely: queries become city-only
	// and never require a resolved coordinate.
	BucketAll Bucket = -1

	Bucket0To5Mi   Bucket = 8000
	Bucket6To10Mi  Bucket = 16000
	Bucket11To20Mi Bucket = 32000
	BucketOver20Mi Bucket = 64000
)

// Ladder returns the radius buckets in ascending order, excluding BucketAll.
func Ladder() []Bucket {
	return []Bucket{Bucket0To5Mi, Bucket6To10Mi, Bucket11To20Mi, BucketOver20Mi}
}

func (b Bucket) Meters() int { return int(b) }

func (b Bucket) Label() string {
	switch b {
	case BucketAll:
		return "All distances"
	case Bucket0To5Mi:
		return "0–5 mi"
	case Bucket6To10Mi:
		return "6–10 mi"
	case Bucket11To20Mi:
		return "11–20 mi"
	case BucketOver20Mi:
		return "20+ mi"
	}
	return fmt.Sprintf("%dm", int(b))
}

// ParseBucket maps the wire value ("ALL" or a meter count) onto the ladder.
func ParseBucket(s string) (Bucket, error) {
	if s == "" || s == "ALL" {
		return BucketAll, nil
	}
	var m int
	if _, err := fmt.Sscanf(s, "%d", &m); err != nil {
		return 0, fmt.Errorf("invalid radius bucket %q", s)
	}
	for _, b := range Ladder() {
		if b.Meters() == m {
			return b, nil
		}
	}
	return 0, fmt.Errorf("radius %dm is not a known bucket", m)
}

// Filter is the user-chosen narrowing for a proximity query.
type Filter struct {
	CityToken string `json:"city_token"`
	Bucket    Bucket `json:"radius_bucket_meters"`
}
