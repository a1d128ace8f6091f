package proximity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/skillbook/internal/models"
	"github.com/example/skillbook/internal/observability"
	"github.com/example/skillbook/internal/position"
)

// ErrPositionNotReady is returned when a radius query is attempted without a
// valid resolved coordinate. This is a caller precondition violation, not a
// network failure: the HTTP call is never issued.
var ErrPositionNotReady = errors.New("proximity: position not ready for radius query")

// ErrStaleResponse is returned when a query's response arrives after a newer
// query was issued; its payload has been discarded.
var ErrStaleResponse = errors.New("proximity: response superseded by a newer query")

// Client queries the people directory. Successive Search calls are tagged
// with a monotonically increasing sequence number; only the latest-issued
// query may replace the visible result set, so rapid filter changes can never
// surface a stale list.
type Client struct {
	Endpoint string
	Client   *http.Client

	seq     atomic.Uint64
	mu      sync.Mutex
	applied uint64
	latest  []models.NearbyPerson
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

// directory wire shape: {id, firstname, lastname, photourl, distance}
type personRecord struct {
	ID        string   `json:"id"`
	Firstname string   `json:"firstname"`
	Lastname  string   `json:"lastname"`
	PhotoURL  string   `json:"photourl"`
	Distance  *float64 `json:"distance"`
}

// Search issues a directory query shaped by the filter. BucketAll forces a
// city-only query and ignores the coordinate even when present; any radius
// bucket requires a valid coordinate. Distances come back verbatim from the
// service and are never recomputed locally.
func (c *Client) Search(ctx context.Context, pos position.ResolvedPosition, filter Filter) ([]models.NearbyPerson, error) {
	var reqURL string
	switch {
	case filter.Bucket == BucketAll:
		reqURL = fmt.Sprintf("%s/people/within/%s", c.Endpoint, url.PathEscape(filter.CityToken))
	case pos.Coord == nil || !pos.Coord.Valid():
		return nil, ErrPositionNotReady
	default:
		// city narrows alongside radius; neither supersedes the other
		reqURL = fmt.Sprintf("%s/people/nearby/%.6f/%.6f/%d?state=%s",
			c.Endpoint, pos.Coord.Lat, pos.Coord.Lon, filter.Bucket.Meters(), url.QueryEscape(filter.CityToken))
	}

	seq := c.seq.Add(1)
	observability.SearchesTotal.Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("proximity query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proximity query: unexpected status %d", resp.StatusCode)
	}

	var records []personRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("proximity query: decode: %w", err)
	}

	people := make([]models.NearbyPerson, 0, len(records))
	for _, r := range records {
		name := r.Firstname
		if r.Lastname != "" {
			name += " " + r.Lastname
		}
		people = append(people, models.NearbyPerson{
			ID:          r.ID,
			DisplayName: name,
			PhotoURL:    r.PhotoURL,
			DistanceKm:  r.Distance,
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq.Load() || seq <= c.applied {
		observability.StaleResponsesDropped.Inc()
		return nil, ErrStaleResponse
	}
	c.applied = seq
	c.latest = people
	return people, nil
}

// Latest returns the most recently applied result set. The slice is replaced
// atomically on each applied query; partial or merged states are never visible.
func (c *Client) Latest() []models.NearbyPerson {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// httpClient never writes c.Client: a zero-value Client is usable from
// multiple goroutines without NewClient.
func (c *Client) httpClient() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

// FeaturedSubset picks a uniform random n-of-N via a full shuffle. It is a
// distinct operation from the exhaustive paginated list and is not
// reproducible across calls.
func FeaturedSubset(people []models.NearbyPerson, n int) []models.NearbyPerson {
	cp := make([]models.NearbyPerson, len(people))
	copy(cp, people)
	rand.Shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	if n > len(cp) {
		n = len(cp)
	}
	return cp[:n]
}
