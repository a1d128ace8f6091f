package position

import (
	"context"
	"time"

	"github.com/example/skillbook/internal/geo"
	"github.com/example/skillbook/internal/models"
)

// ResolvedPosition is the outcome of one resolution attempt. It is immutable:
// a refresh produces a new value rather than mutating the old one.
type ResolvedPosition struct {
	Coord  *geo.Coord            `json:"coord,omitempty"`
	Source models.PositionSource `json:"source"`
}

// DeviceLocator requests a live location fix from the device. HighAccuracy is
// a hint; implementations decide what it maps to. Cancellation of ctx (which
// carries the resolver's timeout) must abort the fix.
type DeviceLocator interface {
	RequestFix(ctx context.Context, highAccuracy bool) (geo.Coord, error)
}

// Resolver walks the fallback chain: live device fix, then the stored profile
// coordinate, then none. Tier failures are expected and swallowed; the only
// observable output is the final ResolvedPosition.
type Resolver struct {
	Locator    DeviceLocator
	FixTimeout time.Duration // defaults to 7s
}

const defaultFixTimeout = 7 * time.Second

func (r *Resolver) Resolve(ctx context.Context, profileFallback *geo.Coord) ResolvedPosition {
	if r.Locator != nil {
		timeout := r.FixTimeout
		if timeout <= 0 {
			timeout = defaultFixTimeout
		}
		fixCtx, cancel := context.WithTimeout(ctx, timeout)
		c, err := r.Locator.RequestFix(fixCtx, true)
		cancel()
		if err == nil && c.Valid() {
			return ResolvedPosition{Coord: &c, Source: models.SourceDevice}
		}
	}

	if profileFallback != nil && profileFallback.Valid() {
		c := *profileFallback
		return ResolvedPosition{Coord: &c, Source: models.SourceProfile}
	}

	return ResolvedPosition{Source: models.SourceNone}
}
