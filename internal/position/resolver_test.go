package position

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/skillbook/internal/geo"
	"github.com/example/skillbook/internal/models"
)

type fakeLocator struct {
	coord geo.Coord
	err   error
	hang  bool
}

func (f *fakeLocator) RequestFix(ctx context.Context, highAccuracy bool) (geo.Coord, error) {
	if f.hang {
		<-ctx.Done()
		return geo.Coord{}, ctx.Err()
	}
	return f.coord, f.err
}

func TestResolveDeviceFix(t *testing.T) {
	r := &Resolver{Locator: &fakeLocator{coord: geo.Coord{Lat: 51.5, Lon: -0.12}}}
	got := r.Resolve(context.Background(), nil)
	if got.Source != models.SourceDevice || got.Coord == nil || got.Coord.Lat != 51.5 {
		t.Fatalf("got %+v", got)
	}
}

func TestResolveTimeoutFallsBackToProfile(t *testing.T) {
	r := &Resolver{Locator: &fakeLocator{hang: true}, FixTimeout: 10 * time.Millisecond}
	profile := &geo.Coord{Lat: 51.5, Lon: -0.12}
	got := r.Resolve(context.Background(), profile)
	if got.Source != models.SourceProfile {
		t.Fatalf("source = %s, want STORED_PROFILE", got.Source)
	}
	if got.Coord.Lat != 51.5 || got.Coord.Lon != -0.12 {
		t.Fatalf("coord = %+v", got.Coord)
	}
}

func TestResolveInvalidFixFallsThrough(t *testing.T) {
	for _, c := range []geo.Coord{{Lat: 0, Lon: 0}, {Lat: math.NaN(), Lon: 1}, {Lat: 1, Lon: math.NaN()}} {
		r := &Resolver{Locator: &fakeLocator{coord: c}}
		got := r.Resolve(context.Background(), &geo.Coord{Lat: 40, Lon: -73.9})
		if got.Source != models.SourceProfile {
			t.Errorf("fix %v: source = %s, want STORED_PROFILE", c, got.Source)
		}
	}
}

func TestResolveSentinelProfileYieldsNone(t *testing.T) {
	r := &Resolver{Locator: &fakeLocator{err: errors.New("denied")}}
	got := r.Resolve(context.Background(), &geo.Coord{})
	if got.Source != models.SourceNone || got.Coord != nil {
		t.Fatalf("got %+v, want none", got)
	}
}

func TestResolveNoLocatorNoProfile(t *testing.T) {
	r := &Resolver{}
	got := r.Resolve(context.Background(), nil)
	if got.Source != models.SourceNone || got.Coord != nil {
		t.Fatalf("got %+v, want none", got)
	}
}

func TestResolveCopiesProfileCoord(t *testing.T) {
	r := &Resolver{Locator: &fakeLocator{err: errors.New("off")}}
	profile := &geo.Coord{Lat: 40, Lon: -73.9}
	got := r.Resolve(context.Background(), profile)
	profile.Lat = 99 // caller keeps mutating its copy
	if got.Coord.Lat != 40 {
		t.Fatalf("resolved position must be immutable, got lat=%f", got.Coord.Lat)
	}
}
