package session

import (
	"testing"

	"github.com/example/skillbook/internal/geo"
	"github.com/example/skillbook/internal/models"
	"github.com/example/skillbook/internal/position"
)

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Get("s1"); ok {
		t.Fatal("empty store must miss")
	}
	c := geo.Coord{Lat: 51.5, Lon: -0.12}
	m.Put("s1", position.ResolvedPosition{Coord: &c, Source: models.SourceDevice})
	got, ok := m.Get("s1")
	if !ok || got.Source != models.SourceDevice || got.Coord.Lat != 51.5 {
		t.Fatalf("got %+v ok=%v", got, ok)
	}
}

func TestMemoryRefreshReplaces(t *testing.T) {
	m := NewMemory()
	c := geo.Coord{Lat: 1, Lon: 1}
	m.Put("s1", position.ResolvedPosition{Coord: &c, Source: models.SourceDevice})
	m.Put("s1", position.ResolvedPosition{Source: models.SourceNone})
	got, _ := m.Get("s1")
	if got.Source != models.SourceNone || got.Coord != nil {
		t.Fatalf("refresh must replace the whole value, got %+v", got)
	}
}
