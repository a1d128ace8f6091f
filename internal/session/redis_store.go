package session

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/skillbook/internal/geo"
	"github.com/example/skillbook/internal/models"
	"github.com/example/skillbook/internal/position"
)

// RedisStore implements Store on a Redis hash per session so several BFF
// instances can serve the same discovery session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	ctx    context.Context
}

func NewRedisStore(addr, password string, ttl time.Duration) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{client: c, ttl: ttl, ctx: context.Background()}
}

func (r *RedisStore) Put(sessionID string, pos position.ResolvedPosition) {
	fields := map[string]interface{}{"source": string(pos.Source)}
	if pos.Coord != nil {
		fields["lat"] = strconv.FormatFloat(pos.Coord.Lat, 'f', -1, 64)
		fields["lon"] = strconv.FormatFloat(pos.Coord.Lon, 'f', -1, 64)
	} else {
		fields["lat"] = ""
		fields["lon"] = ""
	}
	key := posKey(sessionID)
	_ = r.client.HSet(r.ctx, key, fields).Err()
	_ = r.client.Expire(r.ctx, key, r.ttl).Err()
}

func (r *RedisStore) Get(sessionID string) (position.ResolvedPosition, bool) {
	m, err := r.client.HGetAll(r.ctx, posKey(sessionID)).Result()
	if err != nil || len(m) == 0 {
		return position.ResolvedPosition{}, false
	}
	pos := position.ResolvedPosition{Source: models.PositionSource(m["source"])}
	if pos.Source == "" {
		pos.Source = models.SourceNone
	}
	if m["lat"] != "" && m["lon"] != "" {
		lat, errLat := strconv.ParseFloat(m["lat"], 64)
		lon, errLon := strconv.ParseFloat(m["lon"], 64)
		if errLat == nil && errLon == nil {
			c := geo.Coord{Lat: lat, Lon: lon}
			if c.Valid() {
				pos.Coord = &c
			}
		}
	}
	return pos, true
}

func posKey(sessionID string) string { return "session:position:" + sessionID }
