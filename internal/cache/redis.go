package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/sswpa/box-office/internal/model"
)

// key names definition
const (
	recitalListKey = "catalog:recitals"
	recitalSlugKey = "catalog:recital:%s" // '%s' is the recital slug
	ticketTypesKey = "catalog:recital:%s:ticket-types"
)

func makeRecitalSlugKey(slug string) string {
	return fmt.Sprintf(recitalSlugKey, slug)
}

func makeTicketTypesKey(slug string) string {
	return fmt.Sprintf(ticketTypesKey, slug)
}

// RedisCache is a read-through cache for the public catalog: the
// visible recital listing and per-recital purchasable ticket types.
// Order and availability state is never cached; the store stays
// authoritative for anything checkout depends on.
type RedisCache struct {
	Client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(
		&redis.Options{
			Addr:     url,
			Password: "",
			DB:       0,
		},
	)
	return &RedisCache{Client: client, ttl: ttl}, nil
}

func (r *RedisCache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key, data, r.ttl).Err()
}

// get reports (false, nil) on a miss so callers can fall through to the
// store without treating redis.Nil as a failure.
func (r *RedisCache) get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

func (r *RedisCache) GetRecitalList(ctx context.Context) ([]model.Recital, bool, error) {
	var recitals []model.Recital
	hit, err := r.get(ctx, recitalListKey, &recitals)
	return recitals, hit, err
}

func (r *RedisCache) SetRecitalList(ctx context.Context, recitals []model.Recital) error {
	return r.set(ctx, recitalListKey, recitals)
}

// TicketTypeListing caches the recital together with its purchasable
// ticket types so the listing endpoint needs a single lookup.
type TicketTypeListing struct {
	Recital     model.Recital      `json:"recital"`
	TicketTypes []model.TicketType `json:"ticket_types"`
}

func (r *RedisCache) GetTicketTypes(ctx context.Context, slug string) (*TicketTypeListing, bool, error) {
	var listing TicketTypeListing
	hit, err := r.get(ctx, makeTicketTypesKey(slug), &listing)
	if !hit || err != nil {
		return nil, hit, err
	}
	return &listing, true, nil
}

func (r *RedisCache) SetTicketTypes(ctx context.Context, slug string, listing *TicketTypeListing) error {
	return r.set(ctx, makeTicketTypesKey(slug), listing)
}

// InvalidateRecital drops the listing key and the keys of the given
// slug. Called after every admin write that touches the catalog.
func (r *RedisCache) InvalidateRecital(ctx context.Context, slug string) error {
	keys := []string{recitalListKey}
	if slug != "" {
		keys = append(keys, makeRecitalSlugKey(slug), makeTicketTypesKey(slug))
	}
	return r.Client.Del(ctx, keys...).Err()
}
