// Package rediscache provides a read-through Redis cache for folder display
// rows. The catalog is small and changes rarely, so short TTLs keep the hot
// onboarding-preview path off the database.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/promptdock/internal/folders"
)

// keyPrefix namespaces cached folder rows.
const keyPrefix = "promptdock:folder:"

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// FolderSource is the uncached catalog the cache falls back to.
type FolderSource interface {
	GetFolderDisplayFields(ctx context.Context, ids []int64) ([]folders.Folder, error)
}

// cachedFolder is the wire form of a cached row.
type cachedFolder struct {
	ID          int64             `json:"id"`
	UserID      string            `json:"user_id,omitempty"`
	CompanyID   string            `json:"company_id,omitempty"`
	ParentID    int64             `json:"parent_id,omitempty"`
	Priority    int               `json:"priority,omitempty"`
	TitlePlain  string            `json:"title,omitempty"`
	TitleMap    map[string]string `json:"title_i18n,omitempty"`
	DescPlain   string            `json:"description,omitempty"`
	DescMap     map[string]string `json:"description_i18n,omitempty"`
}

// Catalog wraps a FolderSource with per-folder Redis caching. A nil redis
// client turns the cache into a pass-through.
type Catalog struct {
	src   FolderSource
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewCatalog creates a caching catalog over src.
func NewCatalog(src FolderSource, rdb *redis.Client, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{src: src, rdb: rdb, ttl: ttl}
}

// GetFolderDisplayFields returns display rows for ids, serving cached rows
// where possible and fetching the rest from the source in one batch.
// Redis failures degrade to the source; they never fail the request.
func (c *Catalog) GetFolderDisplayFields(ctx context.Context, ids []int64) ([]folders.Folder, error) {
	if c.rdb == nil || len(ids) == 0 {
		return c.src.GetFolderDisplayFields(ctx, ids)
	}

	byID := make(map[int64]folders.Folder, len(ids))
	var missing []int64

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + strconv.FormatInt(id, 10)
	}
	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		log.Warn().Err(err).Msg("Folder cache read failed, falling back to database")
		return c.src.GetFolderDisplayFields(ctx, ids)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok || raw == "" {
			missing = append(missing, ids[i])
			continue
		}
		var cf cachedFolder
		if err := json.Unmarshal([]byte(raw), &cf); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		byID[cf.ID] = fromCached(cf)
	}

	if len(missing) > 0 {
		fetched, err := c.fetchAndFill(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, f := range fetched {
			byID[f.ID] = f
		}
	}

	out := make([]folders.Folder, 0, len(byID))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// fetchAndFill loads missing rows from the source and writes them back to
// the cache. Concurrent requests for the same missing set share one fetch.
func (c *Catalog) fetchAndFill(ctx context.Context, missing []int64) ([]folders.Folder, error) {
	parts := make([]string, len(missing))
	for i, id := range missing {
		parts[i] = strconv.FormatInt(id, 10)
	}
	key := strings.Join(parts, ",")

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		fetched, err := c.src.GetFolderDisplayFields(ctx, missing)
		if err != nil {
			return nil, err
		}

		pipe := c.rdb.Pipeline()
		for _, f := range fetched {
			data, err := json.Marshal(toCached(f))
			if err != nil {
				continue
			}
			pipe.Set(ctx, keyPrefix+strconv.FormatInt(f.ID, 10), string(data), c.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("Folder cache write failed")
		}

		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]folders.Folder), nil
}

func toCached(f folders.Folder) cachedFolder {
	return cachedFolder{
		ID:         f.ID,
		UserID:     f.UserID,
		CompanyID:  f.CompanyID,
		ParentID:   f.ParentID,
		Priority:   f.Priority,
		TitlePlain: f.Title.Plain,
		TitleMap:   f.Title.ByLocale,
		DescPlain:  f.Description.Plain,
		DescMap:    f.Description.ByLocale,
	}
}

func fromCached(cf cachedFolder) folders.Folder {
	f := folders.Folder{
		ID:        cf.ID,
		UserID:    cf.UserID,
		CompanyID: cf.CompanyID,
		ParentID:  cf.ParentID,
		Priority:  cf.Priority,
	}
	f.Title.Plain = cf.TitlePlain
	f.Title.ByLocale = cf.TitleMap
	f.Description.Plain = cf.DescPlain
	f.Description.ByLocale = cf.DescMap
	return f
}
