// Package redis implements core.Archive on top of Redis.
//
// Each transcript is stored as JSON under "<prefix>transcript:<id>"; a sorted
// set "<prefix>transcripts" indexes the ids by end time so searches return
// the newest meetings first.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/meetmesh/archive"
	"github.com/hupe1980/meetmesh/core"
)

// Options configures the Store.
type Options struct {
	// KeyPrefix namespaces all keys; defaults to "meetmesh:".
	KeyPrefix string
	// TTL expires transcripts; zero keeps them forever.
	TTL time.Duration
}

// Store is a Redis backed transcript archive.
type Store struct {
	client *goredis.Client
	opts   Options
}

var _ core.Archive = (*Store)(nil)

// New wraps an existing client.
func New(client *goredis.Client, optFns ...func(o *Options)) *Store {
	opts := Options{KeyPrefix: "meetmesh:"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, opts: opts}
}

// NewFromURL parses a redis:// URL, connects and pings the server.
func NewFromURL(ctx context.Context, url string, optFns ...func(o *Options)) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: redis url is not set", core.ErrConfiguration)
	}
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return New(c, optFns...), nil
}

// Save implements core.Archive.
func (s *Store) Save(ctx context.Context, t core.Transcript) error {
	if t.ID == "" {
		return fmt.Errorf("%w: transcript without id", core.ErrConfiguration)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("redis: encode transcript: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, s.key(t.ID), data, s.opts.TTL)
		p.ZAdd(ctx, s.indexKey(), goredis.Z{Score: float64(t.EndedAt.UnixMilli()), Member: t.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: save transcript: %w", err)
	}
	return nil
}

// Load implements core.Archive.
func (s *Store) Load(ctx context.Context, id string) (core.Transcript, error) {
	res, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return core.Transcript{}, fmt.Errorf("%w: %s", archive.ErrNotFound, id)
	}
	if err != nil {
		return core.Transcript{}, fmt.Errorf("redis: load transcript: %w", err)
	}
	return decode(res)
}

// Search implements core.Archive. The index is walked newest first in pages;
// ids whose transcript expired are pruned from the index on the way.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]core.Transcript, error) {
	const page = 100

	res := []core.Transcript{}
	for start := int64(0); ; start += page {
		ids, err := s.client.ZRevRange(ctx, s.indexKey(), start, start+page-1).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: search index: %w", err)
		}
		if len(ids) == 0 {
			return res, nil
		}

		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = s.key(id)
		}
		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: search load: %w", err)
		}

		var stale []any
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				stale = append(stale, ids[i])
				continue
			}
			t, err := decode(raw)
			if err != nil {
				return nil, err
			}
			if !archive.Matches(t, query) {
				continue
			}
			res = append(res, t)
			if limit > 0 && len(res) >= limit {
				return res, nil
			}
		}
		if len(stale) > 0 {
			if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
				return nil, fmt.Errorf("redis: prune index: %w", err)
			}
			start -= int64(len(stale))
		}
		if len(ids) < page {
			return res, nil
		}
	}
}

// Delete implements core.Archive.
func (s *Store) Delete(ctx context.Context, id string) error {
	var del *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		del = p.Del(ctx, s.key(id))
		p.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete transcript: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", archive.ErrNotFound, id)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(id string) string { return s.opts.KeyPrefix + "transcript:" + id }

func (s *Store) indexKey() string { return s.opts.KeyPrefix + "transcripts" }

func decode(raw string) (core.Transcript, error) {
	var t core.Transcript
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return core.Transcript{}, fmt.Errorf("redis: decode transcript: %w", err)
	}
	return t, nil
}
