// Package redisstore stores the location index in Redis. Each document is a
// JSON string under {prefix}:doc:{key}; {prefix}:order lists the keys in
// insertion order.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "uniqloc"

// Store is a Redis backed store.
type Store struct {
	client *redis.Client
	prefix string
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// Open connects using a redis:// URL and checks the connection.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	if url == "" {
		return nil, errors.NewValidationError("store.dsn", url, "redis url cannot be empty")
	}
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.NewConfigError("store", "invalid redis url", err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.WrapResource("open", "redis", ropts.Addr, err)
	}
	return New(client, opts...), nil
}

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) docKey(key string) string {
	return s.prefix + ":doc:" + key
}

func (s *Store) orderKey() string {
	return s.prefix + ":order"
}

// InsertOne implements store.Store.
func (s *Store) InsertOne(ctx context.Context, doc *locations.Location) error {
	if doc == nil || doc.Key == "" {
		return errors.NewValidationError("key", nil, "document has no key")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapParse("json", doc.Key, err)
	}

	ok, err := s.client.SetNX(ctx, s.docKey(doc.Key), data, 0).Result()
	if err != nil {
		return errors.WrapResource("insert", "location", doc.Key, err)
	}
	if !ok {
		return fmt.Errorf("location %s: %w", doc.Key, errors.ErrAlreadyExists)
	}
	if err := s.client.RPush(ctx, s.orderKey(), doc.Key).Err(); err != nil {
		return errors.WrapResource("insert", "location", doc.Key, err)
	}
	return nil
}

// UpdateOne implements store.Store.
func (s *Store) UpdateOne(ctx context.Context, filter store.Filter, update store.Update) error {
	docs, err := s.find(ctx, filter, 1)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.NewNotFoundError("location", filter.String())
	}

	doc := docs[0]
	update.Apply(doc)
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapParse("json", doc.Key, err)
	}
	if err := s.client.Set(ctx, s.docKey(doc.Key), data, 0).Err(); err != nil {
		return errors.WrapResource("update", "location", doc.Key, err)
	}
	return nil
}

// FindAll implements store.Store.
func (s *Store) FindAll(ctx context.Context, filter store.Filter) ([]*locations.Location, error) {
	return s.find(ctx, filter, 0)
}

// find returns up to limit matching documents, all of them when limit is 0.
func (s *Store) find(ctx context.Context, filter store.Filter, limit int) ([]*locations.Location, error) {
	var keys []string
	if filter.Key != "" {
		keys = []string{filter.Key}
	} else {
		var err error
		keys, err = s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
		if err != nil {
			return nil, errors.WrapResource("find", "location", "", err)
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	docKeys := make([]string, len(keys))
	for i, k := range keys {
		docKeys[i] = s.docKey(k)
	}
	values, err := s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, errors.WrapResource("find", "location", "", err)
	}

	var out []*locations.Location
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// key listed in the order but the document is gone
			continue
		}
		var doc locations.Location
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, errors.WrapParse("json", keys[i], err)
		}
		if doc.LinkedEvents == nil {
			doc.LinkedEvents = []locations.LinkedEvent{}
		}
		if !filter.Matches(&doc) {
			continue
		}
		out = append(out, &doc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.client.Close()
}
