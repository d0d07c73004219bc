package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"shelf/internal/errs"
)

// NatsKV is a KV transport over a NATS JetStream key-value bucket.
// JetStream's key charset excludes ':', so the transport rewrites the
// separator to '.' on the wire while callers keep the logical
// "chunk:<handle>:<index>" scheme.
type NatsKV struct {
	bucket jetstream.KeyValue
}

// NatsConfig carries connection settings for a JetStream-backed
// transport.
type NatsConfig struct {
	URL    string
	Bucket string
}

// NewNatsKV connects to NATS and binds (creating if needed) the chunk
// bucket.
func NewNatsKV(ctx context.Context, cfg NatsConfig) (*NatsKV, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, errs.Unavailable("nats url and bucket must be configured")
	}

	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, errs.Unavailable("connect nats %s: %v", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:       cfg.Bucket,
		MaxValueSize: MaxKVChunkSize,
	})
	if err != nil {
		return nil, fmt.Errorf("bind kv bucket %q: %w", cfg.Bucket, err)
	}

	return &NatsKV{bucket: bucket}, nil
}

// natsKey maps a logical chunk key onto the JetStream key charset.
func natsKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}

func (n *NatsKV) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := n.bucket.Get(ctx, natsKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errs.NotFound("key %s", key)
		}
		return nil, fmt.Errorf("nats kv get %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (n *NatsKV) Put(ctx context.Context, key string, value []byte) error {
	if _, err := n.bucket.Put(ctx, natsKey(key), value); err != nil {
		return fmt.Errorf("nats kv put %s: %w", key, err)
	}
	return nil
}

func (n *NatsKV) Delete(ctx context.Context, key string) error {
	// Purge rather than Delete: Delete leaves a tombstone revision
	// that Get still resolves, which would defeat the provider's
	// existence probing.
	if err := n.bucket.Purge(ctx, natsKey(key)); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("nats kv purge %s: %w", key, err)
	}
	return nil
}
