// Package redisblackboard is an optional BlackboardSnapshotStore external
// collaborator that serializes Blackboard bindings to Redis. The core
// itself persists nothing (§6 "Persisted state layout": "the core requires
// only that blackboard bindings carry a stable type name... the core itself
// persists nothing") -- this package exists for callers that want to
// snapshot or restore a process's Blackboard across restarts, grounded on
// the teacher's features/stream/pulse/clients/pulse.Client: a thin wrapper
// taking a pre-built *redis.Client and exposing only the operations its
// caller needs.
package redisblackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentforge/agentforge/blackboard"
)

// binding is the wire form of one Blackboard entry: (bindingName →
// (typeName, json)) per §6's exact persisted-state layout.
type binding struct {
	TypeName string          `json:"typeName"`
	Value    json.RawMessage `json:"value"`
}

// Options configures a Store.
type Options struct {
	// Redis is the connection used to store snapshots. Required.
	Redis *redis.Client
	// KeyPrefix namespaces snapshot keys; defaults to "agentforge:blackboard:".
	KeyPrefix string
	// TTL expires a snapshot after this duration; zero means no expiry.
	TTL time.Duration
}

// Store snapshots and restores blackboard.Blackboard values keyed by
// process ID.
type Store struct {
	redis     *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewStore builds a Store from Options.
func NewStore(opts Options) (*Store, error) {
	if opts.Redis == nil {
		return nil, errors.New("redisblackboard: redis client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "agentforge:blackboard:"
	}
	return &Store{redis: opts.Redis, keyPrefix: prefix, ttl: opts.TTL}, nil
}

// Save serializes every binding currently on bb and writes it under
// processID, each binding's value marshaled independently so a value that
// fails to marshal does not block the rest of the snapshot; such bindings
// are skipped and reported via the returned error (joined, not fatal to the
// write of the others).
func (s *Store) Save(ctx context.Context, processID string, bb *blackboard.Blackboard) error {
	if processID == "" {
		return errors.New("redisblackboard: process id is required")
	}
	data, skipped, err := encodeSnapshot(bb)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(processID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisblackboard: write snapshot: %w", err)
	}
	return skipped
}

// encodeSnapshot marshals every binding currently on bb into the wire
// envelope, independently: a value that fails to marshal is skipped and
// reported via the returned error (joined, not fatal to encoding the rest).
func encodeSnapshot(bb *blackboard.Blackboard) (data []byte, skipped error, err error) {
	objects := bb.Objects()
	doc := make(map[string]binding, len(objects))
	var errs []error
	for _, o := range objects {
		raw, marshalErr := json.Marshal(o.Value)
		if marshalErr != nil {
			errs = append(errs, fmt.Errorf("redisblackboard: marshal binding %q: %w", o.Name, marshalErr))
			continue
		}
		doc[o.Name] = binding{TypeName: o.TypeName, Value: raw}
	}
	data, err = json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("redisblackboard: marshal snapshot: %w", err)
	}
	return data, errors.Join(errs...), nil
}

// Load restores a Blackboard from the snapshot recorded under processID.
// Callers that need concrete Go values back out of the restored bindings
// must unmarshal binding.Value themselves against the type named by
// binding.TypeName -- Load only guarantees the raw JSON and type name
// round-trip; it cannot reconstruct an arbitrary any without a type
// registry, which §6 leaves to the caller.
func (s *Store) Load(ctx context.Context, processID string) (map[string]RawBinding, error) {
	if processID == "" {
		return nil, errors.New("redisblackboard: process id is required")
	}
	data, err := s.redis.Get(ctx, s.key(processID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("redisblackboard: read snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

func decodeSnapshot(data []byte) (map[string]RawBinding, error) {
	var doc map[string]binding
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("redisblackboard: unmarshal snapshot: %w", err)
	}
	out := make(map[string]RawBinding, len(doc))
	for name, b := range doc {
		out[name] = RawBinding{TypeName: b.TypeName, Value: b.Value}
	}
	return out, nil
}

// Delete removes the snapshot recorded under processID, if any.
func (s *Store) Delete(ctx context.Context, processID string) error {
	if processID == "" {
		return errors.New("redisblackboard: process id is required")
	}
	return s.redis.Del(ctx, s.key(processID)).Err()
}

func (s *Store) key(processID string) string {
	return s.keyPrefix + processID
}

// RawBinding is one restored binding: its captured type name and the still-
// encoded JSON value, left to the caller to decode against that type name.
type RawBinding struct {
	TypeName string
	Value    json.RawMessage
}

// ErrSnapshotNotFound is returned by Load when no snapshot is recorded for
// the given process ID.
var ErrSnapshotNotFound = errors.New("redisblackboard: snapshot not found")
