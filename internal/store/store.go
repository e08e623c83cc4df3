// Package store provides a durable, BoltDB-backed repository for script
// documents, plus a version history. It persists configuration only:
// named scripts a client can save and reload across restarts. Task,
// TaskContext, and execution state stay in-memory and never touch disk.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ElementAstro/lithium-scheduler/internal/script"
	"github.com/ElementAstro/lithium-scheduler/internal/telemetry"
)

var (
	bucketScripts  = []byte("scripts")
	bucketVersions = []byte("script_versions")
)

// Store is a durable repository of named script.Document values, backed
// by BoltDB with an in-memory hot cache.
type Store struct {
	db  *bbolt.DB
	mu  sync.RWMutex
	hot map[string]script.Document

	readLatency  metric.Float64Histogram
	writeLatency metric.Float64Histogram
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
}

// Open creates or opens a BoltDB file at path and warms the in-memory
// cache from its contents.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketScripts, bucketVersions} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	meter := telemetry.Meter("lithium-scheduler-store")
	readLatency, _ := meter.Float64Histogram("lithium_scheduler_store_read_ms")
	writeLatency, _ := meter.Float64Histogram("lithium_scheduler_store_write_ms")
	cacheHits, _ := meter.Int64Counter("lithium_scheduler_store_cache_hits_total")
	cacheMisses, _ := meter.Int64Counter("lithium_scheduler_store_cache_misses_total")

	s := &Store{
		db:           db,
		hot:          make(map[string]script.Document),
		readLatency:  readLatency,
		writeLatency: writeLatency,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
	}
	if err := s.warmCache(); err != nil {
		db.Close()
		return nil, fmt.Errorf("warm cache: %w", err)
	}
	return s, nil
}

// Close releases the underlying BoltDB file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) warmCache() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketScripts).ForEach(func(k, v []byte) error {
			var doc script.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return nil // skip entries that no longer decode
			}
			s.hot[string(k)] = doc
			return nil
		})
	})
}

// PutScript persists doc under name, archiving the previous version (if
// any) to the version-history bucket before overwriting it.
func (s *Store) PutScript(ctx context.Context, name string, doc script.Document) error {
	start := time.Now()
	defer func() {
		s.writeLatency.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("operation", "put_script")))
	}()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal script %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(tx *bbolt.Tx) error {
		scripts := tx.Bucket(bucketScripts)
		if existing := scripts.Get([]byte(name)); existing != nil {
			versions := tx.Bucket(bucketVersions)
			key := fmt.Sprintf("%s:%d", name, time.Now().UnixNano())
			if err := versions.Put([]byte(key), existing); err != nil {
				return fmt.Errorf("archive previous version: %w", err)
			}
		}
		return scripts.Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("write script %q: %w", name, err)
	}

	s.hot[name] = doc
	return nil
}

// GetScript retrieves a script by name, consulting the hot cache first.
func (s *Store) GetScript(ctx context.Context, name string) (script.Document, bool, error) {
	start := time.Now()
	defer func() {
		s.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("operation", "get_script")))
	}()

	s.mu.RLock()
	if doc, ok := s.hot[name]; ok {
		s.mu.RUnlock()
		s.cacheHits.Add(ctx, 1)
		return doc, true, nil
	}
	s.mu.RUnlock()
	s.cacheMisses.Add(ctx, 1)

	var doc script.Document
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketScripts).Get([]byte(name))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return script.Document{}, false, fmt.Errorf("read script %q: %w", name, err)
	}
	if found {
		s.mu.Lock()
		s.hot[name] = doc
		s.mu.Unlock()
	}
	return doc, found, nil
}

// ListScriptNames returns every stored script name.
func (s *Store) ListScriptNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.hot))
	for name := range s.hot {
		names = append(names, name)
	}
	return names
}

// DeleteScript removes name, archiving its last version first (soft
// delete).
func (s *Store) DeleteScript(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		scripts := tx.Bucket(bucketScripts)
		data := scripts.Get([]byte(name))
		if data != nil {
			versions := tx.Bucket(bucketVersions)
			key := fmt.Sprintf("archive:%s:%d", name, time.Now().UnixNano())
			if err := versions.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return scripts.Delete([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("delete script %q: %w", name, err)
	}
	delete(s.hot, name)
	return nil
}
