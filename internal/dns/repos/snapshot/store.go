// Package snapshot persists dumped policy zones in a bbolt database so that a
// restart can rebuild the engine from the last zones that loaded cleanly.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-rpz/internal/dns/common/clock"
)

var (
	bucketZones = []byte("zones")
	bucketMeta  = []byte("meta")
)

// ErrNotFound is returned by Load when no snapshot exists for the zone.
var ErrNotFound = errors.New("snapshot not found")

// Meta describes one stored zone.
type Meta struct {
	Name    string
	Serial  uint32
	SavedAt time.Time
}

// Store keeps one zone-file text per zone name.
type Store struct {
	db    *bbolt.DB
	clock clock.Clock
}

// Open opens (or creates) the database at path and ensures buckets exist.
func Open(path string, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketZones); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init snapshot buckets: %w", err)
	}
	return &Store{db: db, clock: clk}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save replaces the stored text and metadata for name in one transaction.
func (s *Store) Save(name string, serial uint32, text []byte) error {
	if name == "" {
		return errors.New("snapshot name must not be empty")
	}
	meta := encodeMeta(serial, s.clock.Now())
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketZones).Put([]byte(name), text); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte(name), meta)
	})
}

// Load returns the stored text and metadata for name.
func (s *Store) Load(name string) ([]byte, Meta, error) {
	var text []byte
	var meta Meta
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketZones).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		// bbolt values are only valid inside the transaction.
		text = append([]byte(nil), v...)
		meta = decodeMeta(name, tx.Bucket(bucketMeta).Get([]byte(name)))
		return nil
	})
	if err != nil {
		return nil, Meta{}, err
	}
	return text, meta, nil
}

// List returns metadata for every stored zone, sorted by name.
func (s *Store) List() ([]Meta, error) {
	var out []Meta
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).ForEach(func(k, v []byte) error {
			out = append(out, decodeMeta(string(k), v))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes name; deleting an absent snapshot is not an error.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketZones).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Delete([]byte(name))
	})
}

func encodeMeta(serial uint32, at time.Time) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[:4], serial)
	binary.BigEndian.PutUint64(buf[4:], uint64(at.Unix()))
	return buf
}

func decodeMeta(name string, v []byte) Meta {
	m := Meta{Name: name}
	if len(v) == 12 {
		m.Serial = binary.BigEndian.Uint32(v[:4])
		m.SavedAt = time.Unix(int64(binary.BigEndian.Uint64(v[4:])), 0)
	}
	return m
}
