// Package history keeps a durable journal of completed RPC invocations in a
// bbolt database under the project's .unityctl directory.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketRPC = []byte("rpc")

// Entry is one completed RPC invocation. Only finished operations are
// journaled; in-flight state never touches disk.
type Entry struct {
	Time       time.Time `json:"time"`
	Command    string    `json:"command"`
	Status     string    `json:"status"`
	Code       string    `json:"code,omitempty"`
	DurationMS int64     `json:"durationMs"`
	AgentID    string    `json:"agentId,omitempty"`
}

// Store is a bbolt-backed journal.
type Store struct {
	db  *bolt.DB
	seq atomic.Uint64
}

// Open opens (or creates) the journal database.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRPC)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends an entry. Keys are nanosecond timestamps with a process
// counter in the low bits so same-instant entries stay ordered.
func (s *Store) Record(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(e.Time.UnixNano()))
	binary.BigEndian.PutUint64(key[8:], s.seq.Add(1))

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRPC).Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("record history entry: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}
	var out []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRPC).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
