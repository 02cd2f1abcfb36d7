// Package history keeps a journal of finished SMB1 connections in BadgerDB,
// so operators can see how past clients got through the handshake after
// they disconnected.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// Handshake outcomes recorded for a closed connection.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

// Key layout:
//
//	conn:{closed_at_ns:%016x}:{id} -> JSON(Entry)   ordered by close time
//	id:{id}                        -> conn key      lookup by connection id
const (
	prefixConn = "conn:"
	prefixID   = "id:"
)

// ErrNotFound is returned by Get for unknown connection ids.
var ErrNotFound = errors.New("history: entry not found")

// Entry is the record of one closed connection.
type Entry struct {
	ID           string    `json:"id"`
	RemoteAddr   string    `json:"remote_addr"`
	ConnectedAt  time.Time `json:"connected_at"`
	ClosedAt     time.Time `json:"closed_at"`
	Outcome      string    `json:"outcome"`
	State        string    `json:"state"`
	Dialect      string    `json:"dialect,omitempty"`
	Account      string    `json:"account,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	ClientOS     string    `json:"client_os,omitempty"`
	ClientLanMan string    `json:"client_lan_man,omitempty"`
	TreePath     string    `json:"tree_path,omitempty"`
	Service      string    `json:"service,omitempty"`
	Echoes       int       `json:"echoes"`
	Requests     int       `json:"requests"`
	BytesIn      int64     `json:"bytes_in"`
	BytesOut     int64     `json:"bytes_out"`
	Error        string    `json:"error,omitempty"`
}

// Config controls the journal.
type Config struct {
	// Enabled turns the journal on for `dittosmb start`.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string `mapstructure:"path" yaml:"path" validate:"required_if=Enabled true InMemory false"`

	// Retention expires entries after this long. 0 keeps them forever.
	Retention time.Duration `mapstructure:"retention" yaml:"retention" validate:"min=0"`

	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`
}

// Store is a BadgerDB-backed connection journal. It is safe for concurrent
// use.
type Store struct {
	db        *badgerdb.DB
	retention time.Duration
}

// Open opens (or creates) the journal described by cfg.
func Open(cfg Config) (*Store, error) {
	opts := badgerdb.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return &Store{db: db, retention: cfg.Retention}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func connKey(e *Entry) []byte {
	return []byte(fmt.Sprintf("%s%016x:%s", prefixConn, e.ClosedAt.UnixNano(), e.ID))
}

// Append stores e. ID and ClosedAt are required; appending the same id
// again replaces the earlier record.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		return fmt.Errorf("history: entry has no id")
	}
	if e.ClosedAt.IsZero() {
		e.ClosedAt = time.Now()
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	key := connKey(&e)
	idKey := []byte(prefixID + e.ID)

	return s.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(idKey)
		switch {
		case err == nil:
			old, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(old); err != nil {
				return err
			}
		case !errors.Is(err, badgerdb.ErrKeyNotFound):
			return err
		}

		entry := badgerdb.NewEntry(key, data)
		index := badgerdb.NewEntry(idKey, key)
		if s.retention > 0 {
			entry = entry.WithTTL(s.retention)
			index = index.WithTTL(s.retention)
		}
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		return txn.SetEntry(index)
	})
}

// Get returns the entry for connection id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var e *Entry
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(prefixID + id))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get(key)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			e = &Entry{}
			return json.Unmarshal(val, e)
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns up to limit entries, most recently closed first. A limit of
// 0 or less returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := []Entry{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixConn)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the last key <= the seek key.
		seek := append([]byte(prefixConn), 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(prefixConn)); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("failed to decode history entry %q: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
