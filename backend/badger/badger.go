// Package badger provides a backend.Backend on an embedded Badger database.
//
// Rows are encoded into one ordered key space:
//
//	's' | uvarint(len(scope)) | scope | id (16 bytes) | segment (4 bytes, big-endian)  -> data
//	'i' | uvarint(len(scope)) | scope | name                                             -> id (16 bytes)
//
// The big-endian segment suffix makes a prefix iteration a range scan.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
)

const (
	tagSegment byte = 's'
	tagIndex   byte = 'i'
)

// Options configures the store.
type Options struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps all data in memory.
	InMemory bool
	// Logger receives Badger's internal log output. Nil silences it.
	Logger *slog.Logger
}

// Store implements backend.Backend on Badger.
type Store struct {
	db *badger.DB
}

var (
	_ backend.Backend  = (*Store)(nil)
	_ backend.IDLister = (*Store)(nil)
	_ backend.Closer   = (*Store)(nil)
)

// Open opens (or creates) a Badger-backed store.
func Open(o Options) (*Store, error) {
	opts := badger.DefaultOptions(o.Dir)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if o.Logger != nil {
		opts = opts.WithLogger(&slogAdapter{l: o.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func appendScope(dst []byte, tag byte, scope string) []byte {
	dst = append(dst, tag)
	dst = binary.AppendUvarint(dst, uint64(len(scope)))
	return append(dst, scope...)
}

func filePrefix(scope string, id uuid.UUID) []byte {
	k := appendScope(make([]byte, 0, 1+binary.MaxVarintLen64+len(scope)+16+4), tagSegment, scope)
	return append(k, id[:]...)
}

func segmentKey(scope string, id uuid.UUID, segment uint32) []byte {
	return binary.BigEndian.AppendUint32(filePrefix(scope, id), segment)
}

func indexKey(scope, name string) []byte {
	k := appendScope(make([]byte, 0, 1+binary.MaxVarintLen64+len(scope)+len(name)), tagIndex, scope)
	return append(k, name...)
}

// PutSegment implements backend.Backend.
func (s *Store) PutSegment(ctx context.Context, scope string, id uuid.UUID, segment uint32, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Badger keeps a reference to the value until commit.
	value := make([]byte, len(data))
	copy(value, data)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(segmentKey(scope, id, segment), value)
	})
}

// ScanSegments implements backend.Backend.
func (s *Store) ScanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]backend.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segs := []backend.Segment{}
	if from > to {
		return segs, nil
	}

	prefix := filePrefix(scope, id)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   64,
			Prefix:         prefix,
		})
		defer it.Close()

		for it.Seek(segmentKey(scope, id, from)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != len(prefix)+4 {
				continue
			}
			n := binary.BigEndian.Uint32(key[len(prefix):])
			if n > to {
				break
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if data == nil {
				data = []byte{}
			}
			segs = append(segs, backend.Segment{Number: n, Data: data})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return segs, nil
}

// PutIndex implements backend.Backend.
func (s *Store) PutIndex(ctx context.Context, scope, name string, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value := make([]byte, 16)
	copy(value, id[:])

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(indexKey(scope, name), value)
	})
}

// LookupIndex implements backend.Backend.
func (s *Store) LookupIndex(ctx context.Context, scope, name string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(scope, name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			parsed, err := uuid.FromBytes(val)
			if err != nil {
				return fmt.Errorf("corrupt index entry /%s/%s: %w", scope, name, err)
			}
			id = parsed
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return uuid.Nil, backend.NotFoundError(scope, name)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ListIndex implements backend.Backend.
func (s *Store) ListIndex(ctx context.Context, scope string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := appendScope(nil, tagIndex, scope)
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ListIDs implements backend.IDLister.
func (s *Store) ListIDs(ctx context.Context, scope string) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := appendScope(nil, tagSegment, scope)
	var ids []uuid.UUID
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			if len(key) != len(prefix)+16+4 {
				continue
			}
			id, err := uuid.FromBytes(key[len(prefix) : len(prefix)+16])
			if err != nil {
				return err
			}
			if len(ids) == 0 || ids[len(ids)-1] != id {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// slogAdapter routes Badger's logger interface into slog.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.l.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.l.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.l.Info(fmt.Sprintf(format, args...), "component", "badger")
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
