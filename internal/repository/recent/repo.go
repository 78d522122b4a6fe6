// Package recent persists submitted autocomplete queries in LevelDB.
package recent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// DefaultMaxEntries bounds how many queries are kept.
const DefaultMaxEntries = 100

// Key layout:
//
//	t:<inverted unix nanos>:<query>  -> query   (iteration order is newest first)
//	q:<query>                        -> t-key   (one entry per distinct query)
const (
	timePrefix  = "t:"
	queryPrefix = "q:"
)

// Repo stores recent searches, newest first, one entry per distinct query.
type Repo struct {
	db         *leveldb.DB
	maxEntries int
	now        func() time.Time

	mu sync.Mutex // serializes read-modify-write in Add
}

// Open opens (or creates) the store at path.
func Open(path string) (*Repo, error) {
	const op = "recent.Open"

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return newRepo(db), nil
}

// OpenStorage opens the store on an arbitrary LevelDB storage, e.g. storage.NewMemStorage().
func OpenStorage(stor storage.Storage) (*Repo, error) {
	const op = "recent.OpenStorage"

	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return newRepo(db), nil
}

func newRepo(db *leveldb.DB) *Repo {
	return &Repo{db: db, maxEntries: DefaultMaxEntries, now: time.Now}
}

// WithMaxEntries sets how many distinct queries are kept.
func (r *Repo) WithMaxEntries(n int) *Repo {
	if n > 0 {
		r.maxEntries = n
	}
	return r
}

// Close closes the underlying database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// Add records q as the most recent search. Re-adding a query moves it to the front.
func (r *Repo) Add(ctx context.Context, q string) error {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	batch := new(leveldb.Batch)

	qKey := []byte(queryPrefix + q)
	old, err := r.db.Get(qKey, nil)
	switch {
	case err == nil:
		batch.Delete(old)
	case !errors.Is(err, leveldb.ErrNotFound):
		return fmt.Errorf("get %q: %w", q, err)
	}

	tKey := []byte(timeKey(r.now(), q))
	batch.Put(tKey, []byte(q))
	batch.Put(qKey, tKey)

	if err := r.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write %q: %w", q, err)
	}
	return r.trim()
}

// List returns up to limit recent queries starting with prefix (case-insensitive),
// newest first.
func (r *Repo) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	iter := r.db.NewIterator(util.BytesPrefix([]byte(timePrefix)), nil)
	defer iter.Release()

	out := make([]string, 0)
	for iter.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		q := string(iter.Value())
		if strings.HasPrefix(strings.ToLower(q), prefix) {
			out = append(out, q)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

// trim drops the oldest entries beyond maxEntries.
func (r *Repo) trim() error {
	iter := r.db.NewIterator(util.BytesPrefix([]byte(timePrefix)), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	n := 0
	for iter.Next() {
		n++
		if n <= r.maxEntries {
			continue
		}
		batch.Delete(append([]byte(nil), iter.Key()...))
		batch.Delete([]byte(queryPrefix + string(iter.Value())))
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterate: %w", err)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := r.db.Write(batch, nil); err != nil {
		return fmt.Errorf("trim: %w", err)
	}
	return nil
}

func timeKey(t time.Time, q string) string {
	return fmt.Sprintf("%s%019d:%s", timePrefix, math.MaxInt64-t.UnixNano(), q)
}
