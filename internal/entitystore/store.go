// Package entitystore is the generic local record store: typed create, fetch,
// update and delete over any gorm model, plus a payload-less change signal.
//
// All mutations are serialized through a single writer lock owned by the Store;
// reads go straight to the engine. Read-modify-write sequences use Atomically.
package entitystore

import (
	"context"
	"reflect"
	"sync"

	"github.com/angelmondragon/storefront-core/pkg/db"
	"github.com/angelmondragon/storefront-core/pkg/events"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
	"gorm.io/gorm"
)

// Options carries the optional collaborators of a Store.
type Options struct {
	Logger  *logger.Logger
	Metrics *metrics.EntityStoreMetrics
	// Changes is the bus signalled after every committed write. A private bus
	// is created when nil.
	Changes *events.Bus
}

// Store owns the database context for the process.
type Store struct {
	client  *db.Client
	db      *gorm.DB
	writeMu *sync.Mutex
	changes *events.Bus
	logg    *logger.Logger
	metrics *metrics.EntityStoreMetrics

	// set on transaction-scoped copies handed to Atomically callbacks
	inTx    bool
	changed *bool
}

// New builds a Store over client. A nil client (or one whose connection failed
// to open) yields a Store whose every operation reports contextUnavailable.
func New(client *db.Client, opts Options) *Store {
	changes := opts.Changes
	if changes == nil {
		changes = events.NewBus()
	}
	return &Store{
		client:  client,
		db:      client.DB(),
		writeMu: &sync.Mutex{},
		changes: changes,
		logg:    opts.Logger,
		metrics: opts.Metrics,
	}
}

// Changes exposes the "store changed" signal.
func (s *Store) Changes() *events.Bus {
	return s.changes
}

// Subscribe is shorthand for s.Changes().Subscribe().
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	return s.changes.Subscribe()
}

// Available reports whether the underlying context opened.
func (s *Store) Available() bool {
	return s != nil && s.db != nil
}

// Atomically runs fn while holding the writer lock inside one transaction.
// Writes made through the Store passed to fn are committed together and
// signalled once, after commit. Nested calls reuse the outer transaction.
func (s *Store) Atomically(ctx context.Context, fn func(tx *Store) error) error {
	if !s.Available() {
		return errContextUnavailable()
	}
	if s.inTx {
		return fn(s)
	}

	changed := false
	err := s.locked(func() error {
		return s.client.WithTx(ctx, func(tx *gorm.DB) error {
			return fn(&Store{
				db:      tx,
				writeMu: s.writeMu,
				changes: s.changes,
				logg:    s.logg,
				metrics: s.metrics,
				inTx:    true,
				changed: &changed,
			})
		})
	})

	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return errSaveFailed(err, "commit", "transaction")
	}
	if changed {
		s.changes.Publish()
	}
	return nil
}

// Create inserts and persists record.
func Create[T any](ctx context.Context, s *Store, record *T) error {
	return s.write(ctx, "create", kindOf[T](), func(tx *gorm.DB) error {
		return tx.Create(record).Error
	})
}

// Fetch returns every record of kind T matching opts. Without a SortBy the
// order is whatever the engine returns.
func Fetch[T any](ctx context.Context, s *Store, opts ...FetchOption) ([]T, error) {
	kind := kindOf[T]()
	if !s.Available() {
		return nil, errContextUnavailable()
	}

	var rows []T
	err := buildQuery(opts).apply(s.db.WithContext(ctx).Model(new(T))).Find(&rows).Error
	s.metrics.Observe("fetch", kind, err)
	if err != nil {
		s.logFailure(ctx, "entitystore.fetch.failed", kind, err)
		return nil, errFetchFailed(err, kind)
	}
	return rows, nil
}

// FetchFirst returns the first record matching opts, or nil when none match.
func FetchFirst[T any](ctx context.Context, s *Store, opts ...FetchOption) (*T, error) {
	rows, err := Fetch[T](ctx, s, append(opts, Limit(1))...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Update applies mutate to record in place, then persists it.
func Update[T any](ctx context.Context, s *Store, record *T, mutate func(*T)) error {
	return s.write(ctx, "update", kindOf[T](), func(tx *gorm.DB) error {
		if mutate != nil {
			mutate(record)
		}
		return tx.Save(record).Error
	})
}

// Delete removes record, identified by its primary key.
func Delete[T any](ctx context.Context, s *Store, record *T) error {
	return s.write(ctx, "delete", kindOf[T](), func(tx *gorm.DB) error {
		res := tx.Delete(record)
		return res.Error
	})
}

// DeleteAll removes every record of kind T.
func DeleteAll[T any](ctx context.Context, s *Store) error {
	return s.write(ctx, "delete_all", kindOf[T](), func(tx *gorm.DB) error {
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(new(T)).Error
	})
}

func (s *Store) write(ctx context.Context, op, kind string, fn func(tx *gorm.DB) error) error {
	if !s.Available() {
		return errContextUnavailable()
	}

	if s.inTx {
		err := fn(s.db.WithContext(ctx))
		s.metrics.Observe(op, kind, err)
		if err != nil {
			s.logFailure(ctx, "entitystore.write.failed", kind, err)
			return errSaveFailed(err, op, kind)
		}
		*s.changed = true
		return nil
	}

	err := s.locked(func() error { return fn(s.db.WithContext(ctx)) })

	s.metrics.Observe(op, kind, err)
	if err != nil {
		s.logFailure(ctx, "entitystore.write.failed", kind, err)
		return errSaveFailed(err, op, kind)
	}
	s.changes.Publish()
	return nil
}

// locked runs fn holding the writer lock. The lock is released even when fn
// panics.
func (s *Store) locked(fn func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return fn()
}

func (s *Store) logFailure(ctx context.Context, msg, kind string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithKind(ctx, kind)
	ctx = s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
	s.logg.Error(ctx, msg, err)
}

type tabler interface {
	TableName() string
}

// kindOf names a record kind for logs and metrics.
func kindOf[T any]() string {
	var zero T
	if t, ok := any(zero).(tabler); ok {
		return t.TableName()
	}
	if t, ok := any(&zero).(tabler); ok {
		return t.TableName()
	}
	return reflect.TypeOf(zero).Name()
}
