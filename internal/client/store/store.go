// Package store opens the local SQLite database and groups the per-table
// repositories so engines can run them against either the pool or a
// transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/migrations"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/repositories/assignments"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/repositories/charges"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/repositories/checkouts"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/repositories/dwrs"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/repositories/projects"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/repositories/reference"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/repositories/syncqueue"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/repositories/timerecords"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/dbx"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	Checkouts   checkouts.Repository
	Projects    projects.Repository
	DWRs        dwrs.Repository
	Assignments assignments.Repository
	TimeRecords timerecords.Repository
	Charges     charges.Repository
	Queue       syncqueue.Repository
	Reference   reference.Repository
}

// NewRepositories binds every repository to db, which may be a *sql.Tx.
func NewRepositories(db dbx.DBTX) *Repositories {
	return &Repositories{
		Checkouts:   checkouts.NewSQLiteRepository(db),
		Projects:    projects.NewSQLiteRepository(db),
		DWRs:        dwrs.NewSQLiteRepository(db),
		Assignments: assignments.NewSQLiteRepository(db),
		TimeRecords: timerecords.NewSQLiteRepository(db),
		Charges:     charges.NewSQLiteRepository(db),
		Queue:       syncqueue.NewSQLiteRepository(db),
		Reference:   reference.NewSQLiteRepository(db),
	}
}

type Store struct {
	db    *sql.DB
	repos *Repositories
}

// Open opens dsn with foreign keys enforced, applies migrations and returns
// the store. The pool is limited to one connection; code running inside
// WithTx must only use the repositories it is handed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db, repos: NewRepositories(db)}
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Repos() *Repositories { return s.repos }

func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn in a transaction with repositories bound to it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewRepositories(tx))
	})
}

// PurgeWorkingSet deletes entity rows, the cached projects, the sync queue
// and reference data. Checkout metadata, the device id and the signed-in
// user survive.
func (r *Repositories) PurgeWorkingSet(ctx context.Context) error {
	steps := []func(context.Context) error{
		r.Charges.DeleteAll,
		r.TimeRecords.DeleteAll,
		r.Assignments.DeleteAll,
		r.DWRs.DeleteAll,
		r.Projects.DeleteAll,
		r.Queue.ClearAll,
		func(ctx context.Context) error { return r.Reference.ClearExcept(ctx, models.SessionKeys...) },
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// PurgeAll is PurgeWorkingSet plus every checkout metadata row.
func (r *Repositories) PurgeAll(ctx context.Context) error {
	if err := r.PurgeWorkingSet(ctx); err != nil {
		return err
	}
	return r.Checkouts.DeleteAll(ctx)
}

// PendingSummary counts dirty rows by family.
func (r *Repositories) PendingSummary(ctx context.Context) (models.PendingSummary, error) {
	var (
		s   models.PendingSummary
		err error
	)
	if s.DWRs, err = r.DWRs.CountDirty(ctx); err != nil {
		return s, err
	}
	if s.WorkAssignments, err = r.Assignments.CountDirty(ctx); err != nil {
		return s, err
	}
	if s.TimeRecords, err = r.TimeRecords.CountDirty(ctx); err != nil {
		return s, err
	}
	if s.Charges, err = r.Charges.CountDirty(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// DeviceID returns the persisted device identifier, creating it on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	v, err := s.repos.Reference.Get(ctx, models.KeyDeviceID)
	if err != nil {
		return "", err
	}
	if len(v) > 0 {
		return string(v), nil
	}
	id := uuid.NewString()
	if err := s.repos.Reference.Set(ctx, models.KeyDeviceID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

// SetDeviceID pins the device identifier, e.g. from configuration.
func (s *Store) SetDeviceID(ctx context.Context, id string) error {
	return s.repos.Reference.Set(ctx, models.KeyDeviceID, []byte(id))
}

// OpenMemory opens a private in-memory database, for tests and dry runs.
func OpenMemory(ctx context.Context) (*Store, error) {
	return Open(ctx, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
}
