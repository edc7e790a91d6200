// Package store holds the per-entity accessors over the metadata
// database. Every document read back is validated before it is
// returned; an invalid document is a hard error, never coerced.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/cache"
	"github.com/protocaas/protocaas/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidDocument = errors.New("invalid document in database")
	// ErrConflict reports a conditional update that matched no row
	// because another writer got there first.
	ErrConflict = errors.New("concurrent update")
)

type Store struct {
	db         *gorm.DB
	workspaces cache.Cache[models.Workspace]
	projects   cache.Cache[models.Project]
	// pending is set on a transaction-bound store.
	pending *pendingKeys
}

// pendingKeys collects the cache keys a transaction wrote. They are
// invalidated again once the transaction has committed or rolled back,
// so a reader racing the commit cannot leave a pre-commit row cached.
type pendingKeys struct {
	mu         sync.Mutex
	workspaces []string
	projects   []string
}

func (p *pendingKeys) flush(workspaces cache.Cache[models.Workspace], projects cache.Cache[models.Project]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.workspaces {
		workspaces.Invalidate(id)
	}
	for _, id := range p.projects {
		projects.Invalidate(id)
	}
	p.workspaces, p.projects = nil, nil
}

func (s *Store) invalidateWorkspace(id string) {
	s.workspaces.Invalidate(id)
	if s.pending != nil {
		s.pending.mu.Lock()
		s.pending.workspaces = append(s.pending.workspaces, id)
		s.pending.mu.Unlock()
	}
}

func (s *Store) invalidateProject(id string) {
	s.projects.Invalidate(id)
	if s.pending != nil {
		s.pending.mu.Lock()
		s.pending.projects = append(s.pending.projects, id)
		s.pending.mu.Unlock()
	}
}

// New wraps conn. Workspace and project lookups made through the
// Cached* accessors are served from a cache for up to cacheTTL.
func New(conn *gorm.DB, cacheTTL time.Duration) *Store {
	return &Store{
		db:         conn,
		workspaces: cache.New[models.Workspace](cacheTTL),
		projects:   cache.New[models.Project](cacheTTL),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a store bound to a single database
// transaction. The caches are shared with s; reads inside the
// transaction do not fill them, and keys written inside it are
// invalidated once more after the outermost transaction ends.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	pending := s.pending
	if pending == nil {
		pending = &pendingKeys{}
		defer pending.flush(s.workspaces, s.projects)
	}
	return retryOnContention(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&Store{db: tx, workspaces: s.workspaces, projects: s.projects, pending: pending})
		})
	})
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "database handle")
	}
	return errors.Wrap(sqlDB.PingContext(ctx), "ping database")
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(kind, id string) error {
	return errors.Wrapf(ErrNotFound, "no %s with ID %s", kind, id)
}

func first[T any](q *gorm.DB, kind, id string) (*T, error) {
	var doc T
	err := q.First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(kind, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s %s", kind, id)
	}
	if err := validate(kind, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func validate(kind string, doc any) error {
	v, ok := doc.(models.Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return errors.Wrapf(ErrInvalidDocument, "%s: %v", kind, err)
	}
	return nil
}

func validateAll[T any](kind string, docs []T) error {
	for i := range docs {
		if err := validate(kind, &docs[i]); err != nil {
			return err
		}
	}
	return nil
}

func checkWrite(res *gorm.DB, kind, id string) error {
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update %s %s", kind, id)
	}
	if res.RowsAffected == 0 {
		return notFound(kind, id)
	}
	return nil
}

// checkValid validates a document before it is written.
func checkValid(kind string, doc models.Validator) error {
	return errors.Wrapf(doc.Validate(), "invalid %s", kind)
}
