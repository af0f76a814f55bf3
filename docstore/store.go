package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/academia"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store is the document API used by the application. Every call is
// checked against the access rules as the given caller.
type Store struct {
	repos  RepositoryManager
	rules  *Rules
	logger academia.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l academia.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRules replaces the default rules.
func WithRules(r *Rules) Option {
	return func(s *Store) {
		if r != nil {
			s.rules = r
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store over repos.
func New(repos RepositoryManager, opts ...Option) (*Store, error) {
	if err := repos.Validate(); err != nil {
		return nil, err
	}
	_, logger := academia.ResolveLogger("academia.docstore", nil, nil)
	s := &Store{
		repos:  repos,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.rules == nil {
		rules, err := NewRules(nil)
		if err != nil {
			return nil, err
		}
		s.rules = rules
	}
	return s, nil
}

// Repositories exposes the unguarded repositories for operator tooling.
func (s *Store) Repositories() RepositoryManager {
	return s.repos
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db().PingContext(ctx)
}

func (s *Store) db() *bun.DB {
	return s.repos.DB()
}

// callerRole reads the caller's own profile without rule checks, the same
// way access rules read other documents.
func (s *Store) callerRole(ctx context.Context, caller academia.Caller) (academia.Role, error) {
	if caller.Anonymous() {
		return academia.RoleUnknown, nil
	}
	id, err := uuid.Parse(caller.UID)
	if err != nil {
		return academia.RoleUnknown, nil
	}
	p := &Profile{}
	err = s.db().NewSelect().Model(p).Column("role").Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return academia.RoleUnknown, nil
		}
		return academia.RoleUnknown, err
	}
	role, _ := academia.ParseRole(string(p.Role))
	return role, nil
}

func (s *Store) authorize(ctx context.Context, caller academia.Caller, collection string, op Op, docID string, doc map[string]any) error {
	role, err := s.callerRole(ctx, caller)
	if err != nil {
		return fmt.Errorf("resolve caller role: %w", err)
	}

	allowed, err := s.rules.Allow(ctx, Request{
		Collection: collection,
		Op:         op,
		DocID:      docID,
		Doc:        doc,
		Caller:     caller,
		CallerRole: role,
	})
	if err != nil {
		s.logger.Error("rule evaluation failed", "collection", collection, "op", op, "error", err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s %s/%s", academia.ErrPermissionDenied, op, collection, docID)
	}
	return nil
}

func isNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

func notFound(collection, id string) error {
	return fmt.Errorf("%w: %s/%s", academia.ErrNotFound, collection, id)
}

func mapErr(err error, collection, id string) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return notFound(collection, id)
	}
	return err
}

func parseID(collection, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil || parsed == uuid.Nil {
		return uuid.Nil, notFound(collection, id)
	}
	return parsed, nil
}

func getByID[T any](ctx context.Context, repo repository.Repository[T], collection string, id uuid.UUID) (T, error) {
	record, err := repo.GetByID(ctx, id.String())
	if err != nil {
		var zero T
		return zero, mapErr(err, collection, id.String())
	}
	return record, nil
}

// replace writes every column of record, so cleared fields are stored too.
func replace[T any](ctx context.Context, db bun.IDB, record T, collection string, id uuid.UUID) (T, error) {
	res, err := db.NewUpdate().Model(record).WherePK().Exec(ctx)
	if err == nil {
		err = repository.SQLExpectedCount(res, 1)
	}
	if err != nil {
		var zero T
		if repository.IsSQLExpectedCountViolation(err) {
			return zero, notFound(collection, id.String())
		}
		return zero, err
	}
	return record, nil
}

func (s *Store) deleteByID(ctx context.Context, model any, collection string, id uuid.UUID) error {
	res, err := s.db().NewDelete().Model(model).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(collection, id.String())
	}
	return nil
}

func (s *Store) timestamp() *time.Time {
	now := s.now().UTC()
	return &now
}
