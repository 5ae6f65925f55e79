// Package repository provides a generic gorm-backed repository: CRUD, paging
// and sorting, derived queries parsed from method-style names, explicit
// queries, bulk modifications and fetch strategies for relations.
//
// Reads and writes go through the persistence context bound to the call's
// context (see package persistence), so within one unit of work a row is
// represented by a single managed instance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/festy23/datajpa/pkg/persistence"
)

// CrudRepository defines basic persistence operations for entity T identified by ID.
type CrudRepository[T any, ID comparable] interface {
	// Save inserts entity when its primary key is zero and updates it otherwise.
	Save(ctx context.Context, entity *T) (*T, error)

	// SaveAll saves every entity in order.
	SaveAll(ctx context.Context, entities []*T) ([]*T, error)

	// FindByID returns the entity with id; found is false when it does not exist.
	FindByID(ctx context.Context, id ID) (entity *T, found bool, err error)

	// GetByID returns the entity with id or ErrNotFound.
	GetByID(ctx context.Context, id ID) (*T, error)

	// ExistsByID reports whether an entity with id exists.
	ExistsByID(ctx context.Context, id ID) (bool, error)

	// FindAll returns every entity, ordered by orders.
	FindAll(ctx context.Context, orders ...Order) ([]*T, error)

	// Count returns the number of stored entities.
	Count(ctx context.Context) (int64, error)

	// Delete removes entity.
	Delete(ctx context.Context, entity *T) error

	// DeleteByID removes the entity with id; absence is not an error.
	DeleteByID(ctx context.Context, id ID) error

	// DeleteAll removes every entity.
	DeleteAll(ctx context.Context) error
}

// PagingRepository defines paged access to all entities.
type PagingRepository[T any] interface {
	// FindPage returns one page of all entities.
	FindPage(ctx context.Context, pageable Pageable) (*Page[T], error)
}

// QueryRepository defines derived, explicit and modifying queries.
type QueryRepository[T any] interface {
	// Derive parses a derived query name once and returns an executable query.
	Derive(name string, opts ...QueryOption) (*DerivedQuery[T], error)

	// MustDerive is like Derive but panics on a malformed name.
	MustDerive(name string, opts ...QueryOption) *DerivedQuery[T]

	// Query runs an explicit SQL query whose rows are entities.
	Query(ctx context.Context, sql string, args ...any) ([]*T, error)

	// FindScoped runs a query built with gorm scopes whose rows are entities.
	FindScoped(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]*T, error)

	// FetchJoin loads all entities with the given to-one relations joined in the same statement.
	FetchJoin(ctx context.Context, relations ...string) ([]*T, error)

	// Exec runs an explicit modifying statement and returns the affected row count.
	Exec(ctx context.Context, m Modifying, args ...any) (int64, error)

	// LoadRelation resolves a relation of entity that was not fetched with it.
	LoadRelation(ctx context.Context, entity *T, relation string) error
}

// Executor exposes the connection bound to a context.
type Executor interface {
	// DB returns the connection for ctx: the active transaction or the pool.
	DB(ctx context.Context) *gorm.DB
}

// Repository combines CRUD, paging, queries and transactions.
type Repository[T any, ID comparable] interface {
	CrudRepository[T, ID]
	PagingRepository[T]
	QueryRepository[T]
	Executor

	// Transaction runs fn in a transaction shared by every repository using the context.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type gormRepository[T any, ID comparable] struct {
	db     *gorm.DB
	reg    *registry
	logger *zap.SugaredLogger
}

// New creates a repository for entity type T. It fails when gorm cannot parse
// T or when ID does not match the type of the primary key.
func New[T any, ID comparable](db *gorm.DB, logger *zap.SugaredLogger) (Repository[T, ID], error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	reg, err := newRegistry(db, new(T))
	if err != nil {
		return nil, err
	}
	pkType := reg.schema.PrioritizedPrimaryField.FieldType
	if idType := reflect.TypeFor[ID](); idType != pkType {
		return nil, fmt.Errorf("entity %s: identifier type %s does not match primary key type %s",
			reg.schema.Name, idType, pkType)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &gormRepository[T, ID]{db: db, reg: reg, logger: logger}, nil
}

func (r *gormRepository[T, ID]) DB(ctx context.Context) *gorm.DB {
	return persistence.DB(ctx, r.db)
}

func (r *gormRepository[T, ID]) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return persistence.Transaction(ctx, r.db, fn)
}

func (r *gormRepository[T, ID]) name() string {
	return r.reg.schema.Name
}

func (r *gormRepository[T, ID]) registry() *registry {
	return r.reg
}

func (r *gormRepository[T, ID]) log() *zap.SugaredLogger {
	return r.logger
}

func (r *gormRepository[T, ID]) pkWhere(id any) clause.Where {
	pk := r.reg.schema.PrioritizedPrimaryField
	col := clause.Column{Table: clause.CurrentTable, Name: pk.DBName}
	return clause.Where{Exprs: []clause.Expression{clause.Eq{Column: col, Value: id}}}
}

// manage replaces every loaded entity by the instance already managed for the
// same row, if any, and makes the others managed. Relations in fetched are
// copied onto managed instances that have not resolved them yet.
func (r *gormRepository[T, ID]) manage(ctx context.Context, entities []*T, fetched []*schema.Relationship) []*T {
	pc := persistence.FromContext(ctx)
	if pc == nil {
		return entities
	}
	for i, e := range entities {
		id, zero := r.reg.primaryKey(ctx, e)
		if zero {
			continue
		}
		managed, existed := persistence.Merge(pc, id, e)
		if existed && managed != e {
			initRelations(ctx, managed, e, fetched)
		}
		mv := reflect.ValueOf(managed).Elem()
		for _, rel := range fetched {
			manageRelated(ctx, pc, rel.Field.ReflectValueOf(ctx, mv), rel.FieldSchema)
		}
		entities[i] = managed
	}
	return entities
}

func (r *gormRepository[T, ID]) detach(ctx context.Context, entity *T) {
	if id, zero := r.reg.primaryKey(ctx, entity); !zero {
		persistence.Detach[T](persistence.FromContext(ctx), id)
	}
}

func (r *gormRepository[T, ID]) Save(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("cannot save nil %s", r.name())
	}

	conn := r.DB(ctx).Omit(clause.Associations)
	_, isNew := r.reg.primaryKey(ctx, entity)

	var err error
	if isNew {
		r.logger.Debugw("Save called", "entity", r.name(), "operation", "insert")
		err = conn.Create(entity).Error
	} else {
		r.logger.Debugw("Save called", "entity", r.name(), "operation", "update")
		err = conn.Save(entity).Error
	}
	if err != nil {
		r.logger.Errorw("Save database error", "entity", r.name(), "error", err)
		return nil, fmt.Errorf("failed to save %s: %w", r.name(), err)
	}

	id, _ := r.reg.primaryKey(ctx, entity)
	persistence.Register(persistence.FromContext(ctx), id, entity)
	return entity, nil
}

func (r *gormRepository[T, ID]) SaveAll(ctx context.Context, entities []*T) ([]*T, error) {
	saved := make([]*T, 0, len(entities))
	for _, e := range entities {
		s, err := r.Save(ctx, e)
		if err != nil {
			return nil, err
		}
		saved = append(saved, s)
	}
	return saved, nil
}

func (r *gormRepository[T, ID]) FindByID(ctx context.Context, id ID) (*T, bool, error) {
	if managed, ok := persistence.Lookup[T](persistence.FromContext(ctx), id); ok {
		r.logger.Debugw("FindByID served from persistence context", "entity", r.name(), "id", id)
		return managed, true, nil
	}

	r.logger.Debugw("FindByID called", "entity", r.name(), "id", id)
	var entity T
	err := r.DB(ctx).Clauses(r.pkWhere(id)).Take(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		r.logger.Errorw("FindByID database error", "entity", r.name(), "id", id, "error", err)
		return nil, false, err
	}

	return r.manage(ctx, []*T{&entity}, nil)[0], true, nil
}

func (r *gormRepository[T, ID]) GetByID(ctx context.Context, id ID) (*T, error) {
	entity, found, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s with id %v", ErrNotFound, r.name(), id)
	}
	return entity, nil
}

func (r *gormRepository[T, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	if _, ok := persistence.Lookup[T](persistence.FromContext(ctx), id); ok {
		return true, nil
	}
	var n int64
	if err := r.DB(ctx).Model(new(T)).Clauses(r.pkWhere(id)).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *gormRepository[T, ID]) FindAll(ctx context.Context, orders ...Order) ([]*T, error) {
	r.logger.Debugw("FindAll called", "entity", r.name())

	orderBy, err := r.reg.orderBy(Sort(orders))
	if err != nil {
		return nil, err
	}

	conn := r.DB(ctx)
	for _, o := range orderBy {
		conn = conn.Order(o)
	}

	var entities []*T
	if err := conn.Find(&entities).Error; err != nil {
		r.logger.Errorw("FindAll database error", "entity", r.name(), "error", err)
		return nil, err
	}
	return r.manage(ctx, nonNil(entities), nil), nil
}

func (r *gormRepository[T, ID]) FindPage(ctx context.Context, pageable Pageable) (*Page[T], error) {
	r.logger.Debugw("FindPage called", "entity", r.name(), "page", pageable.Page, "size", pageable.Size)
	return findPage[T](ctx, r, pageable, pageQuery{
		scope: func(conn *gorm.DB) *gorm.DB { return conn },
	})
}

func (r *gormRepository[T, ID]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB(ctx).Model(new(T)).Count(&n).Error; err != nil {
		r.logger.Errorw("Count database error", "entity", r.name(), "error", err)
		return 0, err
	}
	return n, nil
}

func (r *gormRepository[T, ID]) Delete(ctx context.Context, entity *T) error {
	if entity == nil {
		return fmt.Errorf("cannot delete nil %s", r.name())
	}
	id, zero := r.reg.primaryKey(ctx, entity)
	if zero {
		return nil
	}

	r.logger.Debugw("Delete called", "entity", r.name(), "id", id)
	if err := r.DB(ctx).Clauses(r.pkWhere(id)).Delete(new(T)).Error; err != nil {
		r.logger.Errorw("Delete database error", "entity", r.name(), "id", id, "error", err)
		return fmt.Errorf("failed to delete %s: %w", r.name(), err)
	}
	persistence.Detach[T](persistence.FromContext(ctx), id)
	return nil
}

func (r *gormRepository[T, ID]) DeleteByID(ctx context.Context, id ID) error {
	r.logger.Debugw("DeleteByID called", "entity", r.name(), "id", id)
	if err := r.DB(ctx).Clauses(r.pkWhere(id)).Delete(new(T)).Error; err != nil {
		r.logger.Errorw("DeleteByID database error", "entity", r.name(), "id", id, "error", err)
		return fmt.Errorf("failed to delete %s: %w", r.name(), err)
	}
	persistence.Detach[T](persistence.FromContext(ctx), id)
	return nil
}

func (r *gormRepository[T, ID]) DeleteAll(ctx context.Context) error {
	r.logger.Infow("DeleteAll called", "entity", r.name())
	err := r.DB(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(new(T)).Error
	if err != nil {
		r.logger.Errorw("DeleteAll database error", "entity", r.name(), "error", err)
		return fmt.Errorf("failed to delete all %s: %w", r.name(), err)
	}
	persistence.DetachAll[T](persistence.FromContext(ctx))
	return nil
}

func nonNil[T any](entities []*T) []*T {
	if entities == nil {
		return []*T{}
	}
	return entities
}
