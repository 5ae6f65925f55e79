package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/festy23/datajpa/pkg/persistence"
)

// QueryOption configures a derived query at registration.
type QueryOption func(*queryOptions)

type queryOptions struct {
	graph              []string
	clearAutomatically bool
}

// WithEntityGraph fetches the named relations together with the query results.
// To-one relations are joined in the same statement; collections are loaded
// by one extra query per relation.
func WithEntityGraph(relations ...string) QueryOption {
	return func(o *queryOptions) {
		o.graph = append(o.graph, relations...)
	}
}

// WithClearAutomatically clears the persistence context after a modifying
// derived query, so later reads observe the new row state.
func WithClearAutomatically() QueryOption {
	return func(o *queryOptions) {
		o.clearAutomatically = true
	}
}

// Assignments maps entity properties to new values for a bulk update.
// Values may be gorm expressions such as gorm.Expr("age + ?", 1).
type Assignments map[string]any

// Modifying is an explicit bulk statement.
type Modifying struct {
	SQL string

	// ClearAutomatically clears the persistence context after execution.
	ClearAutomatically bool
}

// host is the part of a repository a derived query runs against.
type host[T any] interface {
	Executor
	registry() *registry
	log() *zap.SugaredLogger
	manage(ctx context.Context, entities []*T, fetched []*schema.Relationship) []*T
	detach(ctx context.Context, entity *T)
}

// DerivedQuery is a query parsed from a method-style name such as
// "findByUsernameAndAgeGreaterThan". Parsing happens once; arguments are bound
// positionally on every call.
type DerivedQuery[T any] struct {
	host               host[T]
	plan               *plan
	graph              []*schema.Relationship
	clearAutomatically bool
}

func derive[T any](h host[T], name string, opts ...QueryOption) (*DerivedQuery[T], error) {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	p, err := parsePlan(name, h.registry())
	if err != nil {
		return nil, err
	}

	graph, err := resolveGraph(h.registry(), o.graph)
	if err != nil {
		return nil, malformedBy(name, err)
	}
	if len(graph) > 0 && p.kind != subjectFind {
		return nil, malformed(name, "entity graph applies to find queries only")
	}
	if o.clearAutomatically && p.kind != subjectUpdate && p.kind != subjectDelete {
		return nil, malformed(name, "clear automatically applies to update and delete queries only")
	}

	return &DerivedQuery[T]{host: h, plan: p, graph: graph, clearAutomatically: o.clearAutomatically}, nil
}

func (r *gormRepository[T, ID]) Derive(name string, opts ...QueryOption) (*DerivedQuery[T], error) {
	q, err := derive[T](r, name, opts...)
	if err != nil {
		r.logger.Errorw("Derive failed", "entity", r.name(), "query", name, "error", err)
		return nil, err
	}
	return q, nil
}

func (r *gormRepository[T, ID]) MustDerive(name string, opts ...QueryOption) *DerivedQuery[T] {
	q, err := r.Derive(name, opts...)
	if err != nil {
		panic(err)
	}
	return q
}

// Name returns the name the query was derived from.
func (q *DerivedQuery[T]) Name() string {
	return q.plan.name
}

// Arity returns the number of arguments every call must bind.
func (q *DerivedQuery[T]) Arity() int {
	return q.plan.arity
}

func (q *DerivedQuery[T]) where(ctx context.Context, args []any) (*gorm.DB, error) {
	exprs, err := q.plan.conditions(args)
	if err != nil {
		return nil, err
	}
	conn := q.host.DB(ctx).Model(new(T))
	if len(exprs) > 0 {
		conn = conn.Clauses(clause.Where{Exprs: exprs})
	}
	return conn, nil
}

// Find returns every matching entity in the order named by the query.
func (q *DerivedQuery[T]) Find(ctx context.Context, args ...any) ([]*T, error) {
	return q.find(ctx, nil, q.plan.limit, args)
}

// FindSorted is Find with additional orders applied after the query's own.
func (q *DerivedQuery[T]) FindSorted(ctx context.Context, sort Sort, args ...any) ([]*T, error) {
	return q.find(ctx, sort, q.plan.limit, args)
}

func (q *DerivedQuery[T]) find(ctx context.Context, sort Sort, limit int, args []any) ([]*T, error) {
	q.host.log().Debugw("Derived query called", "query", q.plan.name, "args", len(args))

	extra, err := q.host.registry().orderBy(sort)
	if err != nil {
		return nil, err
	}
	conn, err := q.where(ctx, args)
	if err != nil {
		return nil, err
	}
	if q.plan.distinct {
		conn = conn.Distinct()
	}
	conn = withGraph(conn, q.graph)
	for _, o := range append(append([]clause.OrderByColumn{}, q.plan.orders...), extra...) {
		conn = conn.Order(o)
	}
	if limit > 0 {
		conn = conn.Limit(limit)
	}

	var entities []*T
	if err := conn.Find(&entities).Error; err != nil {
		q.host.log().Errorw("Derived query database error", "query", q.plan.name, "error", err)
		return nil, err
	}
	return q.host.manage(ctx, nonNil(entities), q.graph), nil
}

// FindOne returns the single matching entity. found is false when nothing
// matches; ErrNonUniqueResult is returned when more than one row matches.
func (q *DerivedQuery[T]) FindOne(ctx context.Context, args ...any) (entity *T, found bool, err error) {
	limit := q.plan.limit
	if limit == 0 || limit > 2 {
		limit = 2
	}
	entities, err := q.find(ctx, nil, limit, args)
	if err != nil {
		return nil, false, err
	}
	switch len(entities) {
	case 0:
		return nil, false, nil
	case 1:
		return entities[0], true, nil
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrNonUniqueResult, q.plan.name)
	}
}

// FindPage returns one page of the matching entities. The total is counted
// without the entity graph, and only when the page content cannot determine it.
func (q *DerivedQuery[T]) FindPage(ctx context.Context, pageable Pageable, args ...any) (*Page[T], error) {
	q.host.log().Debugw("Derived page query called", "query", q.plan.name,
		"page", pageable.Page, "size", pageable.Size)

	exprs, err := q.plan.conditions(args)
	if err != nil {
		return nil, err
	}
	return findPage(ctx, q.host, pageable, pageQuery{
		scope: func(conn *gorm.DB) *gorm.DB {
			if len(exprs) == 0 {
				return conn
			}
			return conn.Clauses(clause.Where{Exprs: exprs})
		},
		orders:   q.plan.orders,
		graph:    q.graph,
		distinct: q.plan.distinct,
	})
}

// Count returns the number of matching rows.
func (q *DerivedQuery[T]) Count(ctx context.Context, args ...any) (int64, error) {
	conn, err := q.where(ctx, args)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := conn.Count(&n).Error; err != nil {
		q.host.log().Errorw("Derived count database error", "query", q.plan.name, "error", err)
		return 0, err
	}
	return n, nil
}

// Exists reports whether at least one row matches.
func (q *DerivedQuery[T]) Exists(ctx context.Context, args ...any) (bool, error) {
	n, err := q.Count(ctx, args...)
	return n > 0, err
}

// Delete loads the matching entities and removes them one by one, detaching
// each from the persistence context. It returns the number removed.
func (q *DerivedQuery[T]) Delete(ctx context.Context, args ...any) (int64, error) {
	entities, err := q.find(ctx, nil, 0, args)
	if err != nil {
		return 0, err
	}

	reg := q.host.registry()
	var removed int64
	for _, e := range entities {
		id, zero := reg.primaryKey(ctx, e)
		if zero {
			continue
		}
		col := clause.Column{Table: clause.CurrentTable, Name: reg.schema.PrioritizedPrimaryField.DBName}
		res := q.host.DB(ctx).Clauses(clause.Where{Exprs: []clause.Expression{clause.Eq{Column: col, Value: id}}}).
			Delete(new(T))
		if res.Error != nil {
			q.host.log().Errorw("Derived delete database error", "query", q.plan.name, "error", res.Error)
			return removed, res.Error
		}
		removed += res.RowsAffected
		q.host.detach(ctx, e)
	}

	if q.clearAutomatically {
		persistence.Clear(ctx)
	}
	return removed, nil
}

// Update applies set to every matching row in a single statement and returns
// the affected row count. Entity hooks do not run and managed instances are
// not refreshed unless the query clears the persistence context.
func (q *DerivedQuery[T]) Update(ctx context.Context, set Assignments, args ...any) (int64, error) {
	if len(set) == 0 {
		return 0, fmt.Errorf("%w: %s: no assignments", ErrMalformedQuery, q.plan.name)
	}

	values := make(map[string]any, len(set))
	for property, v := range set {
		col, err := q.host.registry().column(property)
		if err != nil {
			return 0, err
		}
		values[col.Name] = v
	}

	conn, err := q.where(ctx, args)
	if err != nil {
		return 0, err
	}
	if len(q.plan.predicates) == 0 {
		conn = conn.Session(&gorm.Session{AllowGlobalUpdate: true})
	}

	q.host.log().Debugw("Bulk update called", "query", q.plan.name, "columns", len(values))
	res := conn.UpdateColumns(values)
	if res.Error != nil {
		q.host.log().Errorw("Bulk update database error", "query", q.plan.name, "error", res.Error)
		return 0, res.Error
	}

	if q.clearAutomatically {
		persistence.Clear(ctx)
	}
	return res.RowsAffected, nil
}

type pageQuery struct {
	scope    func(*gorm.DB) *gorm.DB
	orders   []clause.OrderByColumn
	graph    []*schema.Relationship
	distinct bool
}

func findPage[T any](ctx context.Context, h host[T], pageable Pageable, pq pageQuery) (*Page[T], error) {
	if err := pageable.Validate(); err != nil {
		return nil, err
	}
	extra, err := h.registry().orderBy(pageable.Sort)
	if err != nil {
		return nil, err
	}

	conn := pq.scope(h.DB(ctx).Model(new(T)))
	if pq.distinct {
		conn = conn.Distinct()
	}
	conn = withGraph(conn, pq.graph)
	for _, o := range append(append([]clause.OrderByColumn{}, pq.orders...), extra...) {
		conn = conn.Order(o)
	}

	var content []*T
	if err := conn.Offset(pageable.Offset()).Limit(pageable.Size).Find(&content).Error; err != nil {
		h.log().Errorw("Page query database error", "error", err)
		return nil, err
	}
	content = h.manage(ctx, nonNil(content), pq.graph)

	total, err := pageTotal(pageable, len(content), func() (int64, error) {
		var n int64
		err := pq.scope(h.DB(ctx).Model(new(T))).Count(&n).Error
		return n, err
	})
	if err != nil {
		h.log().Errorw("Page count database error", "error", err)
		return nil, err
	}
	return NewPage(content, pageable, total), nil
}

func (r *gormRepository[T, ID]) Query(ctx context.Context, sql string, args ...any) ([]*T, error) {
	r.logger.Debugw("Query called", "entity", r.name())

	var entities []*T
	if err := r.DB(ctx).Raw(sql, args...).Scan(&entities).Error; err != nil {
		r.logger.Errorw("Query database error", "entity", r.name(), "error", err)
		return nil, err
	}
	return r.manage(ctx, nonNil(entities), nil), nil
}

func (r *gormRepository[T, ID]) FindScoped(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]*T, error) {
	r.logger.Debugw("FindScoped called", "entity", r.name(), "scopes", len(scopes))

	var entities []*T
	if err := r.DB(ctx).Model(new(T)).Scopes(scopes...).Find(&entities).Error; err != nil {
		r.logger.Errorw("FindScoped database error", "entity", r.name(), "error", err)
		return nil, err
	}
	return r.manage(ctx, nonNil(entities), nil), nil
}

func (r *gormRepository[T, ID]) FetchJoin(ctx context.Context, relations ...string) ([]*T, error) {
	r.logger.Debugw("FetchJoin called", "entity", r.name(), "relations", relations)

	graph, err := resolveGraph(r.reg, relations)
	if err != nil {
		return nil, err
	}
	conn := r.DB(ctx).Model(new(T))
	for _, rel := range graph {
		if !isToOne(rel) {
			return nil, fmt.Errorf("%w: %s.%s is a collection; fetch it with an entity graph",
				ErrUnsupportedRelation, r.name(), rel.Name)
		}
		conn = conn.Joins(rel.Name)
	}

	var entities []*T
	if err := conn.Find(&entities).Error; err != nil {
		r.logger.Errorw("FetchJoin database error", "entity", r.name(), "error", err)
		return nil, err
	}
	return r.manage(ctx, nonNil(entities), graph), nil
}

func (r *gormRepository[T, ID]) Exec(ctx context.Context, m Modifying, args ...any) (int64, error) {
	r.logger.Debugw("Exec called", "entity", r.name(), "clearAutomatically", m.ClearAutomatically)

	res := r.DB(ctx).Exec(m.SQL, args...)
	if res.Error != nil {
		r.logger.Errorw("Exec database error", "entity", r.name(), "error", res.Error)
		return 0, res.Error
	}
	if m.ClearAutomatically {
		persistence.Clear(ctx)
	}
	return res.RowsAffected, nil
}

// Scan runs an explicit query on the connection bound to ctx and scans each
// row into R. R is typically a scalar or a DTO struct; rows are not managed.
func Scan[R any](ctx context.Context, e Executor, sql string, args ...any) ([]R, error) {
	var rows []R
	if err := e.DB(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []R{}
	}
	return rows, nil
}
