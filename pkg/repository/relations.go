package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/festy23/datajpa/pkg/persistence"
)

func resolveGraph(reg *registry, names []string) ([]*schema.Relationship, error) {
	graph := make([]*schema.Relationship, 0, len(names))
	for _, name := range names {
		rel, err := reg.relation(name)
		if err != nil {
			return nil, err
		}
		if rel.Type == schema.Many2Many {
			return nil, fmt.Errorf("%w: %s.%s is many-to-many", ErrUnsupportedRelation, reg.schema.Name, rel.Name)
		}
		graph = append(graph, rel)
	}
	return graph, nil
}

func isToOne(rel *schema.Relationship) bool {
	return rel.Type == schema.BelongsTo || rel.Type == schema.HasOne
}

// withGraph joins to-one relations and preloads collections.
func withGraph(conn *gorm.DB, graph []*schema.Relationship) *gorm.DB {
	for _, rel := range graph {
		if isToOne(rel) {
			conn = conn.Joins(rel.Name)
		} else {
			conn = conn.Preload(rel.Name)
		}
	}
	return conn
}

// initRelations copies relations fetched into loaded onto managed where
// managed has not resolved them yet. Resolved relations are left untouched.
func initRelations[T any](ctx context.Context, managed, loaded *T, fetched []*schema.Relationship) {
	mv := reflect.ValueOf(managed).Elem()
	lv := reflect.ValueOf(loaded).Elem()
	for _, rel := range fetched {
		target := rel.Field.ReflectValueOf(ctx, mv)
		if !target.IsZero() {
			continue
		}
		target.Set(rel.Field.ReflectValueOf(ctx, lv))
	}
}

// manageRelated makes the related entities held by field v managed, replacing
// each by the instance already managed for the same row.
func manageRelated(ctx context.Context, pc *persistence.Context, v reflect.Value, related *schema.Schema) {
	if pc == nil || related == nil || related.PrioritizedPrimaryField == nil {
		return
	}
	pk := related.PrioritizedPrimaryField

	mergePtr := func(p reflect.Value) {
		if p.Kind() != reflect.Pointer || p.IsNil() || !p.CanSet() {
			return
		}
		id, zero := pk.ValueOf(ctx, p.Elem())
		if zero {
			return
		}
		p.Set(reflect.ValueOf(persistence.MergeValue(pc, id, p.Interface())))
	}

	switch v.Kind() {
	case reflect.Pointer:
		mergePtr(v)
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			mergePtr(v.Index(i))
		}
	}
}

func (r *gormRepository[T, ID]) LoadRelation(ctx context.Context, entity *T, relation string) error {
	if entity == nil {
		return fmt.Errorf("cannot load %s of nil %s", relation, r.name())
	}
	rel, err := r.reg.relation(relation)
	if err != nil {
		return err
	}
	if rel.Type == schema.Many2Many || len(rel.References) != 1 {
		return fmt.Errorf("%w: %s.%s", ErrUnsupportedRelation, r.name(), rel.Name)
	}

	r.logger.Debugw("LoadRelation called", "entity", r.name(), "relation", rel.Name)

	owner := reflect.ValueOf(entity).Elem()
	target := rel.Field.ReflectValueOf(ctx, owner)
	ref := rel.References[0]

	// Has-one and has-many relations reference the owner's key from the related
	// table; belongs-to relations hold the related key on the owner.
	var (
		key    any
		zero   bool
		column string
	)
	if ref.OwnPrimaryKey {
		key, zero = ref.PrimaryKey.ValueOf(ctx, owner)
		column = ref.ForeignKey.DBName
	} else {
		key, zero = ref.ForeignKey.ValueOf(ctx, owner)
		column = ref.PrimaryKey.DBName
	}
	if zero {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	if kv := reflect.ValueOf(key); kv.Kind() == reflect.Pointer {
		key = kv.Elem().Interface()
	}

	conn := r.DB(ctx).Clauses(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: column}, Value: key},
	}})

	pc := persistence.FromContext(ctx)
	switch target.Kind() {
	case reflect.Slice:
		dest := reflect.New(target.Type())
		if err := conn.Find(dest.Interface()).Error; err != nil {
			r.logger.Errorw("LoadRelation database error", "entity", r.name(), "relation", rel.Name, "error", err)
			return err
		}
		if dest.Elem().IsNil() {
			dest.Elem().Set(reflect.MakeSlice(target.Type(), 0, 0))
		}
		target.Set(dest.Elem())
	case reflect.Pointer:
		dest := reflect.New(target.Type().Elem())
		if err := conn.Take(dest.Interface()).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				target.Set(reflect.Zero(target.Type()))
				return nil
			}
			r.logger.Errorw("LoadRelation database error", "entity", r.name(), "relation", rel.Name, "error", err)
			return err
		}
		target.Set(dest)
	default:
		dest := reflect.New(target.Type())
		if err := conn.Take(dest.Interface()).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Errorw("LoadRelation database error", "entity", r.name(), "relation", rel.Name, "error", err)
			return err
		}
		target.Set(dest.Elem())
	}

	manageRelated(ctx, pc, target, rel.FieldSchema)
	return nil
}
