package repository

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// registry resolves entity property names to columns and relations. It is
// built once per repository from the gorm schema of the entity.
type registry struct {
	schema     *schema.Schema
	properties map[string]*schema.Field
	relations  map[string]*schema.Relationship
}

func newRegistry(db *gorm.DB, model any) (*registry, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("failed to parse entity schema: %w", err)
	}
	s := stmt.Schema

	if s.PrioritizedPrimaryField == nil {
		return nil, fmt.Errorf("entity %s has no primary key", s.Name)
	}

	r := &registry{
		schema:     s,
		properties: make(map[string]*schema.Field),
		relations:  make(map[string]*schema.Relationship),
	}
	for _, f := range s.Fields {
		if f.DBName == "" {
			continue
		}
		r.properties[strings.ToLower(f.Name)] = f
		r.properties[strings.ToLower(f.DBName)] = f
	}
	for name, rel := range s.Relationships.Relations {
		r.relations[strings.ToLower(name)] = rel
	}
	return r, nil
}

// field resolves a property by Go field name or column name, ignoring case.
func (r *registry) field(property string) (*schema.Field, error) {
	f, ok := r.properties[strings.ToLower(property)]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no property %q", ErrUnknownProperty, r.schema.Name, property)
	}
	return f, nil
}

func (r *registry) column(property string) (clause.Column, error) {
	f, err := r.field(property)
	if err != nil {
		return clause.Column{}, err
	}
	return clause.Column{Table: clause.CurrentTable, Name: f.DBName}, nil
}

func (r *registry) relation(name string) (*schema.Relationship, error) {
	rel, ok := r.relations[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no relation %q", ErrUnknownProperty, r.schema.Name, name)
	}
	return rel, nil
}

func (r *registry) orderBy(sort Sort) ([]clause.OrderByColumn, error) {
	orders := make([]clause.OrderByColumn, 0, len(sort))
	for _, o := range sort {
		col, err := r.column(o.Property)
		if err != nil {
			return nil, err
		}
		orders = append(orders, clause.OrderByColumn{Column: col, Desc: o.IsDescending()})
	}
	return orders, nil
}

// primaryKey returns the primary key value of entity and whether it is zero.
func (r *registry) primaryKey(ctx context.Context, entity any) (any, bool) {
	v := reflect.Indirect(reflect.ValueOf(entity))
	return r.schema.PrioritizedPrimaryField.ValueOf(ctx, v)
}
