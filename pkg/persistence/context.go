// Package persistence provides a request-scoped persistence context: an identity
// map of managed entities and the active transaction, both carried in
// context.Context.
package persistence

import (
	"context"
	"reflect"
	"sync"
)

type contextKey struct{}

type entityKey struct {
	typ reflect.Type
	id  any
}

// Context is an identity map of managed entities. A single Context is meant to
// live for one unit of work (one request or one test transaction).
//
// Once an entity is managed, reads of the same row return the managed
// instance, even when storage has been changed behind its back by a bulk
// statement. Clear must be called to observe such changes.
type Context struct {
	mu      sync.Mutex
	managed map[entityKey]any
}

// New creates an empty persistence context.
func New() *Context {
	return &Context{managed: make(map[entityKey]any)}
}

// NewContext returns a copy of ctx carrying a fresh persistence context.
func NewContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, New())
}

// FromContext returns the persistence context bound to ctx, or nil.
func FromContext(ctx context.Context) *Context {
	pc, _ := ctx.Value(contextKey{}).(*Context)
	return pc
}

// Clear detaches every entity managed by the persistence context bound to ctx.
// It is a no-op when ctx carries none.
func Clear(ctx context.Context) {
	if pc := FromContext(ctx); pc != nil {
		pc.Clear()
	}
}

// Clear detaches every managed entity.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.managed = make(map[entityKey]any)
}

// Len returns the number of managed entities.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.managed)
}

func (c *Context) lookup(k entityKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.managed[k]
	return e, ok
}

func (c *Context) merge(k entityKey, entity any) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.managed[k]; ok {
		return existing, true
	}
	c.managed[k] = entity
	return entity, false
}

func (c *Context) put(k entityKey, entity any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.managed[k] = entity
}

func (c *Context) remove(k entityKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.managed, k)
}

func (c *Context) removeType(typ reflect.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.managed {
		if k.typ == typ {
			delete(c.managed, k)
		}
	}
}

func keyOf[T any](id any) entityKey {
	return entityKey{typ: reflect.TypeFor[T](), id: id}
}

// Lookup returns the managed instance of T with the given id.
func Lookup[T any](c *Context, id any) (*T, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.lookup(keyOf[T](id))
	if !ok {
		return nil, false
	}
	return e.(*T), true
}

// Merge makes entity managed unless an instance with the same id already is.
// It returns the managed instance and whether it was already present.
func Merge[T any](c *Context, id any, entity *T) (*T, bool) {
	if c == nil {
		return entity, false
	}
	e, existed := c.merge(keyOf[T](id), entity)
	return e.(*T), existed
}

// Register makes entity the managed instance for id, replacing any previous one.
func Register[T any](c *Context, id any, entity *T) {
	if c == nil {
		return
	}
	c.put(keyOf[T](id), entity)
}

// Detach stops managing the instance of T with the given id.
func Detach[T any](c *Context, id any) {
	if c == nil {
		return
	}
	c.remove(keyOf[T](id))
}

// DetachAll stops managing every instance of T.
func DetachAll[T any](c *Context) {
	if c == nil {
		return
	}
	c.removeType(reflect.TypeFor[T]())
}

// MergeValue is Merge for an entity pointer whose type is only known at run time.
func MergeValue(c *Context, id any, entity any) any {
	if c == nil || entity == nil {
		return entity
	}
	t := reflect.TypeOf(entity)
	if t.Kind() != reflect.Pointer {
		return entity
	}
	e, _ := c.merge(entityKey{typ: t.Elem(), id: id}, entity)
	return e
}

// Contains reports whether entity is the managed instance for id.
func Contains[T any](c *Context, id any, entity *T) bool {
	managed, ok := Lookup[T](c, id)
	return ok && managed == entity
}
