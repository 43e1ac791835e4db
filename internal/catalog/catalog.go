package catalog

import (
	"fmt"
	"sync"
)

// Catalog is a concurrency-safe, in-memory registry of table schemas.
type Catalog struct {
	mu     sync.Mutex
	tables map[string]*TableSchema
}

// New creates an empty Catalog.
func New() *Catalog {
	return &Catalog{tables: make(map[string]*TableSchema)}
}

// AddTableSchema registers schema under name, overwriting any prior entry.
func (c *Catalog) AddTableSchema(schema *TableSchema, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[name] = schema
}

// Lookup returns the schema registered under name.
func (c *Catalog) Lookup(name string) (*TableSchema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("catalog: no such table %q", name)
	}
	return s, nil
}
