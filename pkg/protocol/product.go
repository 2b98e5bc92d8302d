package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Product is one sellable item in a scope's catalog. The name is the key
// in the scope's product map, so it is not serialized inside the record.
type Product struct {
	Name   string `json:"-"`
	Price  string `json:"price"`
	Stock  int    `json:"stock"`
	Coupon string `json:"coupon,omitempty"`
}

// Scope is an ordered collection of products belonging to one conversation.
// Insertion order is preserved so menus render stably across reloads.
type Scope struct {
	names    []string
	products map[string]Product
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{products: make(map[string]Product)}
}

// Put inserts or overwrites a product. Re-adding an existing name replaces
// its record but keeps its menu position.
func (s *Scope) Put(p Product) {
	if s.products == nil {
		s.products = make(map[string]Product)
	}
	if _, ok := s.products[p.Name]; !ok {
		s.names = append(s.names, p.Name)
	}
	s.products[p.Name] = p
}

// Get looks up a product by name.
func (s *Scope) Get(name string) (Product, bool) {
	p, ok := s.products[name]
	return p, ok
}

// Len returns the number of products in the scope.
func (s *Scope) Len() int { return len(s.names) }

// Products returns the products in insertion order.
func (s *Scope) Products() []Product {
	out := make([]Product, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.products[name])
	}
	return out
}

// MarshalJSON renders the scope as a JSON object keyed by product name,
// keys in insertion order.
func (s *Scope) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		rec, err := json.Marshal(s.products[name])
		if err != nil {
			return nil, err
		}
		buf.Write(rec)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keyed by product name, preserving the
// document's key order.
func (s *Scope) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("protocol: scope: expected object, got %v", tok)
	}

	s.names = nil
	s.products = make(map[string]Product)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("protocol: scope: expected key, got %v", tok)
		}
		var p Product
		if err := dec.Decode(&p); err != nil {
			return err
		}
		p.Name = name
		s.Put(p)
	}
	_, err = dec.Token() // closing brace
	return err
}

// Catalog is the full persisted document: scope key to scope. It is the
// entire durable state of the storefront.
type Catalog map[string]*Scope

// Ensure returns the scope for key, creating it if absent.
func (c Catalog) Ensure(key string) *Scope {
	sc, ok := c[key]
	if !ok {
		sc = NewScope()
		c[key] = sc
	}
	return sc
}
