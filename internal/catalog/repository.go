// Package catalog holds the per-scope product collections and the
// serialized load-mutate-save transactions that keep stock consistent
// under concurrent gateway events.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vitrine-io/vitrine/internal/store"
	"github.com/vitrine-io/vitrine/pkg/protocol"
)

// ErrProductNotFound is returned when a product name does not resolve in
// its scope, typically because a menu was rendered from a stale snapshot.
var ErrProductNotFound = errors.New("catalog: product not found")

// ErrOutOfStock is returned when a decrement finds zero stock. It is an
// expected race outcome, not a fault.
var ErrOutOfStock = errors.New("catalog: out of stock")

// Repository performs catalog operations. Every call is one logical
// transaction: load, mutate, save, executed under the scope's lock so two
// confirms on the same product can never both observe the same stock.
type Repository struct {
	store  store.Store
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a repository on top of st.
func New(st store.Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		store:  st,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// scopeLock returns the mutex serializing transactions for one scope key.
func (r *Repository) scopeLock(scope string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[scope]
	if !ok {
		l = &sync.Mutex{}
		r.locks[scope] = l
	}
	return l
}

// AddProduct inserts or overwrites a product in scope. Re-adding an
// existing name replaces its record.
func (r *Repository) AddProduct(scope string, p protocol.Product) error {
	l := r.scopeLock(scope)
	l.Lock()
	defer l.Unlock()

	cat, err := r.store.Load()
	if err != nil {
		return err
	}
	cat.Ensure(scope).Put(p)
	if err := r.store.Save(cat); err != nil {
		return err
	}
	r.logger.Info("product added", "scope", scope, "name", p.Name, "stock", p.Stock)
	return nil
}

// ListProducts returns the scope's products in insertion order. An empty
// or unknown scope yields an empty slice.
func (r *Repository) ListProducts(scope string) ([]protocol.Product, error) {
	l := r.scopeLock(scope)
	l.Lock()
	defer l.Unlock()

	cat, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	sc, ok := cat[scope]
	if !ok {
		return []protocol.Product{}, nil
	}
	return sc.Products(), nil
}

// GetProduct looks up one product by name.
func (r *Repository) GetProduct(scope, name string) (protocol.Product, error) {
	l := r.scopeLock(scope)
	l.Lock()
	defer l.Unlock()

	cat, err := r.store.Load()
	if err != nil {
		return protocol.Product{}, err
	}
	sc, ok := cat[scope]
	if !ok {
		return protocol.Product{}, fmt.Errorf("%w: %s/%s", ErrProductNotFound, scope, name)
	}
	p, ok := sc.Get(name)
	if !ok {
		return protocol.Product{}, fmt.Errorf("%w: %s/%s", ErrProductNotFound, scope, name)
	}
	return p, nil
}

// DecrementStock atomically takes one unit of stock and returns the new
// value. The stock check happens inside the critical section, so of N
// concurrent callers on a product with stock S exactly min(N, S) succeed
// and the rest get ErrOutOfStock.
func (r *Repository) DecrementStock(scope, name string) (int, error) {
	l := r.scopeLock(scope)
	l.Lock()
	defer l.Unlock()

	cat, err := r.store.Load()
	if err != nil {
		return 0, err
	}
	sc, ok := cat[scope]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrProductNotFound, scope, name)
	}
	p, ok := sc.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrProductNotFound, scope, name)
	}
	if p.Stock <= 0 {
		return 0, fmt.Errorf("%w: %s/%s", ErrOutOfStock, scope, name)
	}

	p.Stock--
	sc.Put(p)
	if err := r.store.Save(cat); err != nil {
		return 0, err
	}
	r.logger.Info("stock decremented", "scope", scope, "name", name, "stock", p.Stock)
	return p.Stock, nil
}

// ResetScope sets every product's stock in scope to zero, keeping the
// entries themselves.
func (r *Repository) ResetScope(scope string) error {
	l := r.scopeLock(scope)
	l.Lock()
	defer l.Unlock()

	cat, err := r.store.Load()
	if err != nil {
		return err
	}
	sc, ok := cat[scope]
	if !ok {
		return nil
	}
	for _, p := range sc.Products() {
		p.Stock = 0
		sc.Put(p)
	}
	if err := r.store.Save(cat); err != nil {
		return err
	}
	r.logger.Info("scope stock reset", "scope", scope)
	return nil
}

// ClearScope removes every product entry from scope.
func (r *Repository) ClearScope(scope string) error {
	l := r.scopeLock(scope)
	l.Lock()
	defer l.Unlock()

	cat, err := r.store.Load()
	if err != nil {
		return err
	}
	if _, ok := cat[scope]; !ok {
		return nil
	}
	cat[scope] = protocol.NewScope()
	if err := r.store.Save(cat); err != nil {
		return err
	}
	r.logger.Info("scope cleared", "scope", scope)
	return nil
}

// Scopes returns the known scope keys, sorted.
func (r *Repository) Scopes() ([]string, error) {
	cat, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(cat))
	for k := range cat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
