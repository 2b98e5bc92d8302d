package catalog

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vitrine-io/vitrine/internal/store"
	"github.com/vitrine-io/vitrine/pkg/protocol"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, nil)
}

func TestAddProductOverwrites(t *testing.T) {
	r := newTestRepo(t)

	if err := r.AddProduct("s1", protocol.Product{Name: "Sword", Price: "$10", Stock: 3}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.AddProduct("s1", protocol.Product{Name: "Sword", Price: "$12", Stock: 9}); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	ps, err := r.ListProducts("s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ps) != 1 {
		t.Fatalf("expected 1 product, got %d", len(ps))
	}
	if ps[0].Price != "$12" || ps[0].Stock != 9 {
		t.Errorf("expected last write to win, got %+v", ps[0])
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	r := newTestRepo(t)

	names := []string{"Zeta", "Alpha", "Mid"}
	for _, n := range names {
		r.AddProduct("s1", protocol.Product{Name: n, Price: "$1", Stock: 1})
	}

	ps, _ := r.ListProducts("s1")
	for i, n := range names {
		if ps[i].Name != n {
			t.Fatalf("position %d: got %q, want %q", i, ps[i].Name, n)
		}
	}
}

func TestListEmptyScope(t *testing.T) {
	r := newTestRepo(t)
	ps, err := r.ListProducts("nowhere")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ps) != 0 {
		t.Errorf("expected empty list, got %v", ps)
	}
}

func TestGetProductNotFound(t *testing.T) {
	r := newTestRepo(t)
	r.AddProduct("s1", protocol.Product{Name: "Sword", Price: "$10", Stock: 1})

	if _, err := r.GetProduct("s1", "Missing"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := r.GetProduct("other", "Sword"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("unknown scope: expected ErrProductNotFound, got %v", err)
	}
}

func TestDecrementStock(t *testing.T) {
	r := newTestRepo(t)
	r.AddProduct("s1", protocol.Product{Name: "Sword", Price: "$10", Stock: 2})

	left, err := r.DecrementStock("s1", "Sword")
	if err != nil || left != 1 {
		t.Fatalf("first decrement: left=%d err=%v", left, err)
	}
	left, err = r.DecrementStock("s1", "Sword")
	if err != nil || left != 0 {
		t.Fatalf("second decrement: left=%d err=%v", left, err)
	}
	if _, err = r.DecrementStock("s1", "Sword"); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	p, _ := r.GetProduct("s1", "Sword")
	if p.Stock != 0 {
		t.Errorf("stock went negative: %d", p.Stock)
	}
}

func TestDecrementStockConcurrent(t *testing.T) {
	r := newTestRepo(t)
	const initial = 3
	const attempts = 10
	r.AddProduct("s1", protocol.Product{Name: "Sword", Price: "$10", Stock: initial})

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.DecrementStock("s1", "Sword")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, outOfStock int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != initial {
		t.Errorf("expected %d successful decrements, got %d", initial, ok)
	}
	if outOfStock != attempts-initial {
		t.Errorf("expected %d out-of-stock, got %d", attempts-initial, outOfStock)
	}

	p, _ := r.GetProduct("s1", "Sword")
	if p.Stock != 0 {
		t.Errorf("final stock %d, want 0", p.Stock)
	}
}

func TestResetScope(t *testing.T) {
	r := newTestRepo(t)
	r.AddProduct("s1", protocol.Product{Name: "Sword", Price: "$10", Stock: 3, Coupon: "C"})
	r.AddProduct("s1", protocol.Product{Name: "Shield", Price: "$5", Stock: 1})

	if err := r.ResetScope("s1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	ps, _ := r.ListProducts("s1")
	if len(ps) != 2 {
		t.Fatalf("reset removed entries: %v", ps)
	}
	for _, p := range ps {
		if p.Stock != 0 {
			t.Errorf("%s stock %d after reset", p.Name, p.Stock)
		}
	}
	if ps[0].Price != "$10" || ps[0].Coupon != "C" {
		t.Errorf("reset lost product attributes: %+v", ps[0])
	}
}

func TestClearScope(t *testing.T) {
	r := newTestRepo(t)
	r.AddProduct("s1", protocol.Product{Name: "Sword", Price: "$10", Stock: 3})

	if err := r.ClearScope("s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	ps, _ := r.ListProducts("s1")
	if len(ps) != 0 {
		t.Errorf("expected empty scope after clear, got %v", ps)
	}
}

func TestResetUnknownScopeIsNoop(t *testing.T) {
	r := newTestRepo(t)
	if err := r.ResetScope("nowhere"); err != nil {
		t.Errorf("reset of unknown scope: %v", err)
	}
	if err := r.ClearScope("nowhere"); err != nil {
		t.Errorf("clear of unknown scope: %v", err)
	}
}
