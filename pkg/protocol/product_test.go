package protocol

import (
	"encoding/json"
	"testing"
)

func TestScopePutOverwrite(t *testing.T) {
	s := NewScope()
	s.Put(Product{Name: "Sword", Price: "$10", Stock: 3})
	s.Put(Product{Name: "Shield", Price: "$5", Stock: 1})
	s.Put(Product{Name: "Sword", Price: "$12", Stock: 7, Coupon: "SAVE"})

	if s.Len() != 2 {
		t.Fatalf("expected 2 products, got %d", s.Len())
	}
	got := s.Products()
	if got[0].Name != "Sword" || got[1].Name != "Shield" {
		t.Errorf("overwrite changed order: %v", got)
	}
	if got[0].Price != "$12" || got[0].Stock != 7 || got[0].Coupon != "SAVE" {
		t.Errorf("overwrite kept stale values: %+v", got[0])
	}
}

func TestScopeJSONRoundTrip(t *testing.T) {
	s := NewScope()
	s.Put(Product{Name: "Zeta", Price: "$1", Stock: 1})
	s.Put(Product{Name: "Alpha", Price: "$2", Stock: 0, Coupon: "C"})
	s.Put(Product{Name: "Mid", Price: "$3", Stock: 5})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Scope
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := s.Products()
	got := back.Products()
	if len(got) != len(want) {
		t.Fatalf("expected %d products, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("product %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	// Serialization is idempotent: a second marshal must be byte-identical.
	again, err := json.Marshal(&back)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if string(again) != string(data) {
		t.Errorf("round-trip not stable:\n  first  %s\n  second %s", data, again)
	}
}

func TestScopeUnmarshalRejectsNonObject(t *testing.T) {
	var s Scope
	if err := json.Unmarshal([]byte(`[1,2]`), &s); err == nil {
		t.Fatal("expected error for non-object scope")
	}
}

func TestCatalogEnsure(t *testing.T) {
	c := Catalog{}
	sc := c.Ensure("chan-1")
	sc.Put(Product{Name: "Thing", Price: "$1", Stock: 1})

	if c.Ensure("chan-1") != sc {
		t.Error("Ensure created a second scope for the same key")
	}
	if c.Ensure("chan-2").Len() != 0 {
		t.Error("new scope not empty")
	}
}
