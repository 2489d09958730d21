package billing

import (
	"errors"
	"testing"

	"github.com/prepwise/creditcore/internal/config"
)

func TestCatalogLookupAndOrder(t *testing.T) {
	catalog, err := NewCatalog([]config.PackConfig{
		{ID: "50-credits", Credits: 50, PriceMinor: 1999, Currency: "USD"},
		{ID: "10-credits", Credits: 10, PriceMinor: 499, Currency: "usd"},
	})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}

	pack, err := catalog.Lookup("10-credits")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if pack.Credits != 10 || pack.Currency != "usd" {
		t.Fatalf("unexpected pack: %+v", pack)
	}
	list := catalog.List()
	if len(list) != 2 || list[0].ID != "10-credits" || list[1].Currency != "usd" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if _, err = catalog.Lookup("1000-credits"); !errors.Is(err, ErrUnknownPack) {
		t.Fatalf("expected ErrUnknownPack, got %v", err)
	}
}

func TestCatalogRejectsInvalidPacks(t *testing.T) {
	cases := [][]config.PackConfig{
		{{ID: "", Credits: 1, Currency: "usd"}},
		{{ID: "a", Credits: 0, Currency: "usd"}},
		{{ID: "a", Credits: 1, PriceMinor: -1, Currency: "usd"}},
		{{ID: "a", Credits: 1, Currency: " "}},
		{{ID: "a", Credits: 1, Currency: "usd"}, {ID: "a", Credits: 2, Currency: "usd"}},
	}
	for i, packs := range cases {
		if _, err := NewCatalog(packs); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
