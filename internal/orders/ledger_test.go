package orders

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func seedTx(products ...Product) *memTx {
	st := NewMemoryStore().st
	for _, p := range products {
		st.products[p.ID] = p
	}
	return &memTx{st: st}
}

func TestLedger_Reserve(t *testing.T) {
	l := NewLedger(zap.NewNop())
	ctx := context.Background()
	tx := seedTx(Product{ID: "p1", Name: "Bolt", AvailableStock: 3})

	if err := l.Reserve(ctx, tx, "p1", 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	p := tx.st.products["p1"]
	if p.AvailableStock != 1 || p.ReservedStock != 2 {
		t.Fatalf("after reserve: %+v", p)
	}

	err := l.Reserve(ctx, tx, "p1", 2)
	var se *StockError
	if !errors.As(err, &se) || se.Available != 1 || se.Name != "Bolt" {
		t.Fatalf("want StockError, got %v", err)
	}
	if err := l.Reserve(ctx, tx, "p1", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("want ErrInvalidQuantity, got %v", err)
	}
	if err := l.Reserve(ctx, tx, "nope", 1); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("want ErrProductNotFound, got %v", err)
	}
}

func TestLedger_ReleaseAndCommit(t *testing.T) {
	l := NewLedger(zap.NewNop())
	ctx := context.Background()
	tx := seedTx(Product{ID: "p1", AvailableStock: 5, ReservedStock: 4})

	if err := l.Release(ctx, tx, "p1", 1); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l.Commit(ctx, tx, "p1", 2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	p := tx.st.products["p1"]
	if p.AvailableStock != 6 || p.ReservedStock != 1 {
		t.Fatalf("after release+commit: %+v", p)
	}

	err := l.Commit(ctx, tx, "p1", 2)
	var ie *InvariantError
	if !errors.As(err, &ie) || ie.Op != "commit" || ie.Reserved != 1 {
		t.Fatalf("want InvariantError, got %v", err)
	}
	if err := l.Release(ctx, tx, "p1", 5); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("want ErrInvariantViolation, got %v", err)
	}
	if p := tx.st.products["p1"]; p.ReservedStock != 1 || p.AvailableStock != 6 {
		t.Fatalf("rejected ops must not move stock: %+v", p)
	}
	if err := l.Release(ctx, tx, "p1", -1); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("want ErrInvalidQuantity, got %v", err)
	}
}
