package postgres

import (
	"context"
	"testing"

	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
	"github.com/cimillas/live-commerce/internal/testutil"
	"github.com/google/uuid"
)

func TestCatalogRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewCatalogRepository(pool)
	cart := NewCartRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("clients are listed by name", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		for _, name := range []string{"Zeta Co", "Alpha Co"} {
			c := domain.Client{ID: uuid.NewString(), Name: name, CreditLimit: decimal.FromInt(100)}
			if err := repo.CreateClient(ctx, c); err != nil {
				t.Fatalf("create client: %v", err)
			}
		}

		clients, err := repo.ListClients(ctx)
		if err != nil {
			t.Fatalf("list clients: %v", err)
		}
		if len(clients) != 2 || clients[0].Name != "Alpha Co" {
			t.Fatalf("unexpected clients: %+v", clients)
		}
	})

	t.Run("CreateBatch inserts product and batch", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		b := domain.Batch{
			ID:          uuid.NewString(),
			Code:        "BD-001",
			ProductID:   uuid.NewString(),
			ProductName: "Blue Dream",
			Category:    "FLOWER",
			UnitCost:    decimal.MustParse("10.00"),
			OnHand:      decimal.MustParse("40"),
		}
		if err := repo.CreateBatch(ctx, b); err != nil {
			t.Fatalf("create batch: %v", err)
		}

		got, err := cart.GetBatch(ctx, b.ID)
		if err != nil {
			t.Fatalf("get batch: %v", err)
		}
		if got.ProductName != "Blue Dream" || got.UnitCost.String() != "10.00" {
			t.Fatalf("unexpected batch: %+v", got)
		}

		dup := b
		dup.ID = uuid.NewString()
		dup.ProductID = uuid.NewString()
		if err := repo.CreateBatch(ctx, dup); err != domain.ErrBatchCodeTaken {
			t.Fatalf("expected ErrBatchCodeTaken, got %v", err)
		}

		var products int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&products); err != nil {
			t.Fatalf("count products: %v", err)
		}
		if products != 1 {
			t.Fatalf("expected duplicate batch to roll back its product, got %d products", products)
		}
	})

	t.Run("SetMargin requires a known client", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		m := domain.CategoryMargin{ClientID: "00000000-0000-0000-0000-000000000001", Category: "FLOWER", Percent: decimal.FromInt(20)}
		if err := repo.SetMargin(ctx, m); err != domain.ErrClientNotFound {
			t.Fatalf("expected ErrClientNotFound, got %v", err)
		}
		m.ClientID = "bad"
		if err := repo.SetMargin(ctx, m); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})
}
