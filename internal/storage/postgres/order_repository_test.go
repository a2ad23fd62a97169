package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
	"github.com/cimillas/live-commerce/internal/testutil"
	"github.com/google/uuid"
)

func TestOrderRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	sessions := NewSessionRepository(pool)
	cart := NewCartRepository(pool)
	repo := NewOrderRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("CreateOrder stores lines once per session", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool, "Green Leaf", "1000", "0")
		batchID, productID := testutil.InsertBatch(t, ctx, pool, "BD-001", "FLOWER", "10.00", "10")
		sess := testutil.NewSession(clientID, now, time.Hour)
		if err := sessions.CreateSession(ctx, sess); err != nil {
			t.Fatalf("create session: %v", err)
		}
		item := domain.LineItem{
			ID: uuid.NewString(), SessionID: sess.ID, BatchID: batchID,
			Quantity: decimal.FromInt(4), UnitPrice: decimal.MustParse("12.50"),
			PriceSource: domain.PriceSourceCostFallback, ItemStatus: domain.ItemStatusToPurchase,
			AddedBy: domain.RoleHost, CreatedAt: now, UpdatedAt: now,
		}
		if err := cart.SaveLineItem(ctx, item); err != nil {
			t.Fatalf("save line item: %v", err)
		}

		got, err := repo.GetOrderBySession(ctx, sess.ID)
		if err != nil || got != nil {
			t.Fatalf("expected no order yet, got %+v, %v", got, err)
		}

		order := domain.Order{
			ID:           uuid.NewString(),
			SessionID:    sess.ID,
			ClientID:     clientID,
			PaymentTerms: "NET30",
			Total:        decimal.MustParse("50.00"),
			CreatedAt:    now,
			Lines: []domain.OrderLine{{
				LineItemID: item.ID, BatchID: batchID, ProductID: productID,
				Quantity: item.Quantity, UnitPrice: item.UnitPrice,
			}},
		}
		err = repo.WithTx(ctx, func(txCtx context.Context) error {
			locked, err := repo.GetSessionForUpdate(txCtx, sess.ID)
			if err != nil {
				return err
			}
			next, err := domain.Transition(locked.SessionState, domain.EventConvert, now, domain.DefaultLifecyclePolicy())
			if err != nil {
				return err
			}
			if err := repo.UpdateSessionState(txCtx, sess.ID, next); err != nil {
				return err
			}
			return repo.CreateOrder(txCtx, order)
		})
		if err != nil {
			t.Fatalf("convert: %v", err)
		}

		got, err = repo.GetOrderBySession(ctx, sess.ID)
		if err != nil || got == nil {
			t.Fatalf("get order: %+v, %v", got, err)
		}
		if got.ID != order.ID || got.Total.String() != "50.00" || len(got.Lines) != 1 {
			t.Fatalf("unexpected order: %+v", got)
		}
		if got.Lines[0].Subtotal().String() != "50.00" {
			t.Fatalf("unexpected line subtotal: %s", got.Lines[0].Subtotal())
		}

		batch, err := cart.GetBatch(ctx, batchID)
		if err != nil {
			t.Fatalf("get batch: %v", err)
		}
		if batch.Reserved.String() != "4" || batch.StaticAvailable().String() != "6" {
			t.Fatalf("expected 4 reserved and 6 available, got %s and %s", batch.Reserved, batch.StaticAvailable())
		}

		items, err := repo.ListLineItems(ctx, sess.ID)
		if err != nil || len(items) != 1 {
			t.Fatalf("list line items: %d, %v", len(items), err)
		}

		again := order
		again.ID = uuid.NewString()
		again.Lines = nil
		err = repo.CreateOrder(ctx, again)
		stateErr, ok := err.(*domain.InvalidSessionStateError)
		if !ok || stateErr.Status != domain.SessionStatusConverted {
			t.Fatalf("expected converted state error, got %v", err)
		}
	})

	t.Run("CreateOrder refuses stock that is already claimed", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool, "Green Leaf", "1000", "0")
		batchID, productID := testutil.InsertBatch(t, ctx, pool, "BD-002", "FLOWER", "10.00", "3")
		sess := testutil.NewSession(clientID, now, time.Hour)
		if err := sessions.CreateSession(ctx, sess); err != nil {
			t.Fatalf("create session: %v", err)
		}

		order := domain.Order{
			ID: uuid.NewString(), SessionID: sess.ID, ClientID: clientID,
			Total: decimal.MustParse("50.00"), CreatedAt: now,
			Lines: []domain.OrderLine{{
				LineItemID: uuid.NewString(), BatchID: batchID, ProductID: productID,
				Quantity: decimal.FromInt(5), UnitPrice: decimal.FromInt(10),
			}},
		}
		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			return repo.CreateOrder(txCtx, order)
		})
		if !errors.Is(err, domain.ErrInsufficientInventory) {
			t.Fatalf("expected ErrInsufficientInventory, got %v", err)
		}

		batch, err := cart.GetBatch(ctx, batchID)
		if err != nil {
			t.Fatalf("get batch: %v", err)
		}
		if !batch.Reserved.IsZero() {
			t.Fatalf("expected nothing reserved, got %s", batch.Reserved)
		}
		if got, err := repo.GetOrderBySession(ctx, sess.ID); err != nil || got != nil {
			t.Fatalf("expected no order, got %+v, %v", got, err)
		}
	})

	t.Run("WithTx rolls back and unlocks on panic", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		batchID, _ := testutil.InsertBatch(t, ctx, pool, "BD-003", "FLOWER", "10.00", "3")

		func() {
			defer func() {
				if recover() == nil {
					t.Fatal("expected the panic to propagate")
				}
			}()
			_ = cart.WithTx(ctx, func(txCtx context.Context) error {
				if _, err := cart.GetBatchForUpdate(txCtx, batchID); err != nil {
					return err
				}
				panic("pricing blew up")
			})
		}()

		lockCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := cart.WithTx(lockCtx, func(txCtx context.Context) error {
			_, err := cart.GetBatchForUpdate(txCtx, batchID)
			return err
		})
		if err != nil {
			t.Fatalf("batch lock still held after panic: %v", err)
		}
	})
}
