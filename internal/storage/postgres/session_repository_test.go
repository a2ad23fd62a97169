package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/cimillas/live-commerce/internal/domain"
	"github.com/cimillas/live-commerce/internal/testutil"
)

func TestSessionRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewSessionRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("CreateSession and lookups", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool, "Green Leaf", "1000", "0")

		sess := testutil.NewSession(clientID, now, time.Hour)
		if err := repo.CreateSession(ctx, sess); err != nil {
			t.Fatalf("create session: %v", err)
		}

		got, err := repo.GetSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if got.Status != domain.SessionStatusActive || got.ClientID != clientID {
			t.Fatalf("unexpected session: %+v", got)
		}
		if got.ExpiresAt == nil || !got.ExpiresAt.Equal(now.Add(time.Hour)) {
			t.Fatalf("unexpected expiry: %v", got.ExpiresAt)
		}

		byToken, err := repo.GetSessionByRoomToken(ctx, sess.RoomToken)
		if err != nil || byToken.ID != sess.ID {
			t.Fatalf("get by room token: %+v, %v", byToken, err)
		}

		if _, err := repo.GetSession(ctx, "not-a-uuid"); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
		if _, err := repo.GetSession(ctx, "00000000-0000-0000-0000-000000000001"); err != domain.ErrSessionNotFound {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
		if _, err := repo.GetSessionByRoomToken(ctx, "missing"); err != domain.ErrSessionNotFound {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}

		orphan := testutil.NewSession("00000000-0000-0000-0000-000000000002", now, time.Hour)
		if err := repo.CreateSession(ctx, orphan); err != domain.ErrClientNotFound {
			t.Fatalf("expected ErrClientNotFound, got %v", err)
		}

		exists, err := repo.ClientExists(ctx, clientID)
		if err != nil || !exists {
			t.Fatalf("expected client to exist, got %v, %v", exists, err)
		}
		exists, err = repo.ClientExists(ctx, "nope")
		if err != nil || exists {
			t.Fatalf("expected client not to exist, got %v, %v", exists, err)
		}
	})

	t.Run("ListSessions filters by status and client", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientA := testutil.InsertClient(t, ctx, pool, "A", "1000", "0")
		clientB := testutil.InsertClient(t, ctx, pool, "B", "1000", "0")

		first := testutil.NewSession(clientA, now, time.Hour)
		second := testutil.NewSession(clientA, now.Add(time.Second), time.Hour)
		second.CreatedAt = now.Add(time.Second)
		other := testutil.NewSession(clientB, now, time.Hour)
		other.Status = domain.SessionStatusPaused
		for _, s := range []domain.Session{first, second, other} {
			if err := repo.CreateSession(ctx, s); err != nil {
				t.Fatalf("create session: %v", err)
			}
		}

		got, err := repo.ListSessions(ctx, domain.SessionFilter{ClientID: clientA, Limit: 10})
		if err != nil {
			t.Fatalf("list sessions: %v", err)
		}
		if len(got) != 2 || got[0].ID != second.ID {
			t.Fatalf("expected newest first for client A, got %+v", got)
		}

		got, err = repo.ListSessions(ctx, domain.SessionFilter{Status: domain.SessionStatusPaused, Limit: 10})
		if err != nil {
			t.Fatalf("list sessions: %v", err)
		}
		if len(got) != 1 || got[0].ID != other.ID {
			t.Fatalf("expected only paused session, got %+v", got)
		}

		got, err = repo.ListSessions(ctx, domain.SessionFilter{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("list sessions: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected one paged session, got %d", len(got))
		}
	})

	t.Run("state updates and expiry queries", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool, "Green Leaf", "1000", "0")

		expired := testutil.NewSession(clientID, now.Add(-2*time.Hour), time.Hour)
		soon := testutil.NewSession(clientID, now, 3*time.Minute)
		later := testutil.NewSession(clientID, now, time.Hour)
		for _, s := range []domain.Session{expired, soon, later} {
			if err := repo.CreateSession(ctx, s); err != nil {
				t.Fatalf("create session: %v", err)
			}
		}

		ids, err := repo.ListExpiredSessionIDs(ctx, now)
		if err != nil {
			t.Fatalf("list expired: %v", err)
		}
		if len(ids) != 1 || ids[0] != expired.ID {
			t.Fatalf("expected only expired session, got %v", ids)
		}

		expiring, err := repo.ListSessionsExpiringBetween(ctx, now, now.Add(5*time.Minute))
		if err != nil {
			t.Fatalf("list expiring: %v", err)
		}
		if len(expiring) != 1 || expiring[0].ID != soon.ID {
			t.Fatalf("expected only the soon-expiring session, got %+v", expiring)
		}

		err = repo.WithTx(ctx, func(txCtx context.Context) error {
			locked, err := repo.GetSessionForUpdate(txCtx, expired.ID)
			if err != nil {
				return err
			}
			next, err := domain.Transition(locked.SessionState, domain.EventTimeout, now, domain.DefaultLifecyclePolicy())
			if err != nil {
				return err
			}
			return repo.UpdateSessionState(txCtx, expired.ID, next)
		})
		if err != nil {
			t.Fatalf("timeout session: %v", err)
		}

		ids, err = repo.ListExpiredSessionIDs(ctx, now)
		if err != nil {
			t.Fatalf("list expired: %v", err)
		}
		if len(ids) != 0 {
			t.Fatalf("expected no open expired sessions, got %v", ids)
		}

		got, err := repo.GetSession(ctx, expired.ID)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if got.Status != domain.SessionStatusEnded || got.EndedAt == nil || !got.EndedAt.Equal(now) {
			t.Fatalf("unexpected ended session: %+v", got.SessionState)
		}

		if err := repo.UpdateSessionNotes(ctx, later.ID, "internal", "public"); err != nil {
			t.Fatalf("update notes: %v", err)
		}
		got, _ = repo.GetSession(ctx, later.ID)
		if got.InternalNotes != "internal" || got.Notes != "public" {
			t.Fatalf("unexpected notes: %q / %q", got.InternalNotes, got.Notes)
		}
		if err := repo.UpdateSessionNotes(ctx, "00000000-0000-0000-0000-000000000003", "", ""); err != domain.ErrSessionNotFound {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	})
}
