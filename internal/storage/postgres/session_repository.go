package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cimillas/live-commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `
id, host_id, client_id, title, room_token, scheduled_at, internal_notes, notes, created_at,
status, started_at, ended_at, expires_at, last_activity_at, extension_count, timeout_seconds`

const openStatuses = `('ACTIVE', 'PAUSED')`

type SessionRepository struct {
	db
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db{pool: pool}}
}

func (r *SessionRepository) CreateSession(ctx context.Context, sess domain.Session) error {
	const stmt = `
INSERT INTO live_sessions (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.exec(ctx, stmt,
		sess.ID,
		sess.HostID,
		sess.ClientID,
		sess.Title,
		sess.RoomToken,
		sess.ScheduledAt,
		sess.InternalNotes,
		sess.Notes,
		sess.CreatedAt,
		string(sess.Status),
		sess.StartedAt,
		sess.EndedAt,
		sess.ExpiresAt,
		sess.LastActivityAt,
		sess.ExtensionCount,
		sess.TimeoutSeconds,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrClientNotFound
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return r.getSession(ctx, id, "")
}

func (r *SessionRepository) GetSessionForUpdate(ctx context.Context, id string) (domain.Session, error) {
	return r.getSession(ctx, id, "FOR UPDATE")
}

func (r *SessionRepository) GetSessionByRoomToken(ctx context.Context, token string) (domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM live_sessions WHERE room_token = $1`
	sess, err := scanSession(r.queryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("get session by room token: %w", err)
	}
	return sess, nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		where = append(where, fmt.Sprintf("client_id::text = $%d", len(args)))
	}

	query := `SELECT ` + sessionColumns + ` FROM live_sessions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate sessions: %w", rows.Err())
	}
	return sessions, nil
}

func (r *SessionRepository) UpdateSessionState(ctx context.Context, id string, st domain.SessionState) error {
	return r.updateSessionState(ctx, id, st)
}

func (r *SessionRepository) UpdateSessionNotes(ctx context.Context, id, internalNotes, notes string) error {
	const stmt = `UPDATE live_sessions SET internal_notes = $2, notes = $3 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, internalNotes, notes)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update session notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) ListExpiredSessionIDs(ctx context.Context, now time.Time) ([]string, error) {
	const query = `
SELECT id
FROM live_sessions
WHERE status IN ` + openStatuses + ` AND expires_at <= $1
ORDER BY expires_at, id`

	rows, err := r.query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", rows.Err())
	}
	return ids, nil
}

func (r *SessionRepository) ListSessionsExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Session, error) {
	query := `
SELECT ` + sessionColumns + `
FROM live_sessions
WHERE status IN ` + openStatuses + ` AND expires_at > $1 AND expires_at <= $2
ORDER BY expires_at, id`

	rows, err := r.query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expiring sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate expiring sessions: %w", rows.Err())
	}
	return sessions, nil
}

func (r *SessionRepository) ClientExists(ctx context.Context, clientID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM clients WHERE id::text = $1)`
	var exists bool
	if err := r.queryRow(ctx, query, clientID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check client: %w", err)
	}
	return exists, nil
}

// getSession reads one session row; lock is an optional locking clause.
func (d db) getSession(ctx context.Context, id, lock string) (domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM live_sessions WHERE id = $1 ` + lock
	sess, err := scanSession(d.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Session{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (d db) updateSessionState(ctx context.Context, id string, st domain.SessionState) error {
	const stmt = `
UPDATE live_sessions
SET status = $2, started_at = $3, ended_at = $4, expires_at = $5,
    last_activity_at = $6, extension_count = $7, timeout_seconds = $8
WHERE id = $1`

	tag, err := d.exec(ctx, stmt, id,
		string(st.Status),
		st.StartedAt,
		st.EndedAt,
		st.ExpiresAt,
		st.LastActivityAt,
		st.ExtensionCount,
		st.TimeoutSeconds,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update session state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var (
		s      domain.Session
		status string
	)
	err := row.Scan(
		&s.ID, &s.HostID, &s.ClientID, &s.Title, &s.RoomToken, &s.ScheduledAt,
		&s.InternalNotes, &s.Notes, &s.CreatedAt,
		&status, &s.StartedAt, &s.EndedAt, &s.ExpiresAt, &s.LastActivityAt,
		&s.ExtensionCount, &s.TimeoutSeconds,
	)
	if err != nil {
		return domain.Session{}, err
	}
	s.Status = domain.SessionStatus(status)
	return s, nil
}
