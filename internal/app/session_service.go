package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type SessionRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateSession(ctx context.Context, sess domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	GetSessionByRoomToken(ctx context.Context, token string) (domain.Session, error)
	// GetSessionForUpdate locks the session row until the transaction ends.
	GetSessionForUpdate(ctx context.Context, id string) (domain.Session, error)
	ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error)
	UpdateSessionState(ctx context.Context, id string, st domain.SessionState) error
	UpdateSessionNotes(ctx context.Context, id, internalNotes, notes string) error
	// ListExpiredSessionIDs returns open sessions with expires_at <= now.
	ListExpiredSessionIDs(ctx context.Context, now time.Time) ([]string, error)
	// ListSessionsExpiringBetween returns open sessions with from < expires_at <= to.
	ListSessionsExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Session, error)
	ClientExists(ctx context.Context, clientID string) (bool, error)
}

type SessionService struct {
	repo   SessionRepository
	clock  clock.Clock
	opts   options
	events emitter
}

func NewSessionService(repo SessionRepository, clk clock.Clock, opts ...Option) *SessionService {
	o := buildOptions(opts)
	return &SessionService{
		repo:   repo,
		clock:  clk,
		opts:   o,
		events: newEmitter(o, clk),
	}
}

type CreateSessionInput struct {
	HostID         string
	ClientID       string
	Title          string
	ScheduledAt    *time.Time
	TimeoutSeconds int
	InternalNotes  string
}

func (s *SessionService) Create(ctx context.Context, in CreateSessionInput) (domain.Session, error) {
	if strings.TrimSpace(in.HostID) == "" || strings.TrimSpace(in.ClientID) == "" {
		return domain.Session{}, domain.ErrInvalidID
	}
	ok, err := s.repo.ClientExists(ctx, in.ClientID)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, domain.ErrClientNotFound
	}

	timeout := in.TimeoutSeconds
	if timeout <= 0 {
		timeout = s.opts.sessionTimeout
	}
	now := s.clock.Now()
	sess := domain.Session{
		ID:            newUUID(),
		HostID:        in.HostID,
		ClientID:      in.ClientID,
		Title:         strings.TrimSpace(in.Title),
		RoomToken:     newUUID(),
		ScheduledAt:   in.ScheduledAt,
		InternalNotes: in.InternalNotes,
		CreatedAt:     now,
		SessionState:  domain.NewSessionState(now, in.ScheduledAt, timeout),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	s.opts.logger.Info("session created", "session_id", sess.ID, "client_id", sess.ClientID, "status", sess.Status)
	return sess, nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *SessionService) List(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListSessions(ctx, filter)
}

func (s *SessionService) Get(ctx context.Context, id string) (domain.Session, error) {
	return s.repo.GetSession(ctx, id)
}

// GetByRoomToken lets a participant reconnect with the opaque room token.
func (s *SessionService) GetByRoomToken(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, domain.ErrInvalidID
	}
	return s.repo.GetSessionByRoomToken(ctx, token)
}

// UpdateStatus moves the session towards target. CONVERTED is only reachable
// through ConversionService.
func (s *SessionService) UpdateStatus(ctx context.Context, id string, target domain.SessionStatus) (domain.Session, error) {
	if !target.Valid() {
		return domain.Session{}, domain.ErrInvalidStatus
	}
	var (
		sess     domain.Session
		previous domain.SessionStatus
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		sess, err = s.repo.GetSessionForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		previous = sess.Status
		ev, err := domain.EventForTarget(sess.Status, target)
		if err != nil {
			return err
		}
		return s.apply(txCtx, &sess, ev)
	})
	if err != nil {
		return domain.Session{}, err
	}

	s.statusChanged(ctx, sess, previous)
	return sess, nil
}

// UpdateActivity slides the expiry window forward.
func (s *SessionService) UpdateActivity(ctx context.Context, id string) (domain.Session, error) {
	var sess domain.Session
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		sess, err = s.repo.GetSessionForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		return s.apply(txCtx, &sess, domain.EventActivity)
	})
	if err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// ExtendTimeout grants one extension window. It reports false, without an
// error, once the cap is reached; the expiry is then left as it was.
func (s *SessionService) ExtendTimeout(ctx context.Context, id string) (bool, domain.Session, error) {
	var sess domain.Session
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		sess, err = s.repo.GetSessionForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		return s.apply(txCtx, &sess, domain.EventExtend)
	})
	if errors.Is(err, domain.ErrMaxExtensionsReached) {
		return false, sess, nil
	}
	if err != nil {
		return false, domain.Session{}, err
	}

	s.events.emit(ctx, broadcast.EventSessionExtended, sess.ID, extendedPayload{
		ExpiresAt:           sess.ExpiresAt,
		ExtensionCount:      sess.ExtensionCount,
		RemainingExtensions: s.remainingExtensions(sess),
	})
	return true, sess, nil
}

type UpdateNotesInput struct {
	InternalNotes *string
	Notes         *string
	Role          domain.Role
}

// UpdateNotes changes the shared notes and, for the host, the internal notes.
// Internal notes are never broadcast.
func (s *SessionService) UpdateNotes(ctx context.Context, id string, in UpdateNotesInput) (domain.Session, error) {
	if !in.Role.Valid() {
		return domain.Session{}, domain.ErrInvalidRole
	}
	if in.InternalNotes != nil && in.Role != domain.RoleHost {
		return domain.Session{}, domain.ErrHostOnly
	}

	var sess domain.Session
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		sess, err = s.repo.GetSessionForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if sess.Status.IsTerminal() {
			return &domain.InvalidSessionStateError{Status: sess.Status}
		}
		if in.InternalNotes != nil {
			sess.InternalNotes = *in.InternalNotes
		}
		if in.Notes != nil {
			sess.Notes = *in.Notes
		}
		return s.repo.UpdateSessionNotes(txCtx, id, sess.InternalNotes, sess.Notes)
	})
	if err != nil {
		return domain.Session{}, err
	}

	if in.Notes != nil {
		s.events.emit(ctx, broadcast.EventNotesUpdated, id, notesPayload{Notes: sess.Notes})
	}
	return sess, nil
}

// ProcessExpiredSessions ends every open session whose expiry has passed. Each
// candidate is re-checked under its row lock, so concurrent sweeps and
// late extensions are safe and the call is idempotent.
func (s *SessionService) ProcessExpiredSessions(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "SessionService.ProcessExpiredSessions")
	defer span.End()

	now := s.clock.Now()
	ids, err := s.repo.ListExpiredSessionIDs(ctx, now)
	if err != nil {
		endSpan(span, err)
		return 0, err
	}

	var (
		ended int
		errs  []error
	)
	for _, id := range ids {
		var sess domain.Session
		var previous domain.SessionStatus
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			var err error
			sess, err = s.repo.GetSessionForUpdate(txCtx, id)
			if err != nil {
				return err
			}
			previous = sess.Status
			return s.apply(txCtx, &sess, domain.EventTimeout)
		})
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrSessionNotExpired), errors.Is(err, domain.ErrInvalidSessionState):
			continue
		default:
			s.opts.logger.Error("expire session", "session_id", id, "error", err)
			errs = append(errs, err)
			continue
		}

		ended++
		s.events.emit(ctx, broadcast.EventSessionTimeout, sess.ID, statusPayload{
			Status:         sess.Status,
			PreviousStatus: previous,
			EndedAt:        sess.EndedAt,
		})
		s.statusChanged(ctx, sess, previous)
	}

	span.SetAttributes(attribute.Int("sessions.ended", ended))
	if ended > 0 {
		s.opts.logger.Info("expired sessions ended", "count", ended)
	}
	return ended, errors.Join(errs...)
}

// SendTimeoutWarnings notifies viewers of sessions expiring within the
// warning lead. It changes no state.
func (s *SessionService) SendTimeoutWarnings(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "SessionService.SendTimeoutWarnings")
	defer span.End()

	now := s.clock.Now()
	sessions, err := s.repo.ListSessionsExpiringBetween(ctx, now, now.Add(s.opts.warningLead))
	if err != nil {
		endSpan(span, err)
		return 0, err
	}
	for _, sess := range sessions {
		s.events.emit(ctx, broadcast.EventSessionTimeoutWarning, sess.ID, warningPayload{
			ExpiresAt:           sess.ExpiresAt,
			SecondsRemaining:    int(sess.ExpiresAt.Sub(now).Seconds()),
			CanExtend:           s.remainingExtensions(sess) > 0,
			RemainingExtensions: s.remainingExtensions(sess),
		})
	}
	span.SetAttributes(attribute.Int("sessions.warned", len(sessions)), attribute.String("lead", s.opts.warningLead.String()))
	return len(sessions), nil
}

func (s *SessionService) apply(ctx context.Context, sess *domain.Session, ev domain.SessionEvent) error {
	next, err := domain.Transition(sess.SessionState, ev, s.clock.Now(), s.opts.policy)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateSessionState(ctx, sess.ID, next); err != nil {
		return err
	}
	sess.SessionState = next
	trace.SpanFromContext(ctx).AddEvent("session."+string(ev), trace.WithAttributes(attribute.String("status", string(next.Status))))
	return nil
}

func (s *SessionService) statusChanged(ctx context.Context, sess domain.Session, previous domain.SessionStatus) {
	s.events.emit(ctx, broadcast.EventStatusChanged, sess.ID, statusPayload{
		Status:         sess.Status,
		PreviousStatus: previous,
		EndedAt:        sess.EndedAt,
	})
	if sess.Status == domain.SessionStatusCancelled {
		s.events.emit(ctx, broadcast.EventSessionCancelled, sess.ID, statusPayload{Status: sess.Status, PreviousStatus: previous})
	}
	if sess.Status.IsTerminal() {
		s.opts.pickList.NotifyChange(ctx, sess.ID, domain.PickChangeRefresh, nil)
	}
}

func (s *SessionService) remainingExtensions(sess domain.Session) int {
	limit := s.opts.policy.MaxExtensions
	if limit <= 0 {
		limit = domain.DefaultMaxExtensions
	}
	if n := limit - sess.ExtensionCount; n > 0 {
		return n
	}
	return 0
}

type statusPayload struct {
	Status         domain.SessionStatus `json:"status"`
	PreviousStatus domain.SessionStatus `json:"previous_status,omitempty"`
	EndedAt        *time.Time           `json:"ended_at,omitempty"`
	OrderID        string               `json:"order_id,omitempty"`
}

type extendedPayload struct {
	ExpiresAt           *time.Time `json:"expires_at"`
	ExtensionCount      int        `json:"extension_count"`
	RemainingExtensions int        `json:"remaining_extensions"`
}

type warningPayload struct {
	ExpiresAt           *time.Time `json:"expires_at"`
	SecondsRemaining    int        `json:"seconds_remaining"`
	CanExtend           bool       `json:"can_extend"`
	RemainingExtensions int        `json:"remaining_extensions"`
}

type notesPayload struct {
	Notes string `json:"notes"`
}
