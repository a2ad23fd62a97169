package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/live-commerce/internal/app"
	"github.com/cimillas/live-commerce/internal/domain"
)

// SessionManager is the session lifecycle surface used by the session routes.
type SessionManager interface {
	Create(ctx context.Context, in app.CreateSessionInput) (domain.Session, error)
	List(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error)
	Get(ctx context.Context, id string) (domain.Session, error)
	GetByRoomToken(ctx context.Context, token string) (domain.Session, error)
	UpdateStatus(ctx context.Context, id string, target domain.SessionStatus) (domain.Session, error)
	UpdateActivity(ctx context.Context, id string) (domain.Session, error)
	ExtendTimeout(ctx context.Context, id string) (bool, domain.Session, error)
	UpdateNotes(ctx context.Context, id string, in app.UpdateNotesInput) (domain.Session, error)
}

// SessionEnder ends a session, optionally converting its cart to an order.
type SessionEnder interface {
	EndSession(ctx context.Context, in app.EndSessionInput) (app.EndSessionResult, error)
}

type createSessionRequest struct {
	HostID         string `json:"host_id" validate:"required"`
	ClientID       string `json:"client_id" validate:"required"`
	Title          string `json:"title" validate:"max=200"`
	ScheduledAt    string `json:"scheduled_at,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" validate:"gte=0"`
	InternalNotes  string `json:"internal_notes,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE PAUSED ENDED CANCELLED"`
}

type updateNotesRequest struct {
	InternalNotes *string `json:"internal_notes,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

type endSessionRequest struct {
	ConvertToOrder    bool   `json:"convert_to_order"`
	PaymentTerms      string `json:"payment_terms,omitempty" validate:"max=100"`
	Notes             string `json:"notes,omitempty"`
	BypassCreditCheck bool   `json:"bypass_credit_check,omitempty"`
}

type extendResponse struct {
	Extended bool           `json:"extended"`
	Session  domain.Session `json:"session"`
}

type endSessionResponse struct {
	Session domain.Session      `json:"session"`
	Order   *domain.Order       `json:"order,omitempty"`
	Credit  *domain.CreditCheck `json:"credit,omitempty"`
	Created bool                `json:"created"`
}

// sessionView hides host-only fields from clients.
func sessionView(sess domain.Session, role domain.Role) domain.Session {
	if role != domain.RoleHost {
		sess.InternalNotes = ""
	}
	return sess
}

func HandleCreateSession(svc SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		if role != domain.RoleHost {
			writeError(w, http.StatusForbidden, codeHostOnly, domain.ErrHostOnly.Error())
			return
		}

		var req createSessionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		var scheduledAt *time.Time
		if req.ScheduledAt != "" {
			parsed, err := time.Parse(time.RFC3339, req.ScheduledAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid scheduled_at format")
				return
			}
			scheduledAt = &parsed
		}

		sess, err := svc.Create(r.Context(), app.CreateSessionInput{
			HostID:         req.HostID,
			ClientID:       req.ClientID,
			Title:          req.Title,
			ScheduledAt:    scheduledAt,
			TimeoutSeconds: req.TimeoutSeconds,
			InternalNotes:  req.InternalNotes,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

func HandleListSessions(svc SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		limit, okLimit := queryInt(r, "limit", 0)
		offset, okOffset := queryInt(r, "offset", 0)
		if !okLimit || !okOffset {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit and offset must be non-negative integers")
			return
		}

		q := r.URL.Query()
		sessions, err := svc.List(r.Context(), domain.SessionFilter{
			Status:   domain.SessionStatus(strings.ToUpper(q.Get("status"))),
			ClientID: q.Get("client_id"),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := make([]domain.Session, 0, len(sessions))
		for _, sess := range sessions {
			resp = append(resp, sessionView(sess, role))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleGetSession(svc SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		sess, err := svc.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView(sess, role))
	}
}

// HandleJoinRoom resolves a room token to its session.
func HandleJoinRoom(svc SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		sess, err := svc.GetByRoomToken(r.Context(), r.PathValue("token"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView(sess, role))
	}
}

func HandleUpdateSessionStatus(svc SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		if role != domain.RoleHost {
			writeError(w, http.StatusForbidden, codeHostOnly, domain.ErrHostOnly.Error())
			return
		}
		var req updateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, err := svc.UpdateStatus(r.Context(), r.PathValue("id"), domain.SessionStatus(req.Status))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView(sess, role))
	}
}

func HandleSessionActivity(svc SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		sess, err := svc.UpdateActivity(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView(sess, role))
	}
}

// HandleExtendSession answers 200 with extended=false once the cap is
// reached; that is an expected outcome, not an error.
func HandleExtendSession(svc SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		extended, sess, err := svc.ExtendTimeout(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, extendResponse{Extended: extended, Session: sessionView(sess, role)})
	}
}

func HandleUpdateNotes(svc SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		var req updateNotesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, err := svc.UpdateNotes(r.Context(), r.PathValue("id"), app.UpdateNotesInput{
			InternalNotes: req.InternalNotes,
			Notes:         req.Notes,
			Role:          role,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView(sess, role))
	}
}

func HandleEndSession(svc SessionEnder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		var req endSessionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := svc.EndSession(r.Context(), app.EndSessionInput{
			SessionID:         r.PathValue("id"),
			ConvertToOrder:    req.ConvertToOrder,
			PaymentTerms:      req.PaymentTerms,
			Notes:             req.Notes,
			BypassCreditCheck: req.BypassCreditCheck,
			Role:              role,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, endSessionResponse{
			Session: sessionView(res.Session, role),
			Order:   res.Order,
			Credit:  res.Credit,
			Created: res.Created,
		})
	}
}
