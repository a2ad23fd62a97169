package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cimillas/live-commerce/internal/domain"
)

// RoleHeader names the participant making the request.
const RoleHeader = "X-Participant-Role"

// decodeJSON reads a strict JSON body into req and validates it. It writes the
// error response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, req any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// participantRole reads the caller's role. A missing header is treated as a
// client.
func participantRole(r *http.Request) (domain.Role, bool) {
	raw := strings.ToUpper(strings.TrimSpace(r.Header.Get(RoleHeader)))
	if raw == "" {
		return domain.RoleClient, true
	}
	role := domain.Role(raw)
	return role, role.Valid()
}

// requireRole is participantRole that writes the 400 itself.
func requireRole(w http.ResponseWriter, r *http.Request) (domain.Role, bool) {
	role, ok := participantRole(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeInvalidRole, domain.ErrInvalidRole.Error())
		return "", false
	}
	return role, true
}

func queryInt(r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
