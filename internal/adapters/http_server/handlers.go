// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"review_board/internal/app"
	"review_board/internal/domain"
)

// Submit bodies carry up to three inline photos; cap well above that.
const maxBodyBytes = 4 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type Handlers struct {
	Reviews  *app.Service
	Throttle domain.Throttle
	AdminPIN string
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/api/reviews", h.list)
	s.mux.Post("/api/reviews", h.submit)
	s.mux.Patch("/api/reviews", h.moderate)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps engine errors onto the response surface. Anything that is not a
// validation or not-found outcome is a server error with a bounded message.
func fail(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "review not found")
	default:
		log.Error().Err(err).Msg("review operation failed")
		msg := err.Error()
		if len(msg) > 300 {
			msg = msg[:300]
		}
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	status := strings.ToLower(r.URL.Query().Get("status"))
	if status == "" {
		status = app.StatusApproved
	}
	if status != app.StatusApproved && status != app.StatusPending {
		writeError(w, http.StatusBadRequest, "status must be approved or pending")
		return
	}

	items, err := h.Reviews.List(r.Context(), status)
	if err != nil {
		fail(w, err)
		return
	}
	if items == nil {
		items = []domain.Review{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, items)
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	if h.Throttle != nil {
		ok, err := h.Throttle.Allow(r.Context(), remoteIP(r))
		if err != nil {
			// fail open: a broken throttle must not block submissions
			log.Warn().Err(err).Msg("submit throttle unavailable")
		} else if !ok {
			writeError(w, http.StatusTooManyRequests, "too many submissions, try again later")
			return
		}
	}

	var in app.SubmitInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.Reviews.Submit(r.Context(), in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
}

type moderateRequest struct {
	Action string `json:"action" validate:"required,oneof=approve unapprove delete"`
	ID     string `json:"id" validate:"required"`
}

func (h *Handlers) moderate(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "admin pin required")
		return
	}

	var req moderateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "action must be approve, unapprove or delete, and id is required")
		return
	}

	if err := h.Reviews.Moderate(r.Context(), req.Action, req.ID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// authorized compares the pin header in constant time. An unset server pin
// rejects every admin action rather than accepting every one.
func (h *Handlers) authorized(r *http.Request) bool {
	if h.AdminPIN == "" {
		return false
	}
	pin := r.Header.Get("X-Admin-Pin")
	return subtle.ConstantTimeCompare([]byte(pin), []byte(h.AdminPIN)) == 1
}
