package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Lllllllleong/qrawareness/internal/models"
	"github.com/Lllllllleong/qrawareness/internal/services"
	"go.uber.org/zap"
)

const (
	SessionCookie = "qr_session"
	SessionHeader = "X-Session-ID"

	maxBodyBytes = 64 << 10
)

// LandingHandler exposes the landing flow over HTTP.
type LandingHandler struct {
	flow   *services.FlowService
	logger *zap.Logger
	mux    *http.ServeMux
	now    func() time.Time
}

func NewLandingHandler(flow *services.FlowService, logger *zap.Logger) *LandingHandler {
	h := &LandingHandler{flow: flow, logger: logger, mux: http.NewServeMux(), now: time.Now}
	h.mux.HandleFunc("GET /{$}", h.handleLand)
	h.mux.HandleFunc("GET /options", h.handleOptions)
	h.mux.HandleFunc("POST /steps/qr-location", h.handleQRLocation)
	h.mux.HandleFunc("POST /steps/profile", h.handleProfile)
	h.mux.HandleFunc("POST /steps/confirm", h.handleConfirm)
	h.mux.HandleFunc("GET /export", h.handleExport)
	h.mux.HandleFunc("POST /reset", h.handleReset)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return h
}

func (h *LandingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *LandingHandler) handleLand(w http.ResponseWriter, r *http.Request) {
	res, err := h.flow.Land(r.Context(), landRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setSessionCookie(w, res.SessionID)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *LandingHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	res, err := h.flow.Reset(r.Context(), landRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setSessionCookie(w, res.SessionID)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *LandingHandler) handleOptions(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, models.Options())
}

func (h *LandingHandler) handleQRLocation(w http.ResponseWriter, r *http.Request) {
	var req models.QRLocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.flow.SubmitQRLocation(r.Context(), sessionID(r), req)
	h.respond(w, r, res, err)
}

func (h *LandingHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.flow.SubmitProfile(r.Context(), sessionID(r), req)
	h.respond(w, r, res, err)
}

func (h *LandingHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req models.ConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.flow.Confirm(r.Context(), sessionID(r), req)
	h.respond(w, r, res, err)
}

func (h *LandingHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.flow.Export(sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		h.logger.Error("Failed to encode export", zap.Error(err))
		http.Error(w, "Internal Server Error: failed to encode export", http.StatusInternalServerError)
		return
	}
	filename := fmt.Sprintf("cybersecurity_data_%s.json", h.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(body)
}

func (h *LandingHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("Could not decode request body", zap.Error(err), zap.String("path", r.URL.Path))
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *LandingHandler) respond(w http.ResponseWriter, r *http.Request, res *models.ScreenResponse, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *LandingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message})
	case errors.Is(err, services.ErrSessionNotFound):
		http.Error(w, "Not Found: unknown session", http.StatusNotFound)
	case errors.Is(err, services.ErrStepOutOfOrder):
		http.Error(w, "Conflict: step submitted out of order", http.StatusConflict)
	default:
		h.logger.Error("Request failed", zap.Error(err), zap.String("path", r.URL.Path))
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
	}
}

func (h *LandingHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// sessionID prefers the per-tab header over the cookie.
func sessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func landRequest(r *http.Request) services.LandRequest {
	return services.LandRequest{
		SessionID: sessionID(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	}
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
