package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"live-caption-service/internal/app"
	"live-caption-service/internal/models"
	"live-caption-service/internal/observability/logging"
	"live-caption-service/internal/service/lifecycle"
	"live-caption-service/internal/service/session"
	"live-caption-service/internal/service/stt"
)

type captionResponse struct {
	ID            string `json:"id,omitempty"`
	Text          string `json:"text"`
	CreatedAt     int64  `json:"createdAt,omitempty"`
	HasAnnotation bool   `json:"hasAnnotation"`
	FromSpeech    bool   `json:"fromSpeech"`
	State         string `json:"state"`
	Generation    uint64 `json:"generation"`
	Committed     bool   `json:"committed"`
}

type commitResponse struct {
	Committed bool `json:"committed"`
}

type textRequest struct {
	Text string `json:"text" validate:"required,max=4096"`
}

type pickupRequest struct {
	Strength float64 `json:"strength" validate:"gte=0"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	app    *app.Application
	logger zerolog.Logger
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := &handlers{app: application, logger: logging.WithComponent("http")}
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if err := application.Ready(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/caption", func(r chi.Router) {
			r.Get("/", h.getCaption)
			r.Post("/start", h.startCaption)
			r.Post("/stop", h.stopCaption)
			r.Post("/clear", h.clearCaption)
			r.Put("/text", h.setText)
			r.Post("/delta", h.deliverDelta)
			r.Post("/pickup", h.showPickup)
		})
		r.Post("/audio", h.sendAudio)
		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.listHistory)
			r.Delete("/", h.clearHistory)
			r.Delete("/{id}", h.removeHistory)
			r.Delete("/index/{index}", h.removeHistoryAt)
		})
	})

	return r
}

func (h *handlers) getCaption(w http.ResponseWriter, r *http.Request) {
	snap, err := h.app.Controller.Snapshot(r.Context())
	if err != nil {
		h.controllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaptionResponse(snap))
}

func (h *handlers) startCaption(w http.ResponseWriter, r *http.Request) {
	snap, err := h.app.Controller.StartUtterance(r.Context())
	if err != nil {
		h.controllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaptionResponse(snap))
}

func (h *handlers) stopCaption(w http.ResponseWriter, r *http.Request) {
	committed, err := h.app.Controller.StopUtterance(r.Context(), lifecycle.ReasonStop)
	if err != nil {
		h.controllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commitResponse{Committed: committed})
}

func (h *handlers) clearCaption(w http.ResponseWriter, r *http.Request) {
	committed, err := h.app.Controller.Clear(r.Context())
	if err != nil {
		h.controllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commitResponse{Committed: committed})
}

func (h *handlers) setText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, err := h.app.Controller.SetText(r.Context(), req.Text)
	if err != nil {
		h.controllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaptionResponse(snap))
}

func (h *handlers) deliverDelta(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.app.Controller.Deliver(r.Context(), req.Text); err != nil {
		h.controllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) showPickup(w http.ResponseWriter, r *http.Request) {
	var req pickupRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, ok, err := h.app.Controller.ShowPickupLine(r.Context(), req.Strength)
	if err != nil {
		h.controllerError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no pickup line available"})
		return
	}
	writeJSON(w, http.StatusOK, toCaptionResponse(snap))
}

func (h *handlers) sendAudio(w http.ResponseWriter, r *http.Request) {
	limit := h.app.Cfg.SessionLimits.MaxAudioBytes
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty audio frame"})
		return
	}

	err = h.app.Session.SendAudio(r.Context(), body)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, session.ErrNoSession):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, stt.ErrSessionLimit):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
	default:
		h.logger.Error().Err(err).Int("bytes", len(body)).Msg("Audio forwarding failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
}

func (h *handlers) listHistory(w http.ResponseWriter, _ *http.Request) {
	entries := h.app.History.List()
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) clearHistory(w http.ResponseWriter, _ *http.Request) {
	h.app.History.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) removeHistory(w http.ResponseWriter, r *http.Request) {
	if !h.app.History.Remove(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history entry not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) removeHistoryAt(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "index must be an integer"})
		return
	}
	if !h.app.History.RemoveAt(index) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history index out of range"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	if err := h.app.Validator.Validate(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (h *handlers) controllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrControllerClosed):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		h.logger.Error().Err(err).Msg("Caption operation failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
}

func toCaptionResponse(s lifecycle.Snapshot) captionResponse {
	resp := captionResponse{
		State:      s.State.String(),
		Generation: s.Generation,
		Committed:  s.Committed,
	}
	if c := s.Caption; c != nil {
		resp.ID = c.ID
		resp.Text = c.Text
		resp.CreatedAt = c.CreatedAt.UnixMilli()
		resp.HasAnnotation = c.HasAnnotation
		resp.FromSpeech = c.FromSpeech
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
