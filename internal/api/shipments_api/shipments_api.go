package shipments_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gaexpress/shipline/internal/integrations/advisor"
	"github.com/gaexpress/shipline/internal/metrics"
	"github.com/gaexpress/shipline/internal/models"
	"github.com/gaexpress/shipline/internal/services/shipments"
	"github.com/gaexpress/shipline/internal/storage/pgshipment"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const adviseTimeout = 30 * time.Second

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type ShipmentsAPI struct {
	svc *shipments.Service
	adv advisor.Client

	rl       RateLimiter
	rlLimit  int64
	rlWindow time.Duration
}

func New(svc *shipments.Service, adv advisor.Client) *ShipmentsAPI {
	return &ShipmentsAPI{svc: svc, adv: adv}
}

// WithRateLimiter включает лимит на advisory-запросы по IP клиента.
func (a *ShipmentsAPI) WithRateLimiter(rl RateLimiter, limit int64, window time.Duration) *ShipmentsAPI {
	a.rl = rl
	a.rlLimit = limit
	a.rlWindow = window
	return a
}

func (a *ShipmentsAPI) Register(r chi.Router) {
	r.Post("/shipments", a.handleSubmit)
	r.Get("/shipments", a.handleGet)
	r.Put("/shipments", a.handleSetStatus)
	r.Delete("/shipments", a.handleDelete)
	r.Post("/compliance", a.handleCompliance)
	r.Post("/contact", a.handleContact)
}

func (a *ShipmentsAPI) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var in models.ShipmentCreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json body"})
		return
	}

	sh, err := a.svc.Submit(r.Context(), in)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"trackingId": sh.TrackingID,
		"shipment":   sh,
	})
}

// handleGet: с trackingId — точечный track, без — админский листинг.
func (a *ShipmentsAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	trackingID := r.URL.Query().Get("trackingId")
	if trackingID == "" {
		all, err := a.svc.ListAll(r.Context())
		if err != nil {
			a.writeError(w, err)
			return
		}
		if all == nil {
			all = []*models.Shipment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "shipments": all})
		return
	}

	sh, err := a.svc.Track(r.Context(), trackingID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "shipment": sh})
}

func (a *ShipmentsAPI) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var in models.StatusUpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json body"})
		return
	}

	sh, err := a.svc.SetStatus(r.Context(), in)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "shipment": sh})
}

func (a *ShipmentsAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	trackingID := r.URL.Query().Get("trackingId")
	if err := a.svc.Delete(r.Context(), trackingID); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *ShipmentsAPI) handleCompliance(w http.ResponseWriter, r *http.Request) {
	var req advisor.AdviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json body"})
		return
	}
	if req.MineralType == "" || req.Quantity == "" || req.Destination == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "mineralType, quantity and destination are required",
		})
		return
	}

	metrics.AdviceRequestsTotal.Inc()

	if a.rl != nil {
		ok, _, err := a.rl.Allow(r.Context(), "advice:"+clientIP(r), a.rlLimit, a.rlWindow)
		if err != nil {
			// Лимитер best-effort: если redis лёг, советник продолжает работать.
			slog.Warn("advice rate limiter failed", "err", err)
		} else if !ok {
			metrics.AdviceRateLimitedTotal.Inc()
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"success": false, "error": "too many requests"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), adviseTimeout)
	defer cancel()

	text, err := a.adv.Advise(ctx, req)
	if err != nil {
		slog.Error("compliance advisory failed", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   "compliance advisory unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":               true,
		"complianceInformation": text,
	})
}

func (a *ShipmentsAPI) handleContact(w http.ResponseWriter, r *http.Request) {
	var in models.ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json body"})
		return
	}

	if err := a.svc.SubmitContact(r.Context(), in); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

// writeError переводит ошибки сервиса в HTTP-коды. Внутренние детали
// не утекают клиенту — только в серверный лог.
func (a *ShipmentsAPI) writeError(w http.ResponseWriter, err error) {
	var verr *shipments.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "validation failed",
			"fields":  verr.Fields,
		})
	case errors.Is(err, pgshipment.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "shipment not found"})
	case errors.Is(err, pgshipment.ErrDuplicateTrackingID):
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": "tracking id already exists"})
	default:
		slog.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
