package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/errs"
	"repairdesk/internal/usecase/servicedesk"
)

const maxBodyBytes = 1 << 20

type handler struct {
	svc   *servicedesk.Service
	saver *servicedesk.DraftAutoSaver
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

// NewRouter exposes the service over JSON. saver may be nil, in which case
// draft autosave requests are saved immediately. metrics is mounted at /metrics
// when set.
func NewRouter(svc *servicedesk.Service, saver *servicedesk.DraftAutoSaver, metrics http.Handler) http.Handler {
	h := &handler{svc: svc, saver: saver}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/incidents", func(r chi.Router) {
		r.Post("/", h.createIncident)
		r.Get("/", h.listIncidents)
		r.Route("/{incidentID}", func(r chi.Router) {
			r.Get("/", h.getIncident)
			r.Post("/admit", h.admitIncident)
			r.Post("/start-diagnosis", h.startDiagnosis)
			r.Post("/reject", h.rejectIncident)
			r.Post("/schedule-delivery", h.scheduleDelivery)
			r.Post("/deliver", h.deliverIncident)
			r.Post("/observations", h.appendObservation)
			r.Post("/photos", h.addPhotos)
			r.Post("/diagnosis", h.runDecision)
			r.Put("/diagnosis/draft", h.saveDraft)
			r.Get("/change-requests", h.listChangeRequests)
			r.Post("/change-requests", h.submitChangeRequest)
			r.Get("/parts-requests", h.listPartsRequests)
			r.Post("/parts-requests", h.submitPartsRequest)
			r.Get("/recurrence/candidates", h.listCandidates)
			r.Get("/recurrence/verifications", h.listVerifications)
			r.Post("/recurrence/verifications", h.runVerification)
			r.Get("/timeline", h.timeline)
		})
	})
	r.Post("/change-requests/{changeRequestID}/resolve", h.resolveChangeRequest)
	r.Post("/parts-requests/{partsRequestID}/fulfill", h.fulfillPartsRequest)
	r.Post("/parts-requests/{partsRequestID}/reject", h.rejectPartsRequest)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		ctx := logging.WithAttrs(
			r.Context(),
			slog.String("component", "transport.http"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.Debug(ctx, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(started)),
		)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body: " + err.Error(), Kind: "bad_request"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error(), Kind: errs.KindOf(err)}
	switch {
	case errs.IsValidation(err):
		status = http.StatusUnprocessableEntity
		resp.Field = errs.ValidationField(err)
	case errs.IsConflict(err):
		status = http.StatusConflict
	case errs.IsNotFound(err):
		status = http.StatusNotFound
	case r.Context().Err() != nil && errors.Is(err, r.Context().Err()):
		status = http.StatusServiceUnavailable
	default:
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func queryBool(r *http.Request, key string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && parsed
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.Validationf(key, "must be a non-negative integer, got %q", raw)
	}
	return n, nil
}
