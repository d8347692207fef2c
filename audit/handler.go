package audit

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

const maxReportSize = 1 << 20

// Handler serves the audit endpoints.
type Handler struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// NewHandler creates a handler backed by store.
func NewHandler(store Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store: store,
		log:   log.With("component", "audit"),
		now:   time.Now,
	}
}

// RegisterRoutes registers the reporting and listing endpoints. Browser
// participants post from the relay's origin, so the group allows CORS.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		// Preflight requests are answered by the cors middleware, which only
		// runs on matched routes.
		r.Options("/report-insecure", func(http.ResponseWriter, *http.Request) {})
		r.Options("/report-secure", func(http.ResponseWriter, *http.Request) {})

		r.Post("/report-insecure", h.handleReportInsecure)
		r.Post("/report-secure", h.handleReportSecure)
		r.Get("/big-brother", h.handleBigBrother)
		r.Get("/secure-view", h.handleSecureView)
	})
}

func (h *Handler) handleReportInsecure(w http.ResponseWriter, r *http.Request) {
	var report InsecureReport
	if err := decodeReport(w, r, &report); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := report.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if report.ReportedAt.IsZero() {
		report.ReportedAt = h.now().UTC()
	}

	if err := h.store.SaveInsecure(r.Context(), &report); err != nil {
		h.log.Error("Could not store report", "kind", "insecure", "err", err)
		http.Error(w, "could not store report", http.StatusInternalServerError)
		return
	}

	h.log.Info("Insecure report received", "name", report.Name, "participant", report.ParticipantID)
	writeJSON(w, http.StatusCreated, &report)
}

func (h *Handler) handleReportSecure(w http.ResponseWriter, r *http.Request) {
	var report SecureReport
	if err := decodeReport(w, r, &report); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := report.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if report.ReportedAt.IsZero() {
		report.ReportedAt = h.now().UTC()
	}

	if err := h.store.SaveSecure(r.Context(), &report); err != nil {
		h.log.Error("Could not store report", "kind", "secure", "err", err)
		http.Error(w, "could not store report", http.StatusInternalServerError)
		return
	}

	h.log.Info("Secure report received", "participant", report.ParticipantID, "fingerprint", report.Fingerprint)
	writeJSON(w, http.StatusCreated, &report)
}

func (h *Handler) handleBigBrother(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.ListInsecure(r.Context())
	if err != nil {
		h.log.Error("Could not list reports", "kind", "insecure", "err", err)
		http.Error(w, "could not list reports", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []*InsecureReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *Handler) handleSecureView(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.ListSecure(r.Context())
	if err != nil {
		h.log.Error("Could not list reports", "kind", "secure", "err", err)
		http.Error(w, "could not list reports", http.StatusInternalServerError)
		return
	}

	fingerprint := r.URL.Query().Get("fingerprint")
	filtered := make([]*SecureReport, 0, len(reports))
	for _, rep := range reports {
		if fingerprint == "" || rep.Fingerprint == fingerprint {
			filtered = append(filtered, rep)
		}
	}
	writeJSON(w, http.StatusOK, filtered)
}

func decodeReport(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportSize))
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrInvalidReport, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
