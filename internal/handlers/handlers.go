package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/qogitools/fba-scanner/internal/database"
	"github.com/qogitools/fba-scanner/internal/scanner"
)

const sessionName = "fba-scanner"

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db          *database.DB
	scanService *scanner.Service
	sessions    *database.DBSessionStore
	scanLimit   int
	logger      *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(db *database.DB, scanService *scanner.Service, sessions *database.DBSessionStore,
	scanLimit int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		db:          db,
		scanService: scanService,
		sessions:    sessions,
		scanLimit:   scanLimit,
		logger:      logger,
	}
}

// JSON response helper
func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Warn("failed to encode response", slog.Any("error", err))
	}
}

// Error response helper
func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// HealthCheck returns API health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

// TriggerScan runs one scan pass and returns the evaluated batch
func (h *Handler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	limit := h.scanLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	result, err := h.scanService.Run(r.Context(), limit)
	if err != nil {
		h.logger.Error("scan failed", slog.Any("error", err))
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Remember the run so a dashboard reload shows the same batch
	if session, err := h.sessions.Get(r, sessionName); err == nil {
		session.Values["lastRunID"] = result.Run.ID
		if err := session.Save(r, w); err != nil {
			h.logger.Warn("failed to save session", slog.Any("error", err))
		}
	}

	jsonResponse(w, http.StatusOK, result)
}

// GetRuns returns recent scan run history
func (h *Handler) GetRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.db.ListScanRuns(20)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"total": len(runs),
	})
}

// GetResults returns the evaluated products for a run. Without an
// explicit run parameter, the session's last run is used, then the most
// recent run overall.
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		runID = h.lastRunID(r)
	}
	if runID == "" {
		jsonResponse(w, http.StatusOK, map[string]interface{}{"products": []database.EvaluatedRow{}})
		return
	}

	run, err := h.db.GetScanRun(runID)
	if err != nil {
		errorResponse(w, http.StatusNotFound, "unknown run: "+runID)
		return
	}

	products, err := h.db.GetEvaluatedProducts(runID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"run":      run,
		"products": products,
	})
}

// ExportCSV streams the profitable subset of a run as a CSV download
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		runID = h.lastRunID(r)
	}
	if runID == "" {
		errorResponse(w, http.StatusNotFound, "no scan run available")
		return
	}

	products, err := h.db.GetEvaluatedProducts(runID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	profitable := make([]database.EvaluatedRow, 0, len(products))
	for _, p := range products {
		if p.Profitable {
			profitable = append(profitable, p)
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="profitable_products.csv"`)
	if err := WriteProductsCSV(w, profitable); err != nil {
		h.logger.Warn("csv export failed", slog.Any("error", err))
	}
}

// lastRunID reads the session's remembered run, falling back to the most
// recent run in the database.
func (h *Handler) lastRunID(r *http.Request) string {
	if session, err := h.sessions.Get(r, sessionName); err == nil {
		if id, ok := session.Values["lastRunID"].(string); ok && id != "" {
			return id
		}
	}

	runs, err := h.db.ListScanRuns(1)
	if err != nil || len(runs) == 0 {
		return ""
	}
	return runs[0].ID
}
