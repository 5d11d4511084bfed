package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cleared-dev/envelopes/internal/importer"
	"github.com/cleared-dev/envelopes/internal/model"
	"github.com/cleared-dev/envelopes/internal/simplefin"
	"github.com/cleared-dev/envelopes/internal/store"
)

// ImportService is the core surface the REST layer drives.
type ImportService interface {
	Connect(ctx context.Context, ownerID, setupToken, name string) (model.Connection, error)
	Connections(ctx context.Context, ownerID string) ([]model.ConnectionView, error)
	RemoveConnection(ctx context.Context, ownerID, connID string) error
	Sync(ctx context.Context, ownerID, connID string) (importer.Result, error)
	ImportYNABJSON(ctx context.Context, ownerID string, r io.Reader, fileName string) (importer.Result, error)
	ImportYNABCSV(ctx context.Context, ownerID string, r io.Reader, accountName, fileName string) (importer.Result, error)
	ImportActualBudget(ctx context.Context, ownerID string, r io.Reader, fileName string) (importer.Result, error)
	ImportBankCSV(ctx context.Context, ownerID string, r io.Reader, accountName, fileName string) (importer.Result, error)
	Logs(ctx context.Context, ownerID string) ([]model.ImportLog, error)
}

// Handler serves the import and SimpleFIN endpoints.
type Handler struct {
	svc          ImportService
	maxBodyBytes int64
}

// importResponse is the body of a successful import or sync.
type importResponse struct {
	Success bool `json:"success"`
	importer.Result
}

type setupRequest struct {
	SetupToken     string `json:"setupToken"`
	ConnectionName string `json:"connectionName"`
}

type budgetRequest struct {
	BudgetData json.RawMessage `json:"budgetData"`
	FileName   string          `json:"fileName"`
}

type csvRequest struct {
	CSVContent  string `json:"csvContent"`
	AccountName string `json:"accountName"`
	FileName    string `json:"fileName"`
}

func (h *Handler) register(mux *http.ServeMux, wrap func(http.HandlerFunc) http.Handler) {
	mux.Handle("POST /api/simplefin/setup", wrap(h.setup))
	mux.Handle("POST /api/simplefin/connect", wrap(h.setup))
	mux.Handle("GET /api/simplefin/connections", wrap(h.listConnections))
	mux.Handle("DELETE /api/simplefin/connections/{id}", wrap(h.deleteConnection))
	mux.Handle("POST /api/simplefin/sync/{connectionId}", wrap(h.sync))

	mux.Handle("POST /api/import/ynab-json", wrap(h.importYNABJSON))
	mux.Handle("POST /api/import/ynab-csv", wrap(h.importYNABCSV))
	mux.Handle("POST /api/import/actual-budget", wrap(h.importActual))
	mux.Handle("POST /api/import/csv", wrap(h.importBankCSV))
	mux.Handle("GET /api/import/logs", wrap(h.logs))
}

func owner(r *http.Request) string {
	o, _ := OwnerFromContext(r.Context())
	return o
}

// decode reads a JSON body, writing a 400 response on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// fail maps err to a status code. Client errors and upstream failures
// carry the error text; anything else gets fallback.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logFrom(r).Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = fallback
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	var parseErr *importer.ParseError
	var upstream *simplefin.UpstreamError
	switch {
	case errors.Is(err, simplefin.ErrUntrustedSetupToken),
		errors.Is(err, importer.ErrMissingInput),
		errors.Is(err, importer.ErrUnknownFormat),
		errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.Is(err, importer.ErrSimpleFINDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) setup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.SetupToken == "" {
		writeError(w, http.StatusBadRequest, "Setup token is required")
		return
	}
	conn, err := h.svc.Connect(r.Context(), owner(r), req.SetupToken, req.ConnectionName)
	if err != nil {
		h.fail(w, r, err, "Failed to connect SimpleFIN")
		return
	}
	writeJSON(w, http.StatusOK, conn.View())
}

func (h *Handler) listConnections(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Connections(r.Context(), owner(r))
	if err != nil {
		h.fail(w, r, err, "Failed to fetch connections")
		return
	}
	if views == nil {
		views = []model.ConnectionView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) deleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveConnection(r.Context(), owner(r), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Connection not found")
			return
		}
		h.fail(w, r, err, "Failed to delete connection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Sync(r.Context(), owner(r), r.PathValue("connectionId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Connection not found")
			return
		}
		h.fail(w, r, err, "Failed to sync")
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Success: true, Result: res})
}

// budgetReader returns the budget payload, which clients send either as a
// JSON object or as a string holding the file contents.
func budgetReader(raw json.RawMessage) (io.Reader, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, false
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return nil, false
		}
		return strings.NewReader(s), true
	}
	return strings.NewReader(trimmed), true
}

func (h *Handler) importBudget(w http.ResponseWriter, r *http.Request, fallback string,
	run func(ctx context.Context, ownerID string, body io.Reader, fileName string) (importer.Result, error)) {
	var req budgetRequest
	if !h.decode(w, r, &req) {
		return
	}
	body, ok := budgetReader(req.BudgetData)
	if !ok {
		writeError(w, http.StatusBadRequest, "Budget data is required")
		return
	}
	res, err := run(r.Context(), owner(r), body, req.FileName)
	if err != nil {
		h.fail(w, r, err, fallback)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Success: true, Result: res})
}

func (h *Handler) importYNABJSON(w http.ResponseWriter, r *http.Request) {
	h.importBudget(w, r, "Failed to import YNAB data", h.svc.ImportYNABJSON)
}

func (h *Handler) importActual(w http.ResponseWriter, r *http.Request) {
	h.importBudget(w, r, "Failed to import Actual Budget data", h.svc.ImportActualBudget)
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request, fallback string,
	run func(ctx context.Context, ownerID string, body io.Reader, accountName, fileName string) (importer.Result, error)) {
	var req csvRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.CSVContent == "" || req.AccountName == "" {
		writeError(w, http.StatusBadRequest, "CSV content and account name are required")
		return
	}
	res, err := run(r.Context(), owner(r), strings.NewReader(req.CSVContent), req.AccountName, req.FileName)
	if err != nil {
		h.fail(w, r, err, fallback)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Success: true, Result: res})
}

func (h *Handler) importYNABCSV(w http.ResponseWriter, r *http.Request) {
	h.importCSV(w, r, "Failed to import YNAB CSV", h.svc.ImportYNABCSV)
}

func (h *Handler) importBankCSV(w http.ResponseWriter, r *http.Request) {
	h.importCSV(w, r, "Failed to import bank CSV", h.svc.ImportBankCSV)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Logs(r.Context(), owner(r))
	if err != nil {
		h.fail(w, r, err, "Failed to fetch import logs")
		return
	}
	if entries == nil {
		entries = []model.ImportLog{}
	}
	writeJSON(w, http.StatusOK, entries)
}
