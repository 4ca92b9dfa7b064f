package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ledger-reconciliation-service/internal/api/dto"
	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/internal/reporter"
	"ledger-reconciliation-service/internal/session"
)

// formFile is the multipart field carrying an uploaded file.
const formFile = "file"

// ReconciliationsHandler exposes the session workflow over HTTP.
type ReconciliationsHandler struct {
	*Base
	maxUpload int64
}

// NewReconciliationsHandler creates a handler accepting uploads of at most
// maxUpload bytes.
func NewReconciliationsHandler(base *Base, maxUpload int64) *ReconciliationsHandler {
	return &ReconciliationsHandler{Base: base, maxUpload: maxUpload}
}

// Upload handles POST /api/uploads/{source}.
func (h *ReconciliationsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	source := models.Source(chi.URLParam(r, "source"))
	if !source.IsValid() {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("source must be bank or sales"))
		return
	}

	// multipart framing needs some room on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			h.WriteError(w, http.StatusRequestEntityTooLarge,
				dto.NewAPIError(dto.ErrCodeTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxUpload)))
			return
		}
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(formFile)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("missing form field \"file\""))
		return
	}
	defer file.Close()

	state, ds, err := h.manager.Upload(r.Context(), SessionID(r), source, filepath.Base(header.Filename), file)
	if err != nil {
		h.WriteFailure(w, r, err)
		return
	}

	h.setSession(w, state.ID)
	h.WriteJSON(w, http.StatusCreated, dto.UploadResponse{
		SessionID:  state.ID,
		Source:     ds.Source,
		FileName:   ds.FileName,
		Headers:    ds.Headers,
		Fields:     ds.Fields,
		Records:    len(ds.Records),
		BankCount:  state.RecordCount(models.SourceBank),
		SalesCount: state.RecordCount(models.SourceSales),
		Ready:      state.Ready(),
	})
}

// Reconcile handles POST /api/reconciliations.
func (h *ReconciliationsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.Reconcile(r.Context(), SessionID(r))
	if err != nil {
		h.WriteFailure(w, r, err)
		return
	}

	h.setSession(w, state.ID)
	h.WriteJSON(w, http.StatusCreated, dto.NewResultResponse(state.Result, ""))
}

// Current handles GET /api/reconciliations/current?tab=.
func (h *ReconciliationsHandler) Current(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if !dto.ValidTab(tab) {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("unknown tab: "+tab))
		return
	}

	result, err := h.manager.Result(r.Context(), SessionID(r))
	if err != nil {
		h.WriteFailure(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.NewResultResponse(result, tab))
}

// Export handles GET /api/exports/{type}.
func (h *ReconciliationsHandler) Export(w http.ResponseWriter, r *http.Request) {
	exportType, err := reporter.ParseExportType(chi.URLParam(r, "type"))
	if err != nil {
		h.WriteFailure(w, r, err)
		return
	}

	data, name, err := h.manager.Export(r.Context(), SessionID(r), exportType)
	if err != nil {
		h.WriteFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Session handles GET /api/session.
func (h *ReconciliationsHandler) Session(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.Current(r.Context(), SessionID(r))
	if err != nil {
		h.WriteFailure(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, sessionResponse(state))
}

// Reset handles DELETE /api/session.
func (h *ReconciliationsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if id := SessionID(r); id != "" {
		if err := h.manager.Reset(r.Context(), id); err != nil {
			h.WriteFailure(w, r, err)
			return
		}
	}
	h.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func sessionResponse(state *session.State) dto.SessionResponse {
	resp := dto.SessionResponse{
		SessionID:  state.ID,
		BankCount:  state.RecordCount(models.SourceBank),
		SalesCount: state.RecordCount(models.SourceSales),
		Ready:      state.Ready(),
		UpdatedAt:  state.UpdatedAt,
	}
	if state.Bank != nil {
		resp.BankFile = state.Bank.FileName
	}
	if state.Sales != nil {
		resp.SalesFile = state.Sales.FileName
	}
	if state.Result != nil {
		resp.ResultID = state.Result.ID
	}
	return resp
}
