package dto

import (
	"time"

	"ledger-reconciliation-service/internal/models"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response stamped with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// UploadResponse is returned after a file upload.
type UploadResponse struct {
	SessionID  string          `json:"session_id"`
	Source     models.Source   `json:"source"`
	FileName   string          `json:"file_name"`
	Headers    []string        `json:"headers"`
	Fields     models.FieldMap `json:"fields"`
	Records    int             `json:"records"`
	BankCount  int             `json:"bank_count"`
	SalesCount int             `json:"sales_count"`
	Ready      bool            `json:"ready"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	SessionID  string    `json:"session_id"`
	BankFile   string    `json:"bank_file,omitempty"`
	SalesFile  string    `json:"sales_file,omitempty"`
	BankCount  int       `json:"bank_count"`
	SalesCount int       `json:"sales_count"`
	Ready      bool      `json:"ready"`
	ResultID   string    `json:"result_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ResultResponse carries a reconciliation result. With a tab selected only
// that list is filled in.
type ResultResponse struct {
	ID             string                      `json:"id"`
	CreatedAt      time.Time                   `json:"created_at"`
	Summary        models.Summary              `json:"summary"`
	Difference     string                      `json:"difference"`
	Tab            string                      `json:"tab,omitempty"`
	MatchedPairs   []*models.MatchedPair       `json:"matched_pairs,omitempty"`
	UnmatchedBank  []*models.TransactionRecord `json:"unmatched_bank,omitempty"`
	UnmatchedSales []*models.TransactionRecord `json:"unmatched_sales,omitempty"`
}

// Result tabs
const (
	TabMatched        = "matched"
	TabUnmatchedBank  = "unmatched_bank"
	TabUnmatchedSales = "unmatched_sales"
)

// NewResultResponse builds the response for result, restricted to tab
// when tab is not empty.
func NewResultResponse(result *models.ReconciliationResult, tab string) ResultResponse {
	resp := ResultResponse{
		ID:         result.ID,
		CreatedAt:  result.CreatedAt,
		Summary:    result.Summary,
		Difference: result.Difference().StringFixed(2),
		Tab:        tab,
	}
	if tab == "" || tab == TabMatched {
		resp.MatchedPairs = result.MatchedPairs
	}
	if tab == "" || tab == TabUnmatchedBank {
		resp.UnmatchedBank = result.UnmatchedBank
	}
	if tab == "" || tab == TabUnmatchedSales {
		resp.UnmatchedSales = result.UnmatchedSales
	}
	return resp
}

// ValidTab reports whether tab names a result list.
func ValidTab(tab string) bool {
	switch tab {
	case "", TabMatched, TabUnmatchedBank, TabUnmatchedSales:
		return true
	default:
		return false
	}
}
