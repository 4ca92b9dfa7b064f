// Package session keeps the state of an interactive reconciliation between
// requests: the loaded bank and sales datasets and the latest result.
//
// State travels as JSON. Both stores hold encoded bytes, so a State read
// back from either store never shares memory with the one that was saved.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/internal/reconciler"
	"ledger-reconciliation-service/pkg/errors"
)

// State is one user's reconciliation workspace.
type State struct {
	ID        string                       `json:"id"`
	Bank      *reconciler.Dataset          `json:"bank,omitempty"`
	Sales     *reconciler.Dataset          `json:"sales,omitempty"`
	Result    *models.ReconciliationResult `json:"result,omitempty"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

// NewState creates an empty state with a fresh id.
func NewState() *State {
	now := time.Now().UTC()
	return &State{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Dataset returns the dataset loaded for source, or nil.
func (s *State) Dataset(source models.Source) *reconciler.Dataset {
	if source == models.SourceBank {
		return s.Bank
	}
	return s.Sales
}

// SetDataset stores ds under its source. Any previous result is dropped
// since it no longer describes the loaded data.
func (s *State) SetDataset(ds *reconciler.Dataset) {
	switch ds.Source {
	case models.SourceBank:
		s.Bank = ds
	case models.SourceSales:
		s.Sales = ds
	}
	s.Result = nil
	s.UpdatedAt = time.Now().UTC()
}

// SetResult stores the latest reconciliation result.
func (s *State) SetResult(result *models.ReconciliationResult) {
	s.Result = result
	s.UpdatedAt = time.Now().UTC()
}

// RecordCount returns the number of records loaded for source.
func (s *State) RecordCount(source models.Source) int {
	ds := s.Dataset(source)
	if ds == nil {
		return 0
	}
	return len(ds.Records)
}

// Ready reports whether both datasets hold records.
func (s *State) Ready() bool {
	return !s.Bank.IsEmpty() && !s.Sales.IsEmpty()
}

// Encode serializes a state for storage.
func Encode(s *State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.SessionError(errors.CodeStorageFailure, s.ID, err)
	}
	return data, nil
}

// Decode restores a state written by Encode.
func Decode(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.SessionError(errors.CodeStorageFailure, "", err)
	}
	return &s, nil
}
