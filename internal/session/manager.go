package session

import (
	"context"
	"fmt"
	"io"
	"sync"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/internal/reconciler"
	"ledger-reconciliation-service/internal/reporter"
	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// Manager runs the interactive workflow: upload bank, upload sales,
// reconcile, show, export and reset.
type Manager struct {
	store    Store
	service  *reconciler.ReconciliationService
	exporter *reporter.Exporter
	logger   logger.Logger

	// serializes read-modify-write cycles on stored states
	mu sync.Mutex
}

// NewManager creates a workflow manager over store.
func NewManager(store Store, service *reconciler.ReconciliationService) *Manager {
	return &Manager{
		store:    store,
		service:  service,
		exporter: reporter.NewExporter(),
		logger:   logger.GetGlobalLogger().WithComponent("session_manager"),
	}
}

// Upload decodes r and stores it as the source dataset of session id. An
// empty, unknown or expired id starts a new session. The returned state
// carries the session id to use from then on.
func (m *Manager) Upload(ctx context.Context, id string, source models.Source, name string, r io.Reader) (*State, *reconciler.Dataset, error) {
	if !source.IsValid() {
		return nil, nil, errors.ValidationError(errors.CodeInvalidSource, "source", source,
			fmt.Errorf("source must be bank or sales"))
	}

	ds, err := m.service.LoadReader(ctx, name, r, source)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.loadOrCreate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	state.SetDataset(ds)
	if err := m.store.Save(ctx, state); err != nil {
		return nil, nil, err
	}

	m.logger.WithFields(logger.Fields{
		"session_id": state.ID,
		"source":     source,
		"file":       name,
		"records":    len(ds.Records),
	}).Info("Dataset uploaded")

	return state, ds, nil
}

// Reconcile matches the two uploaded datasets of session id and stores the
// result. Both datasets must be loaded and non-empty.
func (m *Manager) Reconcile(ctx context.Context, id string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := m.service.Reconcile(ctx, state.Bank, state.Sales)
	if err != nil {
		return nil, err
	}
	state.SetResult(result)
	if err := m.store.Save(ctx, state); err != nil {
		return nil, err
	}

	m.logger.WithFields(logger.Fields{
		"session_id": state.ID,
		"result_id":  result.ID,
		"match_rate": result.Summary.MatchRate,
	}).Info("Session reconciled")

	return state, nil
}

// Current returns the state of session id.
func (m *Manager) Current(ctx context.Context, id string) (*State, error) {
	return m.store.Get(ctx, id)
}

// Result returns the latest result of session id.
func (m *Manager) Result(ctx context.Context, id string) (*models.ReconciliationResult, error) {
	state, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.Result == nil {
		return nil, errors.ReconciliationError(errors.CodeMissingData, "show result",
			fmt.Errorf("session %s has no reconciliation result", id)).
			WithSuggestion("Reconcile the uploaded files first")
	}
	return state.Result, nil
}

// Export renders one CSV export of the latest result of session id.
func (m *Manager) Export(ctx context.Context, id string, exportType reporter.ExportType) ([]byte, string, error) {
	if !exportType.IsValid() {
		_, err := reporter.ParseExportType(string(exportType))
		return nil, "", err
	}

	result, err := m.Result(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return m.exporter.Generate(result, exportType)
}

// Reset discards session id.
func (m *Manager) Reset(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.WithField("session_id", id).Info("Session reset")
	return nil
}

// Purge removes expired sessions from the store.
func (m *Manager) Purge(ctx context.Context) (int, error) {
	return m.store.Purge(ctx)
}

func (m *Manager) loadOrCreate(ctx context.Context, id string) (*State, error) {
	if id == "" {
		return NewState(), nil
	}

	state, err := m.store.Get(ctx, id)
	if err == nil {
		return state, nil
	}
	if errors.HasCode(err, errors.CodeSessionNotFound) || errors.HasCode(err, errors.CodeSessionExpired) {
		m.logger.WithField("session_id", id).Debug("Starting a new session")
		return NewState(), nil
	}
	return nil, err
}
