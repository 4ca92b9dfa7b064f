// Package reconciler runs the reconciliation pipeline: decode both exports,
// detect their columns, normalize rows into records, match and aggregate.
//
// Aggregate and Reconcile are pure. ReconciliationService adds file loading,
// logging and progress reporting around them.
//
// Example usage:
//
//	service, err := reconciler.NewReconciliationService(reconciler.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	run, err := service.ReconcileFiles(ctx, "bank.csv", "sales.xlsx")
//	if err != nil {
//		return err
//	}
//	fmt.Printf("%.1f%% matched\n", run.Result.Summary.MatchRate)
package reconciler

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"ledger-reconciliation-service/internal/detector"
	"ledger-reconciliation-service/internal/matcher"
	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/internal/normalizer"
	"ledger-reconciliation-service/internal/parsers"
	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	Matching    *matcher.MatchingConfig
	Parse       *parsers.ParseConfig
	SignPolicy  normalizer.AmountSignPolicy
	SampleRows  int
	FoldAccents bool
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		Matching:   matcher.DefaultMatchingConfig(),
		Parse:      parsers.DefaultParseConfig(),
		SignPolicy: normalizer.SignPreserve,
		SampleRows: 5,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Matching == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "matching", nil, nil)
	}
	if err := c.Matching.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching", c.Matching.String(), err)
	}
	if c.SignPolicy != "" && !c.SignPolicy.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "sign_policy", c.SignPolicy,
			fmt.Errorf("sign policy must be %q or %q", normalizer.SignPreserve, normalizer.SignAbsolute))
	}
	if c.SampleRows < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "sample_rows", c.SampleRows,
			fmt.Errorf("sample rows cannot be negative"))
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Matching != nil {
		clone.Matching = c.Matching.Clone()
	}
	if c.Parse != nil {
		parse := *c.Parse
		parse.Delimiters = append([]rune(nil), c.Parse.Delimiters...)
		clone.Parse = &parse
	}
	return &clone
}

// Dataset is one side of a reconciliation after loading: the decoded
// headers, the detected field map and the surviving records.
type Dataset struct {
	Source   models.Source               `json:"source"`
	FileName string                      `json:"file_name"`
	Headers  []string                    `json:"headers"`
	Fields   models.FieldMap             `json:"fields"`
	RowCount int                         `json:"row_count"`
	Records  []*models.TransactionRecord `json:"records"`
}

// IsEmpty reports whether the dataset has no records.
func (d *Dataset) IsEmpty() bool {
	return d == nil || len(d.Records) == 0
}

// Run is the product of ReconcileFiles.
type Run struct {
	Bank   *Dataset
	Sales  *Dataset
	Result *models.ReconciliationResult
}

// ReconciliationService orchestrates the complete reconciliation process
type ReconciliationService struct {
	config     *Config
	parser     *parsers.Parser
	detector   *detector.Detector
	normalizer *normalizer.Normalizer
	logger     logger.Logger

	mu        sync.RWMutex
	callbacks []ProgressCallback
}

// NewReconciliationService creates a service. A nil config means
// DefaultConfig.
func NewReconciliationService(config *Config) (*ReconciliationService, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.Clone()
	if config.SampleRows == 0 {
		config.SampleRows = 5
	}

	log := logger.GetGlobalLogger().WithComponent("reconciliation_service")
	log.WithFields(logger.Fields{
		"matching":    config.Matching.String(),
		"sign_policy": config.SignPolicy,
		"sample_rows": config.SampleRows,
	}).Debug("Creating reconciliation service")

	return &ReconciliationService{
		config:     config,
		parser:     parsers.NewParser(config.Parse).WithLogger(log),
		detector:   detector.New(detector.Options{FoldAccents: config.FoldAccents}),
		normalizer: normalizer.New(normalizer.Options{SignPolicy: config.SignPolicy, Logger: log}),
		logger:     log,
	}, nil
}

// Config returns the service configuration.
func (rs *ReconciliationService) Config() *Config {
	return rs.config.Clone()
}

// LoadTable detects the columns of a decoded table and normalizes its rows.
func (rs *ReconciliationService) LoadTable(table *parsers.Table, source models.Source) *Dataset {
	fields := rs.detector.DetectWithSample(table.Headers, table.Sample(rs.config.SampleRows))

	log := rs.logger.WithFields(logger.Fields{"source": source, "file": table.Name})
	for _, ft := range fields.Missing() {
		log.WithField("field", ft).Warn("Column not detected")
	}

	records := rs.normalizer.NormalizeRows(table.Headers, table.Rows, fields, source)
	log.WithFields(logger.Fields{
		"rows":    len(table.Rows),
		"records": len(records),
	}).Info("Loaded dataset")

	return &Dataset{
		Source:   source,
		FileName: table.Name,
		Headers:  table.Headers,
		Fields:   fields,
		RowCount: len(table.Rows),
		Records:  records,
	}
}

// LoadReader decodes r, named name, and loads it as source.
func (rs *ReconciliationService) LoadReader(ctx context.Context, name string, r io.Reader, source models.Source) (*Dataset, error) {
	table, err := rs.parser.Parse(ctx, name, r)
	if err != nil {
		return nil, err
	}
	return rs.LoadTable(table, source), nil
}

// LoadFile decodes the file at path and loads it as source.
func (rs *ReconciliationService) LoadFile(ctx context.Context, path string, source models.Source) (*Dataset, error) {
	table, err := rs.parser.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return rs.LoadTable(table, source), nil
}

// Detect decodes the file at path and returns its headers and detected
// field map without normalizing any rows.
func (rs *ReconciliationService) Detect(ctx context.Context, path string) (*parsers.Table, models.FieldMap, error) {
	table, err := rs.parser.ParseFile(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return table, rs.detector.DetectWithSample(table.Headers, table.Sample(rs.config.SampleRows)), nil
}

// Reconcile matches two loaded datasets. Both must hold records.
func (rs *ReconciliationService) Reconcile(ctx context.Context, bank, sales *Dataset) (*models.ReconciliationResult, error) {
	if bank.IsEmpty() || sales.IsEmpty() {
		var missing []string
		if bank.IsEmpty() {
			missing = append(missing, string(models.SourceBank))
		}
		if sales.IsEmpty() {
			missing = append(missing, string(models.SourceSales))
		}
		return nil, errors.ReconciliationError(errors.CodeMissingData, "reconcile",
			fmt.Errorf("no records loaded for %v", missing)).
			WithSuggestion("Load both the bank and the sales export before reconciling")
	}
	return rs.ReconcileRecords(ctx, bank.Records, sales.Records)
}

// ReconcileRecords matches two record lists. Empty lists are allowed.
func (rs *ReconciliationService) ReconcileRecords(ctx context.Context, bank, sales []*models.TransactionRecord) (*models.ReconciliationResult, error) {
	op := logger.NewOperationLogger("reconcile", rs.logger).
		WithField("bank_records", len(bank)).
		WithField("sales_records", len(sales))

	if err := ctx.Err(); err != nil {
		op.Error(err, "Reconciliation cancelled")
		return nil, err
	}

	rs.notify(StageMatching, len(bank)+len(sales))
	outcome := matcher.NewEngine(rs.config.Matching).Match(bank, sales)
	op.Step("matched", logger.Fields{"pairs": len(outcome.Pairs)})

	rs.notify(StageAggregating, len(outcome.Pairs))
	result := Aggregate(bank, sales, outcome)

	op.WithField("result_id", result.ID).
		WithField("match_rate", result.Summary.MatchRate).
		Success("Reconciliation completed")
	rs.notify(StageCompleted, result.MatchedCount())

	return result, nil
}

// ReconcileFiles loads both files concurrently and reconciles them.
func (rs *ReconciliationService) ReconcileFiles(ctx context.Context, bankPath, salesPath string) (*Run, error) {
	rs.logger.WithFields(logger.Fields{
		"bank_file":  filepath.Base(bankPath),
		"sales_file": filepath.Base(salesPath),
	}).Info("Starting file reconciliation")

	run := &Run{}
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		rs.notify(StageLoadingBank, 0)
		ds, err := rs.LoadFile(ctx, bankPath, models.SourceBank)
		run.Bank = ds
		return err
	})
	p.Go(func(ctx context.Context) error {
		rs.notify(StageLoadingSales, 0)
		ds, err := rs.LoadFile(ctx, salesPath, models.SourceSales)
		run.Sales = ds
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	result, err := rs.Reconcile(ctx, run.Bank, run.Sales)
	if err != nil {
		return nil, err
	}
	run.Result = result
	return run, nil
}
