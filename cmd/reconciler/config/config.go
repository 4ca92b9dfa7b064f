package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-reconciliation-service/internal/api"
	"ledger-reconciliation-service/internal/matcher"
	"ledger-reconciliation-service/internal/normalizer"
	"ledger-reconciliation-service/internal/parsers"
	"ledger-reconciliation-service/internal/reconciler"
	"ledger-reconciliation-service/internal/reporter"
	"ledger-reconciliation-service/internal/session"
	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// Session store kinds
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// CreateMatchingConfig creates a matching configuration with the specified tolerances
func CreateMatchingConfig(dateTolerance int, amountTolerance float64, parallel bool) *matcher.MatchingConfig {
	config := matcher.DefaultMatchingConfig()

	// Apply CLI overrides
	config.DateToleranceDays = dateTolerance
	config.AmountTolerance = decimal.NewFromFloat(amountTolerance)
	config.ParallelScoring = parallel

	return config
}

// CreateReconcilerConfig creates a validated reconciler configuration.
func CreateReconcilerConfig(matching *matcher.MatchingConfig, signPolicy string, sampleRows int, maxUploadMB int) (*reconciler.Config, error) {
	config := reconciler.DefaultConfig()
	config.Matching = matching
	config.SignPolicy = normalizer.AmountSignPolicy(strings.ToLower(signPolicy))
	config.SampleRows = sampleRows

	if maxUploadMB < 0 {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "max-upload-mb", maxUploadMB,
			fmt.Errorf("upload limit cannot be negative"))
	}
	config.Parse = parsers.DefaultParseConfig()
	config.Parse.MaxBytes = int64(maxUploadMB) << 20

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format, exportType string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(format))

	switch config.Format {
	case reporter.FormatJSON, reporter.FormatYAML:
		// structured output carries every list in full
		config.MaxListItems = 0
	case reporter.FormatCSV:
		t, err := reporter.ParseExportType(exportType)
		if err != nil {
			return nil, err
		}
		config.ExportType = t
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", format, err)
	}
	return config, nil
}

// CreateLoggerConfig creates the logger configuration. Verbose forces the
// debug level.
func CreateLoggerConfig(level, format string, verbose bool) (*logger.Config, error) {
	config := logger.DefaultConfig()
	if verbose {
		config = logger.DebugConfig()
	} else if level != "" {
		config.Level = logger.Level(strings.ToLower(level))
	}
	if format != "" {
		config.Format = logger.Format(strings.ToLower(format))
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", fmt.Sprintf("%s/%s", config.Level, config.Format), err)
	}
	return config, nil
}

// CreateServerConfig creates the HTTP server configuration.
func CreateServerConfig(addr string, origins []string, ttl time.Duration, maxUploadMB int) (api.Config, error) {
	config := api.DefaultConfig()
	if addr != "" {
		config.Addr = addr
	}
	if len(origins) > 0 {
		config.AllowedOrigins = origins
	}
	if ttl < 0 {
		return config, errors.ConfigurationError(errors.CodeInvalidConfig, "session-ttl", ttl,
			fmt.Errorf("session ttl cannot be negative"))
	}
	if ttl > 0 {
		config.SessionTTL = ttl
	}
	if maxUploadMB > 0 {
		config.MaxUploadBytes = int64(maxUploadMB) << 20
	}
	return config, nil
}

// OpenSessionStore opens the session store of the given kind. The path is
// only used by the sqlite store.
func OpenSessionStore(ctx context.Context, kind, path string, ttl time.Duration) (session.Store, error) {
	switch strings.ToLower(kind) {
	case "", StoreMemory:
		return session.NewMemoryStore(ttl), nil
	case StoreSQLite:
		if path == "" {
			return nil, errors.ConfigurationError(errors.CodeMissingConfig, "session-db", nil, nil)
		}
		return session.OpenSQLite(ctx, path, ttl)
	default:
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "session-store", kind,
			fmt.Errorf("session store must be %q or %q", StoreMemory, StoreSQLite))
	}
}
