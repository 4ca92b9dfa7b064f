package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker logs throughput of a long loop at a fixed interval.
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int64
	current     int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.Mutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string
	Total       int64
	LogInterval time.Duration
	Logger      Logger
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = 5 * time.Second
	}

	now := time.Now()
	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   now,
		lastLogTime: now,
		logInterval: config.LogInterval,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Debug("Starting operation")

	return tracker
}

// Increment increments the progress counter by 1
func (p *ProgressTracker) Increment() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current++
	if now := time.Now(); now.Sub(p.lastLogTime) >= p.logInterval {
		p.logProgress(now)
		p.lastLogTime = now
	}
}

// Current returns the number of processed items.
func (p *ProgressTracker) Current() int64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.current
}

// Complete logs final statistics.
func (p *ProgressTracker) Complete() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	duration := time.Since(p.startTime)
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"total":     p.total,
		"processed": p.current,
		"duration":  duration.String(),
		"rate":      fmt.Sprintf("%.2f/sec", rate(p.current, duration)),
	}).Debug("Operation completed")
}

func (p *ProgressTracker) logProgress(now time.Time) {
	duration := now.Sub(p.startTime)
	fields := Fields{
		"operation": p.operation,
		"processed": p.current,
		"rate":      fmt.Sprintf("%.2f/sec", rate(p.current, duration)),
	}
	if p.total > 0 {
		fields["total"] = p.total
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(p.current)/float64(p.total)*100)
	}

	p.logger.WithFields(fields).Info("Progress update")
}

func rate(n int64, d time.Duration) float64 {
	if d.Seconds() <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// OperationLogger logs the steps and outcome of one named operation.
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger,
		operation: operation,
		fields:    Fields{"operation": operation},
		startTime: time.Now(),
	}

	ol.logger.WithFields(ol.fields).Debug("Starting operation")
	return ol
}

// WithField adds a field to every subsequent entry.
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

// Step logs a named step within the operation.
func (ol *OperationLogger) Step(step string, fields Fields) {
	ol.logger.WithFields(ol.fields).WithFields(fields).WithField("step", step).Debug("Operation step")
}

// Success logs completion with the elapsed time.
func (ol *OperationLogger) Success(message string) {
	ol.logger.WithFields(ol.fields).WithFields(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "success",
	}).Info(message)
}

// Error logs a failed completion.
func (ol *OperationLogger) Error(err error, message string) {
	ol.logger.WithError(err).WithFields(ol.fields).WithFields(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "error",
	}).Error(message)
}

// TimedOperation runs fn and logs its outcome and duration.
func TimedOperation(operation string, logger Logger, fn func() error) error {
	ol := NewOperationLogger(operation, logger)

	if err := fn(); err != nil {
		ol.Error(err, "Operation failed")
		return err
	}

	ol.Success("Operation completed")
	return nil
}
