package algolog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sunpath/solarbridge/internal/loadmod"
)

// queueSize bounds the hand-off between the message path and the writer
// goroutine. When the sink cannot keep up, records are dropped with a
// warning rather than delaying message processing.
const queueSize = 256

// filePrefix and fileSuffix form the daily log file names:
// algorithm_log_2026-08-24.csv
const (
	filePrefix = "algorithm_log_"
	fileSuffix = ".csv"
	dateLayout = "2006-01-02"
)

// header is the fixed column order of the external record contract.
var header = []string{
	"timestamp",
	"house_battery_soc",
	"ev_battery_soc",
	"original_load",
	"modified_load",
	"load_difference",
	"battery_priority_score",
	"charging_priority",
}

// Logger is the interface for optional diagnostics from the sink.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all diagnostics.
type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds sink settings.
type Config struct {
	// LogEveryN is the sampling stride: the Nth, 2Nth, … invocations are
	// written (1-indexed). 1 writes every record.
	LogEveryN int

	// Directory receives the daily CSV files. Created if missing.
	Directory string

	// MaxAgeDays bounds file retention; older files are deleted at
	// rotation time. Zero disables the cleanup.
	MaxAgeDays int
}

// Writer is the algorithm calculation log sink.
//
// It owns the per-process invocation counter and writes every Nth record
// to a daily-rotated CSV file. The write path runs on its own goroutine
// behind a bounded queue, so a slow or failing disk never delays the
// transport callback that produced the record.
//
// Thread Safety:
//   - Record is safe for concurrent use. Close may be called once.
type Writer struct {
	cfg    Config
	logger Logger

	// count is the monotonically incrementing invocation counter,
	// reset only on process restart.
	count atomic.Uint64

	records chan loadmod.Record

	closeMu sync.RWMutex
	closed  bool
	done    chan struct{}

	// Writer-goroutine state; touched only by run().
	file        *os.File
	csvw        *csv.Writer
	currentDate string
}

// NewWriter creates the sink, its log directory, and starts the writer
// goroutine.
//
// Parameters:
//   - cfg: Sampling stride, directory, retention
//   - logger: Diagnostics (may be nil)
//
// Returns:
//   - *Writer: Running sink
//   - error: If the directory cannot be created or cfg is invalid
func NewWriter(cfg Config, logger Logger) (*Writer, error) {
	if cfg.LogEveryN < 1 {
		return nil, fmt.Errorf("algolog: log_every_n_calculations must be at least 1, got %d", cfg.LogEveryN)
	}
	if logger == nil {
		logger = noopLogger{}
	}

	if err := os.MkdirAll(cfg.Directory, 0o750); err != nil {
		return nil, fmt.Errorf("algolog: creating log directory: %w", err)
	}

	w := &Writer{
		cfg:     cfg,
		logger:  logger,
		records: make(chan loadmod.Record, queueSize),
		done:    make(chan struct{}),
	}
	go w.run()

	return w, nil
}

// Record submits one calculation record, subject to the sampling stride.
//
// The stride counter is 1-indexed: with LogEveryN = 10 the 10th, 20th, …
// invocations are written. Never blocks: when the queue is full the
// record is dropped with a warning.
func (w *Writer) Record(rec loadmod.Record) {
	n := w.count.Add(1)
	if n%uint64(w.cfg.LogEveryN) != 0 {
		return
	}

	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.records <- rec:
	default:
		w.logger.Warn("algorithm log queue full, dropping record",
			"invocation", n,
		)
	}
}

// Count returns the number of invocations observed so far.
func (w *Writer) Count() uint64 {
	return w.count.Load()
}

// Close drains pending records and closes the current log file.
func (w *Writer) Close() error {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return nil
	}
	w.closed = true
	close(w.records)
	w.closeMu.Unlock()

	<-w.done
	return nil
}

// run is the writer goroutine: drains the queue and closes the file on
// shutdown. Sink errors are logged and isolated; they never reach the
// message path.
func (w *Writer) run() {
	defer close(w.done)

	for rec := range w.records {
		if err := w.write(rec); err != nil {
			w.logger.Error("algorithm log write failed", "error", err)
		}
	}

	if w.file != nil {
		w.csvw.Flush()
		if err := w.file.Close(); err != nil {
			w.logger.Error("closing algorithm log file", "error", err)
		}
		w.file = nil
	}
}

// write appends one record, rotating to a new file when the date changes.
func (w *Writer) write(rec loadmod.Record) error {
	date := rec.Timestamp.Format(dateLayout)
	if date != w.currentDate {
		if err := w.rotate(date); err != nil {
			return err
		}
	}

	row := []string{
		rec.Timestamp.Format(time.RFC3339),
		formatFloat(rec.HouseSoC),
		formatFloat(rec.EVSoC),
		formatFloat(rec.OriginalLoad),
		formatFloat(rec.ModifiedLoad),
		formatFloat(rec.LoadDiff),
		formatFloat(rec.PriorityScore),
		string(rec.Priority),
	}
	if err := w.csvw.Write(row); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}

	// Flush per row so a crash loses at most the in-flight record.
	w.csvw.Flush()
	return w.csvw.Error()
}

// rotate switches to the file for the given date, writing the header when
// the file is new, and prunes expired files.
func (w *Writer) rotate(date string) error {
	if w.file != nil {
		w.csvw.Flush()
		if err := w.file.Close(); err != nil {
			w.logger.Error("closing previous algorithm log file", "error", err)
		}
		w.file = nil
	}

	path := filepath.Join(w.cfg.Directory, filePrefix+date+fileSuffix)
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	w.file = file
	w.csvw = csv.NewWriter(file)
	w.currentDate = date

	if isNew {
		if err := w.csvw.Write(header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		w.csvw.Flush()
	}

	w.logger.Info("rotated algorithm log", "path", path)
	w.cleanup()

	return w.csvw.Error()
}

// cleanup deletes log files older than the retention window.
func (w *Writer) cleanup() {
	if w.cfg.MaxAgeDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -w.cfg.MaxAgeDays)

	entries, err := os.ReadDir(w.cfg.Directory)
	if err != nil {
		w.logger.Warn("algorithm log cleanup failed", "error", err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		fileDate, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			path := filepath.Join(w.cfg.Directory, name)
			if err := os.Remove(path); err != nil {
				w.logger.Warn("could not delete expired log file", "path", path, "error", err)
			} else {
				w.logger.Info("deleted expired algorithm log", "path", path)
			}
		}
	}
}

// formatFloat renders a value with full precision; the CSV consumer does
// its own rounding.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
