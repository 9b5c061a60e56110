// Package log provides the adapter's zerolog logger. Events are stored
// as JSON rows in an SQLite database so the ctl surfaces can query them
// after the fact. A fatal-level event raises the registered process
// fault before the process winds down.
package log

import (
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"mia-go/pkg/appdir"
)

var (
	writeSinceStart        atomic.Int64
	pkgLogger              = zerolog.Nop()
	dbWriterInstance       *sqliteWriter
	dbHandle               *sql.DB
	mu                     sync.RWMutex
	faultFn                atomic.Pointer[func()]
	zerologTimeFieldFormat = time.RFC3339Nano

	ErrNotInitialized = errors.New("log: logger not initialized, call log.Init() first")
)

// faultHook raises the registered process fault on fatal events. Events
// must be emitted with WithLevel(FatalLevel) so zerolog does not exit
// the process underneath the lifecycle.
type faultHook struct{}

func (faultHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level != zerolog.FatalLevel {
		return
	}
	if fn := faultFn.Load(); fn != nil {
		(*fn)()
	}
}

// SetFaultHandler registers fn to run whenever a fatal event is logged.
func SetFaultHandler(fn func()) {
	faultFn.Store(&fn)
}

type sqliteWriter struct {
	db   *sql.DB
	stmt *sql.Stmt
	mu   sync.Mutex
}

func newSQLiteWriter(dbPath string) (*sqliteWriter, *sql.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode=wal&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite db %s: %w", dbPath, err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping sqlite db %s: %w", dbPath, err)
	}

	createTableSQL := `
    CREATE TABLE IF NOT EXISTS logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL,
        log_data TEXT NOT NULL
    );`
	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create logs table: %w", err)
	}

	createIndexSQLTime := `CREATE INDEX IF NOT EXISTS idx_logs_json_time ON logs (json_extract(log_data, '$.time'));`
	if _, err = db.Exec(createIndexSQLTime); err != nil {
		stdlog.Printf("Warning: failed to create JSON time index: %v\n", err)
	}

	createIndexSQLLevel := `CREATE INDEX IF NOT EXISTS idx_logs_json_level ON logs (json_extract(log_data, '$.level'));`
	if _, err = db.Exec(createIndexSQLLevel); err != nil {
		stdlog.Printf("Warning: failed to create JSON level index: %v\n", err)
	}

	stmt, err := db.Prepare(`INSERT INTO logs (log_data) VALUES (?)`)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	return &sqliteWriter{db: db, stmt: stmt}, db, nil
}

func (w *sqliteWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err = w.stmt.Exec(string(p)); err != nil {
		stdlog.Printf("ERROR writing log to SQLite: %v\n", err)
		return 0, err
	}
	writeSinceStart.Add(1)
	return len(p), nil
}

func (w *sqliteWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	if w.stmt != nil {
		if err := w.stmt.Close(); err != nil {
			firstErr = fmt.Errorf("error closing statement: %w", err)
		}
		w.stmt = nil
	}
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("error closing db: %w", err)
			} else {
				firstErr = fmt.Errorf("%v; error closing db: %w", firstErr, err)
			}
		}
		w.db = nil
	}
	return firstErr
}

// SetStd switches the package logger to a console writer on stdout.
// Events logged after the switch are not written to the database.
func SetStd() {
	pkgLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().Hook(faultHook{})
}

// Init opens (or creates) the SQLite sink under the app directory and
// points the package logger at it.
func Init(dbFile string) error {
	if dbFile == "" {
		return fmt.Errorf("logger needs an explicit dbFile")
	}
	dbPath := path.Join(appdir.AppDir(), dbFile)

	mu.Lock()
	defer mu.Unlock()

	if dbWriterInstance != nil {
		return fmt.Errorf("logger already initialized")
	}

	writer, db, err := newSQLiteWriter(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create SQLite writer: %w", err)
	}

	dbWriterInstance = writer
	dbHandle = db

	zerolog.TimeFieldFormat = zerologTimeFieldFormat
	pkgLogger = zerolog.New(dbWriterInstance).With().
		Timestamp().
		Logger().Hook(faultHook{})

	stdlog.Printf("Zerolog SQLite logger initialized writing to %s\n", dbPath)
	return nil
}

// MustInit initializes the SQLite sink named after app, exiting on
// failure.
func MustInit(app string) {
	if err := Init(fmt.Sprintf("%s.db", app)); err != nil {
		stdlog.Fatalf("FATAL: Failed to initialize logger: %v\n", err)
	}
}

// Close flushes a shutdown marker and releases the database.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if dbWriterInstance == nil {
		stdlog.Println("Logger Close() called but not initialized or already closed.")
		return nil
	}

	dbHandle = nil
	dbWriter := dbWriterInstance
	dbWriterInstance = nil
	pkgLogger = zerolog.Nop()

	writerLogger := zerolog.New(dbWriter).With().Timestamp().Logger()
	writerLogger.Log().Msg("Closing SQLite logger")

	if err := dbWriter.close(); err != nil {
		stdlog.Printf("Error closing SQLite logger: %v\n", err)
		return fmt.Errorf("error closing SQLite logger: %w", err)
	}
	stdlog.Println("Zerolog SQLite logger closed.")
	return nil
}

// Logger returns the package logger for components that carry their own
// zerolog.Logger value.
func Logger() zerolog.Logger { return pkgLogger }

func Debug() *zerolog.Event { return pkgLogger.Debug() }
func Info() *zerolog.Event  { return pkgLogger.Info() }
func Warn() *zerolog.Event  { return pkgLogger.Warn() }
func Error() *zerolog.Event { return pkgLogger.Error() }
func Log() *zerolog.Event   { return pkgLogger.Log() }

// Fatal returns a fatal-level event that raises the process fault
// without calling os.Exit; shutdown is the lifecycle's job.
func Fatal() *zerolog.Event { return pkgLogger.WithLevel(zerolog.FatalLevel) }

// Print sends an info event. Arguments are handled in the manner of
// fmt.Print.
func Print(v ...interface{}) {
	pkgLogger.Info().CallerSkipFrame(1).Msg(fmt.Sprint(v...))
}

// Printf sends an info event. Arguments are handled in the manner of
// fmt.Printf.
func Printf(format string, v ...interface{}) {
	pkgLogger.Info().CallerSkipFrame(1).Msgf(format, v...)
}

func Fatalf(format string, v ...any) {
	Fatal().Msgf(format, v...)
}

// --- Log retrieval ---

type LogEntry struct {
	ID         int64
	InsertedAt time.Time
	LogData    string
}

const DefaultLimit = 100

func getHandle() (*sql.DB, error) {
	mu.RLock()
	defer mu.RUnlock()
	if dbHandle == nil {
		return nil, ErrNotInitialized
	}
	return dbHandle, nil
}

// parseDBTimestamp tries common SQLite timestamp formats.
func parseDBTimestamp(ts string) time.Time {
	formats := []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999",
		time.DateTime,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t
		}
	}
	stdlog.Printf("Warning: could not parse inserted_at timestamp '%s' with known formats", ts)
	return time.Time{}
}

// GetLogsSinceStart retrieves every entry written since this process
// initialized the logger.
func GetLogsSinceStart() ([]LogEntry, error) {
	n := writeSinceStart.Load()
	return GetLastNLogs(int(n))
}

// GetLastNLogs retrieves the most recent n entries in chronological
// order.
func GetLastNLogs(n int) ([]LogEntry, error) {
	handle, err := getHandle()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []LogEntry{}, nil
	}

	rows, err := handle.Query(`SELECT id, inserted_at, log_data FROM logs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query last %d logs: %w", n, err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var entry LogEntry
		var insertedAtStr string
		if err := rows.Scan(&entry.ID, &insertedAtStr, &entry.LogData); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entry.InsertedAt = parseDBTimestamp(insertedAtStr)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}

	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

// GetLogsBetween retrieves entries whose event time falls within
// [start, end], in chronological order. A limit <= 0 means
// DefaultLimit.
func GetLogsBetween(start, end time.Time, limit int) ([]LogEntry, error) {
	handle, err := getHandle()
	if err != nil {
		return nil, err
	}

	effectiveLimit := limit
	if effectiveLimit <= 0 {
		effectiveLimit = DefaultLimit
	}

	startTimeStr := start.Format(zerologTimeFieldFormat)
	endTimeStr := end.Format(zerologTimeFieldFormat)

	query := `
        SELECT id, inserted_at, log_data
        FROM logs
        WHERE json_extract(log_data, '$.time') >= ? AND json_extract(log_data, '$.time') <= ?
        ORDER BY json_extract(log_data, '$.time') ASC, id ASC
        LIMIT ?`

	rows, err := handle.Query(query, startTimeStr, endTimeStr, effectiveLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs between %s and %s: %w", startTimeStr, endTimeStr, err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var entry LogEntry
		var insertedAtStr string
		if err := rows.Scan(&entry.ID, &insertedAtStr, &entry.LogData); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entry.InsertedAt = parseDBTimestamp(insertedAtStr)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}
	return logs, nil
}

// GetLogsSince retrieves entries from start up to now, in chronological
// order.
func GetLogsSince(start time.Time, limit int) ([]LogEntry, error) {
	return GetLogsBetween(start, time.Now(), limit)
}
