package nativelog

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultLogFilePerm = 0o644
	defaultLogDirPerm  = 0o755
)

// DailyFilename returns the log filename for the day containing now.
func DailyFilename(now time.Time) string {
	return "stdout_" + now.Format("1-2-06") + ".log"
}

// Writer appends to one file per day under dir.
type Writer struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewWriter creates dir if needed and returns a daily file writer.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = filepath.Join(".", "logs")
	}
	if err := os.MkdirAll(dir, defaultLogDirPerm); err != nil {
		return nil, err
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// Dir returns the directory log files are written to.
func (w *Writer) Dir() string { return w.dir }

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, DailyFilename(w.now()))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultLogFilePerm)
	if err != nil {
		return 0, err
	}

	n, writeErr := file.Write(p)
	if closeErr := file.Close(); writeErr == nil {
		writeErr = closeErr
	}
	return n, writeErr
}

func (w *Writer) Sync() error { return nil }

// NewZapLogger builds a logger that writes to stdout and to the daily log
// file under dir. level accepts zap level names; unknown values mean info.
// Development mode colours the console output.
func NewZapLogger(dir, level string, development bool) (*zap.Logger, error) {
	writer, err := NewWriter(dir)
	if err != nil {
		return nil, err
	}

	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			lvl.SetLevel(parsed)
		}
	}

	fileCfg := zap.NewProductionEncoderConfig()
	fileCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")

	consoleCfg := fileCfg
	if development {
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), lvl),
		zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(writer), lvl),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	_ = zap.RedirectStdLog(logger)
	return logger, nil
}
