package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// Setup configures the global logrus logger. Debug switches to a human
// readable text format at debug level; logPath, when non-empty, mirrors
// output to a file alongside stdout. Safe to call again on config
// reload; the previous log file is closed first.
func Setup(debug bool, logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	out := io.Writer(os.Stdout)
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		out = io.MultiWriter(os.Stdout, f)
	}
	log.SetOutput(out)
	return nil
}
