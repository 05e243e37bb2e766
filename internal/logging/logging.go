package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	logger  = log.New(os.Stderr, "", log.LstdFlags)
	logFile *os.File
	debug   bool
)

// Setup sends log output to stderr and, when logFilePath is set, to that file too.
func Setup(logFilePath string, debugMode bool) error {
	mu.Lock()
	defer mu.Unlock()

	debug = debugMode
	if logFilePath == "" {
		return nil
	}

	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Close closes the log file opened by Setup.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logger.SetOutput(os.Stderr)
		logFile.Close()
		logFile = nil
	}
}

func Infof(format string, args ...interface{}) {
	logger.Printf("INFO: "+format, args...)
}

func Warnf(format string, args ...interface{}) {
	logger.Printf("WARNING: "+format, args...)
}

func Errorf(format string, args ...interface{}) {
	logger.Printf("ERROR: "+format, args...)
}

// Debugf logs only when debug mode is enabled.
func Debugf(format string, args ...interface{}) {
	mu.Lock()
	enabled := debug
	mu.Unlock()

	if enabled {
		logger.Printf("DEBUG: "+format, args...)
	}
}
