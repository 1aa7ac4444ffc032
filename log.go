package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

// logOutput is where setupLog sent the logs.
var logOutput io.Writer = io.Discard

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "narrate").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "narrate.log"), nil
}

// setupLog sends logs to a file under the user's cache dir. The TUI owns the
// terminal, so nothing is written to stderr unless running headless.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, err
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, err
	}
	logOutput = f
	log.SetOutput(f)
	log.SetLevel(log.InfoLevel)
	return f.Close, nil
}

// logToStderr mirrors the log file to stderr for headless runs.
func logToStderr() {
	log.SetOutput(io.MultiWriter(logOutput, os.Stderr))
}
