package ui

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	AddedColor   = color.New(color.FgGreen)
	RemovedColor = color.New(color.FgRed)
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	quiet   bool
	fileLog *log.Logger
	logFile *lumberjack.Logger
)

// SetQuiet silences terminal output. Messages still reach the log file.
func SetQuiet(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// SetOutput redirects terminal output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLogFile mirrors every message, without color, to a rotating log file at
// path. An empty path turns file logging off.
func SetLogFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile, fileLog = nil, nil
	}
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create log directory: %w", err)
	}
	logFile = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	fileLog = log.New(logFile, "", log.LstdFlags)
	return nil
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile, fileLog = nil, nil
	return err
}

func emit(c *color.Color, level, format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)

	mu.Lock()
	defer mu.Unlock()
	if fileLog != nil {
		fileLog.Printf("%s %s", level, strings.TrimLeft(msg, "\n"))
	}
	if !quiet {
		c.Fprintln(out, msg)
	}
}

func Header(format string, a ...interface{}) {
	emit(HeaderColor, "HEADER", format, a...)
}

func Info(format string, a ...interface{}) {
	emit(InfoColor, "INFO", format, a...)
}

func Success(format string, a ...interface{}) {
	emit(SuccessColor, "OK", format, a...)
}

func Warning(format string, a ...interface{}) {
	emit(WarningColor, "WARN", format, a...)
}

func Error(format string, a ...interface{}) {
	emit(ErrorColor, "ERROR", format, a...)
}

func Path(format string, a ...interface{}) {
	emit(PathColor, "PATH", "  "+format, a...)
}
