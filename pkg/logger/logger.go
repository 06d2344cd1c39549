package logger

import (
	"fmt"
	"io"
	"log"
	"time"
)

// Logger writes informational output to one writer and warnings/errors to another.
// Debug lines are only emitted in verbose mode; quiet mode keeps errors only.
type Logger struct {
	verbose     bool
	quiet       bool
	infoLogger  *log.Logger
	debugLogger *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	now         func() time.Time
}

// New creates a Logger. Info and debug go to out, warnings and errors to errOut.
func New(out, errOut io.Writer) *Logger {
	return &Logger{
		infoLogger:  log.New(out, "", 0),
		debugLogger: log.New(out, "", 0), // timestamp is added by Debugf
		warnLogger:  log.New(errOut, "WARNING: ", 0),
		errorLogger: log.New(errOut, "ERROR: ", 0),
		now:         time.Now,
	}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return New(io.Discard, io.Discard)
}

// SetVerbose enables or disables verbose logging.
func (l *Logger) SetVerbose(verbose bool) {
	l.verbose = verbose
}

// SetQuiet suppresses everything except errors.
func (l *Logger) SetQuiet(quiet bool) {
	l.quiet = quiet
}

// IsVerbose returns true if verbose mode is enabled.
func (l *Logger) IsVerbose() bool {
	return l.verbose && !l.quiet
}

func (l *Logger) timestamp() string {
	return l.now().Format("2006-01-02 15:04:05")
}

// Debugf logs a formatted debug message if verbose mode is enabled.
// Includes a timestamp.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.IsVerbose() {
		l.debugLogger.Printf("[%s] DEBUG: %s", l.timestamp(), fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, v ...interface{}) {
	if !l.quiet {
		l.infoLogger.Printf(format, v...)
	}
}

// Warnf logs a recoverable problem.
func (l *Logger) Warnf(format string, v ...interface{}) {
	if !l.quiet {
		l.warnLogger.Printf(format, v...)
	}
}

// Errorf logs a formatted error message. Quiet mode does not silence errors.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.errorLogger.Printf(format, v...)
}
