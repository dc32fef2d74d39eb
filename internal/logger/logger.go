package logger

import (
	"fmt"
	"log"
	"os"
)

var (
	// Debug flag to control debug logging
	debugEnabled = false
	// The logger instance
	debugLogger *log.Logger
	infoLogger  *log.Logger
	errorLogger *log.Logger
)

func init() {
	// Safe defaults so packages can log before main wires the flag.
	Init(false)
}

// Init initializes the logger
func Init(debug bool) {
	debugEnabled = debug

	// Create loggers with appropriate prefixes
	debugLogger = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	infoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime)
	errorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)

	if debugEnabled {
		Debug("Debug logging enabled")
	}
}

// Debug logs a debug message if debug mode is enabled
func Debug(format string, v ...interface{}) {
	if debugEnabled {
		debugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	infoLogger.Output(2, fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	infoLogger.Output(2, "WARN: "+fmt.Sprintf(format, v...))
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	errorLogger.Output(2, fmt.Sprintf(format, v...))
}

// IsDebugEnabled returns whether debug logging is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// Component-tagged helpers so log lines from the LLM, store and crawler
// paths are easy to grep apart.

// LLMDebug logs a debug message from the LLM layer
func LLMDebug(format string, v ...interface{}) {
	if debugEnabled {
		debugLogger.Output(2, "[LLM] "+fmt.Sprintf(format, v...))
	}
}

// LLMInfo logs an info message from the LLM layer
func LLMInfo(format string, v ...interface{}) {
	infoLogger.Output(2, "[LLM] "+fmt.Sprintf(format, v...))
}

// LLMWarn logs a warning from the LLM layer
func LLMWarn(format string, v ...interface{}) {
	infoLogger.Output(2, "WARN: [LLM] "+fmt.Sprintf(format, v...))
}

// LLMError logs an error from the LLM layer
func LLMError(format string, v ...interface{}) {
	errorLogger.Output(2, "[LLM] "+fmt.Sprintf(format, v...))
}

// RAGDebug logs a debug message from the knowledge store layer
func RAGDebug(format string, v ...interface{}) {
	if debugEnabled {
		debugLogger.Output(2, "[RAG] "+fmt.Sprintf(format, v...))
	}
}

// RAGInfo logs an info message from the knowledge store layer
func RAGInfo(format string, v ...interface{}) {
	infoLogger.Output(2, "[RAG] "+fmt.Sprintf(format, v...))
}

// RAGError logs an error from the knowledge store layer
func RAGError(format string, v ...interface{}) {
	errorLogger.Output(2, "[RAG] "+fmt.Sprintf(format, v...))
}

// WebInfo logs an info message from the web crawler
func WebInfo(format string, v ...interface{}) {
	infoLogger.Output(2, "[WEB] "+fmt.Sprintf(format, v...))
}

// WebWarn logs a warning from the web crawler
func WebWarn(format string, v ...interface{}) {
	infoLogger.Output(2, "WARN: [WEB] "+fmt.Sprintf(format, v...))
}

// TelegramInfo logs an info message from the Telegram frontend
func TelegramInfo(format string, v ...interface{}) {
	infoLogger.Output(2, "[TELEGRAM] "+fmt.Sprintf(format, v...))
}

// TelegramError logs an error from the Telegram frontend
func TelegramError(format string, v ...interface{}) {
	errorLogger.Output(2, "[TELEGRAM] "+fmt.Sprintf(format, v...))
}
