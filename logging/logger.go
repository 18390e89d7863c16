package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"plotstation/types"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel falls back to LevelInfo for unknown names.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	logClients = make(map[chan types.LogMessage]bool)
	logMutex   = sync.RWMutex{}

	outMutex sync.Mutex
	out      io.Writer = os.Stdout
	minLevel           = LevelInfo
)

func Init(level string) {
	SetLevel(ParseLevel(level))
	BroadcastLog("logging initialised", "system")
}

func SetLevel(l Level) {
	outMutex.Lock()
	defer outMutex.Unlock()
	minLevel = l
}

// SetOutput redirects console output; tests pass io.Discard.
func SetOutput(w io.Writer) {
	outMutex.Lock()
	defer outMutex.Unlock()
	out = w
}

func AddLogClient(client chan types.LogMessage) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logClients[client] = true
}

func RemoveLogClient(client chan types.LogMessage) {
	logMutex.Lock()
	defer logMutex.Unlock()
	delete(logClients, client)
	close(client)
}

// BroadcastLog logs message at info level.
func BroadcastLog(message, logType string) {
	emit(LevelInfo, logType, message)
}

func Debug(logType, format string, args ...any) {
	emit(LevelDebug, logType, fmt.Sprintf(format, args...))
}

func Info(logType, format string, args ...any) {
	emit(LevelInfo, logType, fmt.Sprintf(format, args...))
}

func Warn(logType, format string, args ...any) {
	emit(LevelWarn, logType, fmt.Sprintf(format, args...))
}

func Error(logType, format string, args ...any) {
	emit(LevelError, logType, fmt.Sprintf(format, args...))
}

func emit(level Level, logType, message string) {
	now := time.Now()

	outMutex.Lock()
	if level < minLevel {
		outMutex.Unlock()
		return
	}
	fmt.Fprintf(out, "%s %s [%s] %s\n", now.Format("15:04:05.000"), level, logType, message)
	outMutex.Unlock()

	logMsg := types.LogMessage{
		Time:    now.Format("15:04:05"),
		Level:   level.String(),
		Message: message,
		Type:    logType,
	}

	logMutex.RLock()
	defer logMutex.RUnlock()

	for client := range logClients {
		select {
		case client <- logMsg:
		default:
			// slow client, drop
		}
	}
}
