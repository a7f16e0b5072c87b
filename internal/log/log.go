package log

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu     sync.Mutex
	logger *zerolog.Logger
)

// initLogger initializes the global logger to write to stderr with timestamps.
// Default minimum level is INFO.
func initLogger() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
		logger = &l
	}
	return logger
}

func SetLevel(l Level) {
	base := *initLogger()
	switch l {
	case LevelDebug:
		base = base.Level(zerolog.DebugLevel)
	case LevelInfo:
		base = base.Level(zerolog.InfoLevel)
	case LevelError:
		base = base.Level(zerolog.ErrorLevel)
	}
	mu.Lock()
	logger = &base
	mu.Unlock()
}

func Debug(msg string, kv ...any) {
	emit(initLogger().Debug(), msg, kv)
}

func Info(msg string, kv ...any) {
	emit(initLogger().Info(), msg, kv)
}

func Error(msg string, err error, kv ...any) {
	emit(initLogger().Error().Err(err), msg, kv)
}

// emit attaches kv as pairs: key, value, key, value, ...
// Non-string keys are skipped; if the count is odd, the last value is ignored.
func emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
