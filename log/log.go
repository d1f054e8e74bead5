// Level based log wrapper used across tinydoc.
//
// Levels from the most to the least severe are fatal, error, warning, info and debug. The default
// output level is info, you can change it by:
// - call log.SetLevel() or log.SetLevelByString()
// - set environment variable `LOG_LEVEL`

package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"

	"go.uber.org/atomic"
)

type Level int32

const (
	LevelFatal Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

var levels = [...]struct {
	name  string
	color string
}{
	LevelFatal: {"fatal", "\033[0;31m"},
	LevelError: {"error", "\033[0;31m"},
	LevelWarn:  {"warning", "\033[0;33m"},
	LevelInfo:  {"info", "\033[0;37m"},
	LevelDebug: {"debug", "\033[0;36m"},
}

func (l Level) String() string {
	if l < LevelFatal || l > LevelDebug {
		return "unknown"
	}
	return levels[l].name
}

// ParseLevel maps a level name to its Level, unknown names enable everything.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "fatal":
		return LevelFatal
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "info":
		return LevelInfo
	}
	return LevelDebug
}

// Logger writes messages at or above its level. It is safe for concurrent use.
type Logger struct {
	out          *log.Logger
	level        *atomic.Int32
	highlighting *atomic.Bool
}

func NewLogger(w io.Writer, prefix string) *Logger {
	level := LevelInfo
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		level = ParseLevel(l)
	}
	return &Logger{
		out:          log.New(w, prefix, log.Ldate|log.Ltime|log.Lshortfile),
		level:        atomic.NewInt32(int32(level)),
		highlighting: atomic.NewBool(runtime.GOOS != "windows"),
	}
}

func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

func (l *Logger) SetHighlighting(highlighting bool) {
	l.highlighting.Store(highlighting)
}

func (l *Logger) Enabled(level Level) bool {
	return level <= l.Level()
}

// output must stay exactly three frames below the exported caller so Lshortfile reports the caller.
func (l *Logger) output(level Level, msg string) {
	if !l.Enabled(level) {
		return
	}
	if l.highlighting.Load() {
		msg = levels[level].color + "[" + levels[level].name + "] " + msg + "\033[0m"
	} else {
		msg = "[" + levels[level].name + "] " + msg
	}
	l.out.Output(4, msg)
}

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	l.output(level, fmt.Sprintf(format, v...))
}

func (l *Logger) log(level Level, v ...interface{}) {
	l.output(level, strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

var std = NewLogger(os.Stderr, "")

// SetOutput redirects the global logger, tests use it to capture output.
func SetOutput(w io.Writer) {
	std.out.SetOutput(w)
}

func SetLevel(level Level) {
	std.SetLevel(level)
}

func SetLevelByString(level string) {
	std.SetLevel(ParseLevel(level))
}

func GetLevel() Level {
	return std.Level()
}

func SetHighlighting(highlighting bool) {
	std.SetHighlighting(highlighting)
}

func Debugf(format string, v ...interface{}) {
	std.logf(LevelDebug, format, v...)
}

func Infof(format string, v ...interface{}) {
	std.logf(LevelInfo, format, v...)
}

func Info(v ...interface{}) {
	std.log(LevelInfo, v...)
}

func Warnf(format string, v ...interface{}) {
	std.logf(LevelWarn, format, v...)
}

func Errorf(format string, v ...interface{}) {
	std.logf(LevelError, format, v...)
}

func Fatalf(format string, v ...interface{}) {
	std.logf(LevelFatal, format, v...)
	os.Exit(-1)
}

// Panicf logs at error level and panics with the formatted message. It is used for
// programming errors which must abort the current write.
func Panicf(format string, v ...interface{}) {
	s := fmt.Sprintf(format, v...)
	std.logf(LevelError, "%s", s)
	panic(s)
}
