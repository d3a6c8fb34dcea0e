// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package log is a small structured, leveled logger in the style of the
// teacher's own log package: Info/Warn/Error/Crit/Debug take a message
// plus alternating key-value pairs, Crit reports the caller and exits.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a logging severity.
type Level int

const (
	LevelCrit Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelCrit:
		return "CRIT"
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "?"
	}
}

var levelColor = map[Level]*color.Color{
	LevelCrit:  color.New(color.FgRed, color.Bold),
	LevelError: color.New(color.FgRed),
	LevelWarn:  color.New(color.FgYellow),
	LevelInfo:  color.New(color.FgGreen),
	LevelDebug: color.New(color.FgCyan),
	LevelTrace: color.New(color.FgMagenta),
}

// Logger emits leveled, structured records with a fixed set of context
// key-value pairs (set via New).
type Logger struct {
	ctx []interface{}
}

var (
	mu       sync.Mutex
	minLevel = LevelInfo
	out      io.Writer
	useColor bool
)

func init() {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out = colorable.NewColorableStderr()
		useColor = true
	} else {
		out = os.Stderr
	}
}

// SetOutput redirects all log output; used by tests to capture records.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	useColor = false
}

// SetLevel sets the minimum level that is emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// Root is the default, context-free logger.
var Root = &Logger{}

// New returns a logger that prefixes every record with the given
// key-value context, e.g. log.New("component", "engine").
func New(ctx ...interface{}) *Logger {
	return &Logger{ctx: ctx}
}

func (lg *Logger) log(level Level, msg string, kv []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level > minLevel {
		return
	}
	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000"))
	b.WriteByte(' ')
	levelStr := fmt.Sprintf("[%-5s]", level.String())
	if useColor {
		levelStr = levelColor[level].Sprint(levelStr)
	}
	b.WriteString(levelStr)
	b.WriteByte(' ')
	b.WriteString(msg)
	all := append(append([]interface{}{}, lg.ctx...), kv...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
	}
	if len(all)%2 == 1 {
		fmt.Fprintf(&b, " %v=MISSING", all[len(all)-1])
	}
	if level == LevelCrit {
		fmt.Fprintf(&b, " caller=%v", stack.Caller(2))
	}
	b.WriteByte('\n')
	io.WriteString(out, b.String())
}

func (lg *Logger) Trace(msg string, kv ...interface{}) { lg.log(LevelTrace, msg, kv) }
func (lg *Logger) Debug(msg string, kv ...interface{}) { lg.log(LevelDebug, msg, kv) }
func (lg *Logger) Info(msg string, kv ...interface{})  { lg.log(LevelInfo, msg, kv) }
func (lg *Logger) Warn(msg string, kv ...interface{})  { lg.log(LevelWarn, msg, kv) }
func (lg *Logger) Error(msg string, kv ...interface{}) { lg.log(LevelError, msg, kv) }

// Crit logs at LevelCrit and terminates the process. Reserved for
// invariant violations and store I/O errors the coordinator cannot
// recover from (spec §7).
func (lg *Logger) Crit(msg string, kv ...interface{}) {
	lg.log(LevelCrit, msg, kv)
	os.Exit(1)
}

func Trace(msg string, kv ...interface{}) { Root.Trace(msg, kv...) }
func Debug(msg string, kv ...interface{}) { Root.Debug(msg, kv...) }
func Info(msg string, kv ...interface{})  { Root.Info(msg, kv...) }
func Warn(msg string, kv ...interface{})  { Root.Warn(msg, kv...) }
func Error(msg string, kv ...interface{}) { Root.Error(msg, kv...) }
func Crit(msg string, kv ...interface{})  { Root.Crit(msg, kv...) }
