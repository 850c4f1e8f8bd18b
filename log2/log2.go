// Package log2 is a thin leveled filter over stdlib log.
// Niceties over raw *log.Logger:
// - log level filtering with safe concurrent level change
// - nil *Log is valid and silent, callers never check
// - NewTest() routes into testing.TB.Logf for parallel tests
// - optional error hook to forward Error() values into telemetry
package log2

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"math"
	"os"
	"sync/atomic"
	"testing"
)

const (
	Lmicroseconds     int = log.Lmicroseconds
	Lshortfile        int = log.Lshortfile
	LStdFlags         int = log.Ltime | log.Lshortfile
	LInteractiveFlags int = log.Ltime | log.Lshortfile | log.Lmicroseconds
	LServiceFlags     int = log.Lshortfile
	LTestFlags        int = log.Lshortfile | log.Lmicroseconds
)

type Level int32

const (
	LError Level = iota
	LInfo
	LDebug
	LAll Level = math.MaxInt32
)

type FmtFunc func(format string, args ...interface{})

type fmtWriter struct{ f FmtFunc }

func (fw fmtWriter) Write(b []byte) (int, error) {
	fw.f(string(b))
	return len(b), nil
}

type Log struct {
	l       *log.Logger
	w       io.Writer
	level   Level
	onError atomic.Value // func(error)
	fatalf  FmtFunc
}

func NewStderr(level Level) *Log { return NewWriter(os.Stderr, level) }

func NewWriter(w io.Writer, level Level) *Log {
	if w == ioutil.Discard {
		return nil
	}
	return &Log{
		l:     log.New(w, "", LStdFlags),
		level: level,
		w:     w,
	}
}

func NewFunc(f FmtFunc, level Level) *Log { return NewWriter(fmtWriter{f}, level) }

func NewTest(t testing.TB, level Level) *Log {
	l := NewFunc(t.Logf, level)
	l.SetFlags(LTestFlags)
	l.fatalf = t.Fatalf
	return l
}

// Clone returns a copy writing to the same destination with another level.
func (l *Log) Clone(level Level) *Log {
	if l == nil {
		return nil
	}
	n := NewWriter(l.w, level)
	n.l.SetFlags(l.l.Flags())
	n.l.SetPrefix(l.l.Prefix())
	n.fatalf = l.fatalf
	return n
}

func (l *Log) SetLevel(level Level) {
	if l == nil {
		return
	}
	atomic.StoreInt32((*int32)(&l.level), int32(level))
}

func (l *Log) SetFlags(f int) {
	if l == nil {
		return
	}
	l.l.SetFlags(f)
}

func (l *Log) SetPrefix(prefix string) {
	if l == nil {
		return
	}
	l.l.SetPrefix(prefix)
}

// SetErrorFunc registers a hook called with the value of every Error/Errorf.
func (l *Log) SetErrorFunc(fun func(error)) {
	if l == nil {
		return
	}
	l.onError.Store(fun)
}

func (l *Log) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	return atomic.LoadInt32((*int32)(&l.level)) >= int32(level)
}

func (l *Log) Log(level Level, s string) {
	if l.Enabled(level) {
		_ = l.l.Output(3, s)
	}
}

func (l *Log) Logf(level Level, format string, args ...interface{}) {
	if l.Enabled(level) {
		_ = l.l.Output(3, fmt.Sprintf(format, args...))
	}
}

func (l *Log) Debug(args ...interface{}) { l.Log(LDebug, "debug: "+fmt.Sprint(args...)) }
func (l *Log) Debugf(format string, args ...interface{}) {
	l.Logf(LDebug, "debug: "+format, args...)
}

func (l *Log) Info(args ...interface{})                 { l.Log(LInfo, fmt.Sprint(args...)) }
func (l *Log) Infof(format string, args ...interface{}) { l.Logf(LInfo, format, args...) }

// Printf and Println satisfy foreign logger interfaces (paho mqtt).
func (l *Log) Printf(format string, args ...interface{}) { l.Logf(LInfo, format, args...) }
func (l *Log) Println(args ...interface{})               { l.Log(LInfo, fmt.Sprint(args...)) }

func (l *Log) Error(args ...interface{}) {
	l.Log(LError, "error: "+fmt.Sprint(args...))
	if l == nil {
		return
	}
	var e error
	if len(args) == 1 {
		if x, ok := args[0].(error); ok {
			e = x
		}
	}
	if e == nil {
		e = fmt.Errorf("%s", fmt.Sprint(args...))
	}
	l.callErrorFunc(e)
}

func (l *Log) Errorf(format string, args ...interface{}) {
	l.Logf(LError, "error: "+format, args...)
	if l == nil {
		return
	}
	l.callErrorFunc(fmt.Errorf(format, args...))
}

func (l *Log) Fatalf(format string, args ...interface{}) {
	if l != nil && l.fatalf != nil {
		l.fatalf(format, args...)
		return
	}
	l.Logf(LError, "fatal: "+format, args...)
	os.Exit(1)
}

func (l *Log) Fatal(args ...interface{}) {
	l.Fatalf("%s", fmt.Sprint(args...))
}

func (l *Log) callErrorFunc(e error) {
	if fun, ok := l.onError.Load().(func(error)); ok && fun != nil {
		fun(e)
	}
}
