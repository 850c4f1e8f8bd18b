// Package helpers is a small stash of code shared by unrelated packages.
package helpers

import (
	"strings"
	"time"

	"github.com/juju/errors"
)

// FoldErrors merges non-nil errors into one or returns nil.
func FoldErrors(errs []error) error {
	ss := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			ss = append(ss, e.Error())
		}
	}
	if len(ss) == 0 {
		return nil
	}
	return errors.New(strings.Join(ss, "\n"))
}

// IntSecondDefault turns a config integer into a duration, 0 means default.
func IntSecondDefault(x int, def time.Duration) time.Duration {
	if x == 0 {
		return def
	}
	return time.Duration(x) * time.Second
}

func WithLock(l interface{ Lock(); Unlock() }, f func()) {
	l.Lock()
	defer l.Unlock()
	f()
}
