// Package relay maps the aggregate demand-response signal level onto an
// ordered bank of discrete control points.
//
// The bank keeps the invariant that active points form a contiguous
// prefix from index 0: level L turns on every point with index < L.
package relay

import (
	"github.com/juju/errors"
	"github.com/temoto/oadr2-ven/log2"
)

// Driver is the physical control point interface. Implementations decide
// what a point name means (GPIO line, modbus coil, etc).
type Driver interface {
	Get(point string) (bool, error)
	Set(point string, on bool) error
}

// Bank is not safe for concurrent use. The control worker is the only
// writer and reader by design, a second user would need its own locking.
type Bank struct {
	log     *log2.Log
	driver  Driver
	points  []string
	current float64
}

func NewBank(log *log2.Log, driver Driver, points []string) *Bank {
	return &Bank{
		log:    log,
		driver: driver,
		points: points,
	}
}

func (b *Bank) Size() int      { return len(b.points) }
func (b *Bank) Level() float64 { return b.current }

// Write drives every point: index i goes on iff i < level. Writing the
// same level twice is a no-op without any driver calls. The new level is
// cached only after all points were driven successfully.
func (b *Bank) Write(level float64) (changed bool, err error) {
	if level == b.current {
		return false, nil
	}
	for i, p := range b.points {
		on := float64(i) < level
		if err = b.driver.Set(p, on); err != nil {
			return false, errors.Annotatef(err, "relay write point=%s", p)
		}
		b.log.Debugf("relay: point=%s on=%t", p, on)
	}
	b.current = level
	return true, nil
}

// Read scans points from the highest index down and returns
// (index of first active point)+1, or 0 when all are off.
//
// This interpretation agrees with Write only while the hardware pattern
// is a contiguous prefix. An external actor producing a gap in the
// pattern makes Read and Write disagree; known, not resolved.
func (b *Bank) Read() (float64, error) {
	for i := len(b.points) - 1; i >= 0; i-- {
		on, err := b.driver.Get(b.points[i])
		if err != nil {
			return 0, errors.Annotatef(err, "relay read point=%s", b.points[i])
		}
		if on {
			return float64(i + 1), nil
		}
	}
	return 0, nil
}

// Sync primes the cached level from hardware. On error the cache is kept.
func (b *Bank) Sync() (float64, error) {
	lvl, err := b.Read()
	if err != nil {
		return 0, err
	}
	b.current = lvl
	return lvl, nil
}
