package ven

import (
	"time"

	"github.com/juju/errors"
)

// controlLoop evaluates active events every controlInterval, or earlier
// when the poll worker signals fresh data. The exit flag always wins.
func (r *Runtime) controlLoop() {
	defer r.alive.Done()
	stopch := r.alive.StopChan()

	// settle delay before touching hardware
	select {
	case <-time.After(r.controlStartDelay):
	case <-stopch:
		r.log.Infof("control: loop exit")
		return
	}

	if lvl, err := r.relays.Sync(); err != nil {
		// non-fatal: assume all relays off until the first write
		r.log.Errorf("control: reading initial hardware state: %v", err)
	} else {
		r.log.Debugf("control: initial level=%v", lvl)
	}

	for {
		r.controlOnce()
		select {
		case <-time.After(r.controlInterval):
		case <-r.wake:
		case <-stopch:
			r.log.Infof("control: loop exit")
			return
		}
		// the wake may also have been set during our own evaluation;
		// clearing here costs at most one extra no-op evaluation
		select {
		case <-r.wake:
		default:
		}
		if !r.alive.IsRunning() {
			r.log.Infof("control: loop exit")
			return
		}
	}
}

// controlOnce runs one evaluation. Failures are contained to this tick.
func (r *Runtime) controlOnce() {
	defer func() {
		if x := recover(); x != nil {
			r.log.Errorf("control: panic: %v", x)
		}
	}()

	r.log.Debugf("control: updating control states")
	events := r.handler.ActiveEvents()
	highest, remove := r.evaluate(events)
	r.handler.RemoveEvents(remove)

	r.log.Debugf("control: highest signal level=%f", highest)
	changed, err := r.relays.Write(highest)
	if err != nil {
		r.log.Errorf("control: relay write: %v", err)
		return
	}
	r.stat.controlOk()
	if changed {
		r.tele.SignalLevel(highest)
	}
}

// evaluate reduces events to the maximum active signal level and the ids
// of ended events. One bad event is logged and skipped, never the batch.
func (r *Runtime) evaluate(events []Event) (highest float64, remove []string) {
	for _, ev := range events {
		level, ended, id, err := r.evalEvent(ev)
		if err != nil {
			r.log.Errorf("control: event id=%s: %v", id, err)
			continue
		}
		if ended {
			remove = append(remove, id)
			continue
		}
		if level > highest {
			highest = level
		}
	}
	return highest, remove
}

// evalEvent extracts one event and resolves its active interval level.
// level=0 for skipped events, ended=true marks the event for removal.
func (r *Runtime) evalEvent(ev Event) (level float64, ended bool, id string, err error) {
	id = "?"
	if id, err = ev.ID(); err != nil {
		return 0, false, id, errors.Annotate(err, "event id")
	}
	mod, err := ev.ModNumber()
	if err != nil {
		return 0, false, id, errors.Annotate(err, "mod number")
	}
	if _, err = ev.Status(); err != nil {
		return 0, false, id, errors.Annotate(err, "status")
	}

	if !r.handler.CheckTargetInfo(ev) {
		r.log.Debugf("control: ignoring event %s - no target match", id)
		return 0, false, id, nil
	}

	start, err := ev.ActivePeriodStart()
	if err != nil {
		return 0, false, id, errors.Annotate(err, "active period start")
	}
	signals, err := ev.Signals()
	if err != nil {
		return 0, false, id, errors.Annotate(err, "signals")
	}
	if len(signals) == 0 {
		r.log.Debugf("control: ignoring event %s - no valid signals", id)
		return 0, false, id, nil
	}

	spans := make([]time.Duration, len(signals))
	for i, s := range signals {
		spans[i] = s.Span
	}
	idx, ok := r.choose(start, spans)
	if !ok {
		r.log.Debugf("control: event %s(%d) has ended", id, mod)
		return 0, true, id, nil
	}
	if idx < 0 {
		r.log.Debugf("control: event %s(%d) has not started yet", id, mod)
		return 0, false, id, nil
	}
	if idx >= len(signals) {
		return 0, false, id, errors.Errorf("interval index=%d out of range n=%d", idx, len(signals))
	}

	sig := signals[idx]
	r.log.Debugf("control: event %s(%d) interval=%s level=%f", id, mod, sig.ID, sig.Level)
	return sig.Level, false, id, nil
}
