package ven

import (
	"time"

	"github.com/temoto/oadr2-ven/transport"
)

// pollLoop queries the VTN every pollInterval until stopped. The wait is
// interruptible only by the exit flag; nothing else hurries a poll.
func (r *Runtime) pollLoop() {
	defer r.alive.Done()
	stopch := r.alive.StopChan()
	for {
		r.pollOnce()
		select {
		case <-time.After(r.pollInterval):
		case <-stopch:
			r.log.Infof("poll: loop exit")
			return
		}
	}
}

// pollOnce is one complete poll cycle. Any failure degrades this cycle
// only: log and return, the loop keeps its cadence.
func (r *Runtime) pollOnce() {
	defer func() {
		if x := recover(); x != nil {
			r.stat.pollError()
			r.log.Errorf("poll: panic: %v", x)
		}
	}()

	if r.eventURI == "" {
		r.log.Debugf("poll: no vtn base uri, skip")
		return
	}

	payload, err := r.handler.BuildRequestPayload()
	if err != nil {
		r.stat.pollError()
		r.log.Errorf("poll: build request: %v", err)
		return
	}

	resp, err := r.tr.Send(r.eventURI, payload)
	if err != nil {
		r.stat.pollError()
		r.logSendError("poll", err)
		return
	}
	r.stat.pollOk()

	if mt := resp.MediaType(); mt != transport.ContentType {
		r.log.Errorf("poll: unexpected content type=%s", resp.ContentType)
		// body is still worth parsing
	}

	reply, err := r.handler.HandlePayload(resp.Body)
	if err != nil {
		r.log.Errorf("poll: error parsing response: %v body=%s", err, resp.Body)
		return
	}
	if reply == nil {
		return
	}

	// new or changed events: have the control worker re-evaluate soon,
	// then acknowledge to the VTN
	r.wakeControl()
	if _, err = r.tr.Send(r.eventURI, reply); err != nil {
		r.logSendError("poll reply", err)
		return
	}
	r.stat.replyOk()
}

// logSendError splits the transport taxonomy: a 4xx/5xx from the VTN is
// operator-worthy, a network blip is routine.
func (r *Runtime) logSendError(tag string, err error) {
	if se, ok := transport.AsStatusError(err); ok {
		r.log.Errorf("%s: http error status=%s body=%s", tag, se.Status, se.Body)
		return
	}
	r.log.Debugf("%s: network error: %v", tag, err)
}
