package ven

import (
	"net/http"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/oadr2-ven/log2"
	"github.com/temoto/oadr2-ven/relay"
	"github.com/temoto/oadr2-ven/tele"
	"github.com/temoto/oadr2-ven/transport"
)

const (
	ControlInterval = 30 * time.Second

	// URI path of the simple profile event service on the VTN
	uriPathPrefix = "OpenADR2/Simple/"
	eventService  = "EiEvent"

	controlStartDelay = 10 * time.Second
	// graceful shutdown budget per worker, after that Stop gives up waiting
	joinTimeout = 2 * time.Second
)

type Options struct {
	Config  *Config
	Log     *log2.Log
	Handler EventHandler
	Chooser IntervalChooser
	Driver  relay.Driver

	// Tele receives signal level changes, nil for none.
	Tele tele.Notifier

	// AutoStart launches both workers from New.
	AutoStart bool

	// Test knobs, zero value means the configured/fixed interval.
	PollInterval      time.Duration
	ControlInterval   time.Duration
	ControlStartDelay time.Duration
	RoundTripper      http.RoundTripper
}

// Runtime owns the poll worker and the control worker.
// Worker failures never escape: every cycle catches, logs and carries on.
type Runtime struct {
	alive   *alive.Alive
	cfg     *Config
	log     *log2.Log
	handler EventHandler
	choose  IntervalChooser
	relays  *relay.Bank
	tr      *transport.Transport
	tele    tele.Notifier
	stat    Stat

	// wake is the poll->control nudge: buffered by one, non-blocking
	// set, consumed or drained by the control worker only
	wake chan struct{}

	eventURI          string
	pollInterval      time.Duration
	controlInterval   time.Duration
	controlStartDelay time.Duration
}

func New(opt Options) (*Runtime, error) {
	if opt.Config == nil {
		return nil, errors.NotValidf("code error ven.Options.Config=nil")
	}
	if opt.Handler == nil {
		return nil, errors.NotValidf("code error ven.Options.Handler=nil")
	}
	if opt.Chooser == nil {
		return nil, errors.NotValidf("code error ven.Options.Chooser=nil")
	}
	if opt.Driver == nil {
		return nil, errors.NotValidf("code error ven.Options.Driver=nil")
	}

	cfg := opt.Config
	tr, err := transport.New(transport.Options{
		CertFile:     cfg.VTN.CertFile,
		KeyFile:      cfg.VTN.KeyFile,
		CAFile:       cfg.VTN.CAFile,
		RoundTripper: opt.RoundTripper,
		Log:          opt.Log,
	})
	if err != nil {
		return nil, errors.Annotate(err, "ven transport")
	}

	r := &Runtime{
		alive:             alive.NewAlive(),
		cfg:               cfg,
		log:               opt.Log,
		handler:           opt.Handler,
		choose:            opt.Chooser,
		relays:            relay.NewBank(opt.Log, opt.Driver, cfg.Relay.Points),
		tr:                tr,
		tele:              opt.Tele,
		wake:              make(chan struct{}, 1),
		eventURI:          eventURI(cfg.VTN.BaseURI),
		pollInterval:      cfg.PollIntervalDuration(),
		controlInterval:   ControlInterval,
		controlStartDelay: controlStartDelay,
	}
	if r.tele == nil {
		r.tele = tele.Noop{}
	}
	if opt.PollInterval != 0 {
		r.pollInterval = opt.PollInterval
	}
	if opt.ControlInterval != 0 {
		r.controlInterval = opt.ControlInterval
	}
	if opt.ControlStartDelay != 0 {
		r.controlStartDelay = opt.ControlStartDelay
	}
	if r.eventURI == "" {
		r.log.Errorf("ven: no vtn base uri, polling disabled")
	}

	if opt.AutoStart {
		r.Start()
	}
	return r, nil
}

// eventURI joins base/OpenADR2/Simple/EiEvent, empty base disables polling.
func eventURI(base string) string {
	if base == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + uriPathPrefix + eventService
}

func (r *Runtime) Start() {
	if !r.alive.Add(2) {
		r.log.Errorf("ven: start after stop")
		return
	}
	go r.pollLoop()
	go r.controlLoop()
	r.log.Infof("ven: started test_mode=%t poll_interval=%v", r.cfg.VTN.TestMode, r.pollInterval)
}

// Stop sets the exit flag and waits for both workers, bounded.
// Workers are not force-killed, a stuck worker yields a timeout error.
func (r *Runtime) Stop() error {
	r.alive.Stop()
	select {
	case <-r.alive.WaitChan():
		r.tele.Close()
		r.log.Infof("ven: stopped")
		return nil
	case <-time.After(2 * joinTimeout):
		return errors.Timeoutf("ven worker join")
	}
}

func (r *Runtime) Stat() *Stat { return &r.stat }

// EventURI is the resolved VTN event service endpoint, empty when polling
// is disabled.
func (r *Runtime) EventURI() string { return r.eventURI }

// wakeControl asks the control worker to re-evaluate on its next tick
// instead of a full interval later. Never blocks.
func (r *Runtime) wakeControl() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}
