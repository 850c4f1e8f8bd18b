package ven

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/temoto/oadr2-ven/helpers"
	"github.com/temoto/oadr2-ven/log2"
	"github.com/temoto/oadr2-ven/relay"
)

type testEvent struct {
	id      string
	mod     int
	status  string
	start   time.Time
	signals []Signal

	idErr     error
	signalErr error
}

func (e *testEvent) ID() (string, error)      { return e.id, e.idErr }
func (e *testEvent) ModNumber() (int, error)  { return e.mod, nil }
func (e *testEvent) Status() (string, error)  { return e.status, nil }
func (e *testEvent) ActivePeriodStart() (time.Time, error) {
	return e.start, nil
}
func (e *testEvent) Signals() ([]Signal, error) {
	return e.signals, e.signalErr
}

type testHandler struct {
	mu sync.Mutex

	payload  []byte
	buildErr error

	reply    []byte
	parseErr error
	handled  [][]byte

	events  []Event
	removed [][]string

	match func(Event) bool
}

func (h *testHandler) BuildRequestPayload() ([]byte, error) {
	return h.payload, h.buildErr
}

func (h *testHandler) HandlePayload(body []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, body)
	return h.reply, h.parseErr
}

func (h *testHandler) ActiveEvents() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	evs := make([]Event, len(h.events))
	copy(evs, h.events)
	return evs
}

func (h *testHandler) RemoveEvents(ids []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, ids)
}

func (h *testHandler) CheckTargetInfo(ev Event) bool {
	if h.match == nil {
		return true
	}
	return h.match(ev)
}

func (h *testHandler) handledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func (h *testHandler) removedCalls() [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	rs := make([][]string, len(h.removed))
	copy(rs, h.removed)
	return rs
}

type tenv struct {
	t       testing.TB
	log     *log2.Log
	cfg     *Config
	handler *testHandler
	driver  *relay.MockDriver
	mock    *helpers.MockHTTP
	rt      *Runtime
}

const testXMLHeader = "HTTP/1.1 200 OK\r\nContent-Type: application/xml\r\n\r\n"

func newTenv(t testing.TB, opt Options) *tenv {
	env := &tenv{
		t:       t,
		log:     log2.NewTest(t, log2.LDebug),
		handler: &testHandler{},
		driver:  relay.NewMockDriver(),
		mock:    &helpers.MockHTTP{Header: []byte(testXMLHeader)},
	}
	env.cfg = &Config{}
	env.cfg.VTN.BaseURI = "https://vtn.example.com"
	env.cfg.Relay.Points = []string{"r0", "r1", "r2", "r3"}
	env.cfg.normalize(env.log)

	if opt.Config != nil {
		env.cfg = opt.Config
	}
	opt.Config = env.cfg
	opt.Log = env.log
	if opt.Handler == nil {
		opt.Handler = env.handler
	}
	if opt.Chooser == nil {
		opt.Chooser = ChooseInterval
	}
	if opt.Driver == nil {
		opt.Driver = env.driver
	}
	if opt.RoundTripper == nil {
		opt.RoundTripper = env.mock
	}

	rt, err := New(opt)
	require.NoError(t, err)
	env.rt = rt
	return env
}
