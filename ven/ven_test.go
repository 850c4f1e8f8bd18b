package ven

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/oadr2-ven/log2"
	"github.com/temoto/oadr2-ven/relay"
)

func TestConfigParse(t *testing.T) {
	t.Parallel()
	const src = `
vtn {
  base_uri = "https://vtn.example.com"
  poll_interval = "60"
  cert_file = "/etc/ven/client.pem"
  key_file = "/etc/ven/client.key"
  ca_file = "/etc/ven/ca.pem"
  test_mode = true
}
relay {
  points = ["precool", "shed1", "shed2"]
  gpio {
    chip = "/dev/gpiochip0"
    pin "precool" { line = 17 }
    pin "shed1" { line = 27 }
    pin "shed2" { line = 22 }
  }
}
tele {
  enable = true
  broker = "tls://broker.example.com:8883"
  client_id = "ven1"
}
`
	c, err := ParseConfig(log2.NewTest(t, log2.LDebug), []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "https://vtn.example.com", c.VTN.BaseURI)
	assert.Equal(t, 60*time.Second, c.PollIntervalDuration())
	assert.True(t, c.VTN.TestMode)
	assert.Equal(t, []string{"precool", "shed1", "shed2"}, c.Relay.Points)
	require.True(t, c.Relay.Gpio.Enabled())
	require.Len(t, c.Relay.Gpio.Pins, 3)
	assert.Equal(t, "precool", c.Relay.Gpio.Pins[0].Name)
	assert.Equal(t, 17, c.Relay.Gpio.Pins[0].Line)
	assert.True(t, c.Tele.Enable)
}

func TestConfigPollIntervalFallback(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		src    string
		expect time.Duration
	}{
		{"missing", `vtn { base_uri = "https://x" }`, DefaultPollInterval},
		{"valid", `vtn { poll_interval = "120" }`, 120 * time.Second},
		{"non-numeric", `vtn { poll_interval = "soon" }`, DefaultPollInterval},
		{"negative", `vtn { poll_interval = "-5" }`, DefaultPollInterval},
		{"zero", `vtn { poll_interval = "0" }`, DefaultPollInterval},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			cfg, err := ParseConfig(log2.NewTest(t, log2.LDebug), []byte(c.src))
			require.NoError(t, err, "invalid poll interval must never fail construction")
			assert.Equal(t, c.expect, cfg.PollIntervalDuration())
		})
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LError)
	cfg := &Config{}
	cfg.normalize(log)

	_, err := New(Options{Log: log, Handler: NoopHandler{}, Chooser: ChooseInterval, Driver: relay.NewMockDriver()})
	assert.Error(t, err)
	_, err = New(Options{Config: cfg, Log: log, Chooser: ChooseInterval, Driver: relay.NewMockDriver()})
	assert.Error(t, err)
	_, err = New(Options{Config: cfg, Log: log, Handler: NoopHandler{}, Driver: relay.NewMockDriver()})
	assert.Error(t, err)
	_, err = New(Options{Config: cfg, Log: log, Handler: NoopHandler{}, Chooser: ChooseInterval})
	assert.Error(t, err)
}

func TestPollCadence(t *testing.T) {
	t.Parallel()
	env := newTenv(t, Options{
		PollInterval:      30 * time.Millisecond,
		ControlInterval:   time.Hour,
		ControlStartDelay: time.Hour,
	})
	env.mock.Body = []byte("<oadrResponse/>")

	env.rt.Start()
	time.Sleep(250 * time.Millisecond)
	require.NoError(t, env.rt.Stop())

	// 250ms at 30ms cadence is 8 cycles, allow generous scheduling slack
	n := env.rt.Stat().Polls()
	assert.GreaterOrEqual(t, n, uint32(5), "poll cycles in 250ms at 30ms interval")
}

func TestShutdown(t *testing.T) {
	t.Parallel()
	env := newTenv(t, Options{
		PollInterval:      20 * time.Millisecond,
		ControlInterval:   time.Hour,
		ControlStartDelay: time.Hour,
	})
	env.mock.Body = []byte("<oadrResponse/>")

	env.rt.Start()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, env.rt.Stop())

	after := len(env.mock.Requests())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, len(env.mock.Requests()), "no poll query after Stop returned")
}

func TestWakeShortensControlWait(t *testing.T) {
	t.Parallel()
	env := newTenv(t, Options{
		Chooser:           testChooser,
		PollInterval:      time.Hour,
		ControlInterval:   time.Hour,
		ControlStartDelay: time.Millisecond,
	})
	env.mock.Body = []byte("<oadrResponse/>")

	env.rt.Start()

	waitFor := func(cond func() bool, msg string) {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if cond() {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("timeout: %s controls=%d", msg, env.rt.Stat().Controls())
	}

	// first evaluation sees no events
	waitFor(func() bool { return env.rt.Stat().Controls() >= 1 }, "first control pass")

	// new event arrives, wake must shorten the one hour control wait
	env.handler.mu.Lock()
	env.handler.events = []Event{
		&testEvent{id: "B", mod: 1, start: startYear(2010), signals: twoSignals(2)},
	}
	env.handler.mu.Unlock()
	env.rt.wakeControl()

	waitFor(func() bool { return env.rt.Stat().Controls() >= 2 }, "evaluation after wake")
	require.NoError(t, env.rt.Stop())
	assert.Equal(t, 2.0, env.rt.relays.Level())
}

func TestAutoStart(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	cfg := &Config{}
	cfg.normalize(log)
	rt, err := New(Options{
		Config:            cfg,
		Log:               log,
		Handler:           NoopHandler{},
		Chooser:           ChooseInterval,
		Driver:            relay.NewMockDriver(),
		AutoStart:         true,
		PollInterval:      time.Hour,
		ControlInterval:   time.Hour,
		ControlStartDelay: time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, rt.Stop())
}
