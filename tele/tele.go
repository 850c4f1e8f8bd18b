// Package tele publishes VEN state transitions to an MQTT broker for
// fleet monitoring. Strictly best-effort: a broker outage never affects
// polling or control.
package tele

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/oadr2-ven/helpers"
	"github.com/temoto/oadr2-ven/log2"
)

const defaultNetworkTimeout = 30 * time.Second

type Config struct {
	Enable            bool   `hcl:"enable"`
	Broker            string `hcl:"broker"`
	ClientID          string `hcl:"client_id"`
	Password          string `hcl:"password"`
	TLSCaFile         string `hcl:"tls_ca_file"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	LogDebug          bool   `hcl:"log_debug"`
}

type Notifier interface {
	// SignalLevel reports a changed aggregate signal level.
	SignalLevel(level float64)
	Close()
}

// Noop is the Notifier used when telemetry is disabled.
type Noop struct{}

func (Noop) SignalLevel(float64) {}
func (Noop) Close()              {}

// NewNotifier returns Noop when telemetry is disabled, only
// configuration errors are returned.
func NewNotifier(log *log2.Log, c Config) (Notifier, error) {
	if !c.Enable {
		return Noop{}, nil
	}
	if c.Broker == "" {
		return nil, errors.NotValidf("config tele.broker=empty")
	}

	n := &mqttNotifier{
		log:    log,
		stopCh: make(chan struct{}),
	}
	mqttLog := log.Clone(log2.LDebug)
	mqtt.CRITICAL = mqttLog
	mqtt.ERROR = mqttLog
	mqtt.WARN = mqttLog
	if c.LogDebug {
		mqtt.DEBUG = mqttLog
	}

	n.topicLevel = c.ClientID + "/w/level"
	networkTimeout := helpers.IntSecondDefault(c.NetworkTimeoutSec, defaultNetworkTimeout)

	tlsconf := new(tls.Config)
	if c.TLSCaFile != "" {
		cabytes, err := ioutil.ReadFile(c.TLSCaFile)
		if err != nil {
			return nil, errors.Annotatef(err, "tele ca=%s", c.TLSCaFile)
		}
		tlsconf.RootCAs = x509.NewCertPool()
		if !tlsconf.RootCAs.AppendCertsFromPEM(cabytes) {
			return nil, errors.NotValidf("tele ca=%s no certificates", c.TLSCaFile)
		}
	}

	credFun := func() (string, string) { return c.ClientID, c.Password }
	n.mopt = mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetAutoReconnect(true).
		SetBinaryWill(n.topicLevel, []byte("offline"), 1, true).
		SetCleanSession(false).
		SetClientID(c.ClientID).
		SetConnectTimeout(networkTimeout * 3).
		SetCredentialsProvider(credFun).
		SetKeepAlive(networkTimeout / 2).
		SetMaxReconnectInterval(networkTimeout * 3).
		SetOrderMatters(false).
		SetPingTimeout(networkTimeout).
		SetTLSConfig(tlsconf).
		SetWriteTimeout(networkTimeout)
	n.m = mqtt.NewClient(n.mopt)

	go n.online()
	return n, nil
}

type mqttNotifier struct {
	log        *log2.Log
	m          mqtt.Client
	mopt       *mqtt.ClientOptions
	topicLevel string
	stopCh     chan struct{}
}

func (n *mqttNotifier) SignalLevel(level float64) {
	if !n.m.IsConnected() {
		n.log.Debugf("tele: offline, level=%f not sent", level)
		return
	}
	payload := strconv.FormatFloat(level, 'f', -1, 64)
	t := n.m.Publish(n.topicLevel, 1, true, []byte(payload))
	_ = n.tokenWait(t, "publish level")
}

func (n *mqttNotifier) Close() {
	close(n.stopCh)
	n.m.Disconnect(uint(n.mopt.PingTimeout / time.Millisecond))
}

// online connects with unlimited retries until Close, paho reconnects on
// its own after the first success.
func (n *mqttNotifier) online() {
	for n.isRunning() {
		t := n.m.Connect()
		if n.tokenWait(t, "connect") == nil {
			return
		}
		select {
		case <-time.After(1 * time.Second):
		case <-n.stopCh:
			return
		}
	}
}

func (n *mqttNotifier) isRunning() bool {
	select {
	case <-n.stopCh:
		return false
	default:
		return true
	}
}

func (n *mqttNotifier) tokenWait(t mqtt.Token, tag string) error {
	if !t.Wait() {
		err := errors.Timeoutf("tele %s", tag)
		n.log.Errorf("tele: %s", err.Error())
		return err
	}
	if err := t.Error(); err != nil {
		err = errors.Annotate(err, tag)
		n.log.Errorf("tele: %s", err.Error())
		return err
	}
	return nil
}
