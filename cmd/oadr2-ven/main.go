package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/oadr2-ven/hardware/gpiorelay"
	"github.com/temoto/oadr2-ven/log2"
	"github.com/temoto/oadr2-ven/relay"
	"github.com/temoto/oadr2-ven/tele"
	"github.com/temoto/oadr2-ven/ven"
)

var BuildVersion string = "unknown" // set by ldflags -X

func main() {
	flagConfig := flag.String("config", "oadr2-ven.hcl", "")
	flagDebug := flag.Bool("log-debug", false, "")
	flagVersion := flag.Bool("version", false, "")
	flag.Parse()

	if *flagVersion {
		log.Printf("oadr2-ven %s", BuildVersion)
		return
	}

	level := log2.LInfo
	if *flagDebug {
		level = log2.LDebug
	}
	l := log2.NewStderr(level)
	if sdnotify("start") {
		// under systemd: journal adds timestamps
		l.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		l.SetFlags(log2.LInteractiveFlags)
	}
	l.Infof("oadr2-ven version=%s", BuildVersion)

	cfg := ven.MustReadConfig(l, *flagConfig)

	var driver relay.Driver
	if cfg.Relay.Gpio.Enabled() {
		gd, err := gpiorelay.Open(l, cfg.Relay.Gpio)
		if err != nil {
			l.Fatal(errors.ErrorStack(err))
		}
		defer gd.Close()
		driver = gd
	} else {
		l.Errorf("no gpio chip configured, relay writes go to a mock")
		driver = relay.NewMockDriver()
	}

	notifier, err := tele.NewNotifier(l.Clone(log2.LInfo), cfg.Tele)
	if err != nil {
		l.Fatal(errors.ErrorStack(err))
	}

	rt, err := ven.New(ven.Options{
		Config:    cfg,
		Log:       l,
		Handler:   ven.NoopHandler{}, // replaced by the deployment codec
		Chooser:   ven.ChooseInterval,
		Driver:    driver,
		Tele:      notifier,
		AutoStart: true,
	})
	if err != nil {
		l.Fatal(errors.ErrorStack(err))
	}
	sdnotify(daemon.SdNotifyReady)

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigch
	l.Infof("signal=%v stopping", sig)
	sdnotify(daemon.SdNotifyStopping)
	if err := rt.Stop(); err != nil {
		l.Fatal(errors.ErrorStack(err))
	}
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
