package ven

import (
	"io/ioutil"
	"strconv"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/oadr2-ven/hardware/gpiorelay"
	"github.com/temoto/oadr2-ven/log2"
	"github.com/temoto/oadr2-ven/tele"
)

const DefaultPollInterval = 300 * time.Second

type Config struct {
	VTN struct {
		BaseURI string `hcl:"base_uri"`
		// seconds, string on purpose: invalid input falls back to
		// DefaultPollInterval with a warning, it never fails
		PollInterval string `hcl:"poll_interval"`
		CertFile     string `hcl:"cert_file"`
		KeyFile      string `hcl:"key_file"`
		CAFile       string `hcl:"ca_file"`
		TestMode     bool   `hcl:"test_mode"`
	} `hcl:"vtn"`

	Relay struct {
		Points []string         `hcl:"points"`
		Gpio   gpiorelay.Config `hcl:"gpio"`
	} `hcl:"relay"`

	Tele tele.Config `hcl:"tele"`

	pollInterval time.Duration
}

func (c *Config) PollIntervalDuration() time.Duration {
	if c.pollInterval == 0 {
		return DefaultPollInterval
	}
	return c.pollInterval
}

// normalize corrects invalid values instead of rejecting them.
func (c *Config) normalize(log *log2.Log) {
	c.pollInterval = DefaultPollInterval
	if c.VTN.PollInterval == "" {
		return
	}
	n, err := strconv.Atoi(c.VTN.PollInterval)
	if err != nil || n <= 0 {
		log.Errorf("config: invalid poll_interval=%s using default=%v", c.VTN.PollInterval, DefaultPollInterval)
		return
	}
	c.pollInterval = time.Duration(n) * time.Second
}

func ReadConfig(log *log2.Log, path string) (*Config, error) {
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "config path=%s", path)
	}
	return ParseConfig(log, bs)
}

func ParseConfig(log *log2.Log, bs []byte) (*Config, error) {
	c := &Config{}
	if err := hcl.Unmarshal(bs, c); err != nil {
		return nil, errors.Annotatef(err, "config unmarshal content='%s'", string(bs))
	}
	c.normalize(log)
	return c, nil
}

func MustReadConfig(log *log2.Log, path string) *Config {
	c, err := ReadConfig(log, path)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
