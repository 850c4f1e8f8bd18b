// Package gpiorelay drives relay control points through the Linux GPIO
// character device. Implements relay.Driver for boards where the demand
// response relays hang off /dev/gpiochipN output lines.
package gpiorelay

import (
	"sync"

	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
	"github.com/temoto/oadr2-ven/helpers"
	"github.com/temoto/oadr2-ven/log2"
)

const consumerTag = "oadr2-ven"

type Config struct {
	Chip string      `hcl:"chip"`
	Pins []PinConfig `hcl:"pin"`
}

type PinConfig struct {
	Name string `hcl:"name,key"`
	Line int    `hcl:"line"`
}

func (c *Config) Enabled() bool { return c.Chip != "" }

type Driver struct {
	log   *log2.Log
	chip  gpio.Chiper
	lines gpio.Lineser

	mu   sync.Mutex
	idx  map[string]int // point name -> position in request order
	setf map[string]gpio.LineSetFunc
}

func Open(log *log2.Log, c Config) (*Driver, error) {
	if len(c.Pins) == 0 {
		return nil, errors.NotValidf("config gpio chip=%s without pins", c.Chip)
	}
	chip, err := gpio.Open(c.Chip, consumerTag)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open chip=%s", c.Chip)
	}

	offsets := make([]uint32, len(c.Pins))
	idx := make(map[string]int, len(c.Pins))
	for i, p := range c.Pins {
		offsets[i] = uint32(p.Line)
		idx[p.Name] = i
	}
	lines, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, consumerTag, offsets...)
	if err != nil {
		_ = chip.Close()
		return nil, errors.Annotatef(err, "gpio request lines chip=%s", c.Chip)
	}

	d := &Driver{
		log:   log,
		chip:  chip,
		lines: lines,
		idx:   idx,
		setf:  make(map[string]gpio.LineSetFunc, len(c.Pins)),
	}
	for _, p := range c.Pins {
		d.setf[p.Name] = lines.SetFunc(uint32(p.Line))
	}
	info := chip.Info()
	log.Debugf("gpiorelay: chip=%s info=%s pins=%d", c.Chip, info.String(), len(c.Pins))
	return d, nil
}

func (d *Driver) Set(point string, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.setf[point]
	if !ok {
		return errors.NotFoundf("gpio point=%s", point)
	}
	v := byte(0)
	if on {
		v = 1
	}
	f(v)
	return errors.Annotatef(d.lines.Flush(), "gpio flush point=%s", point)
}

func (d *Driver) Get(point string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.idx[point]
	if !ok {
		return false, errors.NotFoundf("gpio point=%s", point)
	}
	data, err := d.lines.Read()
	if err != nil {
		return false, errors.Annotatef(err, "gpio read point=%s", point)
	}
	return data.Values[i] != 0, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	errs := []error{
		d.lines.Close(),
		d.chip.Close(),
	}
	return helpers.FoldErrors(errs)
}
