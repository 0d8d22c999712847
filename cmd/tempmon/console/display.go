package console

import (
	"strings"
	"sync"

	"github.com/mklimuk/tempmon/monitor"
	"github.com/mklimuk/tempmon/sampler"
)

var _ sampler.Display = &Display{}

// Display prints monitor status changes and samples on the console.
type Display struct {
	mx         sync.Mutex
	lastStatus string
}

func NewDisplay() *Display {
	return &Display{}
}

// OnStatus prints the status when it changes. The per sample counter status
// is already shown next to each reading.
func (d *Display) OnStatus(text string) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if text == d.lastStatus || isCountStatus(text) {
		return
	}
	d.lastStatus = text
	Infof("%s", text)
}

func (d *Display) OnSample(celsius float64, index uint64) {
	d.mx.Lock()
	defer d.mx.Unlock()
	PInfof(PictoThermometer, "%s %s", White(monitor.FormatTemperature(celsius)), Cyan("#", index))
}

func isCountStatus(text string) bool {
	return strings.HasPrefix(text, "sampling count = ")
}
