package button

import (
	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/hw/gpio"
)

// Indicator is a status LED driven HIGH while lit.
type Indicator struct {
	gpio gpio.Driver
	pin  int
}

// NewIndicator configures pin as an output and turns the LED off.
func NewIndicator(g gpio.Driver, pin int) *Indicator {
	_ = g.SetupPin(pin, gpio.Output)
	_ = g.WritePin(pin, gpio.Low)
	return &Indicator{gpio: g, pin: pin}
}

// Set lights (true) or clears (false) the LED.
func (i *Indicator) Set(on bool) {
	if i == nil {
		return
	}
	if err := i.gpio.WritePin(i.pin, gpio.Level(on)); err != nil {
		debug.Error(err)
	}
}
