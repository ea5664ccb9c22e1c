package button

import (
	"context"
	"time"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/hw/gpio"
)

// Button is an active-low push button wired between a GPIO pin and ground:
// - the pin uses the internal pull-up, so it idles HIGH
// - pressing the button pulls it LOW
//
// A press is reported once the pin has stayed LOW for the debounce window,
// and the button must return HIGH before another press is reported.
type Button struct {
	gpio     gpio.Driver
	pin      int
	poll     time.Duration
	debounce time.Duration
}

// New configures pin as a pulled-up input.
// poll is the sampling interval, debounce how long the pin must stay LOW.
func New(g gpio.Driver, pin int, poll, debounce time.Duration) *Button {
	_ = g.SetupPin(pin, gpio.InputPullUp)
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	return &Button{
		gpio:     g,
		pin:      pin,
		poll:     poll,
		debounce: debounce,
	}
}

// Watch samples the pin until ctx is cancelled and calls onPress for every
// debounced press. onPress runs on the watching goroutine.
func (b *Button) Watch(ctx context.Context, onPress func()) error {
	debug.Verbose("Button: watching pin %d (poll=%v, debounce=%v)", b.pin, b.poll, b.debounce)

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	var lowSince time.Time
	reported := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			level, err := b.gpio.ReadPin(b.pin)
			if err != nil {
				return err
			}
			if level == gpio.High {
				lowSince = time.Time{}
				reported = false
				continue
			}
			if lowSince.IsZero() {
				lowSince = now
			}
			if !reported && now.Sub(lowSince) >= b.debounce {
				reported = true
				debug.Live("Button: press on pin %d", b.pin)
				onPress()
			}
		}
	}
}
