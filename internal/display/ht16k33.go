package display

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

// HT16K33 commands
const (
	cmdSystemOn   byte = 0x21
	cmdSystemOff  byte = 0x20
	cmdDisplayOn  byte = 0x81
	cmdDisplayOff byte = 0x80
	cmdBrightness byte = 0xE0
	cmdAddress    byte = 0x00

	blink1Hz byte = 0x02 << 1 // rate 2 in the display setup command

	DefaultAddress    = 0x70
	DefaultBrightness = 4
	busSpeed          = 100 * physic.KiloHertz
)

// Display RAM positions of the four digits and the colon on the backpack.
var digitAddr = [4]int{0, 2, 6, 8}

const (
	colonAddr = 4
	colonBits = 0x02
	ramSize   = 16
)

// HT16K33 drives an Adafruit-style 4-digit backpack over I2C.
// Write failures are kept until Err is called so the display methods can
// satisfy logic.Display without returning errors.
type HT16K33 struct {
	dev    *i2c.Dev
	closer func() error

	buf   [ramSize]byte
	blink bool

	mu  sync.Mutex
	err error
}

// OpenHT16K33 initialises the host drivers, opens the named I2C bus ("" for
// the first available) and powers up the display at addr.
func OpenHT16K33(busName string, addr uint16) (*HT16K33, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	if err := bus.SetSpeed(busSpeed); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set i2c speed: %w", err)
	}
	d, err := NewHT16K33(bus, addr)
	if err != nil {
		bus.Close()
		return nil, err
	}
	d.closer = bus.Close
	return d, nil
}

// NewHT16K33 powers up a display on an already open bus.
func NewHT16K33(bus i2c.Bus, addr uint16) (*HT16K33, error) {
	d := &HT16K33{dev: &i2c.Dev{Bus: bus, Addr: addr}}
	for _, c := range []byte{cmdSystemOn, cmdDisplayOn, cmdBrightness | DefaultBrightness} {
		if err := d.command(c); err != nil {
			return nil, fmt.Errorf("init ht16k33 at 0x%02x: %w", addr, err)
		}
	}
	if err := d.draw(DashesFrame()); err != nil {
		return nil, fmt.Errorf("init ht16k33 at 0x%02x: %w", addr, err)
	}
	return d, nil
}

func (d *HT16K33) command(c byte) error {
	_, err := d.dev.Write([]byte{c})
	return err
}

func (d *HT16K33) draw(f Frame) error {
	for i, a := range digitAddr {
		d.buf[a] = f.Glyphs[i]
	}
	d.buf[colonAddr] = 0
	if f.Colon {
		d.buf[colonAddr] = colonBits
	}
	msg := make([]byte, 0, ramSize+1)
	msg = append(msg, cmdAddress)
	msg = append(msg, d.buf[:]...)
	_, err := d.dev.Write(msg)
	return err
}

func (d *HT16K33) show(f Frame) {
	d.keep(d.draw(f))
}

func (d *HT16K33) keep(err error) {
	if err == nil {
		return
	}
	d.mu.Lock()
	if d.err == nil {
		d.err = fmt.Errorf("ht16k33 write: %w", err)
	}
	d.mu.Unlock()
}

// Err returns and clears the first write failure since the last call.
func (d *HT16K33) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.err
	d.err = nil
	return err
}

func (d *HT16K33) ShowTime(minutes, seconds int) { d.show(TimeFrame(minutes, seconds)) }
func (d *HT16K33) ShowDashes()                   { d.show(DashesFrame()) }
func (d *HT16K33) ShowWin()                      { d.show(WinFrame()) }
func (d *HT16K33) ShowLose()                     { d.show(LoseFrame()) }
func (d *HT16K33) ShowGameSelection(n int)       { d.show(GameFrame(n)) }

// SetBlink toggles hardware blinking of the whole display at 1Hz.
func (d *HT16K33) SetBlink(on bool) {
	if on == d.blink {
		return
	}
	c := cmdDisplayOn
	if on {
		c |= blink1Hz
	}
	if err := d.command(c); err != nil {
		d.keep(err)
		return
	}
	d.blink = on
}

// Close blanks the display, powers it down and releases the bus if it was
// opened by OpenHT16K33.
func (d *HT16K33) Close() error {
	var errs []error
	if err := d.draw(textFrame("    ")); err != nil {
		errs = append(errs, fmt.Errorf("blank: %w", err))
	}
	for _, c := range []byte{cmdDisplayOff, cmdSystemOff} {
		if err := d.command(c); err != nil {
			errs = append(errs, fmt.Errorf("power down: %w", err))
			break
		}
	}
	if d.closer != nil {
		if err := d.closer(); err != nil {
			errs = append(errs, fmt.Errorf("close bus: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
