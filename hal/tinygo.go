//go:build tinygo && baremetal

package hal

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/sdcard"
	"tinygo.org/x/tinyfs"
)

type tinyGoHAL struct {
	logger *uartLogger
	serial *uartSerial
	clock  *tinyGoClock
	timer  *oneShot
	block  tinyfs.BlockDevice
}

// New returns the bare-metal HAL: UART0 console, SPI0 SD card block device.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{BaudRate: 115200})

	h := &tinyGoHAL{
		logger: &uartLogger{uart: uart},
		serial: &uartSerial{uart: uart},
		clock:  &tinyGoClock{start: time.Now()},
		timer:  newOneShot(),
	}

	sd := sdcard.New(machine.SPI0, machine.GP18, machine.GP19, machine.GP16, machine.GP17)
	if err := sd.Configure(); err == nil {
		h.block = &sd
	}
	return h
}

func (h *tinyGoHAL) Logger() Logger            { return h.logger }
func (h *tinyGoHAL) Serial() Serial            { return h.serial }
func (h *tinyGoHAL) Clock() Clock              { return h.clock }
func (h *tinyGoHAL) Timer() Timer              { return h.timer }
func (h *tinyGoHAL) Block() tinyfs.BlockDevice { return h.block }

type tinyGoClock struct {
	start time.Time
}

func (c *tinyGoClock) Now() uint64 {
	return uint64(time.Since(c.start) / tickDur)
}

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	for i := 0; i < len(b); i++ {
		l.uart.WriteByte(b[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

type uartSerial struct {
	uart *machine.UART
}

func (s *uartSerial) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && s.uart.Buffered() > 0 {
		c, err := s.uart.ReadByte()
		if err != nil {
			break
		}
		p[n] = c
		n++
	}
	return n, nil
}

func (s *uartSerial) Write(p []byte) (int, error) {
	return s.uart.Write(p)
}
