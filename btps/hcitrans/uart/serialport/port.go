package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/joshuapare/btpskit/btps/hcitrans/uart"
	"github.com/joshuapare/btpskit/internal/logger"
)

const (
	DefaultFIFODepth   = 64
	DefaultReadTimeout = 100 * time.Millisecond
)

var (
	// ErrNoPort indicates a missing port name.
	ErrNoPort = errors.New("serialport: port name required")

	// ErrNotConfigured indicates line access before SetConfig opened the port.
	ErrNotConfigured = errors.New("serialport: port not open")

	// ErrUnsupported indicates a line operation the host cannot perform.
	ErrUnsupported = errors.New("serialport: unsupported on this platform")
)

// Opener opens a serial port. It defaults to serial.Open.
type Opener func(serial.OpenOptions) (io.ReadWriteCloser, error)

// Config configures a Port.
type Config struct {
	PortName string

	// FIFODepth sizes the emulated RX and TX FIFOs.
	FIFODepth int

	// ReadTimeout bounds each read so the reader notices RTS changes and
	// shutdown.
	ReadTimeout time.Duration

	Open Opener
}

func (c Config) withDefaults() Config {
	if c.FIFODepth <= 0 {
		c.FIFODepth = DefaultFIFODepth
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.Open == nil {
		c.Open = serial.Open
	}
	return c
}

// line is one open instance of the port and its I/O goroutines.
type line struct {
	rwc  io.ReadWriteCloser
	opts serial.OpenOptions
	stop chan struct{}
	wg   sync.WaitGroup
}

// Port is a host serial port presented as a uart.Device.
type Port struct {
	cfg Config
	irq *uart.IRQ

	lineMu sync.Mutex // serializes open, reopen and Close
	line   *line
	flow   bool

	mu      sync.Mutex
	rx      []byte
	tx      []byte
	enabled uart.Interrupt
	rts     bool
	errs    int

	changed chan struct{}
	txKick  chan struct{}
}

var _ uart.Device = (*Port)(nil)

// New returns a Port. The port itself is opened by the first SetConfig.
func New(cfg Config) (*Port, error) {
	if cfg.PortName == "" {
		return nil, ErrNoPort
	}
	p := &Port{
		cfg:     cfg.withDefaults(),
		changed: make(chan struct{}, 1),
		txKick:  make(chan struct{}, 1),
	}
	p.irq = uart.NewIRQ(p.pending)
	return p, nil
}

func (p *Port) pending() uart.Interrupt {
	p.mu.Lock()
	defer p.mu.Unlock()
	var m uart.Interrupt
	if len(p.rx) > 0 {
		m |= p.enabled & (uart.IntRX | uart.IntRT)
	}
	if p.enabled&uart.IntTX != 0 && len(p.tx) < p.cfg.FIFODepth {
		m |= uart.IntTX
	}
	return m
}

func kick(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Setup records whether RTS/CTS is used. It takes effect when the port opens.
func (p *Port) Setup(flowControl bool) error {
	p.lineMu.Lock()
	defer p.lineMu.Unlock()
	p.flow = flowControl
	return nil
}

// SetConfig opens the port on first use. Later calls change the baud rate in
// place where the host supports it and reopen the port otherwise.
func (p *Port) SetConfig(baud uint32, frame uart.Frame) error {
	p.lineMu.Lock()
	defer p.lineMu.Unlock()

	opts := serial.OpenOptions{
		PortName:              p.cfg.PortName,
		BaudRate:              uint(baud),
		DataBits:              uint(frame.DataBits),
		StopBits:              uint(frame.StopBits),
		ParityMode:            parityMode(frame.Parity),
		RTSCTSFlowControl:     p.flow,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(p.cfg.ReadTimeout / time.Millisecond),
	}

	if l := p.line; l != nil {
		if l.opts == opts {
			return nil
		}
		if onlyBaud(l.opts, opts) {
			if err := setBaud(l.rwc, baud); err == nil {
				l.opts = opts
				logger.Debug("serialport: baud changed in place", "port", opts.PortName, "baud", baud)
				return nil
			}
		}
		p.closeLine()
	}

	rwc, err := p.cfg.Open(opts)
	if err != nil {
		return fmt.Errorf("serialport: open %s: %w", opts.PortName, err)
	}
	l := &line{rwc: rwc, opts: opts, stop: make(chan struct{})}
	l.wg.Add(2)
	go p.readLoop(l)
	go p.writeLoop(l)
	p.line = l

	logger.Info("serialport: opened", "port", opts.PortName, "baud", baud, "rtscts", p.flow)
	return nil
}

func onlyBaud(a, b serial.OpenOptions) bool {
	a.BaudRate = b.BaudRate
	return a == b
}

func parityMode(pa uart.Parity) serial.ParityMode {
	switch pa {
	case uart.ParityOdd:
		return serial.PARITY_ODD
	case uart.ParityEven:
		return serial.PARITY_EVEN
	default:
		return serial.PARITY_NONE
	}
}

// closeLine stops the I/O goroutines and closes the port. Called with lineMu
// held.
func (p *Port) closeLine() {
	l := p.line
	if l == nil {
		return
	}
	p.line = nil
	close(l.stop)
	if err := l.rwc.Close(); err != nil {
		logger.Warn("serialport: close", "port", l.opts.PortName, "err", err)
	}
	l.wg.Wait()
}

// Close stops the interrupt line and closes the port.
func (p *Port) Close() error {
	p.lineMu.Lock()
	p.closeLine()
	p.lineMu.Unlock()
	p.irq.Stop()
	return nil
}

func (p *Port) readLoop(l *line) {
	defer l.wg.Done()
	buf := make([]byte, p.cfg.FIFODepth)
	for {
		room := p.waitRoom(l.stop)
		if room < 0 {
			return
		}
		n, err := l.rwc.Read(buf[:room])
		if n > 0 {
			p.mu.Lock()
			p.rx = append(p.rx, buf[:n]...)
			p.mu.Unlock()
			p.irq.Raise()
		}
		if err != nil && !errors.Is(err, io.EOF) {
			select {
			case <-l.stop:
			default:
				p.mu.Lock()
				p.errs++
				p.mu.Unlock()
				logger.Error("serialport: read", "port", l.opts.PortName, "err", err)
			}
			return
		}
	}
}

// waitRoom blocks until RTS is asserted and the RX FIFO has room, returning
// the room, or -1 once stop closes.
func (p *Port) waitRoom(stop <-chan struct{}) int {
	for {
		p.mu.Lock()
		room := p.cfg.FIFODepth - len(p.rx)
		ready := p.rts
		p.mu.Unlock()
		if ready && room > 0 {
			return room
		}
		select {
		case <-stop:
			return -1
		case <-p.changed:
		case <-time.After(p.cfg.ReadTimeout):
		}
	}
}

func (p *Port) writeLoop(l *line) {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			return
		case <-p.txKick:
		}

		for {
			p.mu.Lock()
			chunk := append([]byte(nil), p.tx...)
			p.mu.Unlock()
			if len(chunk) == 0 {
				break
			}
			n, err := l.rwc.Write(chunk)
			p.mu.Lock()
			p.tx = p.tx[n:]
			p.mu.Unlock()
			if n > 0 {
				p.irq.Raise()
			}
			if err != nil {
				select {
				case <-l.stop:
				default:
					p.mu.Lock()
					p.errs++
					p.mu.Unlock()
					logger.Error("serialport: write", "port", l.opts.PortName, "err", err)
				}
				return
			}
		}
	}
}

func (p *Port) Attach(h func(uart.Interrupt)) { p.irq.Attach(h) }

func (p *Port) EnableInterrupts(m uart.Interrupt) {
	p.mu.Lock()
	p.enabled |= m
	p.mu.Unlock()
	p.irq.Raise()
}

func (p *Port) DisableInterrupts(m uart.Interrupt) {
	p.mu.Lock()
	p.enabled &^= m
	p.mu.Unlock()
}

func (p *Port) EnabledInterrupts() uart.Interrupt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *Port) Receive(b []byte) int {
	p.mu.Lock()
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	p.mu.Unlock()
	if n > 0 {
		kick(p.changed)
	}
	return n
}

func (p *Port) RxReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rx) > 0
}

func (p *Port) Transmit(b []byte) int {
	p.mu.Lock()
	n := min(len(b), p.cfg.FIFODepth-len(p.tx))
	p.tx = append(p.tx, b[:n]...)
	p.mu.Unlock()
	if n > 0 {
		kick(p.txKick)
	}
	return n
}

// SetRTS gates the reader. Without hardware flow control the physical line
// is driven as well.
func (p *Port) SetRTS(ready bool) {
	p.mu.Lock()
	p.rts = ready
	p.mu.Unlock()
	kick(p.changed)

	p.lineMu.Lock()
	defer p.lineMu.Unlock()
	if p.line != nil && !p.flow {
		if err := setModemLine(p.line.rwc, lineRTS, ready); err != nil {
			logger.Debug("serialport: rts", "err", err)
		}
	}
}

// SetReset drives DTR as the controller reset line.
func (p *Port) SetReset(released bool) {
	p.lineMu.Lock()
	defer p.lineMu.Unlock()
	if p.line == nil {
		return
	}
	if err := setModemLine(p.line.rwc, lineDTR, released); err != nil {
		logger.Debug("serialport: reset line", "err", err)
	}
}

// Errors returns the count of read and write failures.
func (p *Port) Errors() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs
}
