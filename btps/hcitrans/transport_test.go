package hcitrans

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/btpskit/btps/hcitrans/uart"
	"github.com/joshuapare/btpskit/btps/osal"
)

// collector records deliveries. With a gate, every data call blocks until
// the gate is closed.
type collector struct {
	mu    sync.Mutex
	data  []byte
	calls int
	ends  int

	gate    chan struct{}
	entered chan struct{}
}

func newGatedCollector() *collector {
	return &collector{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
}

func (c *collector) HandleData(id int, p []byte) {
	if p == nil {
		c.mu.Lock()
		c.ends++
		c.mu.Unlock()
		return
	}
	if c.gate != nil {
		select {
		case c.entered <- struct{}{}:
		default:
		}
		<-c.gate
	}
	c.mu.Lock()
	c.data = append(c.data, p...)
	c.calls++
	c.mu.Unlock()
}

func (c *collector) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.data...)
}

func (c *collector) endCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ends
}

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + i/251)
	}
	return p
}

type fixture struct {
	tr  *Transport
	sim *uart.Sim
	c   *collector
}

func openFixture(t *testing.T, cfg Config, scfg uart.SimConfig, c *collector) *fixture {
	t.Helper()
	if cfg.CloseGrace == 0 {
		cfg.CloseGrace = 200 * time.Millisecond
	}
	if c == nil {
		c = &collector{}
	}
	sim := uart.NewSim(scfg)
	tr, err := New(sim, osal.RTOS(osal.NewSystemClock()), cfg)
	require.NoError(t, err)

	id, err := tr.Open(DriverInfo{BaudRate: 115200}, c)
	require.NoError(t, err)
	require.Equal(t, TransportID, id)

	t.Cleanup(func() {
		if c.gate != nil {
			select {
			case <-c.gate:
			default:
				close(c.gate)
			}
		}
		if tr.IsOpen() {
			_ = tr.Close(TransportID)
		}
		sim.Close()
	})
	return &fixture{tr: tr, sim: sim, c: c}
}

func Test_Open_ConfiguresLine(t *testing.T) {
	f := openFixture(t, Config{}, uart.SimConfig{}, nil)

	require.Equal(t, 1, f.sim.SetupCalls())
	require.True(t, f.sim.FlowControl())
	require.Equal(t, uint32(115200), f.sim.Baud())
	require.Equal(t, uart.Frame8N1, f.sim.Frame())
	require.True(t, f.sim.RTS())
	require.True(t, f.sim.ResetReleased())
	require.Equal(t, uart.IntRX|uart.IntRT, f.sim.EnabledInterrupts())
}

func Test_Open_DiscardsStaleBytes(t *testing.T) {
	sim := uart.NewSim(uart.SimConfig{})
	defer sim.Close()
	sim.Inject([]byte("junk"))

	tr, err := New(sim, osal.RTOS(osal.NewSystemClock()), Config{})
	require.NoError(t, err)
	c := &collector{}
	_, err = tr.Open(DriverInfo{BaudRate: 9600}, c)
	require.NoError(t, err)
	defer tr.Close(TransportID)

	require.Zero(t, sim.RxLevel())
	require.NoError(t, sim.Feed(context.Background(), []byte("ok")))
	require.Eventually(t, func() bool { return string(c.bytes()) == "ok" },
		time.Second, time.Millisecond)
}

func Test_Receive_PreservesOrder(t *testing.T) {
	f := openFixture(t, Config{}, uart.SimConfig{}, nil)

	want := pattern(3000)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.sim.Feed(ctx, want))

	require.Eventually(t, func() bool { return len(f.c.bytes()) == len(want) },
		5*time.Second, time.Millisecond)
	require.Equal(t, want, f.c.bytes())
	require.Zero(t, f.sim.Lost())

	s := f.tr.Stats()
	require.Equal(t, uint64(len(want)), s.RxBytes)
	require.GreaterOrEqual(t, s.Deliveries, uint64(3), "a 3000 byte stream wraps a 1024 byte ring")
}

func Test_Write_SendsBytes(t *testing.T) {
	f := openFixture(t, Config{}, uart.SimConfig{AutoDrain: true}, nil)

	reset := []byte{0x01, 0x03, 0x0c, 0x00}
	require.NoError(t, f.tr.Write(context.Background(), TransportID, reset))
	require.Eventually(t, func() bool { return string(f.sim.Sent()) == string(reset) },
		time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return f.sim.EnabledInterrupts()&uart.IntTX == 0 },
		time.Second, time.Millisecond, "tx interrupt disabled once the ring drains")
}

func Test_Write_WrapsRing(t *testing.T) {
	f := openFixture(t, Config{TxBufferSize: 32, WritePoll: 1}, uart.SimConfig{AutoDrain: true}, nil)

	want := pattern(500)
	for p := want; len(p) > 0; {
		n := min(len(p), 23)
		require.NoError(t, f.tr.Write(context.Background(), TransportID, p[:n]))
		p = p[n:]
	}
	require.Eventually(t, func() bool { return len(f.sim.Sent()) == len(want) },
		time.Second, time.Millisecond)
	require.Equal(t, want, f.sim.Sent())
	require.Equal(t, uint64(len(want)), f.tr.Stats().TxBytes)
}

func Test_Write_Rejects(t *testing.T) {
	f := openFixture(t, Config{TxBufferSize: 16}, uart.SimConfig{}, nil)
	ctx := context.Background()

	err := f.tr.Write(ctx, TransportID, make([]byte, 17))
	require.ErrorIs(t, err, ErrWritingToPort)
	require.ErrorIs(t, err, ErrTooLarge)

	err = f.tr.Write(ctx, TransportID, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	err = f.tr.Write(ctx, 2, []byte{1})
	require.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, f.tr.Close(TransportID))
	err = f.tr.Write(ctx, TransportID, []byte{1})
	require.ErrorIs(t, err, ErrWritingToPort)
	require.ErrorIs(t, err, ErrNotOpen)
}

func Test_Write_WaitsForRoom(t *testing.T) {
	f := openFixture(t, Config{TxBufferSize: 8, WritePoll: 1}, uart.SimConfig{FIFODepth: 4}, nil)

	// 4 bytes go to the FIFO and 4 stay in the ring.
	require.NoError(t, f.tr.Write(context.Background(), TransportID, []byte("abcdefgh")))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := f.tr.Write(ctx, TransportID, []byte("ijklmnop"))
	require.ErrorIs(t, err, ErrWritingToPort)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- f.tr.Write(context.Background(), TransportID, []byte("ijklmnop")) }()
	require.Eventually(t, func() bool {
		f.sim.DrainTX()
		return string(f.sim.Sent()) == "abcdefghijklmnop"
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, <-done)
}

func Test_FlowControl_Hysteresis(t *testing.T) {
	c := newGatedCollector()
	f := openFixture(t, Config{RxBufferSize: 64, XOFF: 16, XON: 32}, uart.SimConfig{}, c)
	require.Equal(t, 1, f.sim.FlowOnCount())

	want := pattern(200)
	fed := make(chan error, 1)
	go func() { fed <- f.sim.Feed(context.Background(), want) }()

	<-c.entered
	require.Eventually(t, func() bool { return !f.sim.RTS() }, time.Second, time.Millisecond)
	require.Equal(t, 1, f.sim.FlowOffCount(), "no flow on while the consumer is stalled")
	require.LessOrEqual(t, f.tr.Stats().RxBytes, uint64(64))

	close(c.gate)
	require.NoError(t, <-fed)
	require.Eventually(t, func() bool { return len(c.bytes()) == len(want) },
		2*time.Second, time.Millisecond)
	require.Equal(t, want, c.bytes())
	require.Eventually(t, f.sim.RTS, time.Second, time.Millisecond)

	// Every crossing of XOFF is matched by exactly one crossing of XON.
	st := f.tr.Stats()
	require.Positive(t, st.FlowOffs)
	require.Equal(t, st.FlowOffs, st.FlowOns)
	require.Equal(t, int(st.FlowOffs), f.sim.FlowOffCount())
	require.Equal(t, int(st.FlowOns)+1, f.sim.FlowOnCount(), "plus the assert at open")
	require.Zero(t, f.sim.Lost())
}

func Test_Overrun_Recovers(t *testing.T) {
	c := newGatedCollector()
	f := openFixture(t, Config{RxBufferSize: 32, XOFF: 8, XON: 16}, uart.SimConfig{FIFODepth: 16}, c)
	want := pattern(40)

	// The first burst fills half the ring and stalls the consumer.
	require.Equal(t, 16, f.sim.Inject(want[:16]))
	<-c.entered
	require.Zero(t, f.sim.RxLevel())

	// The second reaches XOFF with bytes still in the FIFO.
	require.Equal(t, 16, f.sim.Inject(want[16:32]))
	require.Eventually(t, func() bool { return f.tr.Stats().Overruns == 1 },
		time.Second, time.Millisecond)
	require.False(t, f.sim.RTS())
	require.Zero(t, f.sim.EnabledInterrupts()&(uart.IntRX|uart.IntRT))
	require.Equal(t, 8, f.sim.RxLevel())

	require.Equal(t, 8, f.sim.Inject(want[32:]))

	close(c.gate)
	require.Eventually(t, func() bool { return len(c.bytes()) == len(want) },
		time.Second, time.Millisecond)
	require.Equal(t, want, c.bytes())
	require.Zero(t, f.sim.Lost())
	require.Eventually(t, func() bool {
		return f.sim.EnabledInterrupts()&(uart.IntRX|uart.IntRT) == uart.IntRX|uart.IntRT
	}, time.Second, time.Millisecond, "rx re-enabled after the consumer frees space")
}

func Test_Close_EndOfStream(t *testing.T) {
	f := openFixture(t, Config{}, uart.SimConfig{}, nil)

	require.NoError(t, f.sim.Feed(context.Background(), []byte("hello")))
	require.Eventually(t, func() bool { return string(f.c.bytes()) == "hello" },
		time.Second, time.Millisecond)

	require.NoError(t, f.tr.Close(TransportID))
	require.Equal(t, 1, f.c.endCount())
	require.False(t, f.tr.IsOpen())
	require.False(t, f.sim.ResetReleased())
	require.Zero(t, f.sim.EnabledInterrupts())

	f.sim.Inject([]byte("late"))
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, "hello", string(f.c.bytes()))
	require.Equal(t, 1, f.c.endCount())

	require.ErrorIs(t, f.tr.Close(TransportID), ErrNotOpen)
}

func Test_Reopen(t *testing.T) {
	f := openFixture(t, Config{}, uart.SimConfig{}, nil)

	_, err := f.tr.Open(DriverInfo{BaudRate: 115200}, f.c)
	require.ErrorIs(t, err, ErrUnableToOpenTransport)
	require.ErrorIs(t, err, ErrAlreadyOpen)

	require.NoError(t, f.tr.Close(TransportID))

	c := &collector{}
	_, err = f.tr.Open(DriverInfo{BaudRate: 921600}, c)
	require.NoError(t, err)
	require.Equal(t, 1, f.sim.SetupCalls(), "setup runs on the first open only")
	require.Equal(t, uint32(921600), f.sim.Baud())

	f.sim.Inject([]byte("again"))
	require.Eventually(t, func() bool { return string(c.bytes()) == "again" },
		time.Second, time.Millisecond)
	require.Empty(t, f.c.bytes())
	require.NoError(t, f.tr.Close(TransportID))
	require.Equal(t, 1, c.endCount())
}

func Test_Reopen_AfterSlowHandler(t *testing.T) {
	c := newGatedCollector()
	f := openFixture(t, Config{CloseGrace: 5 * time.Millisecond}, uart.SimConfig{}, c)

	f.sim.Inject([]byte("slow"))
	<-c.entered

	f.tr.irq.Lock()
	old := f.tr.sess
	f.tr.irq.Unlock()

	closed := make(chan error, 1)
	go func() { closed <- f.tr.Close(TransportID) }()
	time.Sleep(20 * time.Millisecond) // past the grace period

	// Hold the interrupt lock so the old thread finishes its delivery and
	// queues behind the reopen.
	f.tr.irq.Lock()
	close(c.gate)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		f.tr.irq.Unlock()
		t.Fatal("close did not return after the handler finished")
	}
	require.Equal(t, 1, c.endCount())

	next := &collector{}
	opened := make(chan error, 1)
	go func() {
		_, err := f.tr.Open(DriverInfo{BaudRate: 115200}, next)
		opened <- err
	}()
	time.Sleep(5 * time.Millisecond)
	f.tr.irq.Unlock()
	require.NoError(t, <-opened)

	select {
	case <-old.thread.Done():
	case <-time.After(time.Second):
		t.Fatal("old rx thread did not exit")
	}

	f.tr.irq.Lock()
	free, size := f.tr.rx.free, f.tr.rx.size()
	f.tr.irq.Unlock()
	require.Equal(t, size, free, "stale delivery must not credit the new session's ring")

	f.sim.Inject([]byte("fresh"))
	require.Eventually(t, func() bool { return string(next.bytes()) == "fresh" },
		time.Second, time.Millisecond)
	require.Equal(t, "slow", string(c.bytes()))
}

func Test_Open_Rejects(t *testing.T) {
	sim := uart.NewSim(uart.SimConfig{})
	defer sim.Close()
	tr, err := New(sim, osal.RTOS(osal.NewSystemClock()), Config{})
	require.NoError(t, err)

	_, err = tr.Open(DriverInfo{BaudRate: 115200}, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = tr.Open(DriverInfo{}, &collector{})
	require.ErrorIs(t, err, ErrInvalidParameter)
	require.False(t, tr.IsOpen())
}

func Test_Open_CooperativePlatform(t *testing.T) {
	sim := uart.NewSim(uart.SimConfig{})
	defer sim.Close()
	tr, err := New(sim, osal.NoOS(osal.NewSystemClock()), Config{})
	require.NoError(t, err)

	c := &collector{}
	_, err = tr.Open(DriverInfo{BaudRate: 115200}, c)
	require.ErrorIs(t, err, ErrUnableToOpenTransport)
	require.ErrorIs(t, err, osal.ErrUnsupported)

	var code Error
	require.ErrorAs(t, err, &code)
	require.Equal(t, -1, code.Code())
	require.False(t, tr.IsOpen())
	require.Zero(t, c.endCount())
}

func Test_Reconfigure(t *testing.T) {
	f := openFixture(t, Config{}, uart.SimConfig{}, nil)

	require.NoError(t, f.tr.Reconfigure(TransportID, ReconfigureData{Command: ChangeParameters, BaudRate: 3000000}))
	require.Equal(t, uint32(3000000), f.sim.Baud())

	require.ErrorIs(t, f.tr.Reconfigure(TransportID, ReconfigureData{}), ErrInvalidParameter)
	require.ErrorIs(t, f.tr.Reconfigure(5, ReconfigureData{BaudRate: 9600}), ErrNotOpen)
}

func Test_New_ValidatesConfig(t *testing.T) {
	sim := uart.NewSim(uart.SimConfig{})
	defer sim.Close()
	plat := osal.RTOS(osal.NewSystemClock())

	_, err := New(sim, plat, Config{RxBufferSize: 64, XOFF: 32, XON: 16})
	require.ErrorIs(t, err, ErrConfig)
	_, err = New(sim, plat, Config{RxBufferSize: 64, XOFF: 16, XON: 64})
	require.ErrorIs(t, err, ErrConfig)
	_, err = New(nil, plat, Config{})
	require.ErrorIs(t, err, ErrConfig)

	tr, err := New(sim, plat, Config{})
	require.NoError(t, err)
	require.Equal(t, DefaultRxBufferSize, tr.Config().RxBufferSize)
	require.Equal(t, DefaultXON, tr.Config().XON)
}

func Test_Error_Codes(t *testing.T) {
	require.Equal(t, -2, ErrReadingFromPort.Code())
	require.Equal(t, "hcitrans: error writing to port", ErrWritingToPort.Error())
	require.Equal(t, "hcitrans: error -9", Error(-9).Error())
	require.Equal(t, ErrWritingToPort, fail(ErrWritingToPort, nil))
}
