package uart

import "sync"

// IRQ is a level-triggered interrupt line. Devices call Raise whenever a
// condition may have become pending; the line then calls the handler until
// pending reports nothing.
type IRQ struct {
	pending func() Interrupt

	mu      sync.Mutex
	handler func(Interrupt)

	kick     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewIRQ starts an interrupt line polling pending for active conditions.
func NewIRQ(pending func() Interrupt) *IRQ {
	q := &IRQ{
		pending: pending,
		kick:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Attach installs h and re-evaluates the line.
func (q *IRQ) Attach(h func(Interrupt)) {
	q.mu.Lock()
	q.handler = h
	q.mu.Unlock()
	q.Raise()
}

// Raise asks the line to re-evaluate pending conditions. It never blocks.
func (q *IRQ) Raise() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

// Stop shuts the line down and waits for an in-flight handler to return.
func (q *IRQ) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
	<-q.done
}

func (q *IRQ) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			return
		case <-q.kick:
		}

		for {
			select {
			case <-q.stop:
				return
			default:
			}

			p := q.pending()
			if p == 0 {
				break
			}
			q.mu.Lock()
			h := q.handler
			q.mu.Unlock()
			if h == nil {
				break
			}
			h(p)
		}
	}
}
