package scan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProcessFunc consumes one accepted raw text. The debouncer guarantees it is
// never invoked concurrently with itself.
type ProcessFunc func(ctx context.Context, raw string)

// DebouncerConfig tunes the scan intake. Zero values disable the
// corresponding suppression.
type DebouncerConfig struct {
	// Window drops a raw text identical to one accepted within it. Camera
	// frame sources re-decode a static code dozens of times per second.
	Window time.Duration
	// MinInterval spaces out consecutive dispatches.
	MinInterval time.Duration
	// QueueSize bounds pending raw texts; overflow is dropped, not blocked,
	// so the frame-source loop never stalls.
	QueueSize int
}

// Debouncer sits between the frame source and the pipeline: a bounded FIFO
// with a single consumer, so scans within one session process strictly in
// acceptance order with at most one dispatch in flight.
type Debouncer struct {
	cfg     DebouncerConfig
	process ProcessFunc

	mu           sync.Mutex
	pending      []string
	lastAccepted map[string]time.Time
	stopped      bool

	wake chan struct{}
	done chan struct{}

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

func NewDebouncer(cfg DebouncerConfig, process ProcessFunc) *Debouncer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Debouncer{
		cfg:          cfg,
		process:      process,
		lastAccepted: make(map[string]time.Time),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		baseCtx:      ctx,
		cancelBase:   cancel,
	}
	go d.loop()
	return d
}

// Submit offers one raw decode event. It never blocks: duplicates inside the
// window and overflow beyond the queue bound are dropped, and the return
// value reports whether the text was accepted for processing.
func (d *Debouncer) Submit(raw string) bool {
	now := time.Now()

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return false
	}

	if d.cfg.Window > 0 {
		if last, ok := d.lastAccepted[raw]; ok && now.Sub(last) < d.cfg.Window {
			d.mu.Unlock()
			return false
		}
	}

	if len(d.pending) >= d.cfg.QueueSize {
		d.mu.Unlock()
		zap.L().Warn("scan queue full, dropping submission")
		return false
	}

	d.lastAccepted[raw] = now
	d.pending = append(d.pending, raw)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Stop clears the pending queue and rejects further submissions. A dispatch
// already handed to the process func runs to completion; Stop returns once
// the consumer loop has exited.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.stopped = true
	d.pending = nil
	d.mu.Unlock()

	d.cancelBase()
	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
}

// Pending reports queued texts not yet dispatched.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) loop() {
	defer close(d.done)

	var lastDispatch time.Time
	for {
		raw, ok := d.next()
		if !ok {
			d.mu.Lock()
			stopped := d.stopped
			d.mu.Unlock()
			if stopped {
				return
			}
			<-d.wake
			continue
		}

		if d.cfg.MinInterval > 0 && !lastDispatch.IsZero() {
			if wait := d.cfg.MinInterval - time.Since(lastDispatch); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-d.baseCtx.Done():
					timer.Stop()
					return
				}
			}
		}

		lastDispatch = time.Now()
		// context.WithoutCancel: an in-flight dispatch is never cancelled
		// mid-transaction, even when the scanner stops.
		d.process(context.WithoutCancel(d.baseCtx), raw)

		d.gc()
	}
}

func (d *Debouncer) next() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return "", false
	}
	raw := d.pending[0]
	d.pending = d.pending[1:]
	return raw, true
}

func (d *Debouncer) gc() {
	if d.cfg.Window <= 0 {
		return
	}
	now := time.Now()
	d.mu.Lock()
	for raw, at := range d.lastAccepted {
		if now.Sub(at) > 4*d.cfg.Window {
			delete(d.lastAccepted, raw)
		}
	}
	d.mu.Unlock()
}
