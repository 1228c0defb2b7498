package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// OverflowPolicy controls what happens when the audit queue is full.
type OverflowPolicy string

const (
	// OverflowDropOldest evicts the oldest queued record to make room.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	// OverflowRejectNew drops the incoming record instead.
	OverflowRejectNew OverflowPolicy = "reject_new"
)

func (p OverflowPolicy) Valid() bool {
	return p == OverflowDropOldest || p == OverflowRejectNew
}

const defaultQueueSize = 1000

// Log is the asynchronous audit trail. Enqueue never blocks the caller;
// a single writer goroutine drains the queue so records reach the sink
// in enqueue order.
type Log interface {
	Enqueue(rec Record) bool
	Dropped() uint64
	SinkErrors() uint64
	Close(ctx context.Context) error
}

type asyncLog struct {
	logger   *logrus.Logger
	sink     Sink
	redactor *Redactor
	queue    chan Record
	policy   OverflowPolicy
	onDrop   func()

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	release sync.Once
	dropped atomic.Uint64
	sinkErr atomic.Uint64
}

type logOptions struct {
	queueSize int
	policy    OverflowPolicy
	redactor  *Redactor
	onDrop    func()
}

type Option func(*logOptions)

func WithQueueSize(n int) Option {
	return func(o *logOptions) {
		o.queueSize = n
	}
}

func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(o *logOptions) {
		o.policy = p
	}
}

// WithRedactor masks sensitive values inside the writer goroutine
// before records reach the sink.
func WithRedactor(r *Redactor) Option {
	return func(o *logOptions) {
		o.redactor = r
	}
}

// WithDropHook is called once for every dropped record.
func WithDropHook(fn func()) Option {
	return func(o *logOptions) {
		o.onDrop = fn
	}
}

// NewLog starts the writer goroutine. The log takes ownership of the
// sink and releases it when Close returns or the queue is drained.
func NewLog(sink Sink, logger *logrus.Logger, opts ...Option) Log {
	o := logOptions{queueSize: defaultQueueSize, policy: OverflowDropOldest}
	for _, opt := range opts {
		opt(&o)
	}
	if o.queueSize <= 0 {
		o.queueSize = defaultQueueSize
	}
	if !o.policy.Valid() {
		o.policy = OverflowDropOldest
	}
	l := &asyncLog{
		logger:   logger,
		sink:     sink,
		redactor: o.redactor,
		queue:    make(chan Record, o.queueSize),
		policy:   o.policy,
		onDrop:   o.onDrop,
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Enqueue hands a record to the writer without blocking. It reports
// whether the record was accepted. Under OverflowDropOldest an accepted
// record may still be evicted by a later one.
func (l *asyncLog) Enqueue(rec Record) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		l.drop(rec, "audit log is closed, dropping record")
		return false
	}
	select {
	case l.queue <- rec:
		return true
	default:
	}
	if l.policy == OverflowDropOldest {
		select {
		case old := <-l.queue:
			l.drop(old, "audit queue full, evicting oldest record")
		default:
		}
		select {
		case l.queue <- rec:
			return true
		default:
		}
	}
	l.drop(rec, "audit queue full, dropping record")
	return false
}

func (l *asyncLog) Dropped() uint64 {
	return l.dropped.Load()
}

func (l *asyncLog) SinkErrors() uint64 {
	return l.sinkErr.Load()
}

// Close stops intake, waits for queued records to be written and
// releases the sink. Safe to call more than once.
func (l *asyncLog) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *asyncLog) run() {
	defer l.wg.Done()
	defer l.releaseSink()
	for rec := range l.queue {
		l.write(rec)
	}
}

// write applies redaction and persists a single record. A panicking
// sink must not kill the writer.
func (l *asyncLog) write(rec Record) {
	defer func() {
		if r := recover(); r != nil {
			l.sinkErr.Add(1)
			l.logger.WithFields(logrus.Fields{
				"panic":     r,
				"record_id": rec.ID,
			}).Error("audit sink panicked")
		}
	}()
	if l.redactor != nil {
		rec = l.redactor.Apply(rec)
	}
	if err := l.sink.Write(rec); err != nil {
		l.sinkErr.Add(1)
		l.logger.WithError(err).WithField("record_id", rec.ID).Error("failed to write audit record")
	}
}

func (l *asyncLog) releaseSink() {
	l.release.Do(func() {
		if err := l.sink.Flush(); err != nil {
			l.logger.WithError(err).Error("failed to flush audit sink")
		}
		if err := l.sink.Close(); err != nil {
			l.logger.WithError(err).Error("failed to close audit sink")
		}
	})
}

func (l *asyncLog) drop(rec Record, msg string) {
	l.dropped.Add(1)
	if l.onDrop != nil {
		l.onDrop()
	}
	l.logger.WithFields(logrus.Fields{
		"record_id":      rec.ID,
		"guardrail_name": rec.GuardrailName,
	}).Warn(msg)
}
