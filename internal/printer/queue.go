package printer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/playhouse/internal/billing"
	"github.com/mmeshcher/playhouse/internal/metrics"
)

// ErrQueueFull возвращается, если очередь печати переполнена.
var ErrQueueFull = errors.New("print queue is full")

const (
	// DefaultQueueSize задаёт ёмкость очереди печати по умолчанию.
	DefaultQueueSize = 64

	// DefaultDrainTimeout ограничивает допечатку оставшихся чеков при остановке.
	DefaultDrainTimeout = 5 * time.Second
)

// Printer печатает один чек.
type Printer interface {
	Print(ctx context.Context, r billing.Receipt) error
}

type retryAfter interface {
	RetryAfter() time.Duration
}

// Queue принимает чеки после фиксации оплаты и печатает их в фоне.
// Ошибки печати логируются и не влияют на уже сохранённый расчёт.
type Queue struct {
	jobs     chan billing.Receipt
	printer  Printer
	logger   *zap.Logger
	metrics  *metrics.Metrics
	attempts int
	backoff  time.Duration
	drainFor time.Duration
}

// NewQueue создаёт очередь печати заданной ёмкости.
func NewQueue(p Printer, size int, logger *zap.Logger, m *metrics.Metrics) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		jobs:     make(chan billing.Receipt, size),
		printer:  p,
		logger:   logger,
		metrics:  m,
		attempts: 3,
		backoff:  time.Second,
		drainFor: DefaultDrainTimeout,
	}
}

// Publish ставит чек в очередь печати без блокировки.
func (q *Queue) Publish(r billing.Receipt) error {
	select {
	case q.jobs <- r:
		q.metrics.QueueLength(len(q.jobs))
		return nil
	default:
		q.metrics.PrintJob("dropped")
		return ErrQueueFull
	}
}

// Run печатает чеки из очереди до отмены контекста. После отмены оставшиеся чеки
// допечатываются в пределах drainFor, непропечатанные учитываются как потерянные.
func (q *Queue) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			q.drain()
			return nil
		}

		select {
		case <-ctx.Done():
		case r := <-q.jobs:
			q.metrics.QueueLength(len(q.jobs))
			q.print(ctx, r)
		}
	}
}

func (q *Queue) drain() {
	pending := len(q.jobs)
	if pending == 0 {
		return
	}
	q.logger.Info("draining print queue", zap.Int("pending", pending))

	ctx, cancel := context.WithTimeout(context.Background(), q.drainFor)
	defer cancel()

	for ctx.Err() == nil {
		select {
		case r := <-q.jobs:
			q.metrics.QueueLength(len(q.jobs))
			q.print(ctx, r)
		default:
			return
		}
	}

	dropped := len(q.jobs)
	if dropped == 0 {
		return
	}
	for i := 0; i < dropped; i++ {
		q.metrics.PrintJob("dropped")
	}
	q.logger.Warn("print queue stopped with unprinted receipts", zap.Int("dropped", dropped))
}

func (q *Queue) print(ctx context.Context, r billing.Receipt) {
	var err error
	for i := 0; i < q.attempts; i++ {
		err = q.printer.Print(ctx, r)
		if err == nil {
			q.metrics.PrintJob("ok")
			q.logger.Info("receipt printed", zap.String("session_id", r.SessionID))
			return
		}

		if ctx.Err() != nil {
			break
		}

		delay := q.backoff
		var ra retryAfter
		if errors.As(err, &ra) && ra.RetryAfter() > 0 {
			delay = ra.RetryAfter()
		}

		if i == q.attempts-1 {
			break
		}

		q.logger.Warn("print attempt failed",
			zap.String("session_id", r.SessionID),
			zap.Int("attempt", i+1),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			q.metrics.PrintJob("failed")
			q.logger.Error("receipt not printed", zap.String("session_id", r.SessionID), zap.Error(err))
			return
		case <-timer.C:
		}
	}

	q.metrics.PrintJob("failed")
	q.logger.Error("receipt not printed", zap.String("session_id", r.SessionID), zap.Error(err))
}
