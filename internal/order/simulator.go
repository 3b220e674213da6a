package order

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"bag-service/internal/bag"
	"bag-service/internal/models"
	"bag-service/internal/util"

	"go.uber.org/zap"
)

// DefaultDelay is how long a placement stays PLACING
const DefaultDelay = 3 * time.Second

var (
	// ErrCancelled resolves a placement abandoned before confirmation
	ErrCancelled = errors.New("order placement cancelled")
	// ErrClosed is returned by a simulator after Close
	ErrClosed = errors.New("order simulator closed")
)

// ConfirmFunc runs after a record is persisted, before the placement resolves
type ConfirmFunc func(ctx context.Context, record models.OrderRecord) error

// ObserverFunc receives every status transition
type ObserverFunc func(update models.OrderStatusUpdate)

// Request is the bag snapshot an order is placed from
type Request struct {
	Items   []models.LineItem
	Promo   models.PromoState
	Summary models.Summary
}

// Simulator drives IDLE -> PLACING -> CONFIRMED over a delayed task.
// A failed write moves to FAILED and keeps the bag for a retry.
type Simulator struct {
	history      *History
	delay        time.Duration
	deliveryDays int
	after        func(d time.Duration) <-chan time.Time
	now          func() time.Time
	intn         func(n int) int
	onConfirm    ConfirmFunc
	observer     ObserverFunc
	logger       *zap.Logger

	mu      sync.Mutex
	status  models.OrderStatus
	last    *models.OrderRecord
	lastErr error
	pending *Pending
	closed  bool
	wg      sync.WaitGroup
}

// Option configures a Simulator
type Option func(*Simulator)

// WithDelay sets how long a placement stays PLACING
func WithDelay(d time.Duration) Option {
	return func(s *Simulator) {
		s.delay = d
	}
}

// WithAfter replaces time.After, mainly for tests
func WithAfter(after func(d time.Duration) <-chan time.Time) Option {
	return func(s *Simulator) {
		s.after = after
	}
}

// WithNow replaces the clock
func WithNow(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

// WithRand replaces the order number source; intn returns a value in [0, n)
func WithRand(intn func(n int) int) Option {
	return func(s *Simulator) {
		s.intn = intn
	}
}

// WithDeliveryDays sets the delivery estimate
func WithDeliveryDays(days int) Option {
	return func(s *Simulator) {
		s.deliveryDays = days
	}
}

// WithOnConfirm sets the callback run after a record is persisted
func WithOnConfirm(fn ConfirmFunc) Option {
	return func(s *Simulator) {
		s.onConfirm = fn
	}
}

// WithObserver sets the status transition observer
func WithObserver(fn ObserverFunc) Option {
	return func(s *Simulator) {
		s.observer = fn
	}
}

// NewSimulator creates an idle simulator persisting into history
func NewSimulator(history *History, opts ...Option) *Simulator {
	s := &Simulator{
		history:      history,
		delay:        DefaultDelay,
		deliveryDays: DefaultDeliveryDays,
		after:        time.After,
		now:          time.Now,
		intn:         rand.IntN,
		status:       models.OrderStatusIdle,
		logger:       util.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pending is the future result of a placement
type Pending struct {
	sim        *Simulator
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	committing bool
	startedAt  time.Time
	prev       models.OrderStatus

	record     models.OrderRecord
	err        error
	confirmErr error
}

// Done is closed once the placement resolves
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the placement resolves or ctx ends
func (p *Pending) Wait(ctx context.Context) (models.OrderRecord, error) {
	select {
	case <-p.done:
		return p.record, p.err
	case <-ctx.Done():
		return models.OrderRecord{}, ctx.Err()
	}
}

// ConfirmErr returns the error of the confirm callback once the placement
// resolves. The record is persisted even when it is non-nil.
func (p *Pending) ConfirmErr() error {
	select {
	case <-p.done:
		return p.confirmErr
	default:
		return nil
	}
}

// Cancel abandons the placement unless its record is already being written
func (p *Pending) Cancel() {
	p.sim.cancel(p)
}

// PlaceOrder snapshots req and starts a delayed placement.
// The returned Pending outlives ctx; only its trace values are kept.
func (s *Simulator) PlaceOrder(ctx context.Context, req Request) (*Pending, error) {
	if len(req.Items) == 0 {
		return nil, models.ErrEmptyCart
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.status == models.OrderStatusPlacing {
		return nil, models.ErrOrderInProgress
	}

	snapshot := Request{
		Items:   bag.CloneLineItems(req.Items),
		Promo:   req.Promo,
		Summary: req.Summary,
	}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &Pending{
		sim:       s,
		ctx:       taskCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: s.now(),
		prev:      s.status,
	}

	s.pending = p
	s.status = models.OrderStatusPlacing
	s.lastErr = nil
	util.OrdersPlacingTotal.Inc()
	s.notify(models.OrderStatusPlacing, nil, nil)

	s.wg.Add(1)
	go s.run(p, snapshot)

	return p, nil
}

func (s *Simulator) run(p *Pending, req Request) {
	defer s.wg.Done()
	defer p.cancel()

	select {
	case <-p.ctx.Done():
		return
	case <-s.after(s.delay):
	}

	s.mu.Lock()
	if p.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	p.committing = true
	s.mu.Unlock()

	now := s.now()
	record := models.OrderRecord{
		OrderNumber:   GenerateOrderNumber(now, s.intn),
		Items:         req.Items,
		DeliveryDate:  DeliveryDate(now, s.deliveryDays),
		OrderDate:     now,
		PromoCode:     req.Promo.Code,
		PromoDiscount: req.Promo.DiscountAmount,
		Summary:       req.Summary,
	}

	if err := s.history.Append(p.ctx, record); err != nil {
		util.OrdersFailedTotal.WithLabelValues("storage").Inc()
		s.logger.Error("Order placement failed", zap.Error(err))
		s.resolve(p, models.OrderStatusFailed, models.OrderRecord{}, err)
		return
	}

	var confirmErr error
	if s.onConfirm != nil {
		if confirmErr = s.onConfirm(p.ctx, record); confirmErr != nil {
			util.StorageErrorsTotal.WithLabelValues("order_confirm").Inc()
			s.logger.Error("Failed to clear bag after order",
				zap.String("order_number", record.OrderNumber),
				zap.Error(confirmErr))
		}
	}

	util.OrdersConfirmedTotal.Inc()
	util.OrderPlacementLatency.Observe(now.Sub(p.startedAt).Seconds())
	s.logger.Info("Order confirmed",
		zap.String("order_number", record.OrderNumber),
		zap.Int("items", len(record.Items)))
	p.confirmErr = confirmErr
	s.resolve(p, models.OrderStatusConfirmed, record, nil)
}

// resolve settles p. A confirm error does not fail the placement; it is
// reported as the status error next to the confirmed record.
func (s *Simulator) resolve(p *Pending, status models.OrderStatus, record models.OrderRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.record = record
	p.err = err

	if s.pending == p {
		s.pending = nil
	}
	s.status = status
	s.lastErr = err
	if err == nil {
		s.last = &p.record
		s.lastErr = p.confirmErr
	}
	s.notify(status, s.last, s.lastErr)
	close(p.done)
}

func (s *Simulator) cancel(p *Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(p)
}

func (s *Simulator) cancelLocked(p *Pending) {
	if p.committing || p.ctx.Err() != nil {
		return
	}
	p.cancel()
	p.err = ErrCancelled

	if s.pending == p {
		s.pending = nil
		s.status = p.prev
		s.notify(s.status, s.last, nil)
	}
	util.OrdersCancelledTotal.Inc()
	close(p.done)
}

// notify must be called with s.mu held. The observer must not call back into s.
func (s *Simulator) notify(status models.OrderStatus, record *models.OrderRecord, err error) {
	if s.observer == nil {
		return
	}
	update := models.OrderStatusUpdate{
		Status:    status,
		Timestamp: s.now(),
	}
	if record != nil && status == models.OrderStatusConfirmed {
		rec := *record
		update.Order = &rec
	}
	setError(&update, err)
	s.observer(update)
}

// Status returns the current state, the last confirmed order and the last failure
func (s *Simulator) Status() models.OrderStatusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	update := models.OrderStatusUpdate{
		Status:    s.status,
		Timestamp: s.now(),
	}
	if s.last != nil {
		rec := *s.last
		update.Order = &rec
	}
	setError(&update, s.lastErr)
	return update
}

func setError(update *models.OrderStatusUpdate, err error) {
	if err == nil {
		return
	}
	update.Error = err.Error()
	var bagErr *models.Error
	if errors.As(err, &bagErr) {
		update.Retryable = bagErr.Retryable()
	}
}

// Placing reports whether a placement is in flight
func (s *Simulator) Placing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == models.OrderStatusPlacing
}

// Close cancels any pending placement and waits for its task to exit
func (s *Simulator) Close() {
	s.mu.Lock()
	s.closed = true
	if s.pending != nil {
		s.cancelLocked(s.pending)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
