package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bag-service/internal/bag"
	"bag-service/internal/broker"
	"bag-service/internal/cart"
	"bag-service/internal/catalog"
	"bag-service/internal/models"
	"bag-service/internal/order"
	"bag-service/internal/promo"
	"bag-service/internal/store"
	"bag-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

// ErrSessionClosed is returned by a bag service after Close
var ErrSessionClosed = errors.New("bag session closed")

// EventPublisher receives bag lifecycle events
type EventPublisher interface {
	PublishOrderPlacing(ctx context.Context, sessionID string, summary models.Summary) error
	PublishOrderConfirmed(ctx context.Context, sessionID string, record models.OrderRecord) error
	PublishOrderFailed(ctx context.Context, sessionID, reason string) error
	PublishPromoApplied(ctx context.Context, sessionID string, result models.PromoResult) error
}

// Notifier receives order status transitions. Notify must not block.
type Notifier interface {
	Notify(update models.OrderStatusUpdate)
}

// Config holds what every bag service shares
type Config struct {
	Catalog         *catalog.Catalog
	Promos          *promo.Engine
	Publisher       EventPublisher
	Notifier        Notifier
	ConvenienceFee  decimal.Decimal
	Currency        currency.Unit
	AllowDuplicates bool
	OrderOptions    []order.Option
}

// BagView is the rendered state of a bag
type BagView struct {
	Items   []models.LineItem `json:"items"`
	Summary models.Summary    `json:"summary"`
	Promo   models.PromoState `json:"promo"`
}

// BagService owns one session's cart, promo state and order simulator.
// Mutations are persisted before derived state is read.
type BagService struct {
	sessionID       string
	catalog         *catalog.Catalog
	cart            *cart.Store
	history         *order.History
	promos          *promo.Engine
	sim             *order.Simulator
	publisher       EventPublisher
	notifier        Notifier
	fee             decimal.Decimal
	currency        string
	allowDuplicates bool
	logger          *zap.Logger

	mu     sync.Mutex
	promo  models.PromoState
	closed bool
	wg     sync.WaitGroup
}

// NewBagService loads the session's cart from storage
func NewBagService(ctx context.Context, sessionID string, storage store.Storage, cfg Config) (*BagService, error) {
	ctx, span := util.StartSessionSpan(ctx, "BagService.New", sessionID)
	defer span.End()

	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Promos == nil {
		cfg.Promos = promo.NewDefaultEngine()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = broker.NopPublisher{}
	}
	if cfg.Currency == (currency.Unit{}) {
		cfg.Currency = currency.INR
	}

	s := &BagService{
		sessionID:       sessionID,
		catalog:         cfg.Catalog,
		cart:            cart.NewStore(storage),
		history:         order.NewHistory(storage),
		promos:          cfg.Promos,
		publisher:       cfg.Publisher,
		notifier:        cfg.Notifier,
		fee:             cfg.ConvenienceFee,
		currency:        cfg.Currency.String(),
		allowDuplicates: cfg.AllowDuplicates,
		promo:           models.PromoState{DiscountAmount: decimal.Zero},
		logger:          util.SessionLogger(sessionID),
	}

	opts := append([]order.Option{}, cfg.OrderOptions...)
	opts = append(opts, order.WithOnConfirm(s.onOrderConfirmed), order.WithObserver(s.onStatus))
	s.sim = order.NewSimulator(s.history, opts...)

	if _, err := s.cart.Load(ctx); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return s, nil
}

// SessionID returns the session the service belongs to
func (s *BagService) SessionID() string {
	return s.sessionID
}

// LineItems returns the resolved contents of the bag
func (s *BagService) LineItems(ctx context.Context) []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lineItems()
}

// Summary returns the price details of the bag with the active promo applied
func (s *BagService) Summary(ctx context.Context) models.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary(s.lineItems())
}

// Promo returns the active promo
func (s *BagService) Promo() models.PromoState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promo
}

// View returns items, summary and promo from one consistent read
func (s *BagService) View(ctx context.Context) BagView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// AddItem adds an artwork. Unless duplicates are allowed an artwork already
// in the bag is not added again; added reports whether the bag changed.
func (s *BagService) AddItem(ctx context.Context, artworkID int64) (bool, error) {
	ctx, span := util.StartSessionSpan(ctx, "BagService.AddItem", s.sessionID)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAddable(artworkID); err != nil {
		util.RecordError(span, err)
		return false, err
	}

	added := true
	var err error
	if s.allowDuplicates {
		err = s.cart.Add(ctx, artworkID)
	} else {
		added, err = s.cart.AddUnique(ctx, artworkID)
	}
	if err != nil {
		util.RecordError(span, err)
		return false, err
	}

	s.recordAdd(artworkID, added)
	s.reprice()
	return added, nil
}

// BuyNow adds an artwork if it is not already in the bag, whatever the duplicate policy
func (s *BagService) BuyNow(ctx context.Context, artworkID int64) (bool, error) {
	ctx, span := util.StartSessionSpan(ctx, "BagService.BuyNow", s.sessionID)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAddable(artworkID); err != nil {
		util.RecordError(span, err)
		return false, err
	}

	added, err := s.cart.AddUnique(ctx, artworkID)
	if err != nil {
		util.RecordError(span, err)
		return false, err
	}

	s.recordAdd(artworkID, added)
	s.reprice()
	return added, nil
}

// RemoveItem removes every occurrence of an artwork and returns how many were removed
func (s *BagService) RemoveItem(ctx context.Context, artworkID int64) (int, error) {
	ctx, span := util.StartSessionSpan(ctx, "BagService.RemoveItem", s.sessionID)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutable(); err != nil {
		return 0, err
	}

	removed, err := s.cart.Remove(ctx, artworkID)
	if err != nil {
		util.RecordError(span, err)
		return 0, err
	}

	util.BagItemsRemovedTotal.Add(float64(removed))
	s.logger.Info("Artwork removed from bag",
		zap.Int64("artwork_id", artworkID),
		zap.Int("removed", removed))
	s.reprice()
	return removed, nil
}

// ClearCart empties the bag and drops the active promo. It also retries a
// clear that failed to persist after an order was confirmed.
func (s *BagService) ClearCart(ctx context.Context) error {
	ctx, span := util.StartSessionSpan(ctx, "BagService.ClearCart", s.sessionID)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutable(); err != nil {
		return err
	}
	err := s.clear(ctx)
	util.RecordError(span, err)
	return err
}

// ApplyPromo evaluates code against the bag. A rejected code is reported
// through the result and keeps the active promo.
func (s *BagService) ApplyPromo(ctx context.Context, code string) models.PromoResult {
	ctx, span := util.StartSessionSpan(ctx, "BagService.ApplyPromo", s.sessionID)
	defer span.End()

	s.mu.Lock()
	var result models.PromoResult
	if s.sim.Placing() {
		result = models.PromoResult{
			Code:           s.promo.Code,
			DiscountAmount: s.promo.DiscountAmount,
			Message:        models.MsgOrderPlacing,
		}
	} else {
		result = s.promos.Apply(code, s.lineItems(), s.promo)
	}
	if result.OK {
		s.promo = result.State()
	}
	s.mu.Unlock()

	util.PromoApplicationsTotal.WithLabelValues(promoResultLabel(result)).Inc()
	if !result.OK {
		s.logger.Info("Promo code rejected", zap.String("code", code), zap.String("reason", result.Message))
		return result
	}

	s.logger.Info("Promo code applied",
		zap.String("code", result.Code),
		zap.String("discount", result.DiscountAmount.String()))
	if err := s.publisher.PublishPromoApplied(ctx, s.sessionID, result); err != nil {
		s.logger.Error("Failed to publish PromoApplied event", zap.Error(err))
	}
	return result
}

// PlaceOrder starts a delayed placement of the current bag
func (s *BagService) PlaceOrder(ctx context.Context) (*order.Pending, error) {
	ctx, span := util.StartSessionSpan(ctx, "BagService.PlaceOrder", s.sessionID)
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}

	items := s.lineItems()
	summary := s.summary(items)
	pending, err := s.sim.PlaceOrder(ctx, order.Request{
		Items:   items,
		Promo:   s.promo,
		Summary: summary,
	})
	if err == nil {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if err != nil {
		util.RecordError(span, err)
		s.logger.Info("Order placement rejected", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Placing order",
		zap.Int("items", summary.ItemCount),
		zap.String("final_total", summary.FinalTotal.String()))
	if err := s.publisher.PublishOrderPlacing(ctx, s.sessionID, summary); err != nil {
		s.logger.Error("Failed to publish OrderPlacing event", zap.Error(err))
	}

	go s.watch(context.WithoutCancel(ctx), pending)
	return pending, nil
}

// Status returns the order simulator state
func (s *BagService) Status() models.OrderStatusUpdate {
	update := s.sim.Status()
	update.SessionID = s.sessionID
	return update
}

// Orders returns the session's order history, oldest first
func (s *BagService) Orders(ctx context.Context) ([]models.OrderRecord, error) {
	ctx, span := util.StartSessionSpan(ctx, "BagService.Orders", s.sessionID)
	defer span.End()

	return s.history.List(ctx)
}

// Order returns one order by number
func (s *BagService) Order(ctx context.Context, orderNumber string) (models.OrderRecord, error) {
	ctx, span := util.StartSessionSpan(ctx, "BagService.Order", s.sessionID)
	defer span.End()

	return s.history.Find(ctx, orderNumber)
}

// Close cancels a pending placement and waits for background work to finish
func (s *BagService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.sim.Close()
	s.wg.Wait()
	s.logger.Debug("Bag session closed")
}

func (s *BagService) cartDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Dirty()
}

// must hold s.mu
func (s *BagService) checkMutable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.sim.Placing() {
		return models.ErrOrderInProgress
	}
	return nil
}

// must hold s.mu
func (s *BagService) checkAddable(artworkID int64) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	if _, ok := s.catalog.Find(artworkID); !ok {
		return models.ErrArtworkNotFound
	}
	return nil
}

func (s *BagService) recordAdd(artworkID int64, added bool) {
	if !added {
		util.BagItemsDuplicateTotal.Inc()
		s.logger.Debug("Artwork already in bag", zap.Int64("artwork_id", artworkID))
		return
	}
	util.BagItemsAddedTotal.Inc()
	s.logger.Info("Artwork added to bag", zap.Int64("artwork_id", artworkID))
}

// onOrderConfirmed runs on the simulator goroutine after the record is persisted.
// The bag and promo are emptied even when the cleared bag cannot be written,
// so the confirmed items cannot be ordered twice.
func (s *BagService) onOrderConfirmed(ctx context.Context, record models.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.promo = models.PromoState{DiscountAmount: decimal.Zero}
	if err := s.cart.Reset(ctx); err != nil {
		return err
	}
	util.BagClearedTotal.Inc()
	return nil
}

// onStatus runs under the simulator lock
func (s *BagService) onStatus(update models.OrderStatusUpdate) {
	if s.notifier == nil {
		return
	}
	update.SessionID = s.sessionID
	s.notifier.Notify(update)
}

func (s *BagService) watch(ctx context.Context, pending *order.Pending) {
	defer s.wg.Done()

	<-pending.Done()
	record, err := pending.Wait(ctx)
	switch {
	case err == nil:
		if confirmErr := pending.ConfirmErr(); confirmErr != nil {
			s.logger.Warn("Order confirmed but the cleared bag was not saved",
				zap.String("order_number", record.OrderNumber),
				zap.Error(confirmErr))
		}
		if err := s.publisher.PublishOrderConfirmed(ctx, s.sessionID, record); err != nil {
			s.logger.Error("Failed to publish OrderConfirmed event", zap.Error(err))
		}
	case errors.Is(err, order.ErrCancelled):
		s.logger.Info("Order placement cancelled")
	default:
		if err := s.publisher.PublishOrderFailed(ctx, s.sessionID, err.Error()); err != nil {
			s.logger.Error("Failed to publish OrderFailed event", zap.Error(err))
		}
	}
}

// must hold s.mu
func (s *BagService) clear(ctx context.Context) error {
	if err := s.cart.Clear(ctx); err != nil {
		return err
	}
	s.promo = models.PromoState{DiscountAmount: decimal.Zero}
	util.BagClearedTotal.Inc()
	return nil
}

// must hold s.mu
func (s *BagService) reprice() {
	s.promo = s.promos.Reprice(s.promo, s.lineItems())
}

// must hold s.mu
func (s *BagService) lineItems() []models.LineItem {
	return bag.LoadLineItems(s.cart.IDs(), s.catalog)
}

// must hold s.mu
func (s *BagService) summary(items []models.LineItem) models.Summary {
	summary := bag.ComputeSummary(items, s.promo.DiscountAmount, s.fee)
	summary.Currency = s.currency
	return summary
}

// must hold s.mu
func (s *BagService) view() BagView {
	items := s.lineItems()
	return BagView{
		Items:   items,
		Summary: s.summary(items),
		Promo:   s.promo,
	}
}

func promoResultLabel(result models.PromoResult) string {
	switch {
	case result.OK:
		return "applied"
	case result.Message == models.MsgPromoEmpty:
		return "empty"
	case result.Message == models.MsgPromoEmptyBag:
		return "empty_bag"
	case result.Message == models.MsgOrderPlacing:
		return "order_in_progress"
	default:
		return "invalid"
	}
}
