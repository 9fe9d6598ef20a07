package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/apperr"
	"github.com/yeremiapane/restaurant-ops/config"
	"github.com/yeremiapane/restaurant-ops/events"
	"github.com/yeremiapane/restaurant-ops/models"
	"github.com/yeremiapane/restaurant-ops/utils"
)

// Actor identifies who performs a staff/guest action, for auditing,
// waiter assignment and tenant scoping.
type Actor struct {
	UserID       uint
	RestaurantID uint
	Role         string
}

// Allowed reports whether the actor may touch an entity owned by
// restaurantID. Guest paths carry a zero actor and are scoped by the
// session they come through instead.
func (a Actor) Allowed(restaurantID uint) bool {
	return a.RestaurantID == 0 || a.RestaurantID == restaurantID
}

// OrderLine is one requested dish in a new order.
type OrderLine struct {
	MenuID   uint   `json:"menu_id"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
}

// OrderService owns every order and order-item transition. All writes for
// one operation happen in a single transaction; events go out only after
// commit.
type OrderService struct {
	DB     *gorm.DB
	Hub    *events.Hub
	Stock  *StockService
	Policy config.Policy
}

func NewOrderService(db *gorm.DB, hub *events.Hub, stock *StockService, policy config.Policy) *OrderService {
	return &OrderService{DB: db, Hub: hub, Stock: stock, Policy: policy}
}

// PlaceOrder creates a guest order in pending_confirmation with all items
// pending. The session must be active and OTP-verified.
func (s *OrderService) PlaceOrder(sessionID uint, lines []OrderLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("order needs at least one item")
	}
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, apperr.Validation("quantity for menu %d must be at least 1", l.MenuID)
		}
	}

	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var session models.TableSession
	if err := tx.First(&session, sessionID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("session %d not found", sessionID)
		}
		return nil, err
	}
	if session.Status != models.SessionActive {
		tx.Rollback()
		return nil, apperr.InvalidTransition("session %d is not active", sessionID)
	}
	if session.Phase != models.PhaseOTPVerified {
		tx.Rollback()
		return nil, apperr.Forbidden("ordering requires OTP verification")
	}

	now := time.Now()
	order := models.Order{
		RestaurantID: session.RestaurantID,
		TableID:      session.TableID,
		SessionID:    &session.ID,
		OrderNumber:  newOrderNumber(),
		Status:       models.OrderPendingConfirmation,
		PlacedAt:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	var total float64
	for _, line := range lines {
		var menu models.Menu
		if err := tx.Preload("Category").
			Where("id = ? AND restaurant_id = ?", line.MenuID, session.RestaurantID).
			First(&menu).Error; err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Validation("menu item %d not found", line.MenuID)
			}
			return nil, err
		}
		if !menu.Available {
			tx.Rollback()
			return nil, apperr.Validation("menu item %q is not available", menu.Name)
		}

		item := models.OrderItem{
			OrderID:        order.ID,
			MenuID:         menu.ID,
			Quantity:       line.Quantity,
			Price:          menu.Price,
			Notes:          line.Notes,
			Status:         models.ItemPending,
			KitchenStation: s.stationFor(menu),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(&item).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		total += float64(line.Quantity) * menu.Price
	}

	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("total_amount", total).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	sessionUpdates := map[string]interface{}{"last_order_at": now, "updated_at": now}
	if session.FirstOrderAt == nil {
		sessionUpdates["first_order_at"] = now
	}
	if err := tx.Model(&models.TableSession{}).Where("id = ?", session.ID).
		Updates(sessionUpdates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("order %s placed for session %d (table %d, %d lines)",
		order.OrderNumber, session.ID, session.TableID, len(lines))
	return s.publishOrder(order.ID)
}

// TransitionItem moves one item along its forward path. Re-applying the
// current status is a no-op. Reaching served triggers a best-effort stock
// deduction that never blocks or rolls back the serve.
func (s *OrderService) TransitionItem(itemID uint, target models.OrderItemStatus, actor Actor) (*models.OrderItem, error) {
	if target == models.ItemCancelled {
		return nil, apperr.InvalidTransition("items are cancelled through order-level cancellation only")
	}

	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var item models.OrderItem
	if err := tx.First(&item, itemID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order item %d not found", itemID)
		}
		return nil, err
	}

	var order models.Order
	if err := tx.First(&order, item.OrderID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if !actor.Allowed(order.RestaurantID) {
		tx.Rollback()
		return nil, apperr.Forbidden("order item %d belongs to another restaurant", item.ID)
	}

	if item.Status == target {
		// Already there, e.g. a double-tap on the display. Not an error.
		tx.Rollback()
		return &item, nil
	}
	if !item.Status.CanTransitionTo(target) {
		tx.Rollback()
		return nil, apperr.InvalidTransition("item %d cannot move from %s to %s", item.ID, item.Status, target)
	}

	now := time.Now()
	prev := item.Status
	updates := map[string]interface{}{"status": target, "updated_at": now}
	if col := itemStampColumn(&item, target); col != "" {
		updates[col] = now
	}

	res := tx.Model(&models.OrderItem{}).
		Where("id = ? AND status = ?", item.ID, prev).
		Updates(updates)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, apperr.Conflict("item %d was changed concurrently", item.ID)
	}
	item.Status = target
	stampItem(&item, target, now)

	order = models.Order{}
	if err := tx.Preload("OrderItems").First(&order, item.OrderID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := applyRecompute(tx, &order, now); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if target == models.ItemServed && s.Stock != nil {
		// Serving the dish is the authoritative event; inventory accuracy
		// is secondary, so deduction runs detached and failures are only
		// logged.
		go func(menuID uint, qty int) {
			if err := s.Stock.Deduct(menuID, qty); err != nil {
				utils.ErrorLogger.Printf("stock deduction for menu %d x%d: %v", menuID, qty, err)
			}
		}(item.MenuID, item.Quantity)
	}

	if _, err := s.publishOrder(order.ID); err != nil {
		utils.ErrorLogger.Printf("publish after item %d transition: %v", item.ID, err)
	}
	return &item, nil
}

// ConfirmOrder is the single gate between guest intent and kitchen work.
// One atomic unit: session guest count and waiter stamped, order confirmed,
// every pending item sent to its station.
func (s *OrderService) ConfirmOrder(orderID uint, guestCount int, actor Actor) (*models.Order, error) {
	if guestCount < 1 {
		return nil, apperr.Validation("guest count must be at least 1")
	}

	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	if !actor.Allowed(order.RestaurantID) {
		tx.Rollback()
		return nil, apperr.Forbidden("order %d belongs to another restaurant", orderID)
	}
	if order.Status != models.OrderPendingConfirmation {
		tx.Rollback()
		if order.Status == models.OrderConfirmed {
			return nil, apperr.Conflict("order %d is already confirmed", orderID)
		}
		return nil, apperr.InvalidTransition("order %d cannot be confirmed from %s", orderID, order.Status)
	}

	now := time.Now()
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderPendingConfirmation).
		Updates(map[string]interface{}{
			"status":       models.OrderConfirmed,
			"confirmed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, apperr.Conflict("order %d was changed concurrently", order.ID)
	}

	if err := tx.Model(&models.OrderItem{}).
		Where("order_id = ? AND status = ?", order.ID, models.ItemPending).
		Updates(map[string]interface{}{
			"status":             models.ItemSentToKitchen,
			"sent_to_kitchen_at": now,
			"updated_at":         now,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if order.SessionID != nil {
		sessionUpdates := map[string]interface{}{"guest_count": guestCount, "updated_at": now}
		if actor.UserID != 0 {
			sessionUpdates["waiter_id"] = actor.UserID
		}
		if err := tx.Model(&models.TableSession{}).Where("id = ?", *order.SessionID).
			Updates(sessionUpdates).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("order %s confirmed by user %d (guests=%d)", order.OrderNumber, actor.UserID, guestCount)
	return s.publishOrder(order.ID)
}

// RejectOrder turns down an unconfirmed order with a mandatory reason.
func (s *OrderService) RejectOrder(orderID uint, reason string, actor Actor) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	if !actor.Allowed(order.RestaurantID) {
		tx.Rollback()
		return nil, apperr.Forbidden("order %d belongs to another restaurant", orderID)
	}
	if order.Status != models.OrderPending && order.Status != models.OrderPendingConfirmation {
		tx.Rollback()
		return nil, apperr.InvalidTransition("order %d cannot be rejected from %s", orderID, order.Status)
	}

	now := time.Now()
	if err := s.cancelInTx(tx, &order, now, map[string]interface{}{
		"rejection_reason": reason,
		"rejected_at":      now,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("order %s rejected: %s", order.OrderNumber, reason)
	return s.publishOrder(order.ID)
}

// CancelOrder cancels from any non-terminal state. Items the kitchen has
// already served stay served.
func (s *OrderService) CancelOrder(orderID uint, actor Actor) (*models.Order, error) {
	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	if !actor.Allowed(order.RestaurantID) {
		tx.Rollback()
		return nil, apperr.Forbidden("order %d belongs to another restaurant", orderID)
	}
	if order.Status.Terminal() {
		tx.Rollback()
		return nil, apperr.InvalidTransition("order %d is already %s", orderID, order.Status)
	}

	now := time.Now()
	if err := s.cancelInTx(tx, &order, now, nil); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("order %s cancelled by user %d", order.OrderNumber, actor.UserID)
	return s.publishOrder(order.ID)
}

// CompleteOrder marks a fully served order as done.
func (s *OrderService) CompleteOrder(orderID uint, actor Actor) (*models.Order, error) {
	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	if !actor.Allowed(order.RestaurantID) {
		tx.Rollback()
		return nil, apperr.Forbidden("order %d belongs to another restaurant", orderID)
	}
	if order.Status != models.OrderServed {
		tx.Rollback()
		return nil, apperr.InvalidTransition("order %d cannot be completed from %s", orderID, order.Status)
	}

	now := time.Now()
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderServed).
		Updates(map[string]interface{}{
			"status":       models.OrderCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, apperr.Conflict("order %d was changed concurrently", order.ID)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return s.publishOrder(order.ID)
}

// GetOrder loads one order with its items.
func (s *OrderService) GetOrder(orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.DB.Preload("OrderItems").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	return &order, nil
}

// cancelInTx moves the order plus every non-terminal item to cancelled.
// extra carries caller-specific order columns (rejection fields).
func (s *OrderService) cancelInTx(tx *gorm.DB, order *models.Order, now time.Time, extra map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":       models.OrderCancelled,
		"cancelled_at": now,
		"updated_at":   now,
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("order %d was changed concurrently", order.ID)
	}

	return tx.Model(&models.OrderItem{}).
		Where("order_id = ? AND status NOT IN ?", order.ID,
			[]models.OrderItemStatus{models.ItemServed, models.ItemCancelled}).
		Updates(map[string]interface{}{
			"status":       models.ItemCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		}).Error
}

// applyRecompute keeps the order status consistent with its item multiset.
// Only meaningful once the order is past confirmation; before that the
// order status is driven by the confirm/reject gates.
func applyRecompute(tx *gorm.DB, order *models.Order, now time.Time) error {
	switch order.Status {
	case models.OrderConfirmed, models.OrderPreparing, models.OrderReady, models.OrderServed:
	default:
		return nil
	}

	derived, changed := models.RecomputeOrderStatus(order.OrderItems)
	if !changed || derived == order.Status {
		return nil
	}

	updates := map[string]interface{}{"status": derived, "updated_at": now}
	if col := orderStampColumn(order, derived); col != "" {
		updates[col] = now
	}

	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("order %d was changed concurrently", order.ID)
	}
	order.Status = derived
	return nil
}

// publishOrder reloads the committed order and fans it out.
func (s *OrderService) publishOrder(orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.DB.Preload("OrderItems").First(&order, orderID).Error; err != nil {
		return nil, err
	}
	if s.Hub != nil {
		s.Hub.Publish(events.Event{
			Type:         events.EventOrderUpdate,
			RestaurantID: order.RestaurantID,
			Data:         order,
		})
	}
	return &order, nil
}

// stationFor routes a menu item to its preparation queue: explicit tag
// first, beverage category allow-list as the fallback for untagged items.
func (s *OrderService) stationFor(menu models.Menu) models.KitchenStation {
	if menu.Station != nil {
		return *menu.Station
	}
	name := strings.ToLower(menu.Category.Name)
	for _, bar := range s.Policy.BarCategories {
		if name == bar {
			return models.StationBar
		}
	}
	return models.StationKitchen
}

// itemStampColumn returns the timestamp column to set for a first entry
// into target, or "" when it was already stamped.
func itemStampColumn(item *models.OrderItem, target models.OrderItemStatus) string {
	switch target {
	case models.ItemSentToKitchen:
		if item.SentToKitchenAt == nil {
			return "sent_to_kitchen_at"
		}
	case models.ItemPreparing:
		if item.PreparingAt == nil {
			return "preparing_at"
		}
	case models.ItemReady:
		if item.ReadyAt == nil {
			return "ready_at"
		}
	case models.ItemServed:
		if item.ServedAt == nil {
			return "served_at"
		}
	}
	return ""
}

func stampItem(item *models.OrderItem, target models.OrderItemStatus, now time.Time) {
	switch target {
	case models.ItemSentToKitchen:
		if item.SentToKitchenAt == nil {
			item.SentToKitchenAt = &now
		}
	case models.ItemPreparing:
		if item.PreparingAt == nil {
			item.PreparingAt = &now
		}
	case models.ItemReady:
		if item.ReadyAt == nil {
			item.ReadyAt = &now
		}
	case models.ItemServed:
		if item.ServedAt == nil {
			item.ServedAt = &now
		}
	}
	item.UpdatedAt = now
}

func orderStampColumn(order *models.Order, target models.OrderStatus) string {
	switch target {
	case models.OrderPreparing:
		if order.PreparingAt == nil {
			return "preparing_at"
		}
	case models.OrderReady:
		if order.ReadyAt == nil {
			return "ready_at"
		}
	case models.OrderServed:
		if order.ServedAt == nil {
			return "served_at"
		}
	}
	return ""
}

func newOrderNumber() string {
	return fmt.Sprintf("ORD-%s", strings.ToUpper(uuid.NewString()[:8]))
}
