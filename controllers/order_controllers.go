package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/models"
	"github.com/yeremiapane/restaurant-ops/services"
	"github.com/yeremiapane/restaurant-ops/utils"
)

type OrderController struct {
	DB     *gorm.DB
	Orders *services.OrderService
}

func NewOrderController(db *gorm.DB, orders *services.OrderService) *OrderController {
	return &OrderController{DB: db, Orders: orders}
}

// PlaceOrder -> guest submits an order against their verified session.
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	sessionID, err := paramUint(c, "session_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Items []services.OrderLine `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.PlaceOrder(sessionID, body.Items)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order placed", order)
}

// GetAllOrders -> the authenticated restaurant's orders with items,
// optionally filtered by status.
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	restaurantID := restaurantFromContext(c)
	if restaurantID == 0 {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	query := oc.DB.Preload("OrderItems").Where("restaurant_id = ?", restaurantID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Order("placed_at asc").Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// GetOrderByID -> detail of one order including items.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	orderID, err := paramUint(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.GetOrder(orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// ConfirmOrder -> waiter confirms the guest order; items go to their
// stations as one atomic unit.
func (oc *OrderController) ConfirmOrder(c *gin.Context) {
	orderID, err := paramUint(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		GuestCount int `json:"guest_count" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.ConfirmOrder(orderID, body.GuestCount, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order confirmed", order)
}

// RejectOrder -> waiter turns an order down with a reason the guest sees.
func (oc *OrderController) RejectOrder(c *gin.Context) {
	orderID, err := paramUint(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.RejectOrder(orderID, body.Reason, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order rejected", order)
}

// CancelOrder -> staff cancels from any non-terminal state.
func (oc *OrderController) CancelOrder(c *gin.Context) {
	orderID, err := paramUint(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.CancelOrder(orderID, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", order)
}

// CompleteOrder -> staff closes out a fully served order.
func (oc *OrderController) CompleteOrder(c *gin.Context) {
	orderID, err := paramUint(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.CompleteOrder(orderID, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order completed", order)
}

/*
========================================
 ITEM-LEVEL PREPARATION
========================================
*/

// StartItem -> station starts cooking/mixing one item.
func (oc *OrderController) StartItem(c *gin.Context) {
	oc.transitionItem(c, models.ItemPreparing, "Item preparing")
}

// FinishItem -> item is plated and ready for pickup.
func (oc *OrderController) FinishItem(c *gin.Context) {
	oc.transitionItem(c, models.ItemReady, "Item ready")
}

// ServeItem -> waiter delivered the item to the table.
func (oc *OrderController) ServeItem(c *gin.Context) {
	oc.transitionItem(c, models.ItemServed, "Item served")
}

func (oc *OrderController) transitionItem(c *gin.Context, target models.OrderItemStatus, message string) {
	itemID, err := paramUint(c, "item_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	item, err := oc.Orders.TransitionItem(itemID, target, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, message, item)
}
