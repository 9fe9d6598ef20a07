package models

import "time"

type OrderStatus string

const (
	OrderPending             OrderStatus = "pending"
	OrderPendingConfirmation OrderStatus = "pending_confirmation"
	OrderConfirmed           OrderStatus = "confirmed"
	OrderPreparing           OrderStatus = "preparing"
	OrderReady               OrderStatus = "ready"
	OrderServed              OrderStatus = "served"
	OrderCompleted           OrderStatus = "completed"
	OrderCancelled           OrderStatus = "cancelled"
)

// orderStatusRank orders the forward path. Status only ever moves to a
// higher rank; cancelled is terminal and reachable from any non-terminal.
var orderStatusRank = map[OrderStatus]int{
	OrderPending:             0,
	OrderPendingConfirmation: 1,
	OrderConfirmed:           2,
	OrderPreparing:           3,
	OrderReady:               4,
	OrderServed:              5,
	OrderCompleted:           6,
}

func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s == target || s.Terminal() {
		return false
	}
	if target == OrderCancelled {
		return true
	}
	sr, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	tr, ok := orderStatusRank[target]
	if !ok {
		return false
	}
	return tr > sr
}

type Order struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	RestaurantID uint          `gorm:"not null;index" json:"restaurant_id"`
	TableID      uint          `gorm:"not null;index" json:"table_id"`
	Table        Table         `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	SessionID    *uint         `gorm:"index" json:"session_id,omitempty"` // nil for takeaway
	Session      *TableSession `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	OrderNumber  string        `gorm:"type:varchar(32);not null;uniqueIndex" json:"order_number"`
	Status       OrderStatus   `gorm:"type:varchar(25);not null;default:'pending'" json:"status"`
	TotalAmount  float64       `gorm:"type:decimal(10,2);not null;default:0.00" json:"total_amount"`
	PlacedAt     time.Time     `gorm:"not null;index" json:"placed_at"`

	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	PreparingAt     *time.Time `json:"preparing_at,omitempty"`
	ReadyAt         *time.Time `json:"ready_at,omitempty"`
	ServedAt        *time.Time `json:"served_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	RejectionReason *string    `gorm:"type:varchar(255)" json:"rejection_reason,omitempty"`

	OrderItems []OrderItem `gorm:"foreignKey:OrderID" json:"order_items"`
	CreatedAt  time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"not null" json:"updated_at"`
}

// RecomputeOrderStatus derives an order status from the multiset of its
// item statuses. It returns the derived status and true when the items
// force a change; false means keep the current status. Cancelled items do
// not take part in the derivation.
func RecomputeOrderStatus(items []OrderItem) (OrderStatus, bool) {
	active := 0
	ready := 0
	served := 0
	preparing := 0
	for _, it := range items {
		if it.Status == ItemCancelled {
			continue
		}
		active++
		switch it.Status {
		case ItemReady:
			ready++
		case ItemServed:
			served++
		case ItemPreparing:
			preparing++
		}
	}
	if active == 0 {
		return "", false
	}
	switch {
	case served == active:
		return OrderServed, true
	case ready == active:
		return OrderReady, true
	case preparing > 0:
		return OrderPreparing, true
	}
	return "", false
}
