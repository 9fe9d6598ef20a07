package models

import "time"

type OrderItemStatus string

const (
	ItemPending       OrderItemStatus = "pending"
	ItemSentToKitchen OrderItemStatus = "sent_to_kitchen"
	ItemPreparing     OrderItemStatus = "preparing"
	ItemReady         OrderItemStatus = "ready"
	ItemServed        OrderItemStatus = "served"
	ItemCancelled     OrderItemStatus = "cancelled"
)

// orderItemTransitions -> legal forward path for one dish. Cancellation is
// only reachable through order-level rejection/cancellation, never by a
// guest pulling back an item the kitchen already received.
var orderItemTransitions = map[OrderItemStatus][]OrderItemStatus{
	ItemPending:       {ItemSentToKitchen, ItemCancelled},
	ItemSentToKitchen: {ItemPreparing, ItemCancelled},
	ItemPreparing:     {ItemReady, ItemCancelled},
	ItemReady:         {ItemServed, ItemCancelled},
	ItemServed:        {},
	ItemCancelled:     {},
}

func (s OrderItemStatus) CanTransitionTo(target OrderItemStatus) bool {
	for _, t := range orderItemTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s OrderItemStatus) Terminal() bool {
	return len(orderItemTransitions[s]) == 0
}

// KitchenStation is the preparation sub-queue an item is routed to.
type KitchenStation string

const (
	StationKitchen KitchenStation = "kitchen"
	StationBar     KitchenStation = "bar"
)

type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"not null;index" json:"order_id"`
	// Omitting Order field from JSON to avoid recursive nesting
	Order          Order           `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	MenuID         uint            `gorm:"not null" json:"menu_id"`
	Menu           Menu            `gorm:"foreignKey:MenuID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"menu"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	Price          float64         `gorm:"type:decimal(10,2);not null" json:"price"`
	Notes          string          `gorm:"type:text" json:"notes"`
	Status         OrderItemStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	KitchenStation KitchenStation  `gorm:"type:varchar(10);not null;default:'kitchen'" json:"kitchen_station"`

	SentToKitchenAt *time.Time `json:"sent_to_kitchen_at,omitempty"`
	PreparingAt     *time.Time `json:"preparing_at,omitempty"`
	ReadyAt         *time.Time `json:"ready_at,omitempty"`
	ServedAt        *time.Time `json:"served_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
