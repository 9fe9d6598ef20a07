package models

import "time"

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
	TableCleaning  TableStatus = "cleaning"
	TableBlocked   TableStatus = "blocked"
)

// tableTransitions -> legal edges for a table's floor state.
// A table never goes back to available without passing through cleaning.
var tableTransitions = map[TableStatus][]TableStatus{
	TableAvailable: {TableOccupied, TableReserved, TableBlocked},
	TableReserved:  {TableOccupied, TableAvailable, TableBlocked},
	TableOccupied:  {TableCleaning},
	TableCleaning:  {TableAvailable},
	TableBlocked:   {TableAvailable},
}

func (s TableStatus) CanTransitionTo(target TableStatus) bool {
	for _, t := range tableTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s TableStatus) Valid() bool {
	_, ok := tableTransitions[s]
	return ok
}

type Table struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	RestaurantID uint        `gorm:"not null;uniqueIndex:idx_tables_restaurant_number" json:"restaurant_id"`
	TableNumber  string      `gorm:"type:varchar(50);not null;uniqueIndex:idx_tables_restaurant_number" json:"table_number"`
	Status       TableStatus `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	// CurrentOTP is the 3-digit code the seated party uses to unlock
	// ordering. Rotated on every session end, never serialized to guests.
	CurrentOTP     *string    `gorm:"type:varchar(3)" json:"-"`
	OTPGeneratedAt *time.Time `json:"otp_generated_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}
