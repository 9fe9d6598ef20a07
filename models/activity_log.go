package models

import "time"

// ActivityLog is a fire-and-forget audit row for staff corrections and
// session lifecycle actions. Write failures are logged, never propagated.
type ActivityLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID uint      `gorm:"not null;index" json:"restaurant_id"`
	ActorID      *uint     `json:"actor_id,omitempty"`
	ActorRole    string    `gorm:"type:varchar(20)" json:"actor_role"`
	Action       string    `gorm:"type:varchar(50);not null" json:"action"`
	Detail       string    `gorm:"type:text" json:"detail"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}
