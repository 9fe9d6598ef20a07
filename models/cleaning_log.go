package models

import "time"

type CleaningStatus string

const (
	CleaningPending    CleaningStatus = "pending"
	CleaningInProgress CleaningStatus = "in_progress"
	CleaningDone       CleaningStatus = "done"
)

// CleaningLog is the hand-off record enqueued when a session ends. The
// table stays in cleaning until a cleaner closes the log.
type CleaningLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	RestaurantID uint           `gorm:"not null;index" json:"restaurant_id"`
	TableID      uint           `gorm:"not null;index" json:"table_id"`
	Table        Table          `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	CleanerID    *uint          `gorm:"index" json:"cleaner_id,omitempty"`
	Cleaner      *User          `gorm:"foreignKey:CleanerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Status       CleaningStatus `gorm:"type:varchar(15);not null;default:'pending'" json:"status"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}
