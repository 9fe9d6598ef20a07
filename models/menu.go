package models

import "time"

type Menu struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	RestaurantID uint         `gorm:"not null;index" json:"restaurant_id"`
	CategoryID   uint         `gorm:"not null" json:"category_id"`
	Category     MenuCategory `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"category"`
	Name         string       `gorm:"type:varchar(255);not null" json:"name"`
	Price        float64      `gorm:"type:decimal(10,2);not null" json:"price"`
	Description  string       `gorm:"type:text" json:"description"`
	// Station routes the item to a preparation queue. Empty means "not
	// tagged yet"; routing then falls back to the beverage category
	// allow-list.
	Station   *KitchenStation `gorm:"type:varchar(10)" json:"station,omitempty"`
	Available bool            `gorm:"not null;default:true" json:"available"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}
