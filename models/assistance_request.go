package models

import "time"

type AssistanceType string

const (
	AssistCallWaiter  AssistanceType = "call_waiter"
	AssistWaterRefill AssistanceType = "water_refill"
	AssistBillRequest AssistanceType = "bill_request"
	AssistOther       AssistanceType = "other"
)

func (t AssistanceType) Valid() bool {
	switch t {
	case AssistCallWaiter, AssistWaterRefill, AssistBillRequest, AssistOther:
		return true
	}
	return false
}

type AssistanceStatus string

const (
	AssistPending      AssistanceStatus = "pending"
	AssistNotified     AssistanceStatus = "notified"
	AssistAcknowledged AssistanceStatus = "acknowledged"
	AssistInProgress   AssistanceStatus = "in_progress"
	AssistCancelled    AssistanceStatus = "cancelled"
	AssistResolved     AssistanceStatus = "resolved"
)

var assistanceRank = map[AssistanceStatus]int{
	AssistPending:      0,
	AssistNotified:     1,
	AssistAcknowledged: 2,
	AssistInProgress:   3,
	AssistResolved:     4,
}

func (s AssistanceStatus) Terminal() bool {
	return s == AssistCancelled || s == AssistResolved
}

// Open reports whether the request still demands staff attention.
func (s AssistanceStatus) Open() bool {
	return !s.Terminal()
}

func (s AssistanceStatus) CanTransitionTo(target AssistanceStatus) bool {
	if s == target || s.Terminal() {
		return false
	}
	if target == AssistCancelled {
		return true
	}
	sr, ok := assistanceRank[s]
	if !ok {
		return false
	}
	tr, ok := assistanceRank[target]
	if !ok {
		return false
	}
	return tr > sr
}

// AssistanceRequest tracks a guest asking for staff attention. At most one
// open request per (session, type).
type AssistanceRequest struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	RestaurantID uint             `gorm:"not null;index" json:"restaurant_id"`
	SessionID    uint             `gorm:"not null;index" json:"session_id"`
	Session      TableSession     `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	TableID      uint             `gorm:"not null" json:"table_id"`
	Type         AssistanceType   `gorm:"type:varchar(20);not null" json:"type"`
	Status       AssistanceStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt    time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"not null" json:"updated_at"`
}
