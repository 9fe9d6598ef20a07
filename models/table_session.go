package models

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// SessionPhase is the guest-journey sub-state before/after OTP
// verification, distinct from SessionStatus.
type SessionPhase string

const (
	PhaseCreated     SessionPhase = "created"
	PhaseOTPVerified SessionPhase = "otp_verified"
)

// TableSession is one seated-party lifecycle at a table, from QR scan or
// staff seating until the table is vacated.
type TableSession struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	RestaurantID uint          `gorm:"not null;index" json:"restaurant_id"`
	TableID      uint          `gorm:"not null;index" json:"table_id"`
	Table        Table         `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Status       SessionStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Phase        SessionPhase  `gorm:"type:varchar(20);not null;default:'created'" json:"phase"`
	GuestCount   int           `gorm:"not null;default:0" json:"guest_count"`
	OTPVerified  bool          `gorm:"not null;default:false" json:"otp_verified"`
	WaiterID     *uint         `gorm:"index" json:"waiter_id,omitempty"`
	Waiter       *User         `gorm:"foreignKey:WaiterID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	// Fingerprint of the device that opened the session; repeat scans from
	// any device attach to the same session.
	DeviceFingerprint string `gorm:"type:varchar(255)" json:"-"`

	QRScannedAt        *time.Time `json:"qr_scanned_at,omitempty"`
	SeatedAt           *time.Time `json:"seated_at,omitempty"`
	FirstOrderAt       *time.Time `json:"first_order_at,omitempty"`
	LastOrderAt        *time.Time `json:"last_order_at,omitempty"`
	BillRequestedAt    *time.Time `json:"bill_requested_at,omitempty"`
	PaymentCompletedAt *time.Time `json:"payment_completed_at,omitempty"`
	VacatedAt          *time.Time `json:"vacated_at,omitempty"`
	// Set once the OTP-help nudge for a stale unverified session has fired.
	OTPHelpNudgedAt *time.Time `json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
