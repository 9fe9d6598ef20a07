package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/config"
	"github.com/yeremiapane/restaurant-ops/events"
	"github.com/yeremiapane/restaurant-ops/models"
	"github.com/yeremiapane/restaurant-ops/utils"
)

// SessionMonitor nudges waiters about sessions that scanned a QR code but
// never got past OTP entry. Each session is nudged at most once.
type SessionMonitor struct {
	DB        *gorm.DB
	Hub       *events.Hub
	Interval  time.Duration
	HelpAfter time.Duration
	StopChan  chan struct{}
}

func NewSessionMonitor(db *gorm.DB, hub *events.Hub, policy config.Policy) *SessionMonitor {
	return &SessionMonitor{
		DB:        db,
		Hub:       hub,
		Interval:  30 * time.Second,
		HelpAfter: policy.OTPHelpAfter,
		StopChan:  make(chan struct{}),
	}
}

func (sm *SessionMonitor) Start() {
	go func() {
		ticker := time.NewTicker(sm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sm.checkStalled()
			case <-sm.StopChan:
				return
			}
		}
	}()
}

func (sm *SessionMonitor) Stop() {
	close(sm.StopChan)
}

func (sm *SessionMonitor) checkStalled() {
	cutoff := time.Now().Add(-sm.HelpAfter)

	var sessions []models.TableSession
	if err := sm.DB.
		Where("status = ? AND otp_verified = ? AND otp_help_nudged_at IS NULL", models.SessionActive, false).
		Where("qr_scanned_at IS NOT NULL AND qr_scanned_at < ?", cutoff).
		Find(&sessions).Error; err != nil {
		utils.ErrorLogger.Printf("session monitor query: %v", err)
		return
	}

	now := time.Now()
	for _, session := range sessions {
		// Guard keeps the nudge single-shot even with several instances.
		res := sm.DB.Model(&models.TableSession{}).
			Where("id = ? AND otp_help_nudged_at IS NULL", session.ID).
			Updates(map[string]interface{}{"otp_help_nudged_at": now, "updated_at": now})
		if res.Error != nil {
			utils.ErrorLogger.Printf("session monitor nudge %d: %v", session.ID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}

		utils.InfoLogger.Printf("OTP help nudge for session %d (table %d)", session.ID, session.TableID)
		if sm.Hub != nil {
			sm.Hub.Publish(events.Event{
				Type:         events.EventOTPHelp,
				RestaurantID: session.RestaurantID,
				Data: map[string]interface{}{
					"session_id": session.ID,
					"table_id":   session.TableID,
					"scanned_at": session.QRScannedAt,
				},
			})
		}
	}
}
