package services

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/apperr"
	"github.com/yeremiapane/restaurant-ops/events"
	"github.com/yeremiapane/restaurant-ops/models"
	"github.com/yeremiapane/restaurant-ops/utils"
)

var otpPattern = regexp.MustCompile(`^[0-9]{3}$`)

// SessionService orchestrates the table-session lifecycle: QR scan, OTP
// verification, ordering window, session end and cleaning hand-off.
type SessionService struct {
	DB  *gorm.DB
	Hub *events.Hub
}

func NewSessionService(db *gorm.DB, hub *events.Hub) *SessionService {
	return &SessionService{DB: db, Hub: hub}
}

// RecordScan opens a session on first scan and is idempotent afterwards:
// while a session is active on the table every further scan attaches to it
// and qr_scanned_at keeps its original value.
func (s *SessionService) RecordScan(tableID uint, deviceFingerprint string) (*models.TableSession, bool, error) {
	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, false, tx.Error
	}

	var table models.Table
	if err := tx.First(&table, tableID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperr.NotFound("table %d not found", tableID)
		}
		return nil, false, err
	}
	switch table.Status {
	case models.TableBlocked:
		tx.Rollback()
		return nil, false, apperr.Forbidden("table %s is blocked", table.TableNumber)
	case models.TableCleaning:
		tx.Rollback()
		return nil, false, apperr.Conflict("table %s is being cleaned", table.TableNumber)
	}

	var session models.TableSession
	err := tx.Where("table_id = ? AND status = ?", tableID, models.SessionActive).First(&session).Error
	if err == nil {
		tx.Rollback()
		return &session, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return nil, false, err
	}

	now := time.Now()
	session = models.TableSession{
		RestaurantID:      table.RestaurantID,
		TableID:           table.ID,
		Status:            models.SessionActive,
		Phase:             models.PhaseCreated,
		QRScannedAt:       &now,
		DeviceFingerprint: deviceFingerprint,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.Create(&session).Error; err != nil {
		tx.Rollback()
		return nil, false, err
	}

	tableChanged := false
	if table.Status != models.TableOccupied {
		// Expected-state guard: two first-scans racing on the same table
		// resolve to one winner, the loser gets Conflict.
		res := tx.Model(&models.Table{}).
			Where("id = ? AND status = ?", table.ID, table.Status).
			Updates(map[string]interface{}{"status": models.TableOccupied, "updated_at": now})
		if res.Error != nil {
			tx.Rollback()
			return nil, false, res.Error
		}
		if res.RowsAffected == 0 {
			tx.Rollback()
			return nil, false, apperr.Conflict("table %s was changed concurrently", table.TableNumber)
		}
		tableChanged = true
	}

	if err := tx.Commit().Error; err != nil {
		return nil, false, err
	}

	utils.InfoLogger.Printf("session %d opened on table %s", session.ID, table.TableNumber)
	if tableChanged {
		s.publishTable(table.ID)
	}
	return &session, true, nil
}

// VerifyOTP checks the guest code against the table's current OTP. Failure
// mutates nothing; rotation on session end is the reuse mitigation, so
// there is no lockout counter.
func (s *SessionService) VerifyOTP(tableID uint, code string, guestCount int) (*models.TableSession, error) {
	if !otpPattern.MatchString(code) {
		return nil, apperr.Validation("code must be exactly 3 digits")
	}
	if guestCount < 1 {
		return nil, apperr.Validation("guest count must be at least 1")
	}

	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var table models.Table
	if err := tx.First(&table, tableID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("table %d not found", tableID)
		}
		return nil, err
	}

	var session models.TableSession
	if err := tx.Where("table_id = ? AND status = ?", tableID, models.SessionActive).
		First(&session).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no active session for table %d", tableID)
		}
		return nil, err
	}

	if session.OTPVerified {
		tx.Rollback()
		return &session, nil
	}

	if table.CurrentOTP == nil || *table.CurrentOTP != code {
		tx.Rollback()
		return nil, apperr.Forbidden("incorrect code")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"phase":        models.PhaseOTPVerified,
		"otp_verified": true,
		"guest_count":  guestCount,
		"updated_at":   now,
	}
	if session.SeatedAt == nil {
		updates["seated_at"] = now
	}
	res := tx.Model(&models.TableSession{}).
		Where("id = ? AND otp_verified = ?", session.ID, false).
		Updates(updates)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, apperr.Conflict("session %d was changed concurrently", session.ID)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	session.Phase = models.PhaseOTPVerified
	session.OTPVerified = true
	session.GuestCount = guestCount
	utils.InfoLogger.Printf("session %d verified on table %s (guests=%d)", session.ID, table.TableNumber, guestCount)
	return &session, nil
}

// SeatGuests is the staff seating path: the waiter vouches for the party,
// so the session starts already verified.
func (s *SessionService) SeatGuests(tableID uint, guestCount int, actor Actor) (*models.TableSession, error) {
	if guestCount < 1 {
		return nil, apperr.Validation("guest count must be at least 1")
	}

	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var table models.Table
	if err := tx.First(&table, tableID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("table %d not found", tableID)
		}
		return nil, err
	}
	if !actor.Allowed(table.RestaurantID) {
		tx.Rollback()
		return nil, apperr.Forbidden("table %s belongs to another restaurant", table.TableNumber)
	}

	// An occupied table with a live party is a Conflict, not an illegal
	// floor-state move, so the session lookup runs first.
	var existing models.TableSession
	err := tx.Where("table_id = ? AND status = ?", tableID, models.SessionActive).First(&existing).Error
	if err == nil {
		tx.Rollback()
		return nil, apperr.Conflict("table %s already has an active session", table.TableNumber)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return nil, err
	}

	if !table.Status.CanTransitionTo(models.TableOccupied) {
		tx.Rollback()
		return nil, apperr.InvalidTransition("table %s cannot be seated while %s", table.TableNumber, table.Status)
	}

	now := time.Now()
	session := models.TableSession{
		RestaurantID: table.RestaurantID,
		TableID:      table.ID,
		Status:       models.SessionActive,
		Phase:        models.PhaseOTPVerified,
		GuestCount:   guestCount,
		OTPVerified:  true,
		SeatedAt:     &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if actor.UserID != 0 {
		session.WaiterID = &actor.UserID
	}
	if err := tx.Create(&session).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	res := tx.Model(&models.Table{}).
		Where("id = ? AND status = ?", table.ID, table.Status).
		Updates(map[string]interface{}{"status": models.TableOccupied, "updated_at": now})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, apperr.Conflict("table %s was changed concurrently", table.TableNumber)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	s.logActivity(table.RestaurantID, actor, "seat_guests",
		fmt.Sprintf("table=%s guests=%d", table.TableNumber, guestCount))
	s.publishTable(table.ID)
	return &session, nil
}

// EndSession closes an active session. One atomic unit: session ended,
// table to cleaning, fresh OTP on the table, cleaning record enqueued. The
// table cannot come back to available without passing through cleaning, and
// the old OTP can never open the next session.
func (s *SessionService) EndSession(sessionID uint, actor Actor, asCancelled bool) (*models.TableSession, error) {
	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var session models.TableSession
	if err := tx.First(&session, sessionID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("session %d not found", sessionID)
		}
		return nil, err
	}
	if !actor.Allowed(session.RestaurantID) {
		tx.Rollback()
		return nil, apperr.Forbidden("session %d belongs to another restaurant", sessionID)
	}
	if session.Status != models.SessionActive {
		tx.Rollback()
		return nil, apperr.InvalidTransition("session %d is already %s", sessionID, session.Status)
	}

	var table models.Table
	if err := tx.First(&table, session.TableID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	endStatus := models.SessionCompleted
	if asCancelled {
		endStatus = models.SessionCancelled
	}

	now := time.Now()
	res := tx.Model(&models.TableSession{}).
		Where("id = ? AND status = ?", session.ID, models.SessionActive).
		Updates(map[string]interface{}{
			"status":     endStatus,
			"vacated_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, apperr.Conflict("session %d was changed concurrently", session.ID)
	}

	prevOTP := ""
	if table.CurrentOTP != nil {
		prevOTP = *table.CurrentOTP
	}
	newOTP, err := utils.GenerateOTP(prevOTP)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Model(&models.Table{}).Where("id = ?", table.ID).
		Updates(map[string]interface{}{
			"status":           models.TableCleaning,
			"current_otp":      newOTP,
			"otp_generated_at": now,
			"updated_at":       now,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	cleaning := models.CleaningLog{
		RestaurantID: session.RestaurantID,
		TableID:      table.ID,
		Status:       models.CleaningPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Create(&cleaning).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	session.Status = endStatus
	session.VacatedAt = &now

	s.logActivity(session.RestaurantID, actor, "end_session",
		fmt.Sprintf("session=%d table=%s status=%s", session.ID, table.TableNumber, endStatus))
	if s.Hub != nil {
		s.Hub.Publish(events.Event{
			Type:         events.EventSessionEnded,
			RestaurantID: session.RestaurantID,
			Data:         session,
		})
		s.Hub.Publish(events.Event{
			Type:         events.EventCleaningUpdate,
			RestaurantID: session.RestaurantID,
			Data:         cleaning,
		})
	}
	s.publishTable(table.ID)
	return &session, nil
}

// UpdateGuestCount is a staff correction, always allowed while the session
// is active. The change is written to the audit trail.
func (s *SessionService) UpdateGuestCount(sessionID uint, guestCount int, actor Actor) (*models.TableSession, error) {
	if guestCount < 1 {
		return nil, apperr.Validation("guest count must be at least 1")
	}

	var session models.TableSession
	if err := s.DB.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("session %d not found", sessionID)
		}
		return nil, err
	}
	if !actor.Allowed(session.RestaurantID) {
		return nil, apperr.Forbidden("session %d belongs to another restaurant", sessionID)
	}
	if session.Status != models.SessionActive {
		return nil, apperr.InvalidTransition("session %d is not active", sessionID)
	}

	prev := session.GuestCount
	now := time.Now()
	if err := s.DB.Model(&models.TableSession{}).Where("id = ?", session.ID).
		Updates(map[string]interface{}{"guest_count": guestCount, "updated_at": now}).Error; err != nil {
		return nil, err
	}
	session.GuestCount = guestCount

	s.logActivity(session.RestaurantID, actor, "update_guest_count",
		fmt.Sprintf("session=%d previous=%d new=%d", session.ID, prev, guestCount))
	return &session, nil
}

// MarkCleaned is the only path from cleaning back to available, confirmed
// by the cleaner who did the work.
func (s *SessionService) MarkCleaned(tableID uint, actor Actor) (*models.Table, error) {
	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var table models.Table
	if err := tx.First(&table, tableID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("table %d not found", tableID)
		}
		return nil, err
	}
	if !actor.Allowed(table.RestaurantID) {
		tx.Rollback()
		return nil, apperr.Forbidden("table %s belongs to another restaurant", table.TableNumber)
	}
	if table.Status != models.TableCleaning {
		tx.Rollback()
		return nil, apperr.InvalidTransition("table %s is not in cleaning", table.TableNumber)
	}

	now := time.Now()
	res := tx.Model(&models.Table{}).
		Where("id = ? AND status = ?", table.ID, models.TableCleaning).
		Updates(map[string]interface{}{"status": models.TableAvailable, "updated_at": now})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, apperr.Conflict("table %s was changed concurrently", table.TableNumber)
	}

	cleaningUpdates := map[string]interface{}{
		"status":      models.CleaningDone,
		"finished_at": now,
		"updated_at":  now,
	}
	if actor.UserID != 0 {
		cleaningUpdates["cleaner_id"] = actor.UserID
	}
	if err := tx.Model(&models.CleaningLog{}).
		Where("table_id = ? AND status <> ?", table.ID, models.CleaningDone).
		Updates(cleaningUpdates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	table.Status = models.TableAvailable
	utils.InfoLogger.Printf("table %s marked clean by user %d", table.TableNumber, actor.UserID)
	if s.Hub != nil {
		s.Hub.Publish(events.Event{
			Type:         events.EventCleaningUpdate,
			RestaurantID: table.RestaurantID,
			Data:         table,
		})
	}
	s.publishTable(table.ID)
	return &table, nil
}

// RequestAssistance opens a staff-attention request. At most one open
// request per (session, type).
func (s *SessionService) RequestAssistance(sessionID uint, reqType models.AssistanceType) (*models.AssistanceRequest, error) {
	if !reqType.Valid() {
		return nil, apperr.Validation("unknown assistance type %q", reqType)
	}

	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var session models.TableSession
	if err := tx.First(&session, sessionID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("session %d not found", sessionID)
		}
		return nil, err
	}
	if session.Status != models.SessionActive {
		tx.Rollback()
		return nil, apperr.InvalidTransition("session %d is not active", sessionID)
	}

	var open int64
	if err := tx.Model(&models.AssistanceRequest{}).
		Where("session_id = ? AND type = ? AND status NOT IN ?", session.ID, reqType,
			[]models.AssistanceStatus{models.AssistCancelled, models.AssistResolved}).
		Count(&open).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if open > 0 {
		tx.Rollback()
		return nil, apperr.Conflict("an open %s request already exists for this session", reqType)
	}

	now := time.Now()
	request := models.AssistanceRequest{
		RestaurantID: session.RestaurantID,
		SessionID:    session.ID,
		TableID:      session.TableID,
		Type:         reqType,
		Status:       models.AssistPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Create(&request).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if reqType == models.AssistBillRequest && session.BillRequestedAt == nil {
		if err := tx.Model(&models.TableSession{}).Where("id = ?", session.ID).
			Updates(map[string]interface{}{"bill_requested_at": now, "updated_at": now}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if s.Hub != nil {
		s.Hub.Publish(events.Event{
			Type:         events.EventAssistanceRequest,
			RestaurantID: request.RestaurantID,
			Data:         request,
		})
	}
	return &request, nil
}

// UpdateAssistance moves a request along its lifecycle.
func (s *SessionService) UpdateAssistance(requestID uint, target models.AssistanceStatus, actor Actor) (*models.AssistanceRequest, error) {
	var request models.AssistanceRequest
	if err := s.DB.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("assistance request %d not found", requestID)
		}
		return nil, err
	}

	if !actor.Allowed(request.RestaurantID) {
		return nil, apperr.Forbidden("assistance request %d belongs to another restaurant", requestID)
	}
	if request.Status == target {
		return &request, nil
	}
	if !request.Status.CanTransitionTo(target) {
		return nil, apperr.InvalidTransition("assistance request %d cannot move from %s to %s",
			request.ID, request.Status, target)
	}

	now := time.Now()
	updates := map[string]interface{}{"status": target, "updated_at": now}
	if target.Terminal() {
		updates["resolved_at"] = now
	}
	res := s.DB.Model(&models.AssistanceRequest{}).
		Where("id = ? AND status = ?", request.ID, request.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("assistance request %d was changed concurrently", request.ID)
	}
	request.Status = target
	if target.Terminal() {
		request.ResolvedAt = &now
	}

	if s.Hub != nil {
		s.Hub.Publish(events.Event{
			Type:         events.EventAssistanceRequest,
			RestaurantID: request.RestaurantID,
			Data:         request,
		})
	}
	return &request, nil
}

// RecordPayment is the boundary with the external payment gateway: it only
// stamps the session when the gateway reports success. Protocol details
// live outside this service.
func (s *SessionService) RecordPayment(sessionID uint, transactionID string, amount float64, success bool) (*models.TableSession, error) {
	var session models.TableSession
	if err := s.DB.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("session %d not found", sessionID)
		}
		return nil, err
	}

	if !success {
		utils.InfoLogger.Printf("payment failed for session %d (txn=%s amount=%.2f)", sessionID, transactionID, amount)
		return &session, nil
	}

	now := time.Now()
	updates := map[string]interface{}{"updated_at": now}
	if session.PaymentCompletedAt == nil {
		updates["payment_completed_at"] = now
	}
	if err := s.DB.Model(&models.TableSession{}).Where("id = ?", session.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	session.PaymentCompletedAt = &now

	s.logActivity(session.RestaurantID, Actor{}, "payment_recorded",
		fmt.Sprintf("session=%d txn=%s amount=%.2f", sessionID, transactionID, amount))
	return &session, nil
}

// GetActiveSession returns the running session for a table, if any.
func (s *SessionService) GetActiveSession(tableID uint) (*models.TableSession, error) {
	var session models.TableSession
	if err := s.DB.Where("table_id = ? AND status = ?", tableID, models.SessionActive).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no active session for table %d", tableID)
		}
		return nil, err
	}
	return &session, nil
}

// logActivity writes an audit row. Failures are logged and swallowed.
func (s *SessionService) logActivity(restaurantID uint, actor Actor, action, detail string) {
	entry := models.ActivityLog{
		RestaurantID: restaurantID,
		ActorRole:    actor.Role,
		Action:       action,
		Detail:       detail,
		CreatedAt:    time.Now(),
	}
	if actor.UserID != 0 {
		entry.ActorID = &actor.UserID
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		utils.ErrorLogger.Printf("activity log %s: %v", action, err)
	}
}

// publishTable fans out the current table state.
func (s *SessionService) publishTable(tableID uint) {
	if s.Hub == nil {
		return
	}
	var table models.Table
	if err := s.DB.First(&table, tableID).Error; err != nil {
		utils.ErrorLogger.Printf("publish table %d: %v", tableID, err)
		return
	}
	s.Hub.Publish(events.Event{
		Type:         events.EventTableStatusChanged,
		RestaurantID: table.RestaurantID,
		Data:         table,
	})
}
