package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/apperr"
	"github.com/yeremiapane/restaurant-ops/models"
)

func seedEmptyTable(t *testing.T, db *gorm.DB, restaurantID uint, number, otp string, status models.TableStatus) models.Table {
	t.Helper()
	now := time.Now()
	table := models.Table{
		RestaurantID:   restaurantID,
		TableNumber:    number,
		Status:         status,
		CurrentOTP:     &otp,
		OTPGeneratedAt: &now,
	}
	require.NoError(t, db.Create(&table).Error)
	return table
}

func TestRecordScanOpensSession(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)
	table := seedEmptyTable(t, db, f.restaurant.ID, "B1", "123", models.TableAvailable)

	session, created, err := svc.RecordScan(table.ID, "device-aa")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.SessionActive, session.Status)
	assert.Equal(t, models.PhaseCreated, session.Phase)
	assert.False(t, session.OTPVerified)
	require.NotNil(t, session.QRScannedAt)

	var got models.Table
	require.NoError(t, db.First(&got, table.ID).Error)
	assert.Equal(t, models.TableOccupied, got.Status)
}

func TestRecordScanIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)
	table := seedEmptyTable(t, db, f.restaurant.ID, "B1", "123", models.TableAvailable)

	first, created, err := svc.RecordScan(table.ID, "device-aa")
	require.NoError(t, err)
	require.True(t, created)

	// A second scan, even from another device, attaches to the running
	// session and leaves its timestamps alone.
	second, created, err := svc.RecordScan(table.ID, "device-bb")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.QRScannedAt)
	assert.True(t, second.QRScannedAt.Equal(*first.QRScannedAt))
}

func TestRecordScanRefusesBlockedAndCleaning(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)

	blocked := seedEmptyTable(t, db, f.restaurant.ID, "B1", "123", models.TableBlocked)
	_, _, err := svc.RecordScan(blocked.ID, "device-aa")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	cleaning := seedEmptyTable(t, db, f.restaurant.ID, "B2", "456", models.TableCleaning)
	_, _, err = svc.RecordScan(cleaning.ID, "device-aa")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, _, err = svc.RecordScan(9999, "device-aa")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestVerifyOTP(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)
	table := seedEmptyTable(t, db, f.restaurant.ID, "B1", "042", models.TableAvailable)

	session, _, err := svc.RecordScan(table.ID, "device-aa")
	require.NoError(t, err)

	// Malformed codes never reach the comparison.
	_, err = svc.VerifyOTP(table.ID, "42", 2)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.VerifyOTP(table.ID, "0042", 2)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.VerifyOTP(table.ID, "042", 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// A wrong code mutates nothing.
	_, err = svc.VerifyOTP(table.ID, "041", 2)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	var unchanged models.TableSession
	require.NoError(t, db.First(&unchanged, session.ID).Error)
	assert.False(t, unchanged.OTPVerified)
	assert.Equal(t, models.PhaseCreated, unchanged.Phase)

	verified, err := svc.VerifyOTP(table.ID, "042", 3)
	require.NoError(t, err)
	assert.True(t, verified.OTPVerified)
	assert.Equal(t, models.PhaseOTPVerified, verified.Phase)
	assert.Equal(t, 3, verified.GuestCount)

	var got models.TableSession
	require.NoError(t, db.First(&got, session.ID).Error)
	require.NotNil(t, got.SeatedAt)

	// Verifying again is a no-op, not an error.
	again, err := svc.VerifyOTP(table.ID, "042", 5)
	require.NoError(t, err)
	assert.Equal(t, verified.ID, again.ID)
	var after models.TableSession
	require.NoError(t, db.First(&after, session.ID).Error)
	assert.Equal(t, 3, after.GuestCount)
}

func TestSeatGuests(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)
	waiter := Actor{UserID: 7, Role: "waiter"}

	table := seedEmptyTable(t, db, f.restaurant.ID, "B1", "123", models.TableAvailable)
	session, err := svc.SeatGuests(table.ID, 4, waiter)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseOTPVerified, session.Phase)
	assert.True(t, session.OTPVerified)
	assert.Equal(t, 4, session.GuestCount)
	require.NotNil(t, session.WaiterID)

	var got models.Table
	require.NoError(t, db.First(&got, table.ID).Error)
	assert.Equal(t, models.TableOccupied, got.Status)

	// The fixture table already carries an active session.
	_, err = svc.SeatGuests(f.table.ID, 2, waiter)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestEndSessionRotatesOTPAndQueuesCleaning(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)
	waiter := Actor{UserID: 7, Role: "waiter"}

	previousOTP := *f.table.CurrentOTP
	session, err := svc.EndSession(f.session.ID, waiter, false)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.Status)
	require.NotNil(t, session.VacatedAt)

	var table models.Table
	require.NoError(t, db.First(&table, f.table.ID).Error)
	assert.Equal(t, models.TableCleaning, table.Status)
	require.NotNil(t, table.CurrentOTP)
	assert.NotEqual(t, previousOTP, *table.CurrentOTP)
	assert.Regexp(t, `^[0-9]{3}$`, *table.CurrentOTP)

	var cleaning models.CleaningLog
	require.NoError(t, db.Where("table_id = ?", f.table.ID).First(&cleaning).Error)
	assert.Equal(t, models.CleaningPending, cleaning.Status)

	// Ending twice fails; the session already left active.
	_, err = svc.EndSession(f.session.ID, waiter, false)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
}

func TestEndSessionAsCancelled(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)

	session, err := svc.EndSession(f.session.ID, Actor{UserID: 7, Role: "staff"}, true)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, session.Status)
}

func TestMarkCleanedOnlyFromCleaning(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)
	cleaner := Actor{UserID: 9, Role: "cleaner"}

	// Occupied table, nothing to clean yet.
	_, err := svc.MarkCleaned(f.table.ID, cleaner)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	_, err = svc.EndSession(f.session.ID, Actor{UserID: 7, Role: "waiter"}, false)
	require.NoError(t, err)

	table, err := svc.MarkCleaned(f.table.ID, cleaner)
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, table.Status)

	var cleaning models.CleaningLog
	require.NoError(t, db.Where("table_id = ?", f.table.ID).First(&cleaning).Error)
	assert.Equal(t, models.CleaningDone, cleaning.Status)
	require.NotNil(t, cleaning.CleanerID)
	assert.Equal(t, uint(9), *cleaning.CleanerID)
	require.NotNil(t, cleaning.FinishedAt)
}

func TestUpdateGuestCountWritesAudit(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)

	session, err := svc.UpdateGuestCount(f.session.ID, 5, Actor{UserID: 7, Role: "waiter"})
	require.NoError(t, err)
	assert.Equal(t, 5, session.GuestCount)

	var entry models.ActivityLog
	require.NoError(t, db.Where("action = ?", "update_guest_count").First(&entry).Error)
	assert.Contains(t, entry.Detail, "previous=2")
	assert.Contains(t, entry.Detail, "new=5")

	_, err = svc.UpdateGuestCount(f.session.ID, 0, Actor{UserID: 7, Role: "waiter"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRequestAssistanceOnePerType(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)

	_, err := svc.RequestAssistance(f.session.ID, "shoe_shine")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	first, err := svc.RequestAssistance(f.session.ID, models.AssistCallWaiter)
	require.NoError(t, err)
	assert.Equal(t, models.AssistPending, first.Status)

	// Same type while the first is still open: refused.
	_, err = svc.RequestAssistance(f.session.ID, models.AssistCallWaiter)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// A different type is an independent request.
	_, err = svc.RequestAssistance(f.session.ID, models.AssistWaterRefill)
	require.NoError(t, err)

	// Resolving the first frees the type for a new request.
	_, err = svc.UpdateAssistance(first.ID, models.AssistAcknowledged, Actor{UserID: 7, Role: "waiter"})
	require.NoError(t, err)
	resolved, err := svc.UpdateAssistance(first.ID, models.AssistResolved, Actor{UserID: 7, Role: "waiter"})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = svc.RequestAssistance(f.session.ID, models.AssistCallWaiter)
	require.NoError(t, err)
}

func TestRequestAssistanceBillStampsSession(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)

	_, err := svc.RequestAssistance(f.session.ID, models.AssistBillRequest)
	require.NoError(t, err)

	var session models.TableSession
	require.NoError(t, db.First(&session, f.session.ID).Error)
	require.NotNil(t, session.BillRequestedAt)
}

func TestUpdateAssistanceRules(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)
	waiter := Actor{UserID: 7, Role: "waiter"}

	request, err := svc.RequestAssistance(f.session.ID, models.AssistOther)
	require.NoError(t, err)

	// Same status is a no-op.
	same, err := svc.UpdateAssistance(request.ID, models.AssistPending, waiter)
	require.NoError(t, err)
	assert.Equal(t, models.AssistPending, same.Status)

	// Backwards moves are refused.
	_, err = svc.UpdateAssistance(request.ID, models.AssistInProgress, waiter)
	require.NoError(t, err)
	_, err = svc.UpdateAssistance(request.ID, models.AssistNotified, waiter)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	// Terminal states are final.
	_, err = svc.UpdateAssistance(request.ID, models.AssistCancelled, waiter)
	require.NoError(t, err)
	_, err = svc.UpdateAssistance(request.ID, models.AssistResolved, waiter)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
}

func TestSessionActionsScopedToRestaurant(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)
	outsider := Actor{UserID: 99, RestaurantID: f.restaurant.ID + 1, Role: "waiter"}

	_, err := svc.EndSession(f.session.ID, outsider, false)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = svc.UpdateGuestCount(f.session.ID, 4, outsider)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = svc.SeatGuests(f.table.ID, 2, outsider)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	request, err := svc.RequestAssistance(f.session.ID, models.AssistCallWaiter)
	require.NoError(t, err)
	_, err = svc.UpdateAssistance(request.ID, models.AssistAcknowledged, outsider)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// Nothing moved.
	var session models.TableSession
	require.NoError(t, db.First(&session, f.session.ID).Error)
	assert.Equal(t, models.SessionActive, session.Status)
	assert.Equal(t, 2, session.GuestCount)

	insider := Actor{UserID: 7, RestaurantID: f.restaurant.ID, Role: "waiter"}
	_, err = svc.EndSession(f.session.ID, insider, false)
	require.NoError(t, err)

	_, err = svc.MarkCleaned(f.table.ID, Actor{UserID: 9, RestaurantID: f.restaurant.ID + 1, Role: "cleaner"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = svc.MarkCleaned(f.table.ID, Actor{UserID: 9, RestaurantID: f.restaurant.ID, Role: "cleaner"})
	require.NoError(t, err)
}

func TestRecordPayment(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)

	// A failed payment leaves the session untouched.
	session, err := svc.RecordPayment(f.session.ID, "TXN-1", 53000, false)
	require.NoError(t, err)
	assert.Nil(t, session.PaymentCompletedAt)

	session, err = svc.RecordPayment(f.session.ID, "TXN-2", 53000, true)
	require.NoError(t, err)
	require.NotNil(t, session.PaymentCompletedAt)
}

func TestGetActiveSession(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSessionService(db, nil)

	session, err := svc.GetActiveSession(f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, f.session.ID, session.ID)

	_, err = svc.EndSession(f.session.ID, Actor{UserID: 7, Role: "waiter"}, false)
	require.NoError(t, err)

	_, err = svc.GetActiveSession(f.table.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
