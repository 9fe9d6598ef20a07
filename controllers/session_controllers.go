package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/services"
	"github.com/yeremiapane/restaurant-ops/utils"
)

type SessionController struct {
	DB       *gorm.DB
	Sessions *services.SessionService
}

func NewSessionController(db *gorm.DB, sessions *services.SessionService) *SessionController {
	return &SessionController{DB: db, Sessions: sessions}
}

// ScanTable -> guest scans the QR code on a table. Repeat scans while a
// session is active return the same session.
func (sc *SessionController) ScanTable(c *gin.Context) {
	tableID, err := paramUint(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	fingerprint := c.GetHeader("X-Device-Fingerprint")
	session, created, err := sc.Sessions.RecordScan(tableID, fingerprint)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if created {
		utils.RespondJSON(c, http.StatusCreated, "Session created", session)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active session", session)
}

// VerifyOTP -> guest enters the 3-digit table code to unlock ordering.
func (sc *SessionController) VerifyOTP(c *gin.Context) {
	tableID, err := paramUint(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Code       string `json:"code" binding:"required"`
		GuestCount int    `json:"guest_count" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := sc.Sessions.VerifyOTP(tableID, body.Code, body.GuestCount)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "OTP verified", session)
}

// GetActiveSession -> current session on a table, if any.
func (sc *SessionController) GetActiveSession(c *gin.Context) {
	tableID, err := paramUint(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := sc.Sessions.GetActiveSession(tableID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active session", session)
}

// SeatGuests -> waiter seats a walk-in party without the QR/OTP dance.
func (sc *SessionController) SeatGuests(c *gin.Context) {
	tableID, err := paramUint(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		GuestCount int `json:"guest_count" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := sc.Sessions.SeatGuests(tableID, body.GuestCount, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Guests seated", session)
}

// EndSession -> staff closes the session; table goes to cleaning with a
// fresh OTP.
func (sc *SessionController) EndSession(c *gin.Context) {
	sessionID, err := paramUint(c, "session_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Cancelled bool `json:"cancelled"`
	}
	// Body optional; default is a normal completion.
	_ = c.ShouldBindJSON(&body)

	session, err := sc.Sessions.EndSession(sessionID, actorFromContext(c), body.Cancelled)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session ended", session)
}

// UpdateGuestCount -> staff correction, audit-logged.
func (sc *SessionController) UpdateGuestCount(c *gin.Context) {
	sessionID, err := paramUint(c, "session_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		GuestCount int `json:"guest_count" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := sc.Sessions.UpdateGuestCount(sessionID, body.GuestCount, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Guest count updated", session)
}

// PaymentCallback -> the external gateway reports the outcome of a bill
// payment. Protocol details stay outside; only the outcome matters here.
func (sc *SessionController) PaymentCallback(c *gin.Context) {
	var body struct {
		SessionID     uint    `json:"session_id" binding:"required"`
		TransactionID string  `json:"transaction_id" binding:"required"`
		Amount        float64 `json:"amount"`
		Success       bool    `json:"success"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := sc.Sessions.RecordPayment(body.SessionID, body.TransactionID, body.Amount, body.Success)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment recorded", session)
}

func paramUint(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, &CustomError{"invalid " + name}
	}
	return uint(id), nil
}
