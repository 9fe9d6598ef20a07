package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/models"
	"github.com/yeremiapane/restaurant-ops/services"
	"github.com/yeremiapane/restaurant-ops/utils"
)

type AssistanceController struct {
	DB       *gorm.DB
	Sessions *services.SessionService
}

func NewAssistanceController(db *gorm.DB, sessions *services.SessionService) *AssistanceController {
	return &AssistanceController{DB: db, Sessions: sessions}
}

// RequestAssistance -> guest calls for staff attention.
func (ac *AssistanceController) RequestAssistance(c *gin.Context) {
	sessionID, err := paramUint(c, "session_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Type models.AssistanceType `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	request, err := ac.Sessions.RequestAssistance(sessionID, body.Type)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Assistance requested", request)
}

// UpdateAssistance -> staff acknowledges, works, resolves or cancels.
func (ac *AssistanceController) UpdateAssistance(c *gin.Context) {
	requestID, err := paramUint(c, "request_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Status models.AssistanceStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	request, err := ac.Sessions.UpdateAssistance(requestID, body.Status, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Assistance updated", request)
}

// ListOpenRequests -> open assistance requests for the waiter view.
func (ac *AssistanceController) ListOpenRequests(c *gin.Context) {
	restaurantID := restaurantFromContext(c)
	if restaurantID == 0 {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	var requests []models.AssistanceRequest
	if err := ac.DB.
		Where("restaurant_id = ? AND status NOT IN ?", restaurantID,
			[]models.AssistanceStatus{models.AssistCancelled, models.AssistResolved}).
		Order("created_at asc").
		Find(&requests).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Open assistance requests", requests)
}
