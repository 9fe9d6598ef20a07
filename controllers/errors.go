package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-ops/apperr"
	"github.com/yeremiapane/restaurant-ops/services"
	"github.com/yeremiapane/restaurant-ops/utils"
)

type CustomError struct {
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

var ErrNoPermission = &CustomError{"You don't have permission for this action"}

// respondServiceError maps the service error taxonomy onto HTTP statuses in
// one place so handlers stay thin.
func respondServiceError(c *gin.Context, err error) {
	var code int
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindInvalidTransition:
		code = http.StatusBadRequest
	case apperr.KindNotFound:
		code = http.StatusNotFound
	case apperr.KindForbidden:
		code = http.StatusForbidden
	case apperr.KindConflict:
		code = http.StatusConflict
	case apperr.KindExternalService:
		code = http.StatusBadGateway
	default:
		code = http.StatusInternalServerError
	}
	utils.RespondError(c, code, err)
}

// actorFromContext pulls the authenticated staff identity set by the auth
// middleware. Guest endpoints get a zero actor.
func actorFromContext(c *gin.Context) services.Actor {
	actor := services.Actor{}
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(uint); ok {
			actor.UserID = id
		}
	}
	if v, ok := c.Get("restaurantID"); ok {
		if id, ok := v.(uint); ok {
			actor.RestaurantID = id
		}
	}
	if v, ok := c.Get("role"); ok {
		if role, ok := v.(string); ok {
			actor.Role = role
		}
	}
	return actor
}
