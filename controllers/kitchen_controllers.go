package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-ops/models"
	"github.com/yeremiapane/restaurant-ops/services"
	"github.com/yeremiapane/restaurant-ops/utils"
)

type KitchenController struct {
	Kitchen *services.KitchenService
}

func NewKitchenController(kitchen *services.KitchenService) *KitchenController {
	return &KitchenController{Kitchen: kitchen}
}

// GetDisplayQueue -> FIFO queue for one station display.
func (kc *KitchenController) GetDisplayQueue(c *gin.Context) {
	restaurantID, station, ok := kc.displayParams(c)
	if !ok {
		return
	}

	queue, err := kc.Kitchen.GetDisplayQueue(restaurantID, station)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Display queue", queue)
}

// GetStationSummary -> header counts for one station display.
func (kc *KitchenController) GetStationSummary(c *gin.Context) {
	restaurantID, station, ok := kc.displayParams(c)
	if !ok {
		return
	}

	summary, err := kc.Kitchen.GetStationSummary(restaurantID, station)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Station summary", summary)
}

func (kc *KitchenController) displayParams(c *gin.Context) (uint, models.KitchenStation, bool) {
	restaurantID := restaurantFromContext(c)
	if restaurantID == 0 {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return 0, "", false
	}

	station := models.KitchenStation(c.DefaultQuery("station", string(models.StationKitchen)))
	return restaurantID, station, true
}

// restaurantFromContext reads the tenant scope set by the auth middleware.
func restaurantFromContext(c *gin.Context) uint {
	if v, ok := c.Get("restaurantID"); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
