package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/apperr"
	"github.com/yeremiapane/restaurant-ops/models"
	"github.com/yeremiapane/restaurant-ops/services"
	"github.com/yeremiapane/restaurant-ops/utils"
)

type TableController struct {
	DB       *gorm.DB
	Sessions *services.SessionService
}

func NewTableController(db *gorm.DB, sessions *services.SessionService) *TableController {
	return &TableController{DB: db, Sessions: sessions}
}

// CreateTable -> add a table to the floor plan.
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		RestaurantID uint   `json:"restaurant_id" binding:"required"`
		TableNumber  string `json:"table_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	otp, err := utils.GenerateOTP("")
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	table := models.Table{
		RestaurantID: req.RestaurantID,
		TableNumber:  req.TableNumber,
		Status:       models.TableAvailable,
		CurrentOTP:   &otp,
	}
	if err := tc.DB.Create(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("table %s created for restaurant %d", table.TableNumber, table.RestaurantID)
	utils.RespondJSON(c, http.StatusCreated, "Table created", table)
}

// GetAllTables -> the authenticated restaurant's floor plan, optionally
// filtered by status.
func (tc *TableController) GetAllTables(c *gin.Context) {
	restaurantID := restaurantFromContext(c)
	if restaurantID == 0 {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	query := tc.DB.Where("restaurant_id = ?", restaurantID).Order("table_number asc")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var tables []models.Table
	if err := query.Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// GetTableByID -> detail of one table.
func (tc *TableController) GetTableByID(c *gin.Context) {
	tableID, err := paramUint(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var table models.Table
	if err := tc.DB.First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if rid := restaurantFromContext(c); rid != 0 && rid != table.RestaurantID {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// UpdateTableStatus -> staff adjustment for the states not derived from the
// session lifecycle (reserve, block, release). Occupied and cleaning come
// only from session start/end.
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	tableID, err := paramUint(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Status models.TableStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	switch body.Status {
	case models.TableReserved, models.TableBlocked, models.TableAvailable:
	default:
		respondServiceError(c, apperr.Validation("status %s is derived from the session lifecycle", body.Status))
		return
	}

	var table models.Table
	if err := tc.DB.First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if rid := restaurantFromContext(c); rid != 0 && rid != table.RestaurantID {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}
	if !table.Status.CanTransitionTo(body.Status) {
		respondServiceError(c, apperr.InvalidTransition("table %s cannot move from %s to %s",
			table.TableNumber, table.Status, body.Status))
		return
	}

	table.Status = body.Status
	if err := tc.DB.Save(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("table %s status changed to %s", table.TableNumber, table.Status)
	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}

// MarkTableClean -> cleaner confirms the table is ready for the next party.
func (tc *TableController) MarkTableClean(c *gin.Context) {
	role, _ := c.Get("role")
	if role != "cleaner" && role != "staff" && role != "admin" {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	tableID, err := paramUint(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Sessions.MarkCleaned(tableID, actorFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table marked as clean", table)
}
