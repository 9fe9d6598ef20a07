package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/config"
	"github.com/yeremiapane/restaurant-ops/models"
	"github.com/yeremiapane/restaurant-ops/services"
	"github.com/yeremiapane/restaurant-ops/utils"
)

func setupGuestFlowDB(t *testing.T) *gorm.DB {
	t.Helper()
	utils.InitLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Restaurant{},
		&models.User{},
		&models.Table{},
		&models.TableSession{},
		&models.MenuCategory{},
		&models.Menu{},
		&models.Order{},
		&models.OrderItem{},
		&models.AssistanceRequest{},
		&models.CleaningLog{},
		&models.ActivityLog{},
	))
	return db
}

// setupGuestFlowRouter wires the guest endpoints plus a confirm endpoint
// behind a stubbed auth context, mirroring the real route layout.
func setupGuestFlowRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	policy := config.Policy{
		UrgentAfter:     10 * time.Minute,
		BarCategories:   []string{"drinks"},
		StreamHeartbeat: 30 * time.Second,
		OTPHelpAfter:    3 * time.Minute,
	}
	sessionSvc := services.NewSessionService(db, nil)
	orderSvc := services.NewOrderService(db, nil, nil, policy)

	sessionCtrl := NewSessionController(db, sessionSvc)
	orderCtrl := NewOrderController(db, orderSvc)

	router.GET("/tables/:table_id/scan", sessionCtrl.ScanTable)
	router.POST("/tables/:table_id/verify-otp", sessionCtrl.VerifyOTP)
	router.GET("/tables/:table_id/session", sessionCtrl.GetActiveSession)
	router.POST("/sessions/:session_id/orders", orderCtrl.PlaceOrder)

	// Stands in for AuthMiddleware with a restaurant-1 waiter token.
	asWaiter := func(c *gin.Context) {
		c.Set("userID", uint(7))
		c.Set("restaurantID", uint(1))
		c.Set("role", "waiter")
		c.Next()
	}
	router.POST("/staff/orders/:order_id/confirm", asWaiter, orderCtrl.ConfirmOrder)
	router.GET("/staff/orders", asWaiter, orderCtrl.GetAllOrders)

	tableCtrl := NewTableController(db, sessionSvc)
	router.GET("/staff/tables", asWaiter, tableCtrl.GetAllTables)

	return router
}

func seedGuestFlow(t *testing.T, db *gorm.DB) (models.Table, models.Menu) {
	t.Helper()

	restaurant := models.Restaurant{Name: "Warung Tester"}
	require.NoError(t, db.Create(&restaurant).Error)

	otp := "042"
	now := time.Now()
	table := models.Table{
		RestaurantID:   restaurant.ID,
		TableNumber:    "A1",
		Status:         models.TableAvailable,
		CurrentOTP:     &otp,
		OTPGeneratedAt: &now,
	}
	require.NoError(t, db.Create(&table).Error)

	category := models.MenuCategory{RestaurantID: restaurant.ID, Name: "Main Course"}
	require.NoError(t, db.Create(&category).Error)
	menu := models.Menu{
		RestaurantID: restaurant.ID,
		CategoryID:   category.ID,
		Name:         "Nasi Goreng",
		Price:        45000,
		Available:    true,
	}
	require.NoError(t, db.Create(&menu).Error)

	return table, menu
}

func doJSON(t *testing.T, router *gin.Engine, method, url string, payload interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	}
	return w, response
}

func TestGuestFlowScanVerifyOrder(t *testing.T) {
	db := setupGuestFlowDB(t)
	table, menu := seedGuestFlow(t, db)
	router := setupGuestFlowRouter(db)

	scanURL := fmt.Sprintf("/tables/%d/scan", table.ID)

	// First scan opens the session.
	w, response := doJSON(t, router, "GET", scanURL, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Session created", response["message"])
	sessionData := response["data"].(map[string]interface{})
	sessionID := uint(sessionData["id"].(float64))
	assert.Equal(t, string(models.PhaseCreated), sessionData["phase"])

	// Repeat scan attaches to the same session.
	w, response = doJSON(t, router, "GET", scanURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Active session", response["message"])
	assert.Equal(t, float64(sessionID), response["data"].(map[string]interface{})["id"])

	// Ordering before OTP verification is refused.
	orderURL := fmt.Sprintf("/sessions/%d/orders", sessionID)
	w, _ = doJSON(t, router, "POST", orderURL, gin.H{
		"items": []gin.H{{"menu_id": menu.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Wrong code is refused.
	verifyURL := fmt.Sprintf("/tables/%d/verify-otp", table.ID)
	w, _ = doJSON(t, router, "POST", verifyURL, gin.H{"code": "041", "guest_count": 2})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, response = doJSON(t, router, "POST", verifyURL, gin.H{"code": "042", "guest_count": 2})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OTP verified", response["message"])

	// Now the order goes through.
	w, response = doJSON(t, router, "POST", orderURL, gin.H{
		"items": []gin.H{{"menu_id": menu.ID, "quantity": 2, "notes": "extra pedas"}},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	orderData := response["data"].(map[string]interface{})
	assert.Equal(t, string(models.OrderPendingConfirmation), orderData["status"])
	assert.Equal(t, 90000.0, orderData["total_amount"])
	orderID := uint(orderData["id"].(float64))

	// Waiter confirms; items head to the kitchen.
	confirmURL := fmt.Sprintf("/staff/orders/%d/confirm", orderID)
	w, response = doJSON(t, router, "POST", confirmURL, gin.H{"guest_count": 3})
	assert.Equal(t, http.StatusOK, w.Code)
	orderData = response["data"].(map[string]interface{})
	assert.Equal(t, string(models.OrderConfirmed), orderData["status"])
	items := orderData["order_items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, string(models.ItemSentToKitchen), items[0].(map[string]interface{})["status"])

	// Confirming twice is a conflict.
	w, _ = doJSON(t, router, "POST", confirmURL, gin.H{"guest_count": 3})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStaffListingsScopedToTokenRestaurant(t *testing.T) {
	db := setupGuestFlowDB(t)
	table, _ := seedGuestFlow(t, db)
	router := setupGuestFlowRouter(db)

	// A second tenant with its own table and order.
	other := models.Restaurant{Name: "Warung Sebelah"}
	require.NoError(t, db.Create(&other).Error)
	otherTable := models.Table{RestaurantID: other.ID, TableNumber: "Z9", Status: models.TableAvailable}
	require.NoError(t, db.Create(&otherTable).Error)
	otherOrder := models.Order{
		RestaurantID: other.ID,
		TableID:      otherTable.ID,
		OrderNumber:  "ORD-OTHER1",
		Status:       models.OrderConfirmed,
		PlacedAt:     time.Now(),
	}
	require.NoError(t, db.Create(&otherOrder).Error)
	myOrder := models.Order{
		RestaurantID: table.RestaurantID,
		TableID:      table.ID,
		OrderNumber:  "ORD-MINE01",
		Status:       models.OrderConfirmed,
		PlacedAt:     time.Now(),
	}
	require.NoError(t, db.Create(&myOrder).Error)

	w, response := doJSON(t, router, "GET", "/staff/orders", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	orders := response["data"].([]interface{})
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-MINE01", orders[0].(map[string]interface{})["order_number"])

	w, response = doJSON(t, router, "GET", "/staff/tables", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	tables := response["data"].([]interface{})
	require.Len(t, tables, 1)
	assert.Equal(t, "A1", tables[0].(map[string]interface{})["table_number"])
}

func TestScanUnknownTableReturns404(t *testing.T) {
	db := setupGuestFlowDB(t)
	seedGuestFlow(t, db)
	router := setupGuestFlowRouter(db)

	w, _ := doJSON(t, router, "GET", "/tables/9999/scan", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, router, "GET", "/tables/abc/scan", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetActiveSessionEndpoint(t *testing.T) {
	db := setupGuestFlowDB(t)
	table, _ := seedGuestFlow(t, db)
	router := setupGuestFlowRouter(db)

	sessionURL := fmt.Sprintf("/tables/%d/session", table.ID)
	w, _ := doJSON(t, router, "GET", sessionURL, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, router, "GET", fmt.Sprintf("/tables/%d/scan", table.ID), nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, response := doJSON(t, router, "GET", sessionURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Active session", response["message"])
}
