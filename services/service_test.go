package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/config"
	"github.com/yeremiapane/restaurant-ops/models"
	"github.com/yeremiapane/restaurant-ops/utils"
)

// newTestDB opens a named in-memory SQLite database so every connection in
// the pool sees the same data, isolated per test.
func newTestDB(t *testing.T) *gorm.DB {
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

func testPolicy() config.Policy {
	return config.Policy{
		UrgentAfter:     10 * time.Minute,
		BarCategories:   []string{"drinks"},
		StreamHeartbeat: 30 * time.Second,
		OTPHelpAfter:    3 * time.Minute,
	}
}

// fixture is one restaurant with a table, a verified active session and a
// small menu, enough for most lifecycle scenarios.
type fixture struct {
	restaurant models.Restaurant
	table      models.Table
	session    models.TableSession
	foodMenu   models.Menu
	drinkMenu  models.Menu
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	var f fixture
	f.restaurant = models.Restaurant{Name: "Warung Tester"}
	require.NoError(t, db.Create(&f.restaurant).Error)

	otp := "042"
	now := time.Now()
	f.table = models.Table{
		RestaurantID:   f.restaurant.ID,
		TableNumber:    "A1",
		Status:         models.TableOccupied,
		CurrentOTP:     &otp,
		OTPGeneratedAt: &now,
	}
	require.NoError(t, db.Create(&f.table).Error)

	scanned := now.Add(-5 * time.Minute)
	f.session = models.TableSession{
		RestaurantID: f.restaurant.ID,
		TableID:      f.table.ID,
		Status:       models.SessionActive,
		Phase:        models.PhaseOTPVerified,
		GuestCount:   2,
		OTPVerified:  true,
		QRScannedAt:  &scanned,
		SeatedAt:     &scanned,
	}
	require.NoError(t, db.Create(&f.session).Error)

	food := models.MenuCategory{RestaurantID: f.restaurant.ID, Name: "Main Course"}
	drinks := models.MenuCategory{RestaurantID: f.restaurant.ID, Name: "Drinks"}
	require.NoError(t, db.Create(&food).Error)
	require.NoError(t, db.Create(&drinks).Error)

	f.foodMenu = models.Menu{
		RestaurantID: f.restaurant.ID,
		CategoryID:   food.ID,
		Name:         "Nasi Goreng",
		Price:        45000,
		Available:    true,
	}
	f.drinkMenu = models.Menu{
		RestaurantID: f.restaurant.ID,
		CategoryID:   drinks.ID,
		Name:         "Es Teh",
		Price:        8000,
		Available:    true,
	}
	require.NoError(t, db.Create(&f.foodMenu).Error)
	require.NoError(t, db.Create(&f.drinkMenu).Error)

	return f
}

func newOrderSvc(db *gorm.DB) *OrderService {
	return NewOrderService(db, nil, nil, testPolicy())
}
