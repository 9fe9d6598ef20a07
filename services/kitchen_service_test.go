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

// seedKitchenOrder creates a confirmed order whose items are already where
// the caller says, bypassing the service layer for fixture control.
func seedKitchenOrder(t *testing.T, db *gorm.DB, f fixture, placedAt time.Time, items []models.OrderItem) models.Order {
	t.Helper()
	order := models.Order{
		RestaurantID: f.restaurant.ID,
		TableID:      f.table.ID,
		SessionID:    &f.session.ID,
		OrderNumber:  "ORD-" + placedAt.Format("150405.000"),
		Status:       models.OrderConfirmed,
		PlacedAt:     placedAt,
		ConfirmedAt:  &placedAt,
	}
	require.NoError(t, db.Create(&order).Error)
	for i := range items {
		items[i].OrderID = order.ID
		if items[i].Quantity == 0 {
			items[i].Quantity = 1
		}
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = placedAt
		}
		station := items[i].KitchenStation
		require.NoError(t, db.Create(&items[i]).Error)
		if station == "" {
			// The column default would stamp "kitchen"; legacy fixtures
			// need the row genuinely untagged.
			require.NoError(t, db.Model(&models.OrderItem{}).
				Where("id = ?", items[i].ID).
				Update("kitchen_station", "").Error)
		}
	}
	return order
}

func TestDisplayQueueHidesUnconfirmedItems(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewKitchenService(db, testPolicy())

	now := time.Now()
	seedKitchenOrder(t, db, f, now, []models.OrderItem{
		{MenuID: f.foodMenu.ID, Status: models.ItemSentToKitchen, KitchenStation: models.StationKitchen},
		{MenuID: f.foodMenu.ID, Status: models.ItemPending, KitchenStation: models.StationKitchen},
		{MenuID: f.foodMenu.ID, Status: models.ItemCancelled, KitchenStation: models.StationKitchen},
		{MenuID: f.foodMenu.ID, Status: models.ItemServed, KitchenStation: models.StationKitchen},
	})

	queue, err := svc.GetDisplayQueue(f.restaurant.ID, models.StationKitchen)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	// Only the one dish the kitchen should act on.
	require.Len(t, queue[0].Items, 1)
	assert.Equal(t, models.ItemSentToKitchen, queue[0].Items[0].Status)
}

func TestDisplayQueueIsFIFO(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewKitchenService(db, testPolicy())

	now := time.Now()
	newer := seedKitchenOrder(t, db, f, now.Add(-2*time.Minute), []models.OrderItem{
		{MenuID: f.foodMenu.ID, Status: models.ItemSentToKitchen, KitchenStation: models.StationKitchen},
	})
	older := seedKitchenOrder(t, db, f, now.Add(-8*time.Minute), []models.OrderItem{
		{MenuID: f.foodMenu.ID, Status: models.ItemPreparing, KitchenStation: models.StationKitchen},
	})

	queue, err := svc.GetDisplayQueue(f.restaurant.ID, models.StationKitchen)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, older.ID, queue[0].Order.ID)
	assert.Equal(t, newer.ID, queue[1].Order.ID)
	assert.GreaterOrEqual(t, queue[0].WaitingTimeMinutes, queue[1].WaitingTimeMinutes)
}

func TestDisplayQueueUrgency(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewKitchenService(db, testPolicy())

	now := time.Now()
	seedKitchenOrder(t, db, f, now.Add(-15*time.Minute), []models.OrderItem{
		{MenuID: f.foodMenu.ID, Status: models.ItemSentToKitchen, KitchenStation: models.StationKitchen,
			CreatedAt: now.Add(-15 * time.Minute)},
	})
	seedKitchenOrder(t, db, f, now.Add(-2*time.Minute), []models.OrderItem{
		{MenuID: f.foodMenu.ID, Status: models.ItemSentToKitchen, KitchenStation: models.StationKitchen,
			CreatedAt: now.Add(-2 * time.Minute)},
	})

	queue, err := svc.GetDisplayQueue(f.restaurant.ID, models.StationKitchen)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.True(t, queue[0].IsUrgent)
	assert.GreaterOrEqual(t, queue[0].WaitingTimeMinutes, 15)
	assert.False(t, queue[1].IsUrgent)
}

func TestDisplayQueueStationRouting(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewKitchenService(db, testPolicy())

	now := time.Now()
	seedKitchenOrder(t, db, f, now, []models.OrderItem{
		{MenuID: f.foodMenu.ID, Status: models.ItemSentToKitchen, KitchenStation: models.StationKitchen},
		{MenuID: f.drinkMenu.ID, Status: models.ItemSentToKitchen, KitchenStation: models.StationBar},
		// Legacy row without a stamped station: the "Drinks" category name
		// routes it to the bar through the allow-list.
		{MenuID: f.drinkMenu.ID, Status: models.ItemSentToKitchen, KitchenStation: ""},
	})

	kitchen, err := svc.GetDisplayQueue(f.restaurant.ID, models.StationKitchen)
	require.NoError(t, err)
	require.Len(t, kitchen, 1)
	assert.Len(t, kitchen[0].Items, 1)

	bar, err := svc.GetDisplayQueue(f.restaurant.ID, models.StationBar)
	require.NoError(t, err)
	require.Len(t, bar, 1)
	assert.Len(t, bar[0].Items, 2)

	_, err = svc.GetDisplayQueue(f.restaurant.ID, "rooftop")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDisplayQueueScopedToRestaurant(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewKitchenService(db, testPolicy())

	seedKitchenOrder(t, db, f, time.Now(), []models.OrderItem{
		{MenuID: f.foodMenu.ID, Status: models.ItemSentToKitchen, KitchenStation: models.StationKitchen},
	})

	queue, err := svc.GetDisplayQueue(f.restaurant.ID+1, models.StationKitchen)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestStationSummary(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewKitchenService(db, testPolicy())

	now := time.Now()
	seedKitchenOrder(t, db, f, now.Add(-20*time.Minute), []models.OrderItem{
		{MenuID: f.foodMenu.ID, Status: models.ItemPreparing, KitchenStation: models.StationKitchen,
			CreatedAt: now.Add(-20 * time.Minute)},
		{MenuID: f.foodMenu.ID, Status: models.ItemReady, KitchenStation: models.StationKitchen,
			CreatedAt: now.Add(-20 * time.Minute)},
	})
	seedKitchenOrder(t, db, f, now.Add(-3*time.Minute), []models.OrderItem{
		{MenuID: f.foodMenu.ID, Status: models.ItemSentToKitchen, KitchenStation: models.StationKitchen,
			CreatedAt: now.Add(-3 * time.Minute)},
	})

	summary, err := svc.GetStationSummary(f.restaurant.ID, models.StationKitchen)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Orders)
	assert.Equal(t, 3, summary.Items)
	assert.Equal(t, 1, summary.Urgent)
	assert.Equal(t, 1, summary.Preparing)
	assert.Equal(t, 1, summary.Ready)
}
