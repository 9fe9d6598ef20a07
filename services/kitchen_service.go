package services

import (
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ops/apperr"
	"github.com/yeremiapane/restaurant-ops/config"
	"github.com/yeremiapane/restaurant-ops/models"
)

// QueueEntry is one order on a station display, oldest first.
type QueueEntry struct {
	Order              models.Order       `json:"order"`
	Items              []models.OrderItem `json:"items"`
	WaitingTimeMinutes int                `json:"waiting_time_minutes"`
	IsUrgent           bool               `json:"is_urgent"`
}

// StationSummary gives a display its header counts.
type StationSummary struct {
	Orders    int `json:"orders"`
	Items     int `json:"items"`
	Urgent    int `json:"urgent"`
	Preparing int `json:"preparing"`
	Ready     int `json:"ready"`
}

// KitchenService builds the station displays. Unconfirmed guest input never
// reaches a display: confirmation is the single gate between guest intent
// and kitchen action.
type KitchenService struct {
	DB     *gorm.DB
	Policy config.Policy
}

func NewKitchenService(db *gorm.DB, policy config.Policy) *KitchenService {
	return &KitchenService{DB: db, Policy: policy}
}

// GetDisplayQueue returns the active orders for one station in strict FIFO
// order (oldest placed first), with wait-time metrics per order.
func (ks *KitchenService) GetDisplayQueue(restaurantID uint, station models.KitchenStation) ([]QueueEntry, error) {
	if station != models.StationKitchen && station != models.StationBar {
		return nil, apperr.Validation("unknown station %q", station)
	}

	var orders []models.Order
	if err := ks.DB.Preload("OrderItems").
		Preload("OrderItems.Menu").
		Preload("OrderItems.Menu.Category").
		Where("restaurant_id = ? AND status IN ?", restaurantID,
			[]models.OrderStatus{models.OrderConfirmed, models.OrderPreparing, models.OrderReady}).
		Order("placed_at asc").
		Find(&orders).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	queue := make([]QueueEntry, 0, len(orders))
	for _, order := range orders {
		items := ks.stationItems(order.OrderItems, station)
		if len(items) == 0 {
			continue
		}
		sort.Slice(items, func(i, j int) bool {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		})

		waiting := waitingTime(items, now)
		queue = append(queue, QueueEntry{
			Order:              order,
			Items:              items,
			WaitingTimeMinutes: int(waiting.Minutes()),
			IsUrgent:           waiting > ks.Policy.UrgentAfter,
		})
	}
	return queue, nil
}

// GetStationSummary aggregates the queue into display header counts.
func (ks *KitchenService) GetStationSummary(restaurantID uint, station models.KitchenStation) (*StationSummary, error) {
	queue, err := ks.GetDisplayQueue(restaurantID, station)
	if err != nil {
		return nil, err
	}

	summary := &StationSummary{Orders: len(queue)}
	for _, entry := range queue {
		summary.Items += len(entry.Items)
		if entry.IsUrgent {
			summary.Urgent++
		}
		for _, item := range entry.Items {
			switch item.Status {
			case models.ItemPreparing:
				summary.Preparing++
			case models.ItemReady:
				summary.Ready++
			}
		}
	}
	return summary, nil
}

// stationItems filters an order's items down to the displayable ones for a
// station. Pending items are deliberately absent: the kitchen must never
// see unconfirmed guest input.
func (ks *KitchenService) stationItems(items []models.OrderItem, station models.KitchenStation) []models.OrderItem {
	var out []models.OrderItem
	for _, item := range items {
		switch item.Status {
		case models.ItemSentToKitchen, models.ItemPreparing, models.ItemReady:
		default:
			continue
		}
		if ks.itemStation(item) != station {
			continue
		}
		out = append(out, item)
	}
	return out
}

// itemStation resolves routing: the tag stamped at order time wins, then
// the beverage category allow-list catches legacy untagged rows.
func (ks *KitchenService) itemStation(item models.OrderItem) models.KitchenStation {
	if item.KitchenStation != "" {
		return item.KitchenStation
	}
	name := strings.ToLower(item.Menu.Category.Name)
	for _, bar := range ks.Policy.BarCategories {
		if name == bar {
			return models.StationBar
		}
	}
	return models.StationKitchen
}

// waitingTime measures from the oldest not-yet-served item.
func waitingTime(items []models.OrderItem, now time.Time) time.Duration {
	var oldest *time.Time
	for i := range items {
		if items[i].Status == models.ItemServed {
			continue
		}
		if oldest == nil || items[i].CreatedAt.Before(*oldest) {
			oldest = &items[i].CreatedAt
		}
	}
	if oldest == nil {
		return 0
	}
	return now.Sub(*oldest)
}
