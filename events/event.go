package events

// Event types pushed to streaming subscribers.
type EventType string

const (
	EventOrderUpdate        EventType = "order_update"
	EventSessionEnded       EventType = "session_ended"
	EventAssistanceRequest  EventType = "assistance_request"
	EventTableStatusChanged EventType = "table_status_changed"
	EventCleaningUpdate     EventType = "cleaning_update"
	EventOTPHelp            EventType = "otp_help"
)

// Event is a domain event scoped to one restaurant. Delivery is
// best-effort, at-most-once: a subscriber that is gone or slow at publish
// time simply misses it.
type Event struct {
	Type         EventType   `json:"event"`
	RestaurantID uint        `json:"restaurant_id"`
	Data         interface{} `json:"data,omitempty"`
}

// eventRoles restricts delivery of some event types to the roles that act
// on them. Types not listed here go to every role.
var eventRoles = map[EventType][]string{
	EventOTPHelp:        {"waiter", "staff", "admin"},
	EventCleaningUpdate: {"cleaner", "waiter", "staff", "admin"},
}

func visibleTo(role string, t EventType) bool {
	roles, ok := eventRoles[t]
	if !ok {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
