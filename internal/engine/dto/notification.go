package dto

// NotificationEvent names a signal lifecycle event sent to users.
type NotificationEvent string

const (
	EventCreated NotificationEvent = "created"
	EventBought  NotificationEvent = "bought"
	EventWin     NotificationEvent = "win"
	EventLose    NotificationEvent = "lose"
	EventClosed  NotificationEvent = "closed"
	EventExpired NotificationEvent = "expired"
)
