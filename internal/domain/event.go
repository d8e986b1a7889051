package domain

import "time"

// Event types published on a user's channel.
const (
	EventTradeOpened      = "trade_opened"
	EventTradeClosed      = "trade_closed"
	EventTradeUpdated     = "trade_updated"
	EventTradeDeleted     = "trade_deleted"
	EventPositionCreated  = "position_created"
	EventPositionUpdated  = "position_updated"
	EventPositionDeleted  = "position_deleted"
	EventPricesUpdated    = "prices_updated"
	EventPortfolioChanged = "portfolio_changed"
	EventTradesExported   = "trades_exported"
)

// Event is the envelope sent over the event bus and the websocket feed.
type Event struct {
	Type    string    `json:"type"`
	UserID  string    `json:"userId"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// UserChannel is the bus channel carrying events for one user.
func UserChannel(userID string) string {
	return "user:" + userID
}
