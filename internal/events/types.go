// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	PortfolioRevalued     EventType = "PORTFOLIO_REVALUED"
	PositionChanged       EventType = "POSITION_CHANGED"
	CorporateEventApplied EventType = "CORPORATE_EVENT_APPLIED"
	AssetRevalued         EventType = "ASSET_REVALUED"
	RatesRefreshed        EventType = "RATES_REFRESHED"
	SnapshotCompleted     EventType = "SNAPSHOT_COMPLETED"
	BackupCompleted       EventType = "BACKUP_COMPLETED"
)

// AllEventTypes lists every event type, in declaration order.
var AllEventTypes = []EventType{
	PortfolioRevalued,
	PositionChanged,
	CorporateEventApplied,
	AssetRevalued,
	RatesRefreshed,
	SnapshotCompleted,
	BackupCompleted,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
