package models

import "time"

// PositionState tracks the lifecycle of a trade. CLOSED is terminal: a new
// trade always gets a new Position with a new ID.
type PositionState string

const (
	PositionOpen   PositionState = "OPEN"
	PositionClosed PositionState = "CLOSED"
)

// CloseReason records which exit condition ended a position.
type CloseReason string

const (
	CloseTakeProfit     CloseReason = "take_profit"
	CloseStopLoss       CloseReason = "stop_loss"
	CloseSignalReversal CloseReason = "signal_reversal"
	CloseManual         CloseReason = "manual"
)

// Position is a single leveraged trade for a (session, symbol) key.
type Position struct {
	ID          string        `json:"id"`
	SessionKey  string        `json:"session_key"`
	Symbol      string        `json:"symbol"`
	Direction   Signal        `json:"direction"` // LONG or SHORT
	EntryPrice  float64       `json:"entry_price"`
	SizeUSD     float64       `json:"size_usd"`
	Leverage    int           `json:"leverage"`
	RiskProfile RiskProfile   `json:"risk_profile"`
	State       PositionState `json:"state"`
	PnLUSD      float64       `json:"pnl_usd"`
	ROIPct      float64       `json:"roi_pct"`
	OpenedAt    time.Time     `json:"opened_at"`
	ClosedAt    time.Time     `json:"closed_at,omitempty"`
	CloseReason CloseReason   `json:"close_reason,omitempty"`
}

// Key returns the session-scoped store key for the position.
func (p *Position) Key() string {
	return p.SessionKey + ":" + p.Symbol
}
