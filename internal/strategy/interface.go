package strategy

// SessionEndCode is the exit reason reserved for the day-boundary liquidator
const SessionEndCode = 100

// TradeAction represents the type of trading action
type TradeAction int

const (
	ActionHold TradeAction = iota
	ActionBuy
	ActionSell
)

func (ta TradeAction) String() string {
	switch ta {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Decision is what one rule invocation asked the position to do
type Decision struct {
	Action   TradeAction
	ExitCode int
	Tag      string
}

// PositionView is the read-only slice of position state exposed to rules
type PositionView struct {
	Holding        bool
	EntryIndex     int
	EntryTimestamp int64
	EntryPrice     float64
	Quantity       float64
	ReturnPct      float64
	BestReturnPct  float64
	WorstReturnPct float64
	SplitCount     int
}
