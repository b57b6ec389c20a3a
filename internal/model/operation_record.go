package model

// OperationRecord describes one committed ledger mutation for the journal.
type OperationRecord struct {
	Op         string `json:"op"`
	PositionID uint64 `json:"position_id"`
	Pool       string `json:"pool"`
	Caller     string `json:"caller,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	Liquidity  string `json:"liquidity,omitempty"`
	Amount0    string `json:"amount0,omitempty"`
	Amount1    string `json:"amount1,omitempty"`
	Timestamp  uint64 `json:"timestamp"`
}
