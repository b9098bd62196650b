package model

// Balance change directions for the watched token held by a pool.
const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
)

// BalanceChange is one classified change of a pool's watched-token balance.
type BalanceChange struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Pool        string `json:"pool"`
	PoolKind    string `json:"pool_kind"`
	Token       string `json:"token"`
	Slot        string `json:"slot"`
	Before      string `json:"before"`
	After       string `json:"after"`
	// Delta is After minus Before in raw token units.
	Delta     string `json:"delta"`
	Direction string `json:"direction"`
}
