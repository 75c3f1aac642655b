package domain

type SettlementState string

const (
	SettlementStart             SettlementState = "START"
	SettlementInventoryReserved SettlementState = "INVENTORY_RESERVED"
	SettlementCommitted         SettlementState = "COMMITTED"
	SettlementRolledBack        SettlementState = "ROLLED_BACK"
)

var settlementTransitions = map[SettlementState][]SettlementState{
	SettlementStart:             {SettlementInventoryReserved, SettlementRolledBack},
	SettlementInventoryReserved: {SettlementInventoryReserved, SettlementCommitted, SettlementRolledBack},
}

func (s SettlementState) IsTerminal() bool {
	return s == SettlementCommitted || s == SettlementRolledBack
}

// CanTransitionTo reports whether a settlement in state s may move to next.
func (s SettlementState) CanTransitionTo(next SettlementState) bool {
	for _, allowed := range settlementTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String representation (for logging)
func (s SettlementState) String() string {
	return string(s)
}
