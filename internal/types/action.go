package types

// Enum values for the entity an action refers to
type Entity string

const (
	EntityChannel Entity = "channel"
	EntityNode    Entity = "node"
)

func (e Entity) String() string {
	return string(e)
}

// Enum values for the variable an action recommends a value for
type Variable string

const (
	VariableBalance Variable = "balance"
	VariableFeeRate Variable = "feeRate"
)

func (v Variable) String() string {
	return string(v)
}

// Action is a single recommendation emitted by the decision engine.
type Action struct {
	Entity   Entity   `json:"entity"`
	ChanID   uint64   `json:"chanId,omitempty"`
	Alias    string   `json:"alias,omitempty"`
	Priority float64  `json:"priority"`
	Variable Variable `json:"variable"`
	Actual   int64    `json:"actual"`
	Target   int64    `json:"target"`
	Max      int64    `json:"max"`
	Reason   string   `json:"reason"`
}
