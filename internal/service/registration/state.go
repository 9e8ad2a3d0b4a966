package registration

import "encoding/json"

type State int

const (
	Idle State = iota
	Checking
	Submitting
	AwaitingConfirmation
	Resolved
	Failed
)

var stateNames = map[State]string{
	Idle:                 "idle",
	Checking:             "checking",
	Submitting:           "submitting",
	AwaitingConfirmation: "awaiting_confirmation",
	Resolved:             "resolved",
	Failed:               "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Snapshot 对外可见的状态投影
// Waiting 为 true 时禁止发起新的写操作
type Snapshot struct {
	State     State  `json:"state"`
	Waiting   bool   `json:"waiting"`
	Key       string `json:"key,omitempty"`
	URLBody   string `json:"url_body,omitempty"`
	TxHash    string `json:"tx_hash,omitempty"`
	Err       error  `json:"-"`
	AttemptID string `json:"attempt_id,omitempty"`
}
