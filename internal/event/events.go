package event

import "time"

const (
	TypeRegistrationResolved = "registration_resolved"
	TypeRegistrationFailed   = "registration_failed"
)

// RegistrationEvent 注册尝试结束事件
// Topic: shortener_events_registration
type RegistrationEvent struct {
	Type       string    `json:"type"`
	AttemptID  string    `json:"attempt_id"`
	URLBody    string    `json:"url_body"`
	Key        string    `json:"key,omitempty"`
	ShortURL   string    `json:"short_url,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Code       int       `json:"code"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
