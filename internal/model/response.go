package model

// Response is the uniform JSON envelope used by every endpoint. Count is set
// on list responses, Valid on key-validation responses, Error on failures.
type Response struct {
	Success bool        `json:"success"`
	Valid   *bool       `json:"valid,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   string      `json:"error,omitempty"`
}
