package models

import (
	"encoding/json"
)

// ErrorResponse represents an API error. Clients show Message to the user.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// FromRecord decodes a generic record (as read from a legacy store) into a model
func FromRecord(record map[string]any, v interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
