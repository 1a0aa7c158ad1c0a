package models

// Student is a roster entry supplied by the caller; the engine never mutates it.
type Student struct {
	ID          string `json:"id" validate:"required"`
	DisplayName string `json:"display_name"`
	ClassID     string `json:"class_id,omitempty"`
}
