// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — no inheritance, composition
// only. The `json:"..."` struct tags control how encoding/json serializes
// each field; the `db:"..."` tags document the column names.
package model

import "time"

// Program represents a saved practice program — the code a learner wrote
// during a lesson and chose to keep for later.
//
// UserID is empty for anonymous saves (the server runs fine with auth
// disabled); when set, it references the owning user and write operations
// are restricted to them.
type Program struct {
	ID          string    `json:"id"          db:"id"`
	UserID      string    `json:"userId,omitempty" db:"user_id"`
	Name        string    `json:"name"        db:"name"`
	Code        string    `json:"code"        db:"code"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}
