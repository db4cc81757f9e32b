package store

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by UpsertNotes when the row was
// modified since the caller read it.
var ErrVersionConflict = errors.New("notes version conflict")

type Ticket struct {
	ID            string
	OrgID         string
	RequesterID   string
	RequesterName string
	Title         string
	Body          string // rich-text document stored as JSON text
	CreatedAt     time.Time
}

type TicketMessage struct {
	ID             string
	TicketID       string
	SenderID       string
	SenderName     string
	Role           string // "customer" or "worker"
	Body           string // rich-text document stored as JSON text
	AttachmentPath string // optional path to an uploaded attachment
	CreatedAt      time.Time
}

type UserNotes struct {
	UserID    string
	OrgID     string
	Notes     string
	Tags      string // JSON array stored as text
	Version   int
	UpdatedAt time.Time
}

type Profile struct {
	ID          string
	DisplayName string
	Email       string
	Company     string
	CreatedAt   time.Time
}

// EncodeTags serializes a tag list for storage. A nil or empty list
// encodes as an empty JSON array.
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

// DecodeTags parses a stored tag column. Malformed or empty values
// decode to nil.
func DecodeTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
