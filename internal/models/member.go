package models

import "time"

// Member represents a registered member of the organization
type Member struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone"`
	Group     string    `json:"group,omitempty"`
	Status    string    `json:"status"`
	APIKey    string    `json:"-"` // Messaging credential, not serialized
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the member's name, falling back to the generated code
// when no name is on file.
func (m *Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Code
}

// CanReceiveMessages reports whether the member has both a destination
// number and a messaging credential.
func (m *Member) CanReceiveMessages() bool {
	return m.Phone != "" && m.APIKey != ""
}
