package model

import "time"

// Connection is a stored SimpleFIN credential. EncryptedAccessURL holds
// vault ciphertext only.
type Connection struct {
	ID                 string
	OwnerID            string
	EncryptedAccessURL string
	Name               string
	LastSync           *time.Time
	IsActive           bool
	CreatedAt          time.Time
}

// ConnectionView is the client-facing shape of a Connection. It never
// carries the access URL.
type ConnectionView struct {
	ID             string     `json:"id"`
	ConnectionName string     `json:"connectionName"`
	LastSync       *time.Time `json:"lastSync"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// View returns the sanitized form of c.
func (c Connection) View() ConnectionView {
	return ConnectionView{
		ID:             c.ID,
		ConnectionName: c.Name,
		LastSync:       c.LastSync,
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt,
	}
}
