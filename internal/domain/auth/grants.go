package auth

import "time"

// RoleGrant is a stored role row.
type RoleGrant struct {
	UserID    string    `db:"user_id"    json:"user_id"`
	Role      Role      `db:"role"       json:"role"`
	GrantedBy string    `db:"granted_by" json:"granted_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WelcomeRecord reports the delivery state of an account's welcome notification.
type WelcomeRecord struct {
	UserID      string     `json:"user_id"`
	Delivered   bool       `json:"delivered"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}
