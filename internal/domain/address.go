package domain

import "time"

// DefaultCountry is used when an address is created without a country.
const DefaultCountry = "Russia"

// Address is a delivery address owned by a user. At most one address per
// user has IsDefault set.
type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Street     string    `json:"street"`
	City       string    `json:"city"`
	State      string    `json:"state,omitempty"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	Apartment  string    `json:"apartment,omitempty"`
	Floor      string    `json:"floor,omitempty"`
	Entrance   string    `json:"entrance,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}
