package types

// Worker is the JSON form of a directory record. Active is computed when
// the record is rendered and is never stored.
type Worker struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ExpirationDate string `json:"expiration_date"`
	Active         bool   `json:"active"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}
