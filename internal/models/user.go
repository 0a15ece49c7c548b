package models

// User is a known identity. Identity issuance lives in the external
// auth service; the relay only records users it has seen connect.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
