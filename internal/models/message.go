package models

import "time"

// Message is the durable record of a direct message. Text is stored
// encrypted; Ciphertext and IV are base64. File holds the attachment
// reference, nil when the message carried no attachment.
type Message struct {
	ID         string    `json:"id"` // ULID
	Sender     string    `json:"sender"`
	Recipient  string    `json:"recipient"`
	Ciphertext string    `json:"-"`
	IV         string    `json:"-"`
	File       *string   `json:"file"`
	CreatedAt  time.Time `json:"created_at"`
}
