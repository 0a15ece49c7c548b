// Package courier provides a client for the Courier direct-message relay.
package courier

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a Courier relay client. It speaks the WebSocket event
// protocol for live traffic and the HTTP read path for history.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client

	conn *websocket.Conn
}

// Message is a live message event, sent or received.
type Message struct {
	Text      string  `json:"text"`
	Sender    string  `json:"sender,omitempty"`
	Recipient string  `json:"recipient"`
	File      *string `json:"file,omitempty"`
	ID        string  `json:"_id,omitempty"`
}

// Attachment is a binary payload sent alongside a message, encoded as a
// data URI.
type Attachment struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// OnlineUser is one live connection in a presence broadcast.
type OnlineUser struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// HistoryMessage is one decrypted record from the history endpoint.
type HistoryMessage struct {
	ID        string    `json:"_id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text"`
	File      *string   `json:"file"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event is one frame received from the relay. Exactly one of Message
// and OnlineUsers is set, matching Kind.
type Event struct {
	Kind        string
	Message     *Message
	OnlineUsers []OnlineUser
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewClient creates a client for the given relay base URL ("http://...")
// using a session token issued by the auth service.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Connect dials the relay's WebSocket endpoint, presenting the session
// token as a cookie on the handshake.
func (c *Client) Connect() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	header := http.Header{}
	header.Set("Cookie", "token="+c.Token)

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("handshake rejected: %w", err)
		}
		return err
	}
	c.conn = conn
	return nil
}

// Close tears down the live connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Send delivers a message event to the relay. Attach may be nil.
func (c *Client) Send(recipient, text string, attach *Attachment) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	payload := struct {
		Recipient string      `json:"recipient"`
		Text      string      `json:"text,omitempty"`
		File      *Attachment `json:"file,omitempty"`
	}{Recipient: recipient, Text: text, File: attach}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Event: "message", Data: data})
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Next blocks until the relay pushes the next event.
func (c *Client) Next() (*Event, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}

	ev := &Event{Kind: env.Event}
	switch env.Event {
	case "message":
		ev.Message = &Message{}
		err = json.Unmarshal(env.Data, ev.Message)
	case "onlineUsers":
		err = json.Unmarshal(env.Data, &ev.OnlineUsers)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// History fetches the decrypted conversation with another user.
func (c *Client) History(userID string) ([]HistoryMessage, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"/messages/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", "token="+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request failed: %s", resp.Status)
	}

	var out []HistoryMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Person is one entry in the known-users roster.
type Person struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// People fetches the roster of all known users.
func (c *Client) People() ([]Person, error) {
	resp, err := c.HTTPClient.Get(c.BaseURL + "/people")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("people request failed: %s", resp.Status)
	}

	var out []Person
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
