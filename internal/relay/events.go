package relay

import "encoding/json"

// Every frame on the wire is an envelope naming its event.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const (
	eventMessage     = "message"
	eventOnlineUsers = "onlineUsers"
)

// inboundMessage is the payload of an inbound "message" event. The
// sender is never taken from here; it comes from the authenticated
// connection.
type inboundMessage struct {
	Recipient string       `json:"recipient"`
	Text      string       `json:"text"`
	File      *inboundFile `json:"file"`
}

// inboundFile is a self-describing encoded attachment: a data-URI-like
// string with the original filename.
type inboundFile struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// outboundMessage is the payload pushed to each of the recipient's live
// connections.
type outboundMessage struct {
	Text      string  `json:"text"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	File      *string `json:"file"`
	ID        string  `json:"_id"`
}

func marshalEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}
