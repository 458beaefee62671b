package relay

import (
	"encoding/json"
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
)

var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelPush}

func (c Channel) Valid() bool {
	for _, v := range Channels {
		if c == v {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusQueued Status = "QUEUED"
	StatusSent   Status = "SENT"
	StatusFailed Status = "FAILED"
)

var Statuses = []Status{StatusQueued, StatusSent, StatusFailed}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Notification is one accepted event as recorded by the relay. Payload is
// stored exactly as received.
type Notification struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Channel   Channel         `json:"channel"`
	Recipient string          `json:"recipient"`
	Payload   json.RawMessage `json:"payload"`
	Source    string          `json:"source"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	LastError *string         `json:"lastError"`
}

func (n Notification) clone() Notification {
	if n.Payload != nil {
		n.Payload = append(json.RawMessage(nil), n.Payload...)
	}
	if n.LastError != nil {
		e := *n.LastError
		n.LastError = &e
	}
	return n
}

type Filter struct {
	Type      string
	Recipient string
	Status    Status
}

func (f Filter) Matches(n Notification) bool {
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Recipient != "" && n.Recipient != f.Recipient {
		return false
	}
	if f.Status != "" && n.Status != f.Status {
		return false
	}
	return true
}
