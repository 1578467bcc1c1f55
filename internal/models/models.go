package models

import (
	"encoding/json"
	"math"
	"time"
)

// SystemAuthor is the reserved author of automated chat notices. It can never be
// registered as a user name.
const SystemAuthor = "__system"

const (
	MaxUserNameLength    = 16
	MaxTokenLength       = 32
	MaxChatNameLength    = 50
	MaxMessageTextLength = 4096
)

type User struct {
	Name  string `db:"name" json:"name"`
	Token string `db:"token" json:"token"`
}

type Chat struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	IsPrivate bool   `db:"is_private" json:"is_private"`
}

// Membership is a join record between a user and a chat. Duplicates are allowed,
// membership is an existence check.
type Membership struct {
	ID   string `db:"id" json:"id"`
	User string `db:"user" json:"user"`
	Chat string `db:"chat" json:"chat"`
}

// Message.Created holds microseconds since the unix epoch.
type Message struct {
	ID      string `db:"id"`
	Text    string `db:"text"`
	Chat    string `db:"chat"`
	Author  string `db:"author"`
	Created int64  `db:"created"`
}

// CreatedAt returns the creation time in UTC.
func (m Message) CreatedAt() time.Time {
	return time.UnixMicro(m.Created).UTC()
}

// IsSystem reports whether the message is an automated notice.
func (m Message) IsSystem() bool {
	return m.Author == SystemAuthor
}

// MarshalJSON writes id, text, chat, author, created in that order, with created as
// fractional unix seconds.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID      string  `json:"id"`
		Text    string  `json:"text"`
		Chat    string  `json:"chat"`
		Author  string  `json:"author"`
		Created float64 `json:"created"`
	}{m.ID, m.Text, m.Chat, m.Author, MicrosToEpoch(m.Created)})
}

// maxEpochSeconds keeps seconds*1e6 inside int64.
const maxEpochSeconds = 9e12

// EpochToMicros converts unix seconds, possibly fractional, into the storage domain.
// Values beyond the int64 microsecond range saturate to its ends.
func EpochToMicros(seconds float64) int64 {
	switch {
	case seconds >= maxEpochSeconds:
		return math.MaxInt64
	case seconds <= -maxEpochSeconds:
		return math.MinInt64
	}
	whole := int64(seconds)
	frac := seconds - float64(whole)
	return whole*1e6 + int64(math.Round(frac*1e6))
}

// MicrosToEpoch converts stored microseconds into unix seconds.
func MicrosToEpoch(micros int64) float64 {
	return float64(micros/1e6) + float64(micros%1e6)/1e6
}
