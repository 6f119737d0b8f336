package types

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// ErrInvalidChannelID is returned when a channel ID fails validation
var ErrInvalidChannelID = goerr.New("invalid channel ID")

var channelIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)

// ChannelID identifies a conversation channel of a backing source (Slack, Discord, ...)
type ChannelID string

// Validate checks if the ChannelID is valid
func (c ChannelID) Validate() error {
	if c == "" {
		return goerr.Wrap(ErrInvalidChannelID, "channel ID cannot be empty")
	}
	if !channelIDPattern.MatchString(string(c)) {
		return goerr.Wrap(ErrInvalidChannelID, "channel ID has unsupported characters", goerr.V("channel_id", string(c)))
	}
	return nil
}

// String returns the string representation of ChannelID
func (c ChannelID) String() string {
	return string(c)
}
