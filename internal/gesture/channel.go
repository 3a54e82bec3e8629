package gesture

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownChannel is returned when a channel name cannot be parsed.
var ErrUnknownChannel = errors.New("unknown channel")

// Channel identifies one independently tracked body segment.
type Channel int

const (
	LeftArm Channel = iota
	RightArm
	LeftLeg
	RightLeg
	Waist
	Head
)

var channelNames = [...]string{
	LeftArm:  "LeftArm",
	RightArm: "RightArm",
	LeftLeg:  "LeftLeg",
	RightLeg: "RightLeg",
	Waist:    "Waist",
	Head:     "Head",
}

// AllChannels lists every channel in canonical order.
var AllChannels = []Channel{LeftArm, RightArm, LeftLeg, RightLeg, Waist, Head}

// LimbChannels are the channels that take part in consensus by default.
var LimbChannels = []Channel{LeftArm, RightArm, LeftLeg, RightLeg}

// String returns the channel name.
func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelNames) {
		return fmt.Sprintf("Channel(%d)", int(c))
	}
	return channelNames[c]
}

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	return c >= 0 && int(c) < len(channelNames)
}

// ParseChannel parses a channel name case-insensitively.
func ParseChannel(s string) (Channel, error) {
	for i, name := range channelNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, s)
}

// ParseChannels parses a list of channel names, rejecting duplicates.
func ParseChannels(names []string) ([]Channel, error) {
	seen := make(map[Channel]bool, len(names))
	channels := make([]Channel, 0, len(names))
	for _, name := range names {
		c, err := ParseChannel(name)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate channel %s", c)
		}
		seen[c] = true
		channels = append(channels, c)
	}
	return channels, nil
}

// MarshalText implements encoding.TextMarshaler so channels can key JSON maps.
func (c Channel) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Channel) UnmarshalText(text []byte) error {
	parsed, err := ParseChannel(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
