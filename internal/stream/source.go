package stream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// ErrChannelNotFound is returned when a channel query resolves to nothing.
var ErrChannelNotFound = errors.New("channel not found")

// Channel identifies one message channel of a source.
type Channel struct {
	// ID is a small positive integer assigned by the source, stable for
	// the lifetime of the source.
	ID int

	// Name is the human-readable channel name.
	Name string
}

// Item is one channel message carrying an image.
type Item struct {
	// Channel is the name of the channel the item arrived on.
	Channel string

	// MessageID is the source-assigned message identifier.
	MessageID int

	// Sender names the message author, when the source knows it.
	Sender string

	// When is the message timestamp.
	When time.Time

	// Data holds the encoded image bytes.
	Data []byte
}

// Locator renders the item as a human-readable position descriptor used
// in match records.
func (it Item) Locator() string {
	sender := it.Sender
	if sender == "" {
		sender = "unknown"
	}
	return fmt.Sprintf("msg %d | from %s | date %s", it.MessageID, sender, it.When.Format("2006-01-02 15:04"))
}

// Source is a channel-based message feed. Implementations must tolerate
// concurrent calls.
type Source interface {
	// Channels lists the channels currently visible to the source.
	Channels(ctx context.Context) ([]Channel, error)

	// History returns up to limit recent image items from the channel,
	// newest first.
	History(ctx context.Context, ch Channel, limit int) ([]Item, error)

	// Subscribe delivers new image items from the channel until the
	// context is canceled, at which point the returned channel closes.
	Subscribe(ctx context.Context, ch Channel) (<-chan Item, error)
}

// Resolve finds the channel matching the query: a numeric query matches
// by id, anything else by case-folded substring of the name. The first
// listing-order match wins.
func Resolve(channels []Channel, query string) (Channel, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Channel{}, fmt.Errorf("%w: empty query", ErrChannelNotFound)
	}

	if id, err := strconv.Atoi(query); err == nil {
		for _, ch := range channels {
			if ch.ID == id {
				return ch, nil
			}
		}
		return Channel{}, fmt.Errorf("%w: id %d", ErrChannelNotFound, id)
	}

	fold := cases.Fold()
	needle := fold.String(query)
	for _, ch := range channels {
		if strings.Contains(fold.String(ch.Name), needle) {
			return ch, nil
		}
	}
	return Channel{}, fmt.Errorf("%w: %q", ErrChannelNotFound, query)
}
