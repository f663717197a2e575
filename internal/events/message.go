package events

import (
	"encoding/json"
	"fmt"
)

// Message attribute names.
const (
	AttributeEventType   = "EventType"
	AttributeContentType = "ContentType"

	ContentTypeJSON = "application/json"
)

// Message is the transport-neutral unit handed to a bus or queue. Key is the
// partitioning key for transports that have one; it is not an attribute.
type Message struct {
	Key        string
	Body       []byte
	Attributes map[string]string
}

// Encode serializes event to its camelCase JSON form. The EventType
// attribute always equals the event's type discriminator.
func Encode(event Event) (Message, error) {
	if event == nil {
		return Message{}, fmt.Errorf("encode event: nil event")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", event.EventType(), err)
	}
	return Message{
		Key:  event.AggregateID(),
		Body: body,
		Attributes: map[string]string{
			AttributeEventType:   event.EventType(),
			AttributeContentType: ContentTypeJSON,
		},
	}, nil
}
