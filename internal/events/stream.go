package events

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// streamEvent mirrors the DynamoDB Streams batch envelope.
type streamEvent struct {
	Records []streamRecord `json:"Records"`
}

type streamRecord struct {
	EventID   string `json:"eventID"`
	EventName string `json:"eventName"`
	DynamoDB  struct {
		OldImage map[string]attributeValue `json:"OldImage"`
		NewImage map[string]attributeValue `json:"NewImage"`
	} `json:"dynamodb"`
}

type attributeValue struct {
	S    *string `json:"S,omitempty"`
	N    *string `json:"N,omitempty"`
	BOOL *bool   `json:"BOOL,omitempty"`
	NULL *bool   `json:"NULL,omitempty"`
}

func (v attributeValue) flatten() (string, bool) {
	switch {
	case v.S != nil:
		return *v.S, true
	case v.N != nil:
		return *v.N, true
	case v.BOOL != nil:
		return strconv.FormatBool(*v.BOOL), true
	default:
		return "", false
	}
}

// DecodeStreamEvent reads a DynamoDB-stream-shaped batch and flattens each
// record's images into ChangeRecords. Attribute types other than S, N and
// BOOL are dropped from the image.
func DecodeStreamEvent(r io.Reader) ([]ChangeRecord, error) {
	var ev streamEvent
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode stream event: %w", err)
	}
	records := make([]ChangeRecord, 0, len(ev.Records))
	for _, sr := range ev.Records {
		records = append(records, ChangeRecord{
			EventID:   sr.EventID,
			Operation: Operation(sr.EventName),
			OldImage:  flattenImage(sr.DynamoDB.OldImage),
			NewImage:  flattenImage(sr.DynamoDB.NewImage),
		})
	}
	return records, nil
}

func flattenImage(attrs map[string]attributeValue) Image {
	if len(attrs) == 0 {
		return nil
	}
	img := make(Image, len(attrs))
	for name, v := range attrs {
		if s, ok := v.flatten(); ok {
			img[name] = s
		}
	}
	return img
}
