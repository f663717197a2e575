package deadletter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is the dead-letter payload. It is written for operators and replay
// tooling; nothing in this service reads it back.
type Record struct {
	Error   ErrorInfo   `json:"error"`
	Stream  StreamInfo  `json:"stream"`
	Publish PublishInfo `json:"publish"`
	Meta    MetaInfo    `json:"meta"`
}

type ErrorInfo struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	// StackTrace lists the wrap chain from outermost to innermost, one
	// message per line.
	StackTrace string `json:"stackTrace"`
}

type StreamInfo struct {
	EventName string `json:"eventName"`
	EventID   string `json:"eventId,omitempty"`
}

type PublishInfo struct {
	Target   string `json:"target"`
	TopicArn string `json:"topicArn"`
	// Message is the attempted payload: embedded JSON when it parsed, the
	// raw string otherwise, null when nothing was encoded.
	Message any `json:"message"`
}

type MetaInfo struct {
	TimestampUTC time.Time `json:"timestampUtc"`
}

func describeError(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}
	var chain []string
	root := err
	for e := err; e != nil; e = unwrapFirst(e) {
		chain = append(chain, fmt.Sprintf("%T: %s", e, e.Error()))
		root = e
	}
	return ErrorInfo{
		Message:    err.Error(),
		Type:       fmt.Sprintf("%T", root),
		StackTrace: strings.Join(chain, "\n"),
	}
}

// unwrapFirst follows single unwraps and the last branch of joined errors,
// which is where wrapped causes sit in this codebase.
func unwrapFirst(err error) error {
	if u := errors.Unwrap(err); u != nil {
		return u
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		errs := multi.Unwrap()
		if len(errs) > 0 {
			return errs[len(errs)-1]
		}
	}
	return nil
}

func attemptedMessage(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
