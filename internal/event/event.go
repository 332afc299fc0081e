// Package event decodes GitHub webhook payloads into Event values.
package event

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Kind identifies the type of a webhook notification, as sent in the
// X-GitHub-Event header.
type Kind string

const (
	KindCheckRun     Kind = "check_run"
	KindCheckSuite   Kind = "check_suite"
	KindInstallation Kind = "installation"
	KindIssues       Kind = "issues"
	KindPing         Kind = "ping"
	KindPullRequest  Kind = "pull_request"
	KindPush         Kind = "push"
	KindUnsupported  Kind = "unsupported"
)

var supported = map[Kind]struct{}{
	KindCheckRun:     {},
	KindCheckSuite:   {},
	KindInstallation: {},
	KindIssues:       {},
	KindPing:         {},
	KindPullRequest:  {},
	KindPush:         {},
}

// ErrMalformedPayload is returned when the body is not a JSON object.
var ErrMalformedPayload = errors.New("malformed event payload")

// Event is one decoded webhook notification. Values are immutable once
// decoded; Raw must not be modified by callers.
type Event struct {
	Kind       Kind
	Action     string
	Repository string
	Raw        []byte
}

// Decode turns the X-GitHub-Event header value and the raw body into an Event.
// Event types this package does not model decode to KindUnsupported and keep
// the raw payload without any validation of its shape.
func Decode(eventType string, body []byte) (Event, error) {
	kind := Kind(eventType)
	if _, ok := supported[kind]; !ok {
		return Event{Kind: KindUnsupported, Raw: body}, nil
	}

	if !gjson.ValidBytes(body) {
		return Event{}, fmt.Errorf("%w: invalid JSON", ErrMalformedPayload)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return Event{}, fmt.Errorf("%w: expected a JSON object", ErrMalformedPayload)
	}

	ev := Event{
		Kind:       kind,
		Action:     doc.Get("action").String(),
		Repository: doc.Get("repository.full_name").String(),
		Raw:        body,
	}
	if kind != KindPing && kind != KindPush && ev.Action == "" {
		return Event{}, fmt.Errorf("%w: %s event without action", ErrMalformedPayload, kind)
	}
	return ev, nil
}

// Get returns the payload value at a gjson path such as
// "check_run.head_sha".
func (e Event) Get(path string) gjson.Result {
	return gjson.GetBytes(e.Raw, path)
}

func (e Event) String() string {
	if e.Action == "" {
		return string(e.Kind) + " event"
	}
	return fmt.Sprintf("%s %s event", e.Kind, e.Action)
}
