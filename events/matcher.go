package events

import (
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/Nandana-NNR/mock-firebolt/pkg/jsonx"
)

// Extract decides whether message is a subscription control message under
// profile and, if so, builds its Metadata. The whole decoded message lands
// under Registration when enable is true, under UnRegistration otherwise.
//
// Recognition is two-stage: the profile's search regexp must match the raw
// bytes, then the method query must yield exactly one string. Anything
// else, malformed JSON included, is simply not a subscription message.
func Extract(message []byte, profile MatchProfile, enable bool) (Metadata, bool) {
	if profile.Search == nil || !profile.Search.Match(message) {
		return Metadata{}, false
	}

	method := gjson.GetBytes(message, profile.MethodQuery)
	if method.Type != gjson.String {
		return Metadata{}, false
	}

	decoded, err := jsonx.DecodeObject(message)
	if err != nil {
		return Metadata{}, false
	}

	md := Metadata{
		Registration:   map[string]any{},
		UnRegistration: map[string]any{},
		Method:         method.Str,
	}
	if enable {
		md.Registration = decoded
	} else {
		md.UnRegistration = decoded
	}
	return md, true
}

// Matcher recognizes subscribe and unsubscribe control messages using the
// two configured profiles, additionally holding extracted methods to the
// event naming convention.
type Matcher struct {
	subscribe   MatchProfile
	unsubscribe MatchProfile
	eventMethod *regexp.Regexp
}

// NewMatcher constructs a Matcher. eventMethod may be nil to accept any
// extracted method name.
func NewMatcher(subscribe, unsubscribe MatchProfile, eventMethod *regexp.Regexp) *Matcher {
	return &Matcher{
		subscribe:   subscribe,
		unsubscribe: unsubscribe,
		eventMethod: eventMethod,
	}
}

// Subscribe extracts the metadata of a subscribe control message, or
// reports false when message is not one.
func (m *Matcher) Subscribe(message []byte) (Metadata, bool) {
	md, ok := Extract(message, m.subscribe, true)
	if !ok || !m.listenable(md.Method) {
		return Metadata{}, false
	}
	return md, true
}

// Unsubscribe extracts the metadata of an unsubscribe control message, or
// reports false when message is not one.
func (m *Matcher) Unsubscribe(message []byte) (Metadata, bool) {
	md, ok := Extract(message, m.unsubscribe, false)
	if !ok || !m.listenable(md.Method) {
		return Metadata{}, false
	}
	return md, true
}

// IsSubscribe reports whether message is a subscribe control message.
func (m *Matcher) IsSubscribe(message []byte) bool {
	_, ok := m.Subscribe(message)
	return ok
}

// IsUnsubscribe reports whether message is an unsubscribe control message.
func (m *Matcher) IsUnsubscribe(message []byte) bool {
	_, ok := m.Unsubscribe(message)
	return ok
}

func (m *Matcher) listenable(method string) bool {
	return m.eventMethod == nil || m.eventMethod.MatchString(method)
}
