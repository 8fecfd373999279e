package events

import (
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/tidwall/sjson"
)

// onPrefix marks one-way event names: lifecycle.onInactive.
const onPrefix = "on"

// ToRequestMethod converts a one-way event method name into the method its
// bidirectional request carries: "lifecycle.onInactive" becomes
// "lifecycle.inactive". Names without a namespace separator, and event
// names without the one-way prefix, pass through unchanged. Pure and
// deterministic, no failure path.
func ToRequestMethod(method string) string {
	namespace, event, found := strings.Cut(method, ".")
	if !found {
		return method
	}
	if rest, ok := strings.CutPrefix(event, onPrefix); ok {
		if rest == "" {
			event = ""
		} else {
			r, size := utf8.DecodeRuneInString(rest)
			event = string(unicode.ToLower(r)) + rest[size:]
		}
	}
	return namespace + "." + event
}

// Correlator assigns the monotonically increasing correlation ids carried
// by bidirectional payloads. Ids start at 1, are never reset or reused,
// and are shared across every user and method served by one engine.
type Correlator struct {
	next atomic.Int64
}

// NewCorrelator constructs a Correlator whose first id is 1.
func NewCorrelator() *Correlator {
	c := new(Correlator)
	c.next.Store(1)
	return c
}

// BuildRequest serializes one correlated request payload for an already
// translated method. Each call consumes exactly one id; concurrent callers
// observe strictly increasing, distinct ids.
func (c *Correlator) BuildRequest(method string, params any) ([]byte, error) {
	id := c.next.Add(1) - 1

	payload := []byte(`{"id":0,"jsonrpc":"2.0"}`)
	payload, err := sjson.SetBytes(payload, "id", id)
	if err != nil {
		return nil, fmt.Errorf("set request id: %w", err)
	}
	payload, err = sjson.SetBytes(payload, "method", method)
	if err != nil {
		return nil, fmt.Errorf("set request method: %w", err)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode request params for %s: %w", method, err)
	}
	payload, err = sjson.SetRawBytes(payload, "params", raw)
	if err != nil {
		return nil, fmt.Errorf("set request params: %w", err)
	}
	return payload, nil
}
