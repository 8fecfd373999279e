package events

import (
	"context"
	"regexp"

	"github.com/Nandana-NNR/mock-firebolt/api"
	"github.com/Nandana-NNR/mock-firebolt/internal/render"
)

// Metadata describes one subscription control message. Exactly one of
// Registration/UnRegistration carries the decoded message, depending on
// whether the message enables or disables listening; the other side is an
// empty object.
type Metadata struct {
	Registration   map[string]any `json:"registration"`
	UnRegistration map[string]any `json:"unRegistration"`
	Method         string         `json:"method"`
}

// templateData exposes the metadata under the names the configured
// templates address, merged with extra per-render fields.
func (m Metadata) templateData(extra render.Data) render.Data {
	data := render.Data{
		"registration":   m.Registration,
		"unRegistration": m.UnRegistration,
		"method":         m.Method,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// MatchProfile is one of the two configured recognition profiles for
// subscription control messages.
type MatchProfile struct {
	// Search is the coarse pre-filter run against the raw message bytes.
	Search *regexp.Regexp
	// MethodQuery is the gjson path that must yield exactly one string,
	// the method name, from the message.
	MethodQuery string
}

// Config is the process-wide dispatch configuration. It is read at
// dispatch time and never mutated by this package.
type Config struct {
	// Bidirectional selects the correlated-request wire shape for every
	// delivery instead of the notification shape.
	Bidirectional bool
	// ValidateEvents gates final payloads through the Validator before
	// anything is sent.
	ValidateEvents bool
	// EventType labels delivery log lines.
	EventType string

	// Subscribe and Unsubscribe recognize the two control messages.
	Subscribe   MatchProfile
	Unsubscribe MatchProfile
	// EventMethod is the naming convention a listenable method must match,
	// e.g. the ".onSomething" shape. Nil accepts any extracted method.
	EventMethod *regexp.Regexp

	// SubscribeAck and UnsubscribeAck render the acknowledgment messages.
	SubscribeAck   *render.Template
	UnsubscribeAck *render.Template
	// Event renders notification-shape deliveries. Nil sends the
	// serialized result untouched.
	Event *render.Template
}

// ErrorKind classifies the expected, non-fatal dispatch failures reported
// through Report.OnError.
type ErrorKind string

const (
	// RegistrationError means no matching listener exists for the target
	// user or group. A normal outcome, not a bug.
	RegistrationError ErrorKind = "registrationError"
	// ValidationError means the final payload failed schema validation and
	// nothing was sent.
	ValidationError ErrorKind = "validationError"
)

// Kinds recorded responses are filed under with the CallRecorder.
const (
	kindResult = "result"
	kindEvent  = "event"
)

// Report carries the outcome callbacks for one dispatch attempt. Exactly
// one of the three fires per attempt; nil callbacks are skipped.
type Report struct {
	OnSuccess func()
	OnError   func(kind ErrorKind, method string)
	OnFatal   func(err error)
}

// reporter enforces the one-outcome-per-attempt contract.
type reporter struct {
	report Report
	fired  bool
}

func (r *reporter) success() {
	if r.fired {
		return
	}
	r.fired = true
	if r.report.OnSuccess != nil {
		r.report.OnSuccess()
	}
}

func (r *reporter) errorOut(kind ErrorKind, method string) {
	if r.fired {
		return
	}
	r.fired = true
	if r.report.OnError != nil {
		r.report.OnError(kind, method)
	}
}

func (r *reporter) fatal(err error) {
	if r.fired {
		return
	}
	r.fired = true
	if r.report.OnFatal != nil {
		r.report.OnFatal(err)
	}
}

// GroupResolver resolves broadcast group membership for a user key.
type GroupResolver interface {
	// ListUsersInGroup returns every user key in the same broadcast group
	// as userKey, userKey included.
	ListUsersInGroup(userKey string) []string
}

// Validator checks an event payload against whatever schema is registered
// for the method. No errors means the payload may be sent.
type Validator interface {
	Validate(result any, method string) []error
}

// CallRecorder files responses under a user's recording session.
type CallRecorder interface {
	RecordResponse(method string, result any, kind string, userKey string)
}

// InteractionLogger forwards a copy of outbound traffic to the interaction
// log. Implementations must not block the caller.
type InteractionLogger interface {
	LogInteraction(ctx context.Context, message, method string, params any, connInfo, userKey string)
}

// TriggerRunner runs the pre/post hooks registered for a method. RunPost
// returns the payload to deliver: the hook's replacement when it provides
// one, the original result otherwise. Hook failures never propagate.
type TriggerRunner interface {
	RunPre(ctx context.Context, userKey, method string, conn api.Connection)
	RunPost(ctx context.Context, userKey, method string, conn api.Connection, result any) any
}

// Collaborators bundles the external dependencies of an Engine. Any field
// may be nil, disabling that aspect.
type Collaborators struct {
	Groups       GroupResolver
	Triggers     TriggerRunner
	Validator    Validator
	Recorder     CallRecorder
	Interactions InteractionLogger
}
