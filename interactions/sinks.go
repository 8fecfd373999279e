package interactions

import (
	"context"
	"os"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/Nandana-NNR/mock-firebolt/api"
)

// ConnectionSink writes entries to a live connection, one JSON object per
// message. Harness UIs attach their own websocket and watch the traffic of
// the app under test this way.
type ConnectionSink struct {
	conn api.Connection
}

// NewConnectionSink wraps a connection as a sink.
func NewConnectionSink(conn api.Connection) *ConnectionSink {
	return &ConnectionSink{conn: conn}
}

func (s *ConnectionSink) LogInteraction(_ context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.conn.Send(b)
}

// NATSSink publishes entries to a NATS subject so interaction logs can be
// consumed outside the mock process.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink wraps a NATS connection and target subject as a sink.
func NewNATSSink(conn *nats.Conn, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

func (s *NATSSink) LogInteraction(_ context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.subject, b)
}

// ConnectNATS dials url, falling back to the NATS_URL environment variable
// when url is empty, with a client name identifying this mock instance.
func ConnectNATS(url string, options ...nats.Option) (*nats.Conn, error) {
	if url == "" {
		url = os.Getenv("NATS_URL")
	}
	if len(options) == 0 {
		options = append(options, nats.Name("mock-firebolt"), nats.Compression(true))
	}
	return nats.Connect(url, options...)
}
