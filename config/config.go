// Package config carries the process-wide settings of the mock Firebolt
// server: the listening port, the default user, which pipeline stages are
// validated, the subscription matcher profiles and the wire templates.
// Values resolve in three layers: compiled-in defaults, then an optional
// JSON config file, then environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Stage names recognized in the Validate list.
const (
	StageMethod = "method"
	StageEvents = "events"
)

// MatchProfile is the string form of one control message recognition
// profile: a regular expression pre-filter plus a gjson method query.
type MatchProfile struct {
	SearchRegex string `json:"searchRegex"`
	Method      string `json:"method"`
}

// Events configures subscription recognition and the outbound wire shapes.
type Events struct {
	// Registration and UnRegistration recognize the listen:true and
	// listen:false control messages.
	Registration   MatchProfile `json:"registrationMessage"`
	UnRegistration MatchProfile `json:"unRegistrationMessage"`
	// EventMethod is the naming convention a listenable method must match.
	EventMethod string `json:"eventMethod"`
	// RegistrationAck, UnRegistrationAck and Event are the render
	// templates for acknowledgments and notification deliveries.
	RegistrationAck   string `json:"registrationAckMessage"`
	UnRegistrationAck string `json:"unRegistrationAckMessage"`
	Event             string `json:"event"`
	// EventType labels delivery log lines.
	EventType string `json:"eventType"`
}

// NATS configures the optional interaction log sink. An empty URL leaves
// the sink unattached.
type NATS struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

// Config is the resolved process configuration.
type Config struct {
	// Port is the websocket listening port.
	Port int `json:"port"`
	// DefaultUser is the user key assumed for connections that do not name
	// one.
	DefaultUser string `json:"defaultUser"`
	// Validate lists the pipeline stages that are checked: "method" gates
	// inbound call shape, "events" gates outbound payload schemas.
	Validate []string `json:"validate"`
	// Bidirectional selects the correlated-request wire shape for event
	// deliveries.
	Bidirectional bool `json:"bidirectional"`

	Events Events `json:"events"`
	NATS   NATS   `json:"nats"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Port:        9998,
		DefaultUser: "12345",
		Validate:    []string{StageMethod, StageEvents},
		Events: Events{
			Registration: MatchProfile{
				SearchRegex: `"listen"\s*:\s*true`,
				Method:      "method",
			},
			UnRegistration: MatchProfile{
				SearchRegex: `"listen"\s*:\s*false`,
				Method:      "method",
			},
			EventMethod:       `\.on[A-Z]`,
			RegistrationAck:   `{"jsonrpc":"2.0","id":{{.registration.id}},"result":{"listening":true,"event":"{{.method}}"}}`,
			UnRegistrationAck: `{"jsonrpc":"2.0","id":{{.unRegistration.id}},"result":{"listening":false,"event":"{{.method}}"}}`,
			Event:             `{"result":{{.resultAsJson}},"id":{{.registration.id}},"jsonrpc":"2.0"}`,
			EventType:         "event",
		},
		NATS: NATS{
			Subject: "mockfirebolt.interactions",
		},
	}
}

// Load resolves the configuration: defaults, then the JSON file at path if
// path is non-empty, then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays recognized environment variables onto cfg.
func (c *Config) applyEnv() {
	if v := os.Getenv("MF_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("MF_DEFAULT_USER_ID"); v != "" {
		c.DefaultUser = v
	}
	if v := os.Getenv("MF_BIDIRECTIONAL"); v != "" {
		if bidirectional, err := strconv.ParseBool(v); err == nil {
			c.Bidirectional = bidirectional
		}
	}
	if v := os.Getenv("MF_VALIDATE"); v != "" {
		c.Validate = c.Validate[:0]
		for _, stage := range strings.Split(v, ",") {
			if stage = strings.TrimSpace(stage); stage != "" {
				c.Validate = append(c.Validate, stage)
			}
		}
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("MF_NATS_SUBJECT"); v != "" {
		c.NATS.Subject = v
	}
}

// Validates reports whether stage is in the Validate list.
func (c Config) Validates(stage string) bool {
	return slices.Contains(c.Validate, stage)
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
