// Package messaging mirrors telemetry events onto NATS so other services can
// consume them.
package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// SubjectPrefix is prepended to the event type to build the NATS subject.
const SubjectPrefix = "rockhound.events."

type publishConn interface {
	Publish(subj string, data []byte) error
}

// Publisher publishes events as JSON on rockhound.events.<type>.
type Publisher struct {
	conn publishConn
	nc   *nats.Conn
}

// Connect establishes a NATS connection with reconnect handling.
func Connect(url string) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("rockhound-be"),
		nats.Timeout(5 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DrainTimeout(10 * time.Second),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
	return &Publisher{conn: nc, nc: nc}, nil
}

// Subject returns the subject an event type is published on. NATS tokens
// cannot contain spaces or wildcards, so those are replaced.
func Subject(eventType string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '*', '>':
			return '_'
		}
		return r
	}, strings.Trim(eventType, "."))
	if clean == "" {
		clean = "unknown"
	}
	return SubjectPrefix + clean
}

// Mirror publishes evt. It implements stream.Mirror.
func (p *Publisher) Mirror(evt models.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.conn.Publish(Subject(evt.Type), data)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("NATS drain failed")
		p.nc.Close()
	}
}
