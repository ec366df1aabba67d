// Package natsfeed publishes archived records to NATS for live consumers,
// mirroring the JSONL lines written to disk.
package natsfeed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
)

// DefaultSubject is the subject records are published to.
const DefaultSubject = "adsb.records"

// Publisher fans archived records out over NATS. Publishing is best-effort:
// a failed publish is logged and dropped, never blocking the ingest loop.
type Publisher struct {
	Subject string

	nc *nats.Conn
}

// Connect dials the NATS server and returns a publisher. The connection
// reconnects indefinitely on its own.
func Connect(url, subject string) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	nc, err := nats.Connect(url,
		nats.Name("adsb-logger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logrus.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"url":     url,
		"subject": subject,
	}).Info("nats feed connected")
	return &Publisher{Subject: subject, nc: nc}, nil
}

// PublishRecords publishes each record as one compact JSON message.
func (p *Publisher) PublishRecords(recs []adsb.Record) {
	for _, rec := range recs {
		b, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		if err := p.nc.Publish(p.Subject, b); err != nil {
			logrus.WithError(err).Debug("nats publish failed")
			return
		}
	}
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	_ = p.nc.Flush()
	p.nc.Close()
}
