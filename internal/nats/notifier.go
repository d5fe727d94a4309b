// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package nats

import (
	"encoding/json"
	"time"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
)

// NATS subjects for outbound security notifications.
const (
	SubjectAlertCreated  = "secanalyzer.alert.created"
	SubjectAlertResolved = "secanalyzer.alert.resolved"
	SubjectCriticalAlert = "secanalyzer.alert.critical"
	SubjectEscalation    = "secanalyzer.error.escalation"
	SubjectIncident      = "secanalyzer.incident.opened"
	SubjectMetrics       = "secanalyzer.metrics"
)

// Publisher is the transport the notifier publishes through. *Client
// satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// envelope is the wire format for outbound notifications.
type envelope struct {
	Subject string          `json:"subject"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// Notifier forwards bus notifications to NATS subjects. Publish failures are
// logged and dropped; external delivery is best effort and must never block
// or fail the security pipeline.
type Notifier struct {
	publisher Publisher
	logger    *logger.Logger
	subs      []*eventbus.Subscription
}

// NewNotifier attaches a notifier to the bus and returns it for teardown.
func NewNotifier(publisher Publisher, bus *eventbus.Bus, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}

	n := &Notifier{
		publisher: publisher,
		logger:    log.Named("notifier"),
	}

	n.subs = append(n.subs,
		bus.Subscribe(eventbus.TopicAlertCreated, n.forward(SubjectAlertCreated)),
		bus.Subscribe(eventbus.TopicAlertResolved, n.forward(SubjectAlertResolved)),
		bus.Subscribe(eventbus.TopicCriticalAlert, n.forward(SubjectCriticalAlert)),
		bus.Subscribe(eventbus.TopicEscalation, n.forward(SubjectEscalation)),
		bus.Subscribe(eventbus.TopicIncidentOpened, n.forward(SubjectIncident)),
		bus.Subscribe(eventbus.TopicMetricsCaptured, n.forward(SubjectMetrics)),
	)

	return n
}

// Close detaches all bus subscriptions. Safe to call more than once.
func (n *Notifier) Close() {
	for _, sub := range n.subs {
		sub.Unsubscribe()
	}
	n.subs = nil
}

func (n *Notifier) forward(subject string) eventbus.Handler {
	return func(note eventbus.Notification) {
		payload, err := payloadFor(note)
		if err != nil {
			n.logger.Error("failed to encode notification", "subject", subject, "error", err)
			return
		}

		data, err := json.Marshal(envelope{
			Subject: subject,
			At:      note.At,
			Payload: payload,
		})
		if err != nil {
			n.logger.Error("failed to encode envelope", "subject", subject, "error", err)
			return
		}

		if err := n.publisher.Publish(subject, data); err != nil {
			n.logger.Warn("failed to publish notification", "subject", subject, "error", err)
		}
	}
}

// payloadFor serialises whichever payload field the notification carries.
func payloadFor(note eventbus.Notification) (json.RawMessage, error) {
	switch {
	case note.Alert != nil:
		return json.Marshal(note.Alert)
	case note.Error != nil:
		return json.Marshal(note.Error)
	case note.Incident != nil:
		return json.Marshal(note.Incident)
	case note.Metrics != nil:
		return json.Marshal(note.Metrics)
	default:
		return json.Marshal(struct{}{})
	}
}
