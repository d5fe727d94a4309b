// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package nats

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

type publishedMsg struct {
	subject string
	data    []byte
}

type mockPublisher struct {
	mu       sync.Mutex
	messages []publishedMsg
	failWith error
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.messages = append(m.messages, publishedMsg{subject: subject, data: data})
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *mockPublisher) last() publishedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[len(m.messages)-1]
}

func TestNotifierForwardsAlerts(t *testing.T) {
	bus := eventbus.New()
	pub := &mockPublisher{}
	n := NewNotifier(pub, bus, nil)
	defer n.Close()

	alert := &models.SecurityAlert{
		ID:       uuid.New(),
		Type:     models.AlertSourceSignature,
		Severity: models.SeverityHigh,
		Title:    "SQL injection pattern detected",
	}
	bus.Publish(eventbus.Notification{Topic: eventbus.TopicAlertCreated, Alert: alert})

	if pub.count() != 1 {
		t.Fatalf("published messages = %d, want 1", pub.count())
	}

	msg := pub.last()
	if msg.subject != SubjectAlertCreated {
		t.Errorf("subject = %q, want %q", msg.subject, SubjectAlertCreated)
	}

	var env envelope
	if err := json.Unmarshal(msg.data, &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if env.Subject != SubjectAlertCreated {
		t.Errorf("envelope subject = %q, want %q", env.Subject, SubjectAlertCreated)
	}

	var decoded models.SecurityAlert
	if err := json.Unmarshal(env.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.ID != alert.ID {
		t.Errorf("payload alert ID = %s, want %s", decoded.ID, alert.ID)
	}
	if decoded.Title != alert.Title {
		t.Errorf("payload title = %q, want %q", decoded.Title, alert.Title)
	}
}

func TestNotifierForwardsEachTopic(t *testing.T) {
	bus := eventbus.New()
	pub := &mockPublisher{}
	n := NewNotifier(pub, bus, nil)
	defer n.Close()

	alert := &models.SecurityAlert{ID: uuid.New()}
	bus.Publish(eventbus.Notification{Topic: eventbus.TopicAlertCreated, Alert: alert})
	bus.Publish(eventbus.Notification{Topic: eventbus.TopicAlertResolved, Alert: alert})
	bus.Publish(eventbus.Notification{Topic: eventbus.TopicCriticalAlert, Alert: alert})
	bus.Publish(eventbus.Notification{Topic: eventbus.TopicEscalation, Error: &models.SecurityError{ID: uuid.New()}})
	bus.Publish(eventbus.Notification{Topic: eventbus.TopicIncidentOpened, Incident: &models.SecurityIncident{ID: uuid.New()}})
	bus.Publish(eventbus.Notification{Topic: eventbus.TopicMetricsCaptured, Metrics: &models.SecurityMetrics{}})

	if pub.count() != 6 {
		t.Fatalf("published messages = %d, want 6", pub.count())
	}

	wantSubjects := map[string]bool{
		SubjectAlertCreated:  false,
		SubjectAlertResolved: false,
		SubjectCriticalAlert: false,
		SubjectEscalation:    false,
		SubjectIncident:      false,
		SubjectMetrics:       false,
	}
	pub.mu.Lock()
	for _, msg := range pub.messages {
		wantSubjects[msg.subject] = true
	}
	pub.mu.Unlock()
	for subject, seen := range wantSubjects {
		if !seen {
			t.Errorf("subject %q never published", subject)
		}
	}
}

func TestNotifierSwallowsPublishFailure(t *testing.T) {
	bus := eventbus.New()
	pub := &mockPublisher{failWith: fmt.Errorf("connection lost")}
	n := NewNotifier(pub, bus, nil)
	defer n.Close()

	// Must not panic or propagate.
	bus.Publish(eventbus.Notification{
		Topic: eventbus.TopicAlertCreated,
		Alert: &models.SecurityAlert{ID: uuid.New()},
	})
}

func TestNotifierCloseDetaches(t *testing.T) {
	bus := eventbus.New()
	pub := &mockPublisher{}
	n := NewNotifier(pub, bus, nil)
	n.Close()
	n.Close()

	bus.Publish(eventbus.Notification{
		Topic: eventbus.TopicAlertCreated,
		Alert: &models.SecurityAlert{ID: uuid.New()},
	})
	if pub.count() != 0 {
		t.Errorf("published messages = %d, want 0 after Close", pub.count())
	}
}
