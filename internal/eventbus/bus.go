// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package eventbus provides a typed in-process publish/subscribe bus for
// security notifications. Consumers register and tear down handlers
// deterministically; there is no ambient global emitter.
package eventbus

import (
	"sync"
	"time"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

// Topic identifies a notification stream.
type Topic string

const (
	TopicAlertCreated    Topic = "alert.created"
	TopicAlertResolved   Topic = "alert.resolved"
	TopicCriticalAlert   Topic = "alert.critical"
	TopicErrorClassified Topic = "error.classified"
	TopicEscalation      Topic = "error.escalation"
	TopicIncidentOpened  Topic = "incident.opened"
	TopicMetricsCaptured Topic = "metrics.captured"
)

// Notification is the payload delivered to subscribers. Exactly one of the
// pointer fields is set, matching the topic.
type Notification struct {
	Topic    Topic
	At       time.Time
	Alert    *models.SecurityAlert
	Error    *models.SecurityError
	Incident *models.SecurityIncident
	Metrics  *models.SecurityMetrics
}

// Handler receives notifications. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Notification)

// Subscription identifies a registered handler for teardown.
type Subscription struct {
	bus   *Bus
	topic Topic
	id    int
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if handlers, ok := s.bus.handlers[s.topic]; ok {
		delete(handlers, s.id)
	}
	s.bus = nil
}

// Bus is a synchronous typed event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic]map[int]Handler
	nextID   int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[Topic]map[int]Handler)}
}

// Subscribe registers a handler for a topic and returns its subscription.
func (b *Bus) Subscribe(topic Topic, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]Handler)
	}
	b.nextID++
	b.handlers[topic][b.nextID] = h

	return &Subscription{bus: b, topic: topic, id: b.nextID}
}

// Publish delivers a notification to every handler subscribed to its topic.
func (b *Bus) Publish(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[n.Topic]))
	for _, h := range b.handlers[n.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(n)
	}
}

// SubscriberCount returns the number of handlers registered for a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}
