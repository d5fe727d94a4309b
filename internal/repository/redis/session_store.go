// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
)

const sessionKeyPrefix = "secanalyzer:session:"

// SessionStore implements the session authority's store on Redis. Keys
// carry a TTL slightly beyond the session expiry, so even a crashed process
// leaves no immortal sessions behind.
type SessionStore struct {
	client *Client

	// ttlSlack keeps keys alive past logical expiry so the authority can
	// observe and terminate expired sessions instead of finding them gone.
	ttlSlack time.Duration
}

// NewSessionStore creates a session store.
func NewSessionStore(client *Client) *SessionStore {
	return &SessionStore{
		client:   client,
		ttlSlack: 10 * time.Minute,
	}
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

// Put stores or replaces a session.
func (s *SessionStore) Put(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "marshal session")
	}

	ttl := time.Until(session.ExpiresAt) + s.ttlSlack
	if ttl <= 0 {
		ttl = s.ttlSlack
	}

	if err := s.client.rdb.Set(ctx, sessionKey(session.ID), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "store session")
	}
	return nil
}

// Get loads a session by id.
func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	data, err := s.client.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.NotFound("session")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "load session")
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "unmarshal session")
	}
	return &session, nil
}

// Delete removes a session. Deleting an absent session is a no-op.
func (s *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete session")
	}
	return nil
}

// List returns all stored sessions.
func (s *SessionStore) List(ctx context.Context) ([]*models.Session, error) {
	var sessions []*models.Session
	iter := s.client.rdb.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.rdb.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "load session")
		}
		var session models.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "unmarshal session")
		}
		sessions = append(sessions, &session)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "scan sessions")
	}
	return sessions, nil
}

// Count returns the number of stored sessions.
func (s *SessionStore) Count(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.rdb.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "scan sessions")
	}
	return n, nil
}
