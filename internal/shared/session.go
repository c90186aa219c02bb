package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager orchestrates cookie based sessions backed by Redis. Sessions
// bound to an account are indexed so they can be revoked together.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session holds per-request session data.
type Session struct {
	ID        string
	values    map[string]string
	accountID string
	previous  string
	stored    bool
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	Values    map[string]string `json:"values"`
	AccountID string            `json:"account_id"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Load loads or creates a new session for request. An unknown or expired cookie
// yields a fresh session with a new identifier.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	payload, err := sm.client.Get(ctx, sessionKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	sess := sm.newSession()
	sess.ID = cookie.Value
	if stored.Values != nil {
		sess.values = stored.Values
	}
	sess.accountID = stored.AccountID
	sess.stored = true
	sess.isNew = false
	sess.dirty = false
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.forget(ctx, sess.ID, sess.accountID); err != nil {
			return err
		}
		http.SetCookie(w, sm.expiredCookie())
		return nil
	}

	if !sess.dirty {
		return nil
	}

	if sess.previous != "" {
		if err := sm.forget(ctx, sess.previous, sess.accountID); err != nil {
			return err
		}
		sess.previous = ""
	}

	data, err := json.Marshal(sessionPayload{Values: sess.values, AccountID: sess.accountID})
	if err != nil {
		return err
	}
	if sess.stored {
		// Refresh only: a session revoked mid-request stays revoked.
		ok, err := sm.client.SetXX(ctx, sessionKey(sess.ID), data, sm.ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			sess.destroyed = true
			http.SetCookie(w, sm.expiredCookie())
			return nil
		}
		if sess.accountID != "" {
			if err := sm.client.Expire(ctx, accountSessionsKey(sess.accountID), sm.ttl).Err(); err != nil {
				return err
			}
		}
	} else {
		pipe := sm.client.TxPipeline()
		pipe.Set(ctx, sessionKey(sess.ID), data, sm.ttl)
		if sess.accountID != "" {
			pipe.SAdd(ctx, accountSessionsKey(sess.accountID), sess.ID)
			pipe.Expire(ctx, accountSessionsKey(sess.accountID), sm.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		sess.stored = true
	}
	sess.dirty = false
	sess.isNew = false

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// RevokeAccount deletes every session bound to accountID and reports how many
// were removed.
func (sm *SessionManager) RevokeAccount(ctx context.Context, accountID string) (int, error) {
	index := accountSessionsKey(accountID)
	ids, err := sm.client.SMembers(ctx, index).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, index)
	removed, err := sm.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		removed-- // the index itself
	}
	return int(removed), nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

func (sm *SessionManager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (sm *SessionManager) forget(ctx context.Context, id, accountID string) error {
	pipe := sm.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	if accountID != "" {
		pipe.SRem(ctx, accountSessionsKey(accountID), id)
	}
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// BindAccount associates the session with an account and issues a new session
// identifier so a pre-login identifier cannot be reused.
func (s *Session) BindAccount(id string) {
	if !s.isNew {
		s.previous = s.ID
	}
	s.ID = uuid.NewString()
	s.accountID = id
	s.stored = false
	s.dirty = true
}

// AccountID returns the account bound to the session, if any.
func (s *Session) AccountID() string {
	return s.accountID
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:     uuid.NewString(),
		values: make(map[string]string),
		isNew:  true,
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

func accountSessionsKey(accountID string) string {
	return "account_sessions:" + accountID
}
