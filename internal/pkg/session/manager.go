// internal/pkg/session/manager.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager keeps the list of sessions signed out before their access token
// expired. Entries live only as long as the token could still be presented.
type Manager struct {
	client *redis.Client
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{client: client}
}

// RevokeSession marks a provider session id as signed out for ttl.
func (m *Manager) RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	if sessionID == "" || ttl <= 0 {
		return nil
	}
	if err := m.client.Set(ctx, m.revokedKey(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked checks if a session id has been signed out.
func (m *Manager) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	exists, err := m.client.Exists(ctx, m.revokedKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return exists > 0, nil
}

func (m *Manager) revokedKey(sessionID string) string {
	return fmt.Sprintf("revoked_session:%s", sessionID)
}
