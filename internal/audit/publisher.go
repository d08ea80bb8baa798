// Package audit publishes security-relevant events (login, refresh,
// reuse detection, lockouts) to NATS on a best-effort basis. A missing
// or unreachable broker disables publishing rather than failing the
// request path that triggered the event.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/zeromicro/go-zero/core/logx"
)

// Event is a single audit record.
type Event struct {
	Type      string    `json:"type"`
	Username  string    `json:"username,omitempty"`
	JTI       string    `json:"jti,omitempty"`
	FamilyID  string    `json:"familyId,omitempty"`
	ClientIP  string    `json:"clientIp,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event type constants published by the use cases.
const (
	EventLoginSuccess  = "login.success"
	EventLoginFailure  = "login.failure"
	EventTokenRefresh  = "token.refresh"
	EventRefreshReused = "refresh.reused"
	EventUserLocked    = "user.locked"
	EventSessionRevoke = "session.revoked"
)

const subject = "auth.audit"

// Publisher publishes Events to NATS. The zero value is usable and
// disabled: Publish becomes a no-op.
type Publisher struct {
	conn    *nats.Conn
	enabled bool
}

// NewPublisher connects to natsURL. An empty URL or a failed connection
// yields a disabled Publisher rather than an error, matching the rest
// of the core's disabled-when-unconfigured policy for optional
// collaborators.
func NewPublisher(natsURL string) *Publisher {
	if natsURL == "" {
		logx.Info("audit: NATS_URL not configured, audit publishing disabled")
		return &Publisher{enabled: false}
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("auth-core-audit-publisher"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logx.Errorf("audit: NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logx.Infof("audit: NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		logx.Errorf("audit: failed to connect to NATS at %s, audit publishing disabled: %v", natsURL, err)
		return &Publisher{enabled: false}
	}

	return &Publisher{conn: conn, enabled: true}
}

// Publish sends evt to the audit subject. Failures are logged and
// swallowed; audit delivery is best-effort and must never fail the
// caller's request.
func (p *Publisher) Publish(ctx context.Context, evt Event) {
	if p == nil || !p.enabled {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		logx.WithContext(ctx).Errorf("audit: marshal event %s failed: %v", evt.Type, err)
		return
	}

	if err := p.conn.Publish(subject, payload); err != nil {
		logx.WithContext(ctx).Errorf("audit: publish event %s failed: %v", evt.Type, err)
	}
}

// Close drains and closes the underlying NATS connection, if any.
func (p *Publisher) Close() {
	if p == nil || !p.enabled {
		return
	}
	_ = p.conn.Drain()
}
