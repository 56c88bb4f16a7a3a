package authpipe

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authpipe/refresh"
	"github.com/google/uuid"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventRefreshSuccess   = "refresh_success"
	auditEventRefreshDenied    = "refresh_denied"
	auditEventRefreshFailure   = "refresh_failure"
	auditEventSessionEnded     = "session_ended"
	auditEventLogout           = "logout"
	auditEventLogoutNotifyFail = "logout_notify_failure"
)

// AuditErrorCode is the coarse error class recorded on failed events.
type AuditErrorCode string

const (
	auditErrRefreshDenied  AuditErrorCode = "refresh_denied"
	auditErrNoRefreshToken AuditErrorCode = "no_refresh_token"
	auditErrCircuitOpen    AuditErrorCode = "circuit_open"
	auditErrThrottled      AuditErrorCode = "throttled"
	auditErrLoginRejected  AuditErrorCode = "login_rejected"
	auditErrServerRejected AuditErrorCode = "server_rejected"
	auditErrCancelled      AuditErrorCode = "cancelled"
	auditErrMalformed      AuditErrorCode = "malformed_response"
	auditErrUnavailable    AuditErrorCode = "unavailable"
)

func (c *Client) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["request_id"] = id
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Subject:   subject,
		Device:    c.cfg.Device,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	c.audit.Emit(ctx, event)
}

// currentSubject is the subject of the stored access token, if decodable.
func (c *Client) currentSubject() string {
	status := c.state.CurrentStatus()
	if status.Principal == nil {
		return ""
	}
	return status.Principal.Subject
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, refresh.ErrNoRefreshToken):
		return auditErrNoRefreshToken
	case errors.Is(err, refresh.ErrDenied):
		return auditErrRefreshDenied
	case errors.Is(err, refresh.ErrCircuitOpen):
		return auditErrCircuitOpen
	case errors.Is(err, refresh.ErrThrottled):
		return auditErrThrottled
	case errors.Is(err, refresh.ErrMalformedResponse):
		return auditErrMalformed
	case errors.Is(err, ErrLoginRejected):
		return auditErrLoginRejected
	case errors.Is(err, ErrServerRejected):
		return auditErrServerRejected
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCancelled
	default:
		return auditErrUnavailable
	}
}
