package academia

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess   ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure   ActivityEventType = "auth.signin.failure"
	ActivityEventSignUp          ActivityEventType = "auth.signup"
	ActivityEventFederatedSignIn ActivityEventType = "auth.federated.signin"
	ActivityEventSignOut         ActivityEventType = "auth.signout"
	ActivityEventRoleChanged     ActivityEventType = "profile.role.changed"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// LoggingActivitySink writes every event to a logger.
func LoggingActivitySink(logger Logger) ActivitySink {
	if logger == nil {
		logger = NopLogger{}
	}
	return ActivitySinkFunc(func(_ context.Context, e ActivityEvent) error {
		logger.Info("activity", "type", e.EventType, "user_id", e.UserID, "email", e.Email)
		return nil
	})
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

// NormalizeActivitySink returns a no-op sink for nil.
func NormalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
