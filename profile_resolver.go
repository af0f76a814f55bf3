package academia

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/academia"

// ProfileResolver looks up the role stored in users/{uid}. Reads are issued
// as the caller the source reports at lookup time, so a read racing a sign
// out is rejected by the access rules instead of leaking a role.
type ProfileResolver struct {
	reader  ProfileReader
	callers CallerSource
	timeout time.Duration
	logger  Logger
	tracer  trace.Tracer
}

// ResolverOption configures a ProfileResolver.
type ResolverOption func(*ProfileResolver)

// WithResolverLogger sets the logger.
func WithResolverLogger(l Logger) ResolverOption {
	return func(r *ProfileResolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithResolverTimeout bounds every lookup. Zero disables the bound.
func WithResolverTimeout(d time.Duration) ResolverOption {
	return func(r *ProfileResolver) {
		r.timeout = d
	}
}

// NewProfileResolver creates a resolver reading through reader as the caller
// reported by callers.
func NewProfileResolver(reader ProfileReader, callers CallerSource, opts ...ResolverOption) *ProfileResolver {
	_, logger := ResolveLogger("academia.profile_resolver", nil, nil)
	r := &ProfileResolver{
		reader:  reader,
		callers: callers,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ResolveRole returns the role for uid. A missing profile resolves to
// RoleUnknown without error. Access rule rejections come back as
// ErrPermissionDenied and are expected right after a sign out.
func (r *ProfileResolver) ResolveRole(ctx context.Context, uid string) (Role, error) {
	if uid == "" {
		return RoleUnknown, nil
	}

	ctx, span := r.tracer.Start(ctx, "profile.resolve_role", trace.WithAttributes(attribute.String("uid", uid)))
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	caller := Caller{}
	if r.callers != nil {
		caller = r.callers.Caller()
	}

	doc, err := r.reader.ReadProfile(ctx, caller, uid)
	if err != nil {
		if IsNotFound(err) {
			r.logger.Debug("profile not found", "uid", uid)
			return RoleUnknown, nil
		}
		span.RecordError(err)
		if IsPermissionDenied(err) {
			span.SetStatus(codes.Unset, "permission denied")
			return RoleUnknown, err
		}
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return RoleUnknown, fmt.Errorf("%w: resolve role: %w", ErrNetwork, err)
		}
		return RoleUnknown, fmt.Errorf("resolve role: %w", err)
	}

	role, ok := ParseRole(string(doc.Role))
	if !ok {
		r.logger.Info("profile has an unknown role", "uid", uid, "role", doc.Role)
	}
	span.SetAttributes(attribute.String("role", role.String()))
	return role, nil
}
