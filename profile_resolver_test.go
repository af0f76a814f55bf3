package academia_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/academia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticCaller academia.Caller

func (s staticCaller) Caller() academia.Caller {
	return academia.Caller(s)
}

func TestProfileResolverResolveRole(t *testing.T) {
	boom := errors.New("disk on fire")

	tests := []struct {
		name     string
		doc      *academia.ProfileDocument
		err      error
		expected academia.Role
		check    func(t *testing.T, err error)
	}{
		{
			name:     "apprentice",
			doc:      &academia.ProfileDocument{UID: "u1", Role: academia.RoleApprentice},
			expected: academia.RoleApprentice,
		},
		{
			name:     "admin",
			doc:      &academia.ProfileDocument{UID: "u1", Role: academia.RoleAdmin},
			expected: academia.RoleAdmin,
		},
		{
			name:     "unknown role value",
			doc:      &academia.ProfileDocument{UID: "u1", Role: academia.Role("owner")},
			expected: academia.RoleUnknown,
		},
		{
			name:     "missing profile",
			err:      academia.ErrNotFound,
			expected: academia.RoleUnknown,
		},
		{
			name:     "permission denied",
			err:      academia.ErrPermissionDenied,
			expected: academia.RoleUnknown,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, academia.ErrPermissionDenied)
				assert.False(t, academia.IsNetworkError(err))
			},
		},
		{
			name:     "store failure",
			err:      boom,
			expected: academia.RoleUnknown,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, boom)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := new(MockProfileStore)
			store.On("ReadProfile", mock.Anything, academia.Caller{UID: "u1"}, "u1").Return(tt.doc, tt.err)

			resolver := academia.NewProfileResolver(store, staticCaller{UID: "u1"})
			role, err := resolver.ResolveRole(ctx, "u1")
			assert.Equal(t, tt.expected, role)
			if tt.check != nil {
				tt.check(t, err)
			} else {
				assert.NoError(t, err)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestProfileResolverEmptyUID(t *testing.T) {
	store := new(MockProfileStore)
	role, err := academia.NewProfileResolver(store, nil).ResolveRole(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, academia.RoleUnknown, role)
	store.AssertNotCalled(t, "ReadProfile", mock.Anything, mock.Anything, mock.Anything)
}

func TestProfileResolverReadsAsCurrentCaller(t *testing.T) {
	store := new(MockProfileStore)
	store.On("ReadProfile", mock.Anything, academia.Caller{}, "u1").Return(nil, academia.ErrPermissionDenied)

	_, err := academia.NewProfileResolver(store, staticCaller{}).ResolveRole(context.Background(), "u1")
	assert.ErrorIs(t, err, academia.ErrPermissionDenied)
}

func TestProfileResolverTimeoutIsNetworkError(t *testing.T) {
	store := new(MockProfileStore)
	store.On("ReadProfile", mock.Anything, mock.Anything, "u1").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	resolver := academia.NewProfileResolver(store, staticCaller{UID: "u1"},
		academia.WithResolverTimeout(10*time.Millisecond))

	_, err := resolver.ResolveRole(context.Background(), "u1")
	assert.True(t, academia.IsNetworkError(err))
}
