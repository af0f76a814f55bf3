package docstore_test

import (
	"context"
	"testing"

	"github.com/goliatone/academia"
	"github.com/goliatone/academia/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	rules, err := docstore.NewRules(nil)
	require.NoError(t, err)

	anon := academia.Caller{}
	ana := academia.Caller{UID: "ana"}

	tests := []struct {
		name     string
		req      docstore.Request
		expected bool
	}{
		{
			name:     "owner reads own profile",
			req:      docstore.Request{Collection: "users", Op: docstore.OpGet, DocID: "ana", Caller: ana, CallerRole: academia.RoleApprentice},
			expected: true,
		},
		{
			name:     "owner without profile reads own profile",
			req:      docstore.Request{Collection: "users", Op: docstore.OpGet, DocID: "ana", Caller: ana},
			expected: true,
		},
		{
			name:     "anonymous reads profile",
			req:      docstore.Request{Collection: "users", Op: docstore.OpGet, DocID: "ana", Caller: anon},
			expected: false,
		},
		{
			name:     "apprentice reads someone else",
			req:      docstore.Request{Collection: "users", Op: docstore.OpGet, DocID: "ben", Caller: ana, CallerRole: academia.RoleApprentice},
			expected: false,
		},
		{
			name:     "admin reads someone else",
			req:      docstore.Request{Collection: "users", Op: docstore.OpGet, DocID: "ben", Caller: ana, CallerRole: academia.RoleAdmin},
			expected: true,
		},
		{
			name:     "self create as apprentice",
			req:      docstore.Request{Collection: "users", Op: docstore.OpCreate, DocID: "ana", Caller: ana, Doc: map[string]any{"role": "apprentice"}},
			expected: true,
		},
		{
			name:     "self create as admin",
			req:      docstore.Request{Collection: "users", Op: docstore.OpCreate, DocID: "ana", Caller: ana, Doc: map[string]any{"role": "admin"}},
			expected: false,
		},
		{
			name:     "create for someone else",
			req:      docstore.Request{Collection: "users", Op: docstore.OpCreate, DocID: "ben", Caller: ana, Doc: map[string]any{"role": "apprentice"}},
			expected: false,
		},
		{
			name:     "create without role field",
			req:      docstore.Request{Collection: "users", Op: docstore.OpCreate, DocID: "ana", Caller: ana},
			expected: false,
		},
		{
			name:     "anonymous lists mentors",
			req:      docstore.Request{Collection: "mentors", Op: docstore.OpList, Caller: anon},
			expected: true,
		},
		{
			name:     "apprentice creates mentor",
			req:      docstore.Request{Collection: "mentors", Op: docstore.OpCreate, Caller: ana, CallerRole: academia.RoleApprentice},
			expected: false,
		},
		{
			name:     "admin deletes course",
			req:      docstore.Request{Collection: "courses", Op: docstore.OpDelete, Caller: ana, CallerRole: academia.RoleAdmin},
			expected: true,
		},
		{
			name:     "apprentice books for self",
			req:      docstore.Request{Collection: "bookings", Op: docstore.OpCreate, Caller: ana, Doc: map[string]any{"user_id": "ana", "status": "Pendiente"}},
			expected: true,
		},
		{
			name:     "booking created already accepted",
			req:      docstore.Request{Collection: "bookings", Op: docstore.OpCreate, Caller: ana, Doc: map[string]any{"user_id": "ana", "status": "Aceptado"}},
			expected: false,
		},
		{
			name:     "anonymous books",
			req:      docstore.Request{Collection: "bookings", Op: docstore.OpCreate, Caller: anon, Doc: map[string]any{"user_id": "", "status": "Pendiente"}},
			expected: false,
		},
		{
			name:     "apprentice lists bookings",
			req:      docstore.Request{Collection: "bookings", Op: docstore.OpList, Caller: ana, CallerRole: academia.RoleApprentice},
			expected: false,
		},
		{
			name:     "unknown collection",
			req:      docstore.Request{Collection: "payments", Op: docstore.OpGet, Caller: ana, CallerRole: academia.RoleAdmin},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, _ := rules.Allow(context.Background(), tt.req)
			assert.Equal(t, tt.expected, allowed)
		})
	}
}

func TestRulesOverrides(t *testing.T) {
	rules, err := docstore.NewRules(map[string]string{
		"mentors.list": "signed_in",
		"courses.get":  "",
	})
	require.NoError(t, err)

	allowed, err := rules.Allow(context.Background(), docstore.Request{Collection: "mentors", Op: docstore.OpList})
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = rules.Allow(context.Background(), docstore.Request{Collection: "courses", Op: docstore.OpGet})
	require.NoError(t, err)
	assert.False(t, allowed)

	_, ok := rules.Source("courses.get")
	assert.False(t, ok)
	assert.Contains(t, rules.Keys(), "mentors.list")
}

func TestRulesRejectInvalidExpressions(t *testing.T) {
	_, err := docstore.NewRules(map[string]string{"users.get": "auth_uid =="})
	assert.Error(t, err)

	_, err = docstore.NewRules(map[string]string{"users.get": "auth_uid"})
	assert.Error(t, err)

	_, err = docstore.NewRules(map[string]string{"users.get": "unknown_var == 1"})
	assert.Error(t, err)
}
