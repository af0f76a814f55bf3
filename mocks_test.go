package academia_test

import (
	"context"
	"sync"

	"github.com/goliatone/academia"
	"github.com/stretchr/testify/mock"
)

// MockBackend implements academia.AuthBackend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SignIn(ctx context.Context, email, password string) (*academia.Credential, error) {
	args := m.Called(ctx, email, password)
	cred, _ := args.Get(0).(*academia.Credential)
	return cred, args.Error(1)
}

func (m *MockBackend) SignUp(ctx context.Context, email, password, displayName string) (*academia.Credential, error) {
	args := m.Called(ctx, email, password, displayName)
	cred, _ := args.Get(0).(*academia.Credential)
	return cred, args.Error(1)
}

func (m *MockBackend) SignInFederated(ctx context.Context, provider string, callback academia.FederatedCallback) (*academia.Credential, error) {
	args := m.Called(ctx, provider, callback)
	cred, _ := args.Get(0).(*academia.Credential)
	return cred, args.Error(1)
}

func (m *MockBackend) Verify(ctx context.Context, token string) (*academia.Identity, error) {
	args := m.Called(ctx, token)
	id, _ := args.Get(0).(*academia.Identity)
	return id, args.Error(1)
}

func (m *MockBackend) SignOut(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// MockProfileStore implements academia.ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) ReadProfile(ctx context.Context, caller academia.Caller, uid string) (*academia.ProfileDocument, error) {
	args := m.Called(ctx, caller, uid)
	doc, _ := args.Get(0).(*academia.ProfileDocument)
	return doc, args.Error(1)
}

func (m *MockProfileStore) CreateProfile(ctx context.Context, caller academia.Caller, doc academia.ProfileDocument) error {
	args := m.Called(ctx, caller, doc)
	return args.Error(0)
}

// memoryProfiles is a ProfileStore with the same read rule as the real
// document store: a profile is readable by its owner only.
type memoryProfiles struct {
	mu   sync.Mutex
	docs map[string]academia.ProfileDocument
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{docs: map[string]academia.ProfileDocument{}}
}

func (m *memoryProfiles) ReadProfile(_ context.Context, caller academia.Caller, uid string) (*academia.ProfileDocument, error) {
	if caller.UID != uid {
		return nil, academia.ErrPermissionDenied
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[uid]
	if !ok {
		return nil, academia.ErrNotFound
	}
	return &doc, nil
}

func (m *memoryProfiles) CreateProfile(_ context.Context, caller academia.Caller, doc academia.ProfileDocument) error {
	if caller.UID != doc.UID || doc.Role != academia.RoleApprentice {
		return academia.ErrPermissionDenied
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.UID]; ok {
		return academia.ErrAlreadyExists
	}
	m.docs[doc.UID] = doc
	return nil
}

func (m *memoryProfiles) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// fakeSource is an IdentitySource driven by the test.
type fakeSource struct {
	mu      sync.Mutex
	current *academia.Identity
	subs    map[int]func(*academia.Identity)
	next    int
}

func newFakeSource(current *academia.Identity) *fakeSource {
	return &fakeSource{current: current, subs: map[int]func(*academia.Identity){}}
}

func (f *fakeSource) Subscribe(fn func(*academia.Identity)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	current := f.current
	f.mu.Unlock()

	fn(current)
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeSource) Emit(id *academia.Identity) {
	f.mu.Lock()
	f.current = id
	subs := make([]func(*academia.Identity), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(id)
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type resolverFunc func(ctx context.Context, uid string) (academia.Role, error)

func (f resolverFunc) ResolveRole(ctx context.Context, uid string) (academia.Role, error) {
	return f(ctx, uid)
}

type resolveResult struct {
	role academia.Role
	err  error
}

// scriptedResolver blocks every lookup until the test replies for its uid.
type scriptedResolver struct {
	mu      sync.Mutex
	replies map[string]chan resolveResult
	started chan string
}

func newScriptedResolver() *scriptedResolver {
	return &scriptedResolver{
		replies: map[string]chan resolveResult{},
		started: make(chan string, 16),
	}
}

func (r *scriptedResolver) channel(uid string) chan resolveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.replies[uid]
	if !ok {
		ch = make(chan resolveResult, 4)
		r.replies[uid] = ch
	}
	return ch
}

func (r *scriptedResolver) ResolveRole(ctx context.Context, uid string) (academia.Role, error) {
	r.started <- uid
	select {
	case res := <-r.channel(uid):
		return res.role, res.err
	case <-ctx.Done():
		return academia.RoleUnknown, ctx.Err()
	}
}

func (r *scriptedResolver) Reply(uid string, role academia.Role, err error) {
	r.channel(uid) <- resolveResult{role: role, err: err}
}

// fakeFlow is a FederatedFlow with a canned result.
type fakeFlow struct {
	provider string
	callback academia.FederatedCallback
	err      error
}

func (f fakeFlow) Provider() string {
	return f.provider
}

func (f fakeFlow) Await(context.Context) (academia.FederatedCallback, error) {
	return f.callback, f.err
}

// recorder collects every snapshot a listener receives.
type recorder struct {
	mu       sync.Mutex
	sessions []academia.Session
}

func (r *recorder) listen(s academia.Session) {
	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
}

func (r *recorder) all() []academia.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]academia.Session(nil), r.sessions...)
}

func identity(uid string) *academia.Identity {
	return &academia.Identity{UID: uid, Email: uid + "@example.com", DisplayName: uid}
}
