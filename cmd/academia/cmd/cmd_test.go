package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/academia"
	"github.com/goliatone/academia/config"
	"github.com/goliatone/academia/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testConfigFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return writeFile(t, "academia.yaml", `
auth:
  signing_key: "test-signing-key-0123456789"
  password_cost: 4
persistence:
  dsn: "`+filepath.ToSlash(filepath.Join(dir, "academia.db"))+`"
storage:
  dir: "`+filepath.ToSlash(filepath.Join(dir, "uploads"))+`"
log:
  level: error
`)
}

func setupApp(t *testing.T) *app {
	t.Helper()
	cfg, err := config.Load(testConfigFile(t))
	require.NoError(t, err)

	a, err := openAppWith(context.Background(), cfg, io.Discard, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

const fixturesYAML = `
users:
  - name: Root
    email: Root@Example.com
    password: change-me
    role: admin
  - name: Ana
    email: a@x.com
    password: P4ssword
mentors:
  - name: Bruno
    experience: Matemáticas
    languages: [Español, Inglés]
courses:
  - title: Álgebra
    status: Publicado
    videos:
      - url: https://example.com/intro
        title: Introducción
`

func TestSeed(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	fixtures, err := loadFixtures(writeFile(t, "fixtures.yml", fixturesYAML))
	require.NoError(t, err)

	backend, err := a.identity()
	require.NoError(t, err)

	report, err := seed(ctx, a.docs, backend, fixtures, academia.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Users: 2, Mentors: 1, Courses: 1}, report)

	root, err := a.docs.Repositories().Profiles().GetByIdentifier(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, academia.RoleAdmin, root.Role)

	ana, err := a.docs.Repositories().Profiles().GetByIdentifier(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, academia.RoleApprentice, ana.Role)

	caller := academia.Caller{UID: root.ID.String()}
	mentors, err := a.docs.ListMentors(ctx, caller, docstore.MentorFilter{Status: docstore.MentorActive})
	require.NoError(t, err)
	require.Len(t, mentors, 1)
	assert.Equal(t, []string{"Español", "Inglés"}, mentors[0].Languages)

	courses, err := a.docs.ListCourses(ctx, caller, docstore.CourseFilter{})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, []docstore.MediaLink{{URL: "https://example.com/intro", Title: "Introducción"}}, courses[0].Videos)

	// seeding again skips existing accounts
	report, err = seed(ctx, a.docs, backend, &Fixtures{Users: fixtures.Users}, academia.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Skipped: 2}, report)
}

func TestSeedRejectsUnknownRole(t *testing.T) {
	a := setupApp(t)
	backend, err := a.identity()
	require.NoError(t, err)

	_, err = seed(context.Background(), a.docs, backend, &Fixtures{
		Users: []UserFixture{{Name: "X", Email: "x@x.com", Password: "P4ssword", Role: "root"}},
	}, academia.NopLogger{})
	assert.ErrorIs(t, err, academia.ErrValidation)
}

func TestLoadFixturesErrors(t *testing.T) {
	_, err := loadFixtures(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = loadFixtures(writeFile(t, "bad.yml", "users: [\n"))
	assert.Error(t, err)
}

func TestGrantRole(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	backend, err := a.identity()
	require.NoError(t, err)
	_, err = seed(ctx, a.docs, backend, &Fixtures{
		Users: []UserFixture{{Name: "Ana", Email: "a@x.com", Password: "P4ssword"}},
	}, academia.NopLogger{})
	require.NoError(t, err)

	profile, err := grantRole(ctx, a.docs, " A@X.com ", "admin")
	require.NoError(t, err)
	assert.Equal(t, academia.RoleAdmin, profile.Role)

	stored, err := a.docs.Repositories().Profiles().GetByIdentifier(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, academia.RoleAdmin, stored.Role)

	_, err = grantRole(ctx, a.docs, "a@x.com", "superuser")
	assert.ErrorIs(t, err, academia.ErrValidation)

	_, err = grantRole(ctx, a.docs, "nobody@x.com", "admin")
	assert.Error(t, err)
}

func TestNewSocialAuthenticatorDisabled(t *testing.T) {
	cfg, err := config.Load(testConfigFile(t))
	require.NoError(t, err)

	a, closeFn, err := newSocialAuthenticator(cfg, academia.NewTextLogger(io.Discard, 0))
	require.NoError(t, err)
	defer closeFn()
	assert.Nil(t, a)
}

func TestNewSocialAuthenticatorGitHub(t *testing.T) {
	cfg, err := config.Load(testConfigFile(t))
	require.NoError(t, err)
	cfg.GitHub.Enabled = true
	cfg.GitHub.ClientID = "id"
	cfg.GitHub.ClientSecret = "secret"
	cfg.GitHub.CallbackURL = "http://localhost:8080/auth/github/callback"
	cfg.Auth.StateEncryptionKey = "0123456789abcdef0123456789abcdef"
	cfg.Auth.StateHMACKey = "fedcba9876543210"

	a, closeFn, err := newSocialAuthenticator(cfg, academia.NewTextLogger(io.Discard, 0))
	require.NoError(t, err)
	defer closeFn()
	require.NotNil(t, a)
	assert.Equal(t, []string{"github"}, a.Providers())
}

func TestSetupTracingDisabled(t *testing.T) {
	cfg, err := config.Load(testConfigFile(t))
	require.NoError(t, err)

	shutdown, err := setupTracing(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := runRoot(t, "version")
	assert.Contains(t, out, "academia "+Version)
}

func TestConfigCommandOmitsSecrets(t *testing.T) {
	out := runRoot(t, "--config", testConfigFile(t), "config")
	assert.Contains(t, out, `"password_cost": 4`)
	assert.NotContains(t, out, "test-signing-key-0123456789")
}

func TestMigrateStatusCommand(t *testing.T) {
	path := testConfigFile(t)
	runRoot(t, "--config", path, "migrate", "up")
	out := runRoot(t, "--config", path, "migrate", "status")
	assert.Contains(t, out, "applied")
	assert.NotContains(t, out, "pending")
}
