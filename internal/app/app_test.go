package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magiconsole/magi"
)

func testConfig(t *testing.T) magi.Config {
	t.Helper()
	cfg := magi.DefaultConfig()
	cfg.Providers.Primary.Auth = magi.Auth{}
	cfg.Providers.Secondary.Auth = magi.Auth{}
	cfg.Contact.ResendAPIKey = ""
	cfg.Server.Addr = "127.0.0.1:0"
	return cfg
}

func TestBuildPipeline_NoKeysAnswersLocally(t *testing.T) {
	p, err := BuildPipeline(testConfig(t), magi.StaticProfile(magi.DefaultProfile()))
	require.NoError(t, err)
	require.Len(t, p.Strategies(), 2)

	for _, s := range p.Strategies() {
		assert.False(t, s.Enabled(), s.Name())
	}

	reply := p.Respond(context.Background(), magi.Query{Text: "thanks"})
	assert.Equal(t, magi.SourceLocal, reply.Source)
	assert.Equal(t, magi.ReplyGratitude, reply.Text)
}

func TestBuildPipeline_ProviderNames(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Primary.Auth = magi.Auth{APIKey: "g"}
	cfg.Providers.Secondary.Auth = magi.Auth{APIKey: "q"}

	p, err := BuildPipeline(cfg, nil)
	require.NoError(t, err)

	s := p.Strategies()
	assert.Equal(t, "gemini", s[0].Name())
	assert.Equal(t, magi.SourcePrimary, s[0].Source())
	assert.Equal(t, "groq", s[1].Name())
	assert.Equal(t, magi.SourceSecondary, s[1].Source())
	assert.True(t, s[0].Enabled())
}

func TestBuildPipeline_UnknownKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Secondary.Kind = "carrier-pigeon"

	_, err := BuildPipeline(cfg, nil)
	assert.ErrorContains(t, err, "secondary provider")
}

func TestNew_SQLiteCounter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Counter.Backend = magi.BackendSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "visits.db")

	a, err := New(context.Background(), cfg, nil, "test")
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	for want := int64(1); want <= 2; want++ {
		req := httptest.NewRequest(http.MethodPost, "/api/system/visit", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		a.Server().Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Count int64 `json:"count"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, want, body.Count)
	}
}

func TestNew_ProfileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"user": {"name": "Ada"},
		"github": {"highlighted_projects": [{"name": "Difference Engine"}]}
	}`), 0o644))

	cfg := testConfig(t)
	cfg.Profile.Path = path

	a, err := New(context.Background(), cfg, nil, "test")
	require.NoError(t, err)
	defer a.Close()

	reply := a.Pipeline().Respond(context.Background(), magi.Query{Text: "show me a project"})
	assert.Equal(t, "[DATA]: Key Entry: Difference Engine.", reply.Text)
}

func TestNew_MissingProfile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Profile.Path = filepath.Join(t.TempDir(), "missing.json")

	_, err := New(context.Background(), cfg, nil, "test")
	assert.Error(t, err)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.ShutdownTimeout = time.Second

	a, err := New(context.Background(), cfg, nil, "test")
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSplitAddrs(t *testing.T) {
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, splitAddrs(" a@example.com, ,b@example.com "))
	assert.Nil(t, splitAddrs(""))
}
