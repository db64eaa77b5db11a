package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/contextbridge/internal/config"
	"github.com/MikeSquared-Agency/contextbridge/internal/credential"
)

func TestOpenSecretSource(t *testing.T) {
	ctx := context.Background()

	t.Run("env", func(t *testing.T) {
		src, closeFn, err := openSecretSource(ctx, config.Config{SecretsBackend: "env"})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, credential.EnvSource{}, src)
	})

	t.Run("none", func(t *testing.T) {
		src, _, err := openSecretSource(ctx, config.Config{SecretsBackend: "none"})
		require.NoError(t, err)
		assert.Nil(t, src)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secrets.yaml")
		require.NoError(t, os.WriteFile(path, []byte("GOOGLE_API_KEY: from-file\n"), 0o600))

		src, _, err := openSecretSource(ctx, config.Config{SecretsBackend: "file", SecretsFile: path})
		require.NoError(t, err)
		v, ok, err := src.Lookup(ctx, "GOOGLE_API_KEY")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "from-file", v)
	})

	t.Run("file without path", func(t *testing.T) {
		_, _, err := openSecretSource(ctx, config.Config{SecretsBackend: "file"})
		assert.Error(t, err)
	})

	t.Run("postgres without url", func(t *testing.T) {
		_, _, err := openSecretSource(ctx, config.Config{SecretsBackend: "postgres"})
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := openSecretSource(ctx, config.Config{SecretsBackend: "vault"})
		assert.ErrorContains(t, err, "vault")
	})
}

func TestReadTranscript(t *testing.T) {
	got, err := readTranscript(strings.NewReader("from stdin"), "")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	path := filepath.Join(t.TempDir(), "call.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o600))
	got, err = readTranscript(strings.NewReader("ignored"), path)
	require.NoError(t, err)
	assert.Equal(t, "from file", got)

	_, err = readTranscript(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

// geminiStub answers generateContent for "good" and fails everything else.
func geminiStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "cli-key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":401,"message":"bad key","status":"UNAUTHENTICATED"}}`))
			return
		}
		if !strings.Contains(r.URL.Path, "/models/good:") {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"goals\":\"SSO\",\"tech_stack\":[\"Go\",\"Postgres\"]}"}]}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, stdin string, args ...string) (extractResult, error) {
	t.Helper()
	extractFlags.file, extractFlags.apiKey, extractFlags.account = "", "", ""

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	var res extractResult
	if out.Len() > 0 {
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	}
	return res, err
}

func setCLIEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("CONTEXTBRIDGE_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("GEMINI_BASE_URL", baseURL)
	t.Setenv("CONTEXTBRIDGE_MODELS", "flaky,good")
	t.Setenv("CONTEXTBRIDGE_PROVIDER", "gemini")
	t.Setenv("CONTEXTBRIDGE_SECRETS_BACKEND", "env")
	t.Setenv("CONTEXTBRIDGE_SECRET_KEY", "CONTEXTBRIDGE_TEST_KEY")
	t.Setenv("CONTEXTBRIDGE_TEST_KEY", "")
}

func TestExtractCommand(t *testing.T) {
	setCLIEnv(t, geminiStub(t).URL)

	res, err := runCLI(t, "We promised SSO on a Go and Postgres stack.", "extract", "--api-key", "cli-key", "--account", "Acme")
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, "good", res.ModelUsed)
	assert.Equal(t, "Acme", res.Account)
	assert.Equal(t, "SSO", res.Record.Goals.String())
	assert.Equal(t, "Go, Postgres", res.Record.TechStack.String())
	assert.Equal(t, "N/A", res.Record.Risks.String())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "flaky", res.Failures[0].Model)
}

func TestExtractCommand_ManagedKey(t *testing.T) {
	setCLIEnv(t, geminiStub(t).URL)
	t.Setenv("CONTEXTBRIDGE_TEST_KEY", "cli-key")

	res, err := runCLI(t, "call notes", "extract")
	require.NoError(t, err)
	assert.Equal(t, "good", res.ModelUsed)
}

func TestExtractCommand_NoKey(t *testing.T) {
	setCLIEnv(t, geminiStub(t).URL)

	_, err := runCLI(t, "call notes", "extract")
	assert.ErrorIs(t, err, errNoKey)
}

func TestExtractCommand_Exhausted(t *testing.T) {
	setCLIEnv(t, geminiStub(t).URL)

	res, err := runCLI(t, "call notes", "extract", "--api-key", "wrong-key")
	require.Error(t, err)
	assert.Nil(t, res.Record)
	assert.Len(t, res.Failures, 2)
	assert.True(t, strings.HasPrefix(res.Error, "all 2 candidates exhausted: good:"), res.Error)
}
