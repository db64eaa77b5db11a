package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingSource struct{}

func (failingSource) Lookup(context.Context, string) (string, bool, error) {
	return "", false, errors.New("vault unreachable")
}

func TestResolver_NoSourceNoManual(t *testing.T) {
	r := NewResolver(nil, "GOOGLE_API_KEY", discardLogger())

	_, ok := r.Resolve(context.Background())
	assert.False(t, ok)
	assert.False(t, r.Authenticated(context.Background()))
	assert.False(t, r.Managed(context.Background()))
}

func TestResolver_ManagedIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(MapSource{"GOOGLE_API_KEY": "managed-key"}, "GOOGLE_API_KEY", discardLogger())

	_, err := r.Supply("manual-key")
	require.NoError(t, err)

	c, ok := r.Resolve(ctx)
	require.True(t, ok)
	assert.Equal(t, "managed-key", c.Value())
	assert.True(t, r.Managed(ctx))

	r.Clear()
	c, ok = r.Resolve(ctx)
	require.True(t, ok, "clear must not affect the managed credential")
	assert.Equal(t, "managed-key", c.Value())
}

func TestResolver_FallsBackToManual(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(MapSource{"OTHER": "x"}, "GOOGLE_API_KEY", discardLogger())

	c, err := r.Supply("  manual-key \n")
	require.NoError(t, err)
	assert.Equal(t, "manual-key", c.Value())

	got, ok := r.Resolve(ctx)
	require.True(t, ok)
	assert.Equal(t, "manual-key", got.Value())
	assert.False(t, r.Managed(ctx))

	r.Clear()
	_, ok = r.Resolve(ctx)
	assert.False(t, ok)
}

func TestResolver_BlankManagedValueIsAbsent(t *testing.T) {
	r := NewResolver(MapSource{"GOOGLE_API_KEY": "   "}, "GOOGLE_API_KEY", discardLogger())
	_, ok := r.Resolve(context.Background())
	assert.False(t, ok)
}

func TestResolver_SourceErrorFallsBack(t *testing.T) {
	r := NewResolver(failingSource{}, "GOOGLE_API_KEY", discardLogger())
	_, err := r.Supply("manual-key")
	require.NoError(t, err)

	c, ok := r.Resolve(context.Background())
	require.True(t, ok)
	assert.Equal(t, "manual-key", c.Value())
}

func TestResolver_SupplyRejectsEmpty(t *testing.T) {
	r := NewResolver(nil, "GOOGLE_API_KEY", discardLogger())
	_, err := r.Supply("manual-key")
	require.NoError(t, err)

	for _, raw := range []string{"", "   ", "\t\n"} {
		_, err := r.Supply(raw)
		assert.ErrorIs(t, err, ErrEmptyInput, "input %q", raw)
	}

	c, ok := r.Resolve(context.Background())
	require.True(t, ok, "a rejected supply keeps the previous credential")
	assert.Equal(t, "manual-key", c.Value())
}

func TestCredential_StringMasks(t *testing.T) {
	c := Credential("AIza-secret")
	assert.Equal(t, "****", c.String())
	assert.Equal(t, "****", fmt.Sprintf("%v", c))
	assert.Equal(t, "AIza-secret", c.Value())
	assert.Equal(t, "", Credential("").String())
}

func TestEnvSource(t *testing.T) {
	t.Setenv("CB_TEST_SECRET", "from-env")

	v, ok, err := EnvSource{}.Lookup(context.Background(), "CB_TEST_SECRET")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-env", v)

	_, ok, err = EnvSource{}.Lookup(context.Background(), "CB_TEST_SECRET_MISSING_XYZ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("GOOGLE_API_KEY: from-file\n"), 0o600))

	src, err := LoadFileSource(path)
	require.NoError(t, err)

	r := NewResolver(src, "GOOGLE_API_KEY", discardLogger())
	c, ok := r.Resolve(context.Background())
	require.True(t, ok)
	assert.Equal(t, "from-file", c.Value())
}

func TestLoadFileSource_Errors(t *testing.T) {
	_, err := LoadFileSource(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))
	_, err = LoadFileSource(path)
	assert.Error(t, err)
}
