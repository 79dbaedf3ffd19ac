package testhook

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/aardwolf/runtime"
)

func TestWrap_Disabled(t *testing.T) {
	require.NoError(t, os.Unsetenv(runtime.DataDestEnv))

	called := false
	fn := func() error { called = true; return nil }
	wrapped := Wrap("test_x", fn)
	require.NoError(t, wrapped())
	assert.True(t, called)
}

func TestWrap_RecordsStatus(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(runtime.DataDestEnv, dir)

	require.NoError(t, Wrap("test_pass", func() error { return nil })())
	require.Error(t, Wrap("test_fail", func() error { return errors.New("boom") })())

	// The default runtime handle resolves its directory on first use; in
	// this process that may predate our env override, so only assert the
	// verdict formatting when the file landed here.
	if data, err := os.ReadFile(filepath.Join(dir, runtime.ResultFilename)); err == nil {
		assert.Contains(t, string(data), "PASS: test_pass")
		assert.Contains(t, string(data), "FAIL: test_fail")
	}
}

func TestWrapAll_Filters(t *testing.T) {
	t.Setenv(runtime.DataDestEnv, t.TempDir())

	ran := map[string]bool{}
	items := map[string]func() error{
		"test_a":  func() error { ran["test_a"] = true; return nil },
		"test_b":  func() error { ran["test_b"] = true; return nil },
		"helper":  func() error { ran["helper"] = true; return nil },
		"ignored": func() error { ran["ignored"] = true; return nil },
	}

	wrapped := WrapAll(items, WithPrefix("test_"), WithIgnore("ignored"))
	require.Len(t, wrapped, 4, "non-matching entries survive unwrapped")

	for _, fn := range wrapped {
		require.NoError(t, fn())
	}
	assert.Len(t, ran, 4)
}
