package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/rembg-batch/batch"
	"github.com/chaos-io/rembg-batch/rembg"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "public/images", c.InputDir)
	assert.Equal(t, "public/images_transparent", c.OutputDir)
	assert.Equal(t, batch.Options{Policy: batch.PolicyAbort, Overwrite: true}, c.BatchOptions())
	assert.Equal(t, rembg.KindColorKey, c.RemoverOptions().Kind)
	assert.Empty(t, c.Listen)
	assert.Empty(t, c.Schedule)
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("REMBG_INPUT_DIR", "env/in")
	t.Setenv("REMBG_OUTPUT_DIR", "env/out")
	t.Setenv("REMBG_POLICY", "continue")
	t.Setenv("REMBG_OVERWRITE", "false")
	t.Setenv("REMBG_TOLERANCE", "0.2")
	t.Setenv("REMBG_MAX_SIDE", "1024")
	t.Setenv("REMBG_REMOTE_TIMEOUT", "5s")

	c, err := Load([]string{"-out", "flag/out", "-contiguous"}, "")
	require.NoError(t, err)

	assert.Equal(t, "env/in", c.InputDir)
	assert.Equal(t, "flag/out", c.OutputDir)
	assert.Equal(t, batch.PolicyContinue, c.BatchOptions().Policy)
	assert.False(t, c.Overwrite)
	assert.Equal(t, 0.2, c.Tolerance)
	assert.Equal(t, 1024, c.MaxSide)
	assert.Equal(t, 5*time.Second, c.RemoteTimeout)
	assert.True(t, c.Contiguous)
	assert.True(t, c.RemoverOptions().Contiguous)
}

func TestLoad_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("REMBG_KEY_COLOR=#00ff00\nREMBG_REMOVER=passthrough\n"), 0o644))
	t.Cleanup(func() {
		_ = os.Unsetenv("REMBG_KEY_COLOR")
		_ = os.Unsetenv("REMBG_REMOVER")
	})

	c, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", c.KeyColor)
	assert.Equal(t, rembg.KindPassthrough, c.Remover)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
		file string
	}{
		{name: "bad bool env", env: map[string]string{"REMBG_OVERWRITE": "maybe"}},
		{name: "bad duration env", env: map[string]string{"REMBG_REMOTE_TIMEOUT": "soon"}},
		{name: "unknown flag", args: []string{"-nope"}},
		{name: "unknown policy", args: []string{"-policy", "retry"}},
		{name: "unknown remover", args: []string{"-remover", "u2net"}},
		{name: "bad key color", args: []string{"-key-color", "white"}},
		{name: "negative max side", args: []string{"-max-side", "-1"}},
		{name: "empty input", args: []string{"-in", ""}},
		{name: "remote without url", args: []string{"-remover", "remote", "-remote-url", ""}},
		{name: "missing env file", file: "does-not-exist.env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args, tt.file)
			assert.Error(t, err)
		})
	}
}

func TestLoad_Help(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "-h", args: []string{"-h"}, want: true},
		{name: "-help", args: []string{"-help"}, want: true},
		{name: "after other flags", args: []string{"-in", "x", "--help"}, want: true},
		{name: "unknown flag", args: []string{"-nope"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, "")
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.Is(err, ErrHelp))
		})
	}
}

func TestUsage(t *testing.T) {
	var buf bytes.Buffer
	Usage(&buf)

	out := buf.String()
	assert.Contains(t, out, "Usage of rembg-batch:")
	for _, name := range []string{"-in", "-out", "-policy", "-remover", "-remote-timeout", "-listen", "-schedule"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, DefaultOutputDir)
}
