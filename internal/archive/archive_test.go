package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/parpack/internal/compress"
	"github.com/vertti/parpack/internal/stream"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestRun_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	original := filepath.Join(dir, "report.csv")
	packed := filepath.Join(dir, "report.csv.pp")
	restored := filepath.Join(dir, "restored.csv")

	want := bytes.Repeat([]byte("id,name,score\n1,alpha,0.5\n2,beta,0.75\n"), 5000)
	writeFile(t, original, want)

	opts := &compress.Options{BlockSize: 32 * 1024, Workers: 4}

	res, err := Run(context.Background(), ModeCompress, original, packed, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), res.Counters.BytesIn)
	assert.Positive(t, res.Counters.Blocks)

	info, err := os.Stat(packed)
	require.NoError(t, err)
	assert.Equal(t, res.Counters.BytesOut, info.Size())
	assert.Less(t, info.Size(), int64(len(want)))

	res, err = Run(context.Background(), ModeDecompress, packed, restored, opts)
	require.NoError(t, err)
	assert.Equal(t, ModeDecompress, res.Mode)

	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRun_EmptyInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	packed := filepath.Join(dir, "empty.pp")
	writeFile(t, empty, nil)

	_, err := Run(context.Background(), ModeCompress, empty, packed, nil)
	require.NoError(t, err)

	info, err := os.Stat(packed)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestRun_RemovesOutputOnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "not-an-archive")
	output := filepath.Join(dir, "out")
	writeFile(t, garbage, []byte("this is plain text, not a sequence of frames"))

	_, err := Run(context.Background(), ModeDecompress, garbage, output, nil)
	require.ErrorIs(t, err, stream.ErrFormat)

	_, statErr := os.Stat(output)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRun_RemovesOutputOnCancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	output := filepath.Join(dir, "out")
	writeFile(t, input, bytes.Repeat([]byte("cancel me "), 10000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, ModeCompress, input, output, nil)
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(output)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestValidatePaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	writeFile(t, input, []byte("data"))

	tests := []struct {
		name   string
		input  string
		output string
		valid  bool
	}{
		{"valid", input, filepath.Join(dir, "out.pp"), true},
		{"existing output is replaced", input, input + ".old", true},
		{"empty input", "", filepath.Join(dir, "out.pp"), false},
		{"blank output", input, "   ", false},
		{"missing input", filepath.Join(dir, "missing"), filepath.Join(dir, "out.pp"), false},
		{"input is a directory", dir, filepath.Join(dir, "out.pp"), false},
		{"output is the input", input, input, false},
		{"output is a directory", input, dir, false},
		{"output names a directory", input, dir + string(filepath.Separator), false},
		{"output directory missing", input, filepath.Join(dir, "nope", "out.pp"), false},
		{"NUL in path", input, "out\x00.pp", false},
	}
	writeFile(t, input+".old", []byte("stale"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePaths(tt.input, tt.output)
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidPath)
			}
		})
	}
}

func TestRun_InvalidPathLeavesInputAlone(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	writeFile(t, input, []byte("precious"))

	_, err := Run(context.Background(), ModeCompress, input, input, nil)
	require.ErrorIs(t, err, ErrInvalidPath)

	got, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, []byte("precious"), got)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Mode{
		"p":          ModeCompress,
		"compress":   ModeCompress,
		"u":          ModeDecompress,
		"decompress": ModeDecompress,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("x")
	require.Error(t, err)
	assert.Equal(t, "decompress", ModeDecompress.String())
}
