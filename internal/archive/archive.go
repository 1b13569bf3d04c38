// Package archive compresses and decompresses files on disk, removing the
// output file unless the run completes.
package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertti/parpack/internal/compress"
	"github.com/vertti/parpack/internal/stream"
)

// Mode selects the direction of a run.
type Mode int

const (
	ModeCompress Mode = iota
	ModeDecompress
)

func (m Mode) String() string {
	switch m {
	case ModeCompress:
		return "compress"
	case ModeDecompress:
		return "decompress"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts a mode name or its one-letter method: "p" packs,
// "u" unpacks.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "compress", "p":
		return ModeCompress, nil
	case "decompress", "u":
		return ModeDecompress, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want compress/p or decompress/u)", s)
	}
}

// ErrInvalidPath is returned for input or output paths that cannot be used.
var ErrInvalidPath = errors.New("invalid path")

const outputBufferSize = 1 << 20

// Result describes a completed run.
type Result struct {
	Mode     Mode
	Input    string
	Output   string
	Counters stream.Counters
	Elapsed  time.Duration
}

// ValidatePaths checks that input names an existing regular file and that
// output can be created next to it without overwriting the input.
func ValidatePaths(input, output string) error {
	if err := validateName("input", input); err != nil {
		return err
	}
	if err := validateName("output", output); err != nil {
		return err
	}

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("%w: input: %w", ErrInvalidPath, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: input %s is not a regular file", ErrInvalidPath, input)
	}

	if out, err := os.Stat(output); err == nil {
		if os.SameFile(info, out) {
			return fmt.Errorf("%w: output %s is the input file", ErrInvalidPath, output)
		}
		if out.IsDir() {
			return fmt.Errorf("%w: output %s is a directory", ErrInvalidPath, output)
		}
	}

	dir := filepath.Dir(output)
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: output directory: %w", ErrInvalidPath, err)
	}
	if !dirInfo.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, dir)
	}
	return nil
}

func validateName(role, path string) error {
	switch {
	case strings.TrimSpace(path) == "":
		return fmt.Errorf("%w: %s path is empty", ErrInvalidPath, role)
	case strings.ContainsRune(path, 0):
		return fmt.Errorf("%w: %s path contains a NUL byte", ErrInvalidPath, role)
	case strings.HasSuffix(path, string(filepath.Separator)):
		return fmt.Errorf("%w: %s path %s names a directory", ErrInvalidPath, role, path)
	}
	return nil
}

// Run reads input, runs it through the pipeline in the given mode and
// writes output. Unless Run returns nil, the output file is removed.
func Run(ctx context.Context, mode Mode, input, output string, opts *compress.Options) (Result, error) {
	res := Result{Mode: mode, Input: input, Output: output}
	if err := ValidatePaths(input, output); err != nil {
		return res, err
	}

	in, err := os.Open(input) //nolint:gosec // CLI tool needs to open user-specified files
	if err != nil {
		return res, fmt.Errorf("cannot open input: %w", err)
	}
	defer in.Close() //nolint:errcheck // read-only file

	out, err := os.Create(output) //nolint:gosec // CLI tool needs to create user-specified files
	if err != nil {
		return res, fmt.Errorf("cannot create output: %w", err)
	}

	complete := false
	defer func() {
		if !complete {
			_ = out.Close()
			_ = os.Remove(output)
		}
	}()

	bw := bufio.NewWriterSize(out, outputBufferSize)
	start := time.Now()
	switch mode {
	case ModeCompress:
		res.Counters, err = compress.Compress(ctx, in, bw, opts)
	case ModeDecompress:
		res.Counters, err = compress.Decompress(ctx, in, bw, opts)
	default:
		err = fmt.Errorf("unknown mode %v", mode)
	}
	if err != nil {
		return res, err
	}

	if err := out.Close(); err != nil {
		return res, fmt.Errorf("%w: closing output: %w", stream.ErrIO, err)
	}
	complete = true
	res.Elapsed = time.Since(start)
	return res, nil
}
