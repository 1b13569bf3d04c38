package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vertti/parpack/internal/archive"
	"github.com/vertti/parpack/internal/codec/registry"
	"github.com/vertti/parpack/internal/compress"
	"github.com/vertti/parpack/internal/stream"
)

type config struct {
	blockSize int
	workers   int
	codec     string
	readSize  int
	verbose   bool
	metrics   bool
}

func (c *config) validate() error {
	if c.blockSize < stream.MinBlockSize {
		return fmt.Errorf("--block-size %d is below the minimum of %d", c.blockSize, stream.MinBlockSize)
	}
	if c.readSize <= 0 {
		return fmt.Errorf("--read-size must be positive, got %d", c.readSize)
	}
	if c.workers < 0 {
		return fmt.Errorf("--workers must not be negative, got %d", c.workers)
	}
	if !slices.Contains(registry.Names(), c.codec) {
		return fmt.Errorf("unknown codec %q (available: %s)", c.codec, strings.Join(registry.Names(), ", "))
	}
	return nil
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "parpack",
		Short: "Parallel block compressor",
		Long: `parpack splits a file into fixed-size blocks, compresses the blocks on
all CPU cores and writes them back in their original order.

Archives are a sequence of frames, one per block. Decompression must use
the same --block-size and --codec as compression.

Examples:
  # Compress a file
  parpack compress access.log access.log.pp

  # Decompress it again
  parpack decompress access.log.pp access.log

  # Short method letters
  parpack p access.log access.log.pp
  parpack u access.log.pp access.log

  # Faster codec, smaller blocks, report pipeline metrics
  parpack p --codec lz4 --block-size 131072 --metrics big.bin big.bin.pp`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return cfg.validate()
		},
	}

	flags := root.PersistentFlags()
	flags.IntVarP(&cfg.blockSize, "block-size", "b", stream.DefaultBlockSize, "block size in bytes")
	flags.IntVarP(&cfg.workers, "workers", "w", 0, "parallel workers (default: NumCPU)")
	flags.StringVarP(&cfg.codec, "codec", "c", registry.Default,
		"block codec: "+strings.Join(registry.Names(), ", "))
	flags.IntVar(&cfg.readSize, "read-size", compress.DefaultReadSize, "bytes read from the input per call")
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&cfg.metrics, "metrics", false, "print pipeline metrics when done")

	root.AddCommand(
		newArchiveCmd(cfg, archive.ModeCompress),
		newArchiveCmd(cfg, archive.ModeDecompress),
		newVersionCmd(),
	)
	return root
}

func newArchiveCmd(cfg *config, mode archive.Mode) *cobra.Command {
	cmd := &cobra.Command{
		Use:  mode.String() + " INPUT OUTPUT",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd.Context(), cfg, mode, args[0], args[1], cmd.ErrOrStderr())
		},
	}
	switch mode {
	case archive.ModeCompress:
		cmd.Aliases = []string{"p"}
		cmd.Short = "Compress INPUT into the archive OUTPUT"
	case archive.ModeDecompress:
		cmd.Aliases = []string{"u"}
		cmd.Short = "Decompress the archive INPUT into OUTPUT"
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "parpack version %s\n", version)
		},
	}
}
