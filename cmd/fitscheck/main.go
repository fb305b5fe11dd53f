// fitscheck inspects FITS files and verifies or refreshes their
// CHECKSUM and DATASUM cards.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/starbeam-io/go-fits/fits"
)

var verbose bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fitscheck",
		Short:         "Inspect and verify FITS files",
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log file scanning detail")
	root.AddCommand(newVerifyCmd(), newUpdateCmd(), newInfoCmd())
	return root
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newVerifyCmd() *cobra.Command {
	var jobs int
	cmd := &cobra.Command{
		Use:   "verify <file>...",
		Short: "Verify the checksum cards of every HDU",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			var g errgroup.Group
			g.SetLimit(jobs)
			for _, path := range args {
				path := path
				g.Go(func() error {
					return verifyFile(cmd, path, logger)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "files verified concurrently")
	return cmd
}

func verifyFile(cmd *cobra.Command, path string, logger *zap.Logger) error {
	f, err := fits.Open(path, fits.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()

	var failed error
	for i := 0; i < f.NumHDUs(); i++ {
		stamped, err := f.VerifyHDU(i)
		switch {
		case err != nil:
			cmd.Printf("%s[%d]: FAILED: %v\n", path, i, err)
			failed = fmt.Errorf("%s: HDU %d: %w", path, i, err)
		case !stamped:
			cmd.Printf("%s[%d]: no checksum cards\n", path, i)
		default:
			cmd.Printf("%s[%d]: OK\n", path, i)
		}
	}
	return failed
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <file>...",
		Short: "Write fresh CHECKSUM and DATASUM cards into every HDU",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			for _, path := range args {
				f, err := fits.OpenUpdate(path, fits.WithLogger(logger), fits.WithChecksum())
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				f.StampChecksums()
				n := f.NumHDUs()
				if err := f.Flush(); err != nil {
					f.Close()
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				cmd.Printf("%s: stamped %s\n", path, plural(n, "HDU"))
			}
			return nil
		},
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>...",
		Short: "Summarize the HDUs of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			for _, path := range args {
				f, err := fits.Open(path, fits.WithLogger(logger))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				cmd.Printf("%s: %s, %d bytes\n", path, plural(f.NumHDUs(), "HDU"), f.Size())
				err = f.Each(func(i int, hdu fits.HDU) error {
					cmd.Printf("  [%d] %-9s %-12s %s\n", i, hdu.Class(), hdu.Name(), describe(hdu))
					return nil
				})
				f.Close()
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func describe(hdu fits.HDU) string {
	switch h := hdu.(type) {
	case *fits.ImageHDU:
		shape, err := h.Shape()
		if err != nil {
			return fmt.Sprintf("bitpix %d", h.Bitpix())
		}
		return fmt.Sprintf("bitpix %d shape %v", h.Bitpix(), shape)
	case *fits.TableHDU:
		return fmt.Sprintf("%d cols x %d rows (ASCII)", h.NumCols(), h.NumRows())
	case *fits.BinTableHDU:
		return fmt.Sprintf("%d cols x %d rows", h.NumCols(), h.NumRows())
	case *fits.CorruptedHDU:
		return fmt.Sprintf("unreadable: %v", h.Err())
	}
	return fmt.Sprintf("%d data bytes", hdu.Size())
}
