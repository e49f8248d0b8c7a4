package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <filepath>",
		Short: "Fetch a finished file from the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote := strings.TrimSpace(args[0])
			target := strings.TrimSpace(output)
			if target == "" {
				target = filepath.Base(remote)
			}

			file, err := os.CreateTemp(filepath.Dir(target), ".convify-download-*")
			if err != nil {
				return fmt.Errorf("create download file: %w", err)
			}
			tmpPath := file.Name()
			defer os.Remove(tmpPath)

			written, err := ctx.client().Download(cmd.Context(), remote, file)
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			if err := os.Rename(tmpPath, target); err != nil {
				return fmt.Errorf("save download: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", target, written)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination path (default: remote file name in the current directory)")
	return cmd
}
