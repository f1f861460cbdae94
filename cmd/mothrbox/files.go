package main

import (
	"github.com/spf13/cobra"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/config"
)

func newFilesCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "files <owner>",
		Short: "List an owner's indexed files, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := api.NewClient(cfg.APIURL).ListFiles(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(resp)
			}
			if resp.Count == 0 {
				return writePlain("no files for %s\n", resp.Owner)
			}
			for _, f := range resp.Files {
				algorithm := f.Algorithm
				if algorithm == "" {
					algorithm = "-"
				}
				if err := writePlain("%s\t%s\t%s\t%s\t%s (%s)\n",
					f.BlobID, f.FileName, formatSize(f.FileSizeBytes), algorithm,
					formatTime(f.UploadedAt), formatAge(f.UploadedAt)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
