package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/config"
)

func newStoreCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var params api.UploadParams

	cmd := &cobra.Command{
		Use:   "store <file>",
		Short: "Run the full upload pipeline through the API server (store, mint, index)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if params.Owner == "" {
				return fmt.Errorf("--owner is required")
			}
			path := args[0]
			if interactive() && !*jsonOutput {
				if info, err := appFs.Stat(path); err == nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "uploading %s (%s)...\n", filepath.Base(path), formatSize(info.Size()))
				}
			}

			resp, err := storeFile(cmd.Context(), appFs, api.NewClient(cfg.APIURL), path, params)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(resp)
			}
			indexed := "yes"
			if !resp.Indexed {
				indexed = "no"
			}
			return writePlain("blobId: %s\ntxId: %s\nsize: %s\nepochs: %d\nindexed: %s\n",
				resp.BlobID, resp.TxID, formatSize(resp.SizeBytes), resp.Epochs, indexed)
		},
	}

	cmd.Flags().StringVar(&params.Owner, "owner", "", "owner address (0x...)")
	cmd.Flags().StringVar(&params.FileName, "name", "", "file name to record (default: base name of <file>)")
	cmd.Flags().StringVar(&params.Algorithm, "algorithm", "", "client-side encryption scheme tag, e.g. AES-256-GCM")
	cmd.Flags().StringVar(&params.MediaType, "media-type", "", "media type recorded on the receipt")
	cmd.Flags().IntVar(&params.Epochs, "epochs", 0, "storage epochs (server default when unset)")
	return cmd
}

// storeFile streams path to the server's upload endpoint.
func storeFile(ctx context.Context, fs afero.Fs, client *api.Client, path string, params api.UploadParams) (api.UploadResponse, error) {
	f, err := fs.Open(path)
	if err != nil {
		return api.UploadResponse{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return api.UploadResponse{}, err
	}
	if info.IsDir() {
		return api.UploadResponse{}, fmt.Errorf("%s is a directory", path)
	}
	if params.FileName == "" {
		params.FileName = filepath.Base(path)
	}
	return client.UploadStream(ctx, f, info.Size(), params)
}
