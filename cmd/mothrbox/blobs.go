package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/blobstore"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/config"
)

// appFs backs local file access for the blob commands.
var appFs = afero.NewOsFs()

type uploadResult struct {
	BlobID string `json:"blobId"`
	Size   int64  `json:"size,omitempty"`
	Epochs int    `json:"epochs,omitempty"`
	Error  string `json:"error,omitempty"`
}

type downloadResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Size    int64  `json:"size"`
	Error   string `json:"error,omitempty"`
}

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		epochs    int
		permanent bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Store a file directly in the blob store without minting a receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openBlobStore(cfg)
			if err != nil {
				return err
			}
			if epochs <= 0 {
				epochs = cfg.BlobStore.DefaultEpochs
			}
			res, err := uploadFile(cmd.Context(), appFs, store, args[0], blobstore.UploadOptions{
				Epochs:    epochs,
				Deletable: !permanent,
			})
			if *jsonOutput {
				if werr := writeJSON(res); werr != nil {
					return werr
				}
				return err
			}
			if err != nil {
				return err
			}
			return writePlain("%s\t%s\t%d epochs\n", res.BlobID, formatSize(res.Size), res.Epochs)
		},
	}

	cmd.Flags().IntVar(&epochs, "epochs", 0, "storage epochs (default from config)")
	cmd.Flags().BoolVar(&permanent, "permanent", false, "store as a non-deletable blob")
	return cmd
}

func newDownloadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "download <blobId> <output>",
		Short: "Fetch a blob's single file and write it to a local path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openBlobStore(cfg)
			if err != nil {
				return err
			}
			res, err := downloadFile(cmd.Context(), appFs, store, args[0], args[1])
			if *jsonOutput {
				if werr := writeJSON(res); werr != nil {
					return werr
				}
				return err
			}
			if err != nil {
				return err
			}
			return writePlain("wrote %s to %s\n", formatSize(res.Size), res.Output)
		},
	}
}

// uploadFile streams path from fs into store under the file's base name.
func uploadFile(ctx context.Context, fs afero.Fs, store blobstore.BlobStore, path string, opts blobstore.UploadOptions) (uploadResult, error) {
	f, err := fs.Open(path)
	if err != nil {
		return uploadResult{Error: err.Error()}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return uploadResult{Error: err.Error()}, err
	}
	if info.IsDir() {
		err := fmt.Errorf("%s is a directory", path)
		return uploadResult{Error: err.Error()}, err
	}
	if info.Size() == 0 {
		err := fmt.Errorf("%s is empty", path)
		return uploadResult{Error: err.Error()}, err
	}

	if opts.Identifier == "" {
		opts.Identifier = filepath.Base(path)
	}
	handle, err := store.Upload(ctx, blobstore.NewStreamPayload(f, info.Size()), opts)
	if err != nil {
		return uploadResult{Error: err.Error()}, err
	}
	return uploadResult{BlobID: handle.BlobID, Size: handle.SizeBytes, Epochs: handle.Epochs}, nil
}

// downloadFile writes the blob's file to out, creating parent directories.
func downloadFile(ctx context.Context, fs afero.Fs, store blobstore.BlobStore, blobID, out string) (downloadResult, error) {
	data, err := store.Download(ctx, blobID)
	if err != nil {
		return downloadResult{Error: err.Error()}, err
	}
	if dir := filepath.Dir(out); dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return downloadResult{Error: err.Error()}, err
		}
	}
	if err := afero.WriteFile(fs, out, data, 0o644); err != nil {
		return downloadResult{Error: err.Error()}, err
	}
	return downloadResult{Success: true, Output: out, Size: int64(len(data))}, nil
}
