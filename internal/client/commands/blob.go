package commands

import (
	"bh/internal/application/common"
	"bh/internal/application/common/slogger"
	"bh/internal/application/dto"
	"bh/internal/client"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// Flag names of the blob commands.
const (
	flagSrc = "src"
	flagDst = "dst"
)

// newBlobCmd creates and returns the blob parent command.
// The command provides subcommands for BountyHub blob storage:
//   - download: Download a blob to a local file or directory
//   - upload: Upload a local file to a blob path
func newBlobCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Blob related commands",
		Args:  cobra.ArbitraryArgs,
		RunE:  runGroup,
	}

	cmd.AddCommand(newBlobDownloadCmd(a))
	cmd.AddCommand(newBlobUploadCmd(a))

	return cmd
}

// newBlobDownloadCmd creates and returns the blob download command.
//
// Flags:
//   - -s/--src: Blob path to download (required)
//   - -d/--dst: Output file or directory (env BOUNTYHUB_OUTPUT). When empty
//     the blob's base name is written to the working directory.
//
// Example usage:
//
//	bh blob download -s results/out.json -d ./out
func newBlobDownloadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a file from BountyHub blob storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.requireString(cmd, flagSrc, "")
			if err != nil {
				return err
			}

			output, err := a.resolveString(cmd, flagDst, envOutput)
			if err != nil {
				return err
			}

			dst, err := client.ResolveBlobOutput(output, src)
			if err != nil {
				return &UsageError{Err: err}
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			start := time.Now()
			body, err := c.DownloadBlobFile(ctx, src)
			if err != nil {
				return common.WrapServiceError(common.OpDownloadBlob, err)
			}
			defer body.Close()

			n, err := client.WriteFile(ctx, body, dst)
			if err != nil {
				return common.WrapServiceError(common.OpDownloadBlob, err)
			}

			slogger.LogPerformance(ctx, common.OpDownloadBlob, time.Since(start), slogger.Fields{
				"src":  src,
				"dst":  dst,
				"size": humanize.IBytes(uint64(n)),
			})

			return a.writeResult(cmd, dto.FileTransferResult{
				Source:      src,
				Destination: dst,
				Bytes:       n,
				Size:        humanize.IBytes(uint64(n)),
			}, nil)
		},
	}

	cmd.Flags().StringP(flagSrc, "s", "", "Blob path to download")
	cmd.Flags().StringP(flagDst, "d", "", "Output file or directory (env "+envOutput+")")
	_ = cmd.MarkFlagDirname(flagDst)

	return cmd
}

// newBlobUploadCmd creates and returns the blob upload command.
// The file is streamed to a presigned URL with its exact size, so --src must
// be a regular file.
//
// Flags:
//   - -s/--src: Local file to upload (required)
//   - --dst: Destination blob path (required)
func newBlobUploadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a file to BountyHub blob storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.requireString(cmd, flagSrc, "")
			if err != nil {
				return err
			}

			dst, err := a.requireString(cmd, flagDst, "")
			if err != nil {
				return err
			}

			f, err := os.Open(src)
			if err != nil {
				return common.WrapServiceError(common.OpOpenFile, err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return common.WrapServiceError(common.OpOpenFile, err)
			}
			if info.IsDir() {
				return usageErrorf("--%s must be a file, %q is a directory", flagSrc, src)
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			start := time.Now()
			if err := c.UploadBlobFile(ctx, f, info.Size(), dst); err != nil {
				return common.WrapServiceError(common.OpUploadBlob, err)
			}

			slogger.LogPerformance(ctx, common.OpUploadBlob, time.Since(start), slogger.Fields{
				"src":  src,
				"dst":  dst,
				"size": humanize.IBytes(uint64(info.Size())),
			})

			return a.writeResult(cmd, dto.FileTransferResult{
				Source:      src,
				Destination: dst,
				Bytes:       info.Size(),
				Size:        humanize.IBytes(uint64(info.Size())),
			}, nil)
		},
	}

	cmd.Flags().StringP(flagSrc, "s", "", "Local file to upload")
	cmd.Flags().String(flagDst, "", "Destination path in blob storage")
	_ = cmd.MarkFlagFilename(flagSrc)

	return cmd
}
