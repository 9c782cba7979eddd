package commands

import (
	"bh/internal/application/common"
	"bh/internal/application/common/slogger"
	"bh/internal/application/dto"
	"bh/internal/client"
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Flag names and environment variables of the job commands.
const (
	flagJobID        = "job-id"
	flagArtifactName = "artifact-name"
	flagOutput       = "output"

	envJobID        = "BOUNTYHUB_JOB_ID"
	envArtifactName = "BOUNTYHUB_JOB_ARTIFACT_NAME"
	envOutput       = "BOUNTYHUB_OUTPUT"
)

// maxParallelDownloads bounds concurrent artifact downloads.
const maxParallelDownloads = 4

// newJobCmd creates and returns the job parent command.
// The command provides subcommands for managing jobs:
//   - delete: Delete a job
//   - artifact download: Download one or more job artifacts
//   - artifact delete: Delete a job artifact
//
// Every subcommand takes the job id from -j/--job-id or BOUNTYHUB_JOB_ID.
func newJobCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Job related commands",
		Args:  cobra.ArbitraryArgs,
		RunE:  runGroup,
	}

	cmd.AddCommand(newJobDeleteCmd(a))
	cmd.AddCommand(newJobArtifactCmd(a))

	return cmd
}

// newJobDeleteCmd creates and returns the job delete command.
func newJobDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobID, err := a.requireUUID(cmd, flagJobID, envJobID)
			if err != nil {
				return err
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}

			if err := c.DeleteJob(cmd.Context(), jobID); err != nil {
				return common.WrapServiceError(common.OpDeleteJob, err)
			}

			return a.writeResult(cmd, dto.DeletedResult{JobID: jobID.String(), Deleted: true}, nil)
		},
	}

	cmd.Flags().StringP(flagJobID, "j", "", "Job ID (env "+envJobID+")")

	return cmd
}

// newJobArtifactCmd creates and returns the job artifact parent command.
func newJobArtifactCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Job artifact related commands",
		Args:  cobra.ArbitraryArgs,
		RunE:  runGroup,
	}

	cmd.AddCommand(newJobArtifactDownloadCmd(a))
	cmd.AddCommand(newJobArtifactDeleteCmd(a))

	return cmd
}

// newJobArtifactDownloadCmd downloads one or more artifacts of a job.
// With several -a values the downloads run concurrently and --output must
// name an existing directory.
func newJobArtifactDownloadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download artifacts uploaded by a job",
		Example: `  bh job artifact download -j 0190c3a4-5e2b-7c1d-9f00-1234567890ab -a report.zip
  bh job artifact download -j $JOB -a a.zip -a b.zip -o ./artifacts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobID, err := a.requireUUID(cmd, flagJobID, envJobID)
			if err != nil {
				return err
			}

			names, err := requireStrings(cmd, flagArtifactName, envArtifactName)
			if err != nil {
				return err
			}

			output, err := a.resolveString(cmd, flagOutput, envOutput)
			if err != nil {
				return err
			}

			if len(names) > 1 && output != "" && !client.IsDirectory(output) {
				return usageErrorf("--%s must be an existing directory when downloading %d artifacts", flagOutput, len(names))
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}

			results, err := downloadArtifacts(cmd.Context(), c, jobID, names, output)
			if err != nil {
				return err
			}

			var data interface{} = results
			if len(results) == 1 {
				data = results[0]
			}
			return a.writeResult(cmd, data, nil)
		},
	}

	cmd.Flags().StringP(flagJobID, "j", "", "Job ID (env "+envJobID+")")
	cmd.Flags().StringArrayP(flagArtifactName, "a", nil, "Artifact name, repeatable (env "+envArtifactName+")")
	cmd.Flags().StringP(flagOutput, "o", "", "Output file or directory (env "+envOutput+")")
	_ = cmd.MarkFlagDirname(flagOutput)

	return cmd
}

func downloadArtifacts(
	ctx context.Context,
	c *client.Client,
	jobID uuid.UUID,
	names []string,
	output string,
) ([]dto.FileTransferResult, error) {
	results := make([]dto.FileTransferResult, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDownloads)

	for i, name := range names {
		g.Go(func() error {
			result, err := downloadArtifact(ctx, c, jobID, name, output)
			if err != nil {
				if len(names) > 1 {
					err = fmt.Errorf("%s: %w", name, err)
				}
				return common.WrapServiceError(common.OpDownloadJobArtifact, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func downloadArtifact(
	ctx context.Context,
	c *client.Client,
	jobID uuid.UUID,
	name, output string,
) (dto.FileTransferResult, error) {
	dst, err := client.ResolveArtifactOutput(output, name)
	if err != nil {
		return dto.FileTransferResult{}, err
	}

	start := time.Now()
	body, err := c.DownloadJobArtifact(ctx, jobID, name)
	if err != nil {
		return dto.FileTransferResult{}, err
	}
	defer body.Close()

	n, err := client.WriteFile(ctx, body, dst)
	if err != nil {
		return dto.FileTransferResult{}, err
	}

	slogger.LogPerformance(ctx, common.OpDownloadJobArtifact, time.Since(start), slogger.Fields{
		"job_id":      jobID.String(),
		"artifact":    name,
		"destination": dst,
		"size":        humanize.IBytes(uint64(n)),
	})

	return dto.FileTransferResult{
		Source:      name,
		Destination: dst,
		Bytes:       n,
		Size:        humanize.IBytes(uint64(n)),
	}, nil
}

// newJobArtifactDeleteCmd creates and returns the job artifact delete command.
// The artifact name comes from -a/--artifact-name or BOUNTYHUB_JOB_ARTIFACT_NAME.
func newJobArtifactDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a job artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobID, err := a.requireUUID(cmd, flagJobID, envJobID)
			if err != nil {
				return err
			}

			name, err := a.requireString(cmd, flagArtifactName, envArtifactName)
			if err != nil {
				return err
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}

			if err := c.DeleteJobArtifact(cmd.Context(), jobID, name); err != nil {
				return common.WrapServiceError(common.OpDeleteJobArtifact, err)
			}

			return a.writeResult(cmd, dto.DeletedResult{
				JobID:        jobID.String(),
				ArtifactName: name,
				Deleted:      true,
			}, nil)
		},
	}

	cmd.Flags().StringP(flagJobID, "j", "", "Job ID (env "+envJobID+")")
	cmd.Flags().StringP(flagArtifactName, "a", "", "Artifact name (env "+envArtifactName+")")

	return cmd
}
