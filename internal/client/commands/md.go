package commands

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// newMdCmd creates and returns the md parent command. Its docs subcommand
// writes the whole command tree as one markdown document.
func newMdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "md",
		Short: "Markdown related commands",
		Args:  cobra.ArbitraryArgs,
		RunE:  runGroup,
	}
	markSkipConfig(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "docs",
		Short: "Generate markdown documentation for the CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeMarkdown(cmd.OutOrStdout(), cmd.Root())
		},
	})

	return cmd
}

// writeMarkdown writes the documentation of cmd and all its visible
// subcommands as a single markdown document with in-page links.
func writeMarkdown(w io.Writer, cmd *cobra.Command) error {
	cmd.DisableAutoGenTag = true

	if err := doc.GenMarkdownCustom(cmd, w, markdownAnchor); err != nil {
		return err
	}

	for _, c := range cmd.Commands() {
		if !c.IsAvailableCommand() || c.IsAdditionalHelpTopicCommand() {
			continue
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		if err := writeMarkdown(w, c); err != nil {
			return err
		}
	}
	return nil
}

// markdownAnchor turns a generated file name such as "bh_job_delete.md"
// into the heading anchor "#bh-job-delete".
func markdownAnchor(name string) string {
	base := strings.TrimSuffix(name, ".md")
	return "#" + strings.ReplaceAll(base, "_", "-")
}
