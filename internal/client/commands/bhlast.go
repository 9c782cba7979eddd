package commands

import (
	"bh/internal/application/common"
	"bh/internal/application/dto"
	"bh/internal/client"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// newBhlastCmd creates and returns the bhlast parent command.
// The command provides subcommands for bhlast domains:
//   - create: Create a new bhlast domain and print its id
func newBhlastCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bhlast",
		Short: "Bhlast related commands",
		Args:  cobra.ArbitraryArgs,
		RunE:  runGroup,
	}

	cmd.AddCommand(newBhlastCreateCmd(a))

	return cmd
}

// newBhlastCreateCmd creates and returns the bhlast create command.
// On success the new domain id is printed followed by a newline. A 403 means
// the account reached its domain limit and is reported as such.
func newBhlastCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new bhlast domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}

			id, err := c.CreateBhlastDomain(cmd.Context())
			switch {
			case errors.Is(err, client.ErrForbidden):
				return withMessage(err, "You cannot create more bhlast domains")
			case errors.Is(err, client.ErrUnauthorized):
				return withMessage(err, "Unauthorized: invalid token")
			case err != nil:
				return common.WrapServiceError(common.OpCreateBhlastDomain, err)
			}

			return a.writeResult(cmd, dto.CreatedResponse{ID: id}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, id)
				return err
			})
		},
	}
}
