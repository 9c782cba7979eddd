package commands

import (
	"bh/internal/application/common"
	"bh/internal/application/dto"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// newRunnerCmd creates and returns the runner parent command.
// The command provides subcommands for runner registration:
//   - registration token: Print a new registration token
//   - registration command: Print the runner configure command for a new token
func newRunnerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runner",
		Short: "Runner related commands",
		Args:  cobra.ArbitraryArgs,
		RunE:  runGroup,
	}

	registration := &cobra.Command{
		Use:   "registration",
		Short: "Runner registration tokens",
		Args:  cobra.ArbitraryArgs,
		RunE:  runGroup,
	}
	registration.AddCommand(newRunnerRegistrationTokenCmd(a))
	registration.AddCommand(newRunnerRegistrationCommandCmd(a))

	cmd.AddCommand(registration)

	return cmd
}

// newRunnerRegistrationTokenCmd prints the token without a trailing newline
// so it can be captured directly by shell substitution.
func newRunnerRegistrationTokenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Get a newly created runner registration token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.createRunnerRegistration(cmd)
			if err != nil {
				return err
			}

			return a.writeResult(cmd, reg, func(w io.Writer) error {
				_, err := io.WriteString(w, reg.Token)
				return err
			})
		},
	}
}

func newRunnerRegistrationCommandCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "command",
		Short: "Get the runner configure command with a newly created token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.createRunnerRegistration(cmd)
			if err != nil {
				return err
			}

			return a.writeResult(cmd, reg, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "runner configure --token \"%s\" --url \"%s\"\n", reg.Token, reg.URL)
				return err
			})
		},
	}
}

func (a *app) createRunnerRegistration(cmd *cobra.Command) (*dto.RunnerRegistrationResponse, error) {
	c, err := a.newClient()
	if err != nil {
		return nil, err
	}

	reg, err := c.CreateRunnerRegistration(cmd.Context())
	if err != nil {
		return nil, common.WrapServiceError(common.OpCreateRunnerRegistration, err)
	}
	return reg, nil
}
