package commands

import (
	"bh/internal/application/common"
	"bh/internal/application/common/slogger"
	"bh/internal/application/dto"
	"bh/internal/domain/valueobject"
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// Flag names and environment variables of the scan commands.
const (
	flagWorkflowID  = "workflow-id"
	flagScanName    = "scan-name"
	flagInputString = "input-string"
	flagInputBool   = "input-bool"
	flagInputsFile  = "inputs-file"

	envWorkflowID = "BOUNTYHUB_WORKFLOW_ID"
	envScanName   = "BOUNTYHUB_SCAN_NAME"
)

// newScanCmd creates and returns the scan parent command.
// The command provides subcommands for scans:
//   - dispatch: Dispatch a scan with optional string and boolean inputs
func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan related commands",
		Args:  cobra.ArbitraryArgs,
		RunE:  runGroup,
	}

	cmd.AddCommand(newScanDispatchCmd(a))

	return cmd
}

// newScanDispatchCmd dispatches a scan from the latest revision of a workflow.
// Inputs from --inputs-file are applied first, then --input-string, then
// --input-bool. A later value for the same key replaces an earlier one.
//
// Flags:
//   - -w/--workflow-id: Workflow UUID (env BOUNTYHUB_WORKFLOW_ID)
//   - -s/--scan-name: Scan name, ASCII letters, digits and '_' (env BOUNTYHUB_SCAN_NAME)
//   - --input-string key=value: String input, repeatable
//   - --input-bool key=true|false: Boolean input, repeatable
//   - --inputs-file: YAML mapping of inputs
//
// Without inputs the request carries "inputs": null.
func newScanDispatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch a scan from the latest revision of the workflow",
		Example: `  bh scan dispatch -w $WORKFLOW -s nightly --input-string target=example.com --input-bool deep=true
  bh scan dispatch -w $WORKFLOW -s nightly --inputs-file inputs.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			workflowID, err := a.requireUUID(cmd, flagWorkflowID, envWorkflowID)
			if err != nil {
				return err
			}

			rawName, err := a.requireString(cmd, flagScanName, envScanName)
			if err != nil {
				return err
			}
			scanName, err := valueobject.NewScanName(rawName)
			if err != nil {
				return common.NewValidationErrorWithValue("scan name", err.Error(), rawName)
			}

			inputs, err := scanInputsFromFlags(cmd)
			if err != nil {
				return err
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}

			if err := c.DispatchScan(cmd.Context(), workflowID, scanName.String(), inputs.ToMap()); err != nil {
				return common.WrapServiceError(common.OpDispatchScan, err)
			}

			slogger.Info(cmd.Context(), "Scan dispatched", slogger.Fields{
				"workflow_id": workflowID.String(),
				"scan_name":   scanName.String(),
				"inputs":      inputs.Len(),
			})

			return a.writeResult(cmd, dto.DispatchScanResult{
				WorkflowID: workflowID.String(),
				ScanName:   scanName.String(),
				Inputs:     inputs.ToMap(),
			}, nil)
		},
	}

	cmd.Flags().StringP(flagWorkflowID, "w", "", "Workflow ID (env "+envWorkflowID+")")
	cmd.Flags().StringP(flagScanName, "s", "", "Scan name (env "+envScanName+")")
	cmd.Flags().StringArray(flagInputString, nil, "String input as key=value, repeatable")
	cmd.Flags().StringArray(flagInputBool, nil, "Boolean input as key=true|false, repeatable")
	cmd.Flags().String(flagInputsFile, "", "YAML file with a mapping of inputs")
	_ = cmd.MarkFlagFilename(flagInputsFile, "yaml", "yml")

	return cmd
}

func scanInputsFromFlags(cmd *cobra.Command) (*valueobject.ScanInputs, error) {
	inputs := valueobject.NewScanInputs()

	if path, _ := cmd.Flags().GetString(flagInputsFile); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, common.WrapServiceError(common.OpOpenFile, err)
		}
		defer f.Close()

		if err := inputs.LoadYAML(f); err != nil {
			return nil, &UsageError{Err: err}
		}
	}

	strs, _ := cmd.Flags().GetStringArray(flagInputString)
	for _, s := range strs {
		if err := inputs.AddStringAssignment(s); err != nil {
			return nil, inputError(flagInputString, err)
		}
	}

	bools, _ := cmd.Flags().GetStringArray(flagInputBool)
	for _, s := range bools {
		if err := inputs.AddBoolAssignment(s); err != nil {
			return nil, inputError(flagInputBool, err)
		}
	}

	return inputs, nil
}

func inputError(flag string, err error) error {
	if errors.Is(err, valueobject.ErrMissingInputValue) {
		return usageErrorf("--%s: %v", flag, err)
	}
	return &UsageError{Err: err}
}
