package commands

import (
	"bh/internal/application/common"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// argKeyPrefix keeps per-command argument keys apart from configuration keys.
const argKeyPrefix = "args."

// resolveString returns the value of flag when it was set on the command line,
// otherwise the value of the env variable, otherwise the flag default.
func (a *app) resolveString(cmd *cobra.Command, flag, env string) (string, error) {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		return "", fmt.Errorf("flag --%s is not defined on %s", flag, cmd.Name())
	}

	key := argKeyPrefix + flag
	if err := a.v.BindPFlag(key, f); err != nil {
		return "", err
	}
	if env != "" {
		if err := a.v.BindEnv(key, env); err != nil {
			return "", err
		}
	}

	return strings.TrimSpace(a.v.GetString(key)), nil
}

// requireString is resolveString for mandatory values.
func (a *app) requireString(cmd *cobra.Command, flag, env string) (string, error) {
	value, err := a.resolveString(cmd, flag, env)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", missingArgument(flag, env)
	}
	return value, nil
}

// requireUUID resolves a mandatory flag and parses it as a UUID.
func (a *app) requireUUID(cmd *cobra.Command, flag, env string) (uuid.UUID, error) {
	value, err := a.requireString(cmd, flag, env)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, usageErrorf("invalid value %q for --%s: must be a valid UUID", value, flag)
	}
	return id, nil
}

// requireStrings resolves a repeatable flag. The env variable supplies a
// single value when the flag was not given.
func requireStrings(cmd *cobra.Command, flag, env string) ([]string, error) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		values, err := cmd.Flags().GetStringArray(flag)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				return nil, common.NewValidationError("--"+flag, "value cannot be empty")
			}
		}
		return values, nil
	}

	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return []string{v}, nil
	}
	return nil, missingArgument(flag, env)
}

func missingArgument(flag, env string) error {
	if env == "" {
		return usageErrorf("required flag --%s not set", flag)
	}
	return usageErrorf("required flag --%s not set (or set %s)", flag, env)
}
