package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stateforge/gitstate"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Converge git configuration keys",
	}
	cmd.AddCommand(newConfigSetCmd(), newConfigUnsetCmd())
	return cmd
}

// scopeFlags wires the shared --global/--repo selection.
func scopeFlags(cmd *cobra.Command, scope *gitstate.ConfigScope) {
	cmd.Flags().BoolVar(&scope.Global, "global", false, "operate on the user-level config")
	cmd.Flags().StringVar(&scope.Repo, "repo", "", "operate on this repository's config")
}

func validateScope(scope gitstate.ConfigScope) error {
	if scope.Global == (scope.Repo != "") {
		return fmt.Errorf("exactly one of --global or --repo is required")
	}
	return nil
}

func newConfigSetCmd() *cobra.Command {
	var desired gitstate.ConfigKeyState

	cmd := &cobra.Command{
		Use:   "set <key> <value>...",
		Short: "Ensure a config key holds exactly the given value(s)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateScope(desired.Scope); err != nil {
				return err
			}
			desired.Key = args[0]
			desired.Values = args[1:]
			engine, err := newEngine(gitstate.Options{})
			if err != nil {
				return err
			}
			return emitResult(cmd, engine.ConfigSet(desired))
		},
	}
	scopeFlags(cmd, &desired.Scope)
	return cmd
}

func newConfigUnsetCmd() *cobra.Command {
	var desired gitstate.ConfigUnsetState

	cmd := &cobra.Command{
		Use:   "unset <key-regex>",
		Short: "Ensure no config key matching the pattern is set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateScope(desired.Scope); err != nil {
				return err
			}
			desired.Key = args[0]
			engine, err := newEngine(gitstate.Options{})
			if err != nil {
				return err
			}
			return emitResult(cmd, engine.ConfigUnset(desired))
		},
	}
	scopeFlags(cmd, &desired.Scope)
	cmd.Flags().StringVar(&desired.ValueRegex, "value-regex", "", "only unset values matching this pattern")
	cmd.Flags().BoolVar(&desired.All, "all", false, "unset all matching values of a multivar")
	return cmd
}
