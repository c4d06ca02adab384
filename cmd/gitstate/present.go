package main

import (
	"github.com/spf13/cobra"

	"github.com/stateforge/gitstate"
)

func newPresentCmd() *cobra.Command {
	var desired gitstate.PresentState

	cmd := &cobra.Command{
		Use:   "present <target>",
		Short: "Ensure a repository exists at the target path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desired.Target = args[0]
			engine, err := newEngine(gitstate.Options{})
			if err != nil {
				return err
			}
			return emitResult(cmd, engine.Present(cmd.Context(), desired))
		},
	}

	cmd.Flags().BoolVar(&desired.Bare, "bare", true, "initialize without a working tree")
	cmd.Flags().BoolVar(&desired.Force, "force", false, "clear a non-repository target and initialize into it")

	return cmd
}
