// Command gitstate converges local git repositories and git configuration
// to declared desired states.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stateforge/gitstate"
)

var (
	flagDryRun  bool
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "gitstate",
		Short:         "Converge git repositories to declared desired states",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&flagDryRun, "dry-run", "n", false,
		"predict the change-set without mutating anything")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"enable progress logging")

	root.AddCommand(newLatestCmd(), newPresentCmd(), newConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newEngine builds the Engine the commands share, honoring the global
// flags.
func newEngine(extra gitstate.Options) (*gitstate.Engine, error) {
	extra.DryRun = flagDryRun
	if flagVerbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		extra.Logger = logger
	}
	return gitstate.New(extra), nil
}

// emitResult prints the result as YAML and maps a failed status to a
// non-zero exit.
func emitResult(cmd *cobra.Command, res *gitstate.Result) error {
	out, err := yaml.Marshal(res)
	if err != nil {
		return err
	}
	cmd.Print(string(out))
	if res.Status == gitstate.StatusFailed {
		return fmt.Errorf("convergence of %s failed", res.Target)
	}
	return nil
}
