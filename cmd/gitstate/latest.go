package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stateforge/gitstate"
)

func newLatestCmd() *cobra.Command {
	var (
		stateFile string
		summarize bool
		desired   gitstate.DesiredState
	)

	cmd := &cobra.Command{
		Use:   "latest [remote] [target]",
		Short: "Converge a working copy to the latest desired revision",
		Long: "Clone, fetch, checkout, merge, or reset the repository at target " +
			"until it matches the desired state, or predict the change-set with " +
			"--dry-run. The desired state comes from the arguments and flags, or " +
			"from a YAML file via --file.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stateFile != "" {
				if len(args) > 0 {
					return fmt.Errorf("--file and positional arguments are mutually exclusive")
				}
				data, err := os.ReadFile(stateFile)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(data, &desired); err != nil {
					return fmt.Errorf("invalid state file %s: %w", stateFile, err)
				}
			} else {
				if len(args) != 2 {
					return fmt.Errorf("remote and target arguments are required without --file")
				}
				desired.Remote = args[0]
				desired.Target = args[1]
			}

			engine, err := newEngine(gitstate.Options{SummarizeIncoming: summarize})
			if err != nil {
				return err
			}
			return emitResult(cmd, engine.Latest(cmd.Context(), desired))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&stateFile, "file", "f", "", "YAML file holding the desired state")
	flags.StringVar(&desired.Rev, "rev", gitstate.DefaultRev, "remote branch, tag, or SHA1 to converge to")
	flags.StringVar(&desired.Branch, "branch", "", "local branch to check the revision out into")
	flags.StringVar(&desired.RemoteName, "remote-name", gitstate.DefaultRemoteName, "git remote to operate on")
	flags.BoolVar(&desired.FetchTags, "fetch-tags", true, "fetch all tags when fetching")
	flags.IntVar(&desired.Depth, "depth", 0, "history depth for a shallow clone (0 means full)")
	flags.BoolVar(&desired.Bare, "bare", false, "maintain the repository without a working tree")
	flags.BoolVar(&desired.Mirror, "mirror", false, "maintain the repository as a mirror (implies --bare)")
	flags.BoolVar(&desired.Submodules, "submodules", false, "initialize and update submodules")
	flags.BoolVar(&desired.ForceClone, "force-clone", false, "clear a non-repository target and clone into it")
	flags.BoolVar(&desired.ForceCheckout, "force-checkout", false, "discard uncommitted changes on checkout")
	flags.BoolVar(&desired.ForceFetch, "force-fetch", false, "allow non-fast-forward fetches")
	flags.BoolVar(&desired.ForceReset, "force-reset", false, "hard-reset on non-fast-forward updates")
	flags.StringArrayVar(&desired.Identity, "identity", nil, "SSH private key file to try (repeatable)")
	flags.StringVar(&desired.HTTPSUser, "https-user", "", "HTTP Basic Auth user for https remotes")
	flags.StringVar(&desired.HTTPSPass, "https-pass", "", "HTTP Basic Auth password for https remotes")
	flags.StringVar(&desired.OnlyIf, "onlyif", "", "shell command that must succeed for the run to proceed")
	flags.StringVar(&desired.Unless, "unless", "", "shell command that must fail for the run to proceed")
	flags.BoolVar(&summarize, "summarize-incoming", false, "classify incoming commits in the change-set")

	return cmd
}
