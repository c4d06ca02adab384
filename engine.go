package gitstate

import (
	"go.uber.org/zap"
)

// Options configures an Engine.
type Options struct {
	// VCS is the collaborator performing all repository operations.
	// Defaults to the go-git backed implementation.
	VCS VCS

	// DryRun predicts the change-set without mutating anything. A dry-run
	// Engine never invokes a mutating collaborator operation.
	DryRun bool

	// Logger receives structured progress logging. Defaults to a no-op
	// logger.
	Logger *zap.Logger

	// SummarizeIncoming classifies the commits an update brought in
	// (conventional-commit types) under the "incoming" change key.
	SummarizeIncoming bool
}

// Engine converges repositories and git configuration to desired states.
// All per-invocation facts are gathered fresh; an Engine holds no state
// between runs and is safe to reuse.
type Engine struct {
	vcs       VCS
	dryRun    bool
	log       *zap.Logger
	summarize bool
}

// New returns an Engine with the given options.
func New(opts Options) *Engine {
	if opts.VCS == nil {
		opts.VCS = NewGoGit()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		vcs:       opts.VCS,
		dryRun:    opts.DryRun,
		log:       opts.Logger,
		summarize: opts.SummarizeIncoming,
	}
}
