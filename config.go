package gitstate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ConfigKeyState declares that a git config key holds exactly the given
// value(s) in the given scope.
type ConfigKeyState struct {
	// Key is the dotted config key, e.g. "user.name" or
	// "remote.origin.fetch".
	Key string `yaml:"key"`

	// Values are the desired value(s), in order. More than one value makes
	// the key a multivar.
	Values []string `yaml:"values"`

	// Scope selects the repository or the global config file.
	Scope ConfigScope `yaml:"scope"`
}

// ConfigUnsetState declares that no config key matching Key carries a value
// matching ValueRegex in the given scope.
type ConfigUnsetState struct {
	// Key is a regular expression matched against full key names.
	Key string `yaml:"key"`

	// ValueRegex restricts which values are unset. Empty means all values
	// of the matching keys.
	ValueRegex string `yaml:"value_regex,omitempty"`

	// All permits unsetting several values of one key in a single run.
	All bool `yaml:"all,omitempty"`

	// Scope selects the repository or the global config file.
	Scope ConfigScope `yaml:"scope"`
}

// ConfigSet converges a config key to the desired value(s). Reads back the
// key after writing and fails when the confirmation disagrees.
func (e *Engine) ConfigSet(desired ConfigKeyState) *Result {
	ret := newResult(desired.Key)
	if desired.Key == "" {
		return ret.fail("config key is required", nil)
	}
	if len(desired.Values) == 0 {
		return ret.fail("at least one value is required", nil)
	}

	pre, err := e.vcs.ConfigGetAll(desired.Scope, desired.Key)
	if err != nil {
		return ret.fail(stripErr(err), nil)
	}
	if equalStrings(pre, desired.Values) {
		ret.Comment = fmt.Sprintf("Key %q already set to %s",
			desired.Key, renderValuesText(desired.Values))
		return ret
	}

	change := Change{Old: configChangeValues(pre), New: configChangeValues(desired.Values)}
	if e.dryRun {
		ret.Changes[desired.Key] = change
		return ret.pending(fmt.Sprintf("Key %q would be set to %s",
			desired.Key, renderValuesText(desired.Values)))
	}

	if err := e.vcs.ConfigSet(desired.Scope, desired.Key, desired.Values); err != nil {
		return ret.fail(stripErr(err), nil)
	}
	post, err := e.vcs.ConfigGetAll(desired.Scope, desired.Key)
	if err != nil {
		return ret.fail(stripErr(err), nil)
	}
	if !equalStrings(post, desired.Values) {
		return ret.fail(WrapErrorf(ErrConfirmationMismatch,
			"failed to set key %q to %s", desired.Key,
			renderValuesText(desired.Values)).Error(), nil)
	}

	e.log.Info("config key set", zap.String("key", desired.Key))
	ret.Changes[desired.Key] = change
	ret.Comment = fmt.Sprintf("Key %q was set to %s",
		desired.Key, renderValuesText(desired.Values))
	return ret
}

// ConfigUnset removes the config values matching the declared patterns. A
// key with several matching values refuses to mutate unless All is set.
func (e *Engine) ConfigUnset(desired ConfigUnsetState) *Result {
	ret := newResult(desired.Key)
	if desired.Key == "" {
		return ret.fail("config key pattern is required", nil)
	}

	pre, err := e.vcs.ConfigGetRegexp(desired.Scope, desired.Key, desired.ValueRegex)
	if err != nil {
		return ret.fail(stripErr(err), nil)
	}
	if len(pre) == 0 {
		ret.Comment = "No matching keys are set"
		return ret
	}

	keys := make([]string, 0, len(pre))
	for k := range pre {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if e.dryRun {
		for _, k := range keys {
			ret.Changes[k] = Change{Old: configChangeValues(pre[k]), New: nil}
		}
		return ret.pending(fmt.Sprintf("The following keys would be unset: %s",
			strings.Join(keys, ", ")))
	}

	err = e.vcs.ConfigUnset(desired.Scope, desired.Key, desired.ValueRegex, desired.All)
	if err != nil {
		if errors.Is(err, ErrAmbiguousUnset) {
			return ret.failf(nil, "%s. Set all to true to unset all matching values", stripErr(err))
		}
		return ret.fail(stripErr(err), nil)
	}

	post, err := e.vcs.ConfigGetRegexp(desired.Scope, desired.Key, desired.ValueRegex)
	if err != nil {
		return ret.fail(stripErr(err), nil)
	}
	if len(post) > 0 {
		return ret.fail(WrapErrorf(ErrConfirmationMismatch,
			"failed to unset keys matching %q", desired.Key).Error(), nil)
	}

	e.log.Info("config keys unset", zap.Strings("keys", keys))
	for _, k := range keys {
		ret.Changes[k] = Change{Old: configChangeValues(pre[k]), New: nil}
	}
	ret.Comment = fmt.Sprintf("The following keys were unset: %s", strings.Join(keys, ", "))
	return ret
}

// configChangeValues renders values for a change entry: always the list
// form (config keys are multivars), nil when the key was absent.
func configChangeValues(values []string) interface{} {
	if len(values) == 0 {
		return nil
	}
	return values
}

// renderValuesText renders values for comments.
func renderValuesText(values []string) string {
	if len(values) == 1 {
		return fmt.Sprintf("%q", values[0])
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
