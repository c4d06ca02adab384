package gitstate

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adrg/xdg"
	format "github.com/go-git/go-git/v5/plumbing/format/config"
)

// splitConfigKey splits a git config key into section, subsection, and
// option: the first dot-separated segment is the section, the last is the
// option, and anything between is the subsection (which may itself contain
// dots). Section and option names are case-insensitive and normalized to
// lower case; subsections are case-sensitive.
func splitConfigKey(key string) (section, subsection, option string, err error) {
	parts := strings.Split(key, ".")
	if len(parts) < 2 || parts[0] == "" || parts[len(parts)-1] == "" {
		return "", "", "", WrapErrorf(ErrInvalidState, "invalid config key %q", key)
	}
	section = strings.ToLower(parts[0])
	option = strings.ToLower(parts[len(parts)-1])
	if len(parts) > 2 {
		subsection = strings.Join(parts[1:len(parts)-1], ".")
	}
	return section, subsection, option, nil
}

// globalConfigPath is the user-level config file: ~/.gitconfig when it
// exists, otherwise $XDG_CONFIG_HOME/git/config when that exists, otherwise
// ~/.gitconfig (which a write will create).
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", WrapError(err, "cannot determine home directory")
	}
	homeCfg := filepath.Join(home, ".gitconfig")
	if _, err := os.Stat(homeCfg); err == nil {
		return homeCfg, nil
	}
	xdgCfg := filepath.Join(xdg.ConfigHome, "git", "config")
	if _, err := os.Stat(xdgCfg); err == nil {
		return xdgCfg, nil
	}
	return homeCfg, nil
}

// repoConfigPath locates a repository's config file, following the .git
// file and commondir indirections of linked worktrees and handling bare
// layouts.
func repoConfigPath(repo string) (string, error) {
	gitPath := filepath.Join(repo, ".git")
	fi, err := os.Stat(gitPath)
	switch {
	case err == nil && fi.IsDir():
		return filepath.Join(gitPath, "config"), nil
	case err == nil:
		data, err := os.ReadFile(gitPath)
		if err != nil {
			return "", WrapError(err, "failed to read .git file")
		}
		gitdir := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(data)), "gitdir:"))
		if gitdir == "" {
			return "", WrapErrorf(ErrInvalidState, "malformed .git file at %s", gitPath)
		}
		if !filepath.IsAbs(gitdir) {
			gitdir = filepath.Join(repo, gitdir)
		}
		if cd, err := os.ReadFile(filepath.Join(gitdir, "commondir")); err == nil {
			common := strings.TrimSpace(string(cd))
			if !filepath.IsAbs(common) {
				common = filepath.Join(gitdir, common)
			}
			return filepath.Join(common, "config"), nil
		}
		return filepath.Join(gitdir, "config"), nil
	default:
		// Bare repository: config sits at the top level.
		return filepath.Join(repo, "config"), nil
	}
}

func configPath(scope ConfigScope) (string, error) {
	if scope.Global {
		return globalConfigPath()
	}
	if scope.Repo == "" {
		return "", WrapError(ErrInvalidState, "config scope needs a repository path or global")
	}
	return repoConfigPath(scope.Repo)
}

// loadConfigFile parses the config file at path. A missing file yields an
// empty config, so a first write can create it.
func loadConfigFile(path string) (*format.Config, error) {
	cfg := format.New()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, WrapErrorf(err, "failed to open %s", path)
	}
	defer f.Close()
	if err := format.NewDecoder(f).Decode(cfg); err != nil {
		return nil, WrapErrorf(err, "failed to parse %s", path)
	}
	return cfg, nil
}

func saveConfigFile(path string, cfg *format.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WrapErrorf(err, "failed to create directory for %s", path)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return WrapErrorf(err, "failed to open %s for writing", path)
	}
	defer f.Close()
	if err := format.NewEncoder(f).Encode(cfg); err != nil {
		return WrapErrorf(err, "failed to write %s", path)
	}
	return nil
}

// optionValues returns the values of option under section/subsection.
func optionValues(cfg *format.Config, section, subsection, option string) []string {
	s := cfg.Section(section)
	if subsection != "" {
		return s.Subsection(subsection).OptionAll(option)
	}
	return s.OptionAll(option)
}

// setOptionValues replaces the values of option under section/subsection.
func setOptionValues(cfg *format.Config, section, subsection, option string, values []string) {
	s := cfg.Section(section)
	if subsection != "" {
		ss := s.Subsection(subsection)
		ss.RemoveOption(option)
		for _, v := range values {
			ss.AddOption(option, v)
		}
		return
	}
	s.RemoveOption(option)
	for _, v := range values {
		s.AddOption(option, v)
	}
}

// fullKey renders the canonical dotted key name.
func fullKey(section, subsection, option string) string {
	if subsection != "" {
		return section + "." + subsection + "." + option
	}
	return section + "." + option
}

// configEntry is one (key, values) pair discovered by a scan.
type configEntry struct {
	section    string
	subsection string
	option     string
	values     []string
}

// scanConfig walks every option in the config, in file order.
func scanConfig(cfg *format.Config) []configEntry {
	var out []configEntry
	for _, s := range cfg.Sections {
		for _, o := range s.Options {
			out = append(out, configEntry{
				section: s.Name,
				option:  o.Key,
				values:  s.OptionAll(o.Key),
			})
		}
		for _, ss := range s.Subsections {
			for _, o := range ss.Options {
				out = append(out, configEntry{
					section:    s.Name,
					subsection: ss.Name,
					option:     o.Key,
					values:     ss.OptionAll(o.Key),
				})
			}
		}
	}
	// An option with n values appears n times in the walk above; keep the
	// first occurrence of each key only.
	seen := map[string]bool{}
	dedup := out[:0]
	for _, e := range out {
		k := fullKey(e.section, e.subsection, e.option)
		if seen[k] {
			continue
		}
		seen[k] = true
		dedup = append(dedup, e)
	}
	return dedup
}

// ConfigGetAll returns all values of key in scope, in file order, or nil
// when the key is absent.
func (g *GoGit) ConfigGetAll(scope ConfigScope, key string) ([]string, error) {
	section, subsection, option, err := splitConfigKey(key)
	if err != nil {
		return nil, err
	}
	path, err := configPath(scope)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}
	values := optionValues(cfg, section, subsection, option)
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

// ConfigGetRegexp returns every key whose full name matches keyRe, mapped
// to the values matching valueRe (all values when valueRe is empty).
func (g *GoGit) ConfigGetRegexp(scope ConfigScope, keyRe, valueRe string) (map[string][]string, error) {
	keyPat, valuePat, err := compileConfigPatterns(keyRe, valueRe)
	if err != nil {
		return nil, err
	}
	path, err := configPath(scope)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}

	out := map[string][]string{}
	for _, e := range scanConfig(cfg) {
		key := fullKey(e.section, e.subsection, e.option)
		if !keyPat.MatchString(key) {
			continue
		}
		for _, v := range e.values {
			if valuePat == nil || valuePat.MatchString(v) {
				out[key] = append(out[key], v)
			}
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// ConfigSet replaces key's value(s) in scope with values, preserving their
// order.
func (g *GoGit) ConfigSet(scope ConfigScope, key string, values []string) error {
	section, subsection, option, err := splitConfigKey(key)
	if err != nil {
		return err
	}
	path, err := configPath(scope)
	if err != nil {
		return err
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return err
	}
	setOptionValues(cfg, section, subsection, option, values)
	return saveConfigFile(path, cfg)
}

// ConfigUnset removes values of keys matching keyRe whose values match
// valueRe (all values when empty). Without all, a key with more than one
// matching value refuses with ErrAmbiguousUnset before mutating anything.
func (g *GoGit) ConfigUnset(scope ConfigScope, keyRe, valueRe string, all bool) error {
	keyPat, valuePat, err := compileConfigPatterns(keyRe, valueRe)
	if err != nil {
		return err
	}
	path, err := configPath(scope)
	if err != nil {
		return err
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return err
	}

	type removal struct {
		entry   configEntry
		keep    []string
		removed int
	}
	var removals []removal
	for _, e := range scanConfig(cfg) {
		if !keyPat.MatchString(fullKey(e.section, e.subsection, e.option)) {
			continue
		}
		r := removal{entry: e}
		for _, v := range e.values {
			if valuePat == nil || valuePat.MatchString(v) {
				r.removed++
			} else {
				r.keep = append(r.keep, v)
			}
		}
		if r.removed == 0 {
			continue
		}
		if !all && r.removed > 1 {
			return WrapErrorf(ErrAmbiguousUnset,
				"key %q has multiple values matching %q",
				fullKey(e.section, e.subsection, e.option), valueRe)
		}
		removals = append(removals, r)
	}
	if len(removals) == 0 {
		return nil
	}
	for _, r := range removals {
		setOptionValues(cfg, r.entry.section, r.entry.subsection, r.entry.option, r.keep)
	}
	return saveConfigFile(path, cfg)
}

// compileConfigPatterns anchors keyRe to the full key name and compiles
// valueRe when given.
func compileConfigPatterns(keyRe, valueRe string) (*regexp.Regexp, *regexp.Regexp, error) {
	keyPat, err := regexp.Compile("^(?:" + keyRe + ")$")
	if err != nil {
		return nil, nil, WrapErrorf(ErrInvalidState, "invalid key pattern %q: %s", keyRe, err)
	}
	var valuePat *regexp.Regexp
	if valueRe != "" {
		valuePat, err = regexp.Compile(valueRe)
		if err != nil {
			return nil, nil, WrapErrorf(ErrInvalidState, "invalid value pattern %q: %s", valueRe, err)
		}
	}
	return keyPat, valuePat, nil
}
