package projector

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FiltersFileName is the optional operator-maintained filter file
// under DATA_DIR controlling which usernames appear in the leads/
// follow-up projection. Both lists default to empty: nothing is
// filtered unless the operator says so.
const FiltersFileName = "followup_filters.yaml"

// FollowUpFilter is an allow/deny list over contact usernames. Deny
// always wins; a non-empty allow list restricts the projection to its
// members.
type FollowUpFilter struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`

	allow map[string]bool
	deny  map[string]bool
}

// LoadFollowUpFilter reads the filter file at path. A missing file
// yields an empty (all-pass) filter; a malformed one is an error the
// operator should see rather than a silently ignored config.
func LoadFollowUpFilter(path string) (*FollowUpFilter, error) {
	f := &FollowUpFilter{}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		f.index()
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read follow-up filters %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("parse follow-up filters %s: %w", path, err)
	}
	f.index()
	return f, nil
}

func (f *FollowUpFilter) index() {
	f.allow = make(map[string]bool, len(f.Allow))
	for _, u := range f.Allow {
		f.allow[strings.ToLower(u)] = true
	}
	f.deny = make(map[string]bool, len(f.Deny))
	for _, u := range f.Deny {
		f.deny[strings.ToLower(u)] = true
	}
}

// Allowed reports whether username passes the filter. An empty
// username (contact with no handle) is only excluded by a non-empty
// allow list.
func (f *FollowUpFilter) Allowed(username string) bool {
	u := strings.ToLower(username)
	if f.deny[u] {
		return false
	}
	if len(f.allow) > 0 {
		return f.allow[u]
	}
	return true
}
