package main

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RolePolicy lists the grants of one role. All grants the whole catalog
// minus Except; otherwise only Allow is granted.
type RolePolicy struct {
	Key    string   `yaml:"key"`
	Name   string   `yaml:"name"`
	All    bool     `yaml:"all"`
	Except []string `yaml:"except"`
	Allow  []string `yaml:"allow"`
}

// Policy is the parsed policy.yaml document.
type Policy struct {
	Roles []RolePolicy `yaml:"roles"`
}

// ParsePolicy decodes and sanity-checks a policy document.
func ParsePolicy(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	seen := make(map[string]struct{}, len(p.Roles))
	for _, role := range p.Roles {
		key := strings.TrimSpace(role.Key)
		if key == "" {
			return Policy{}, fmt.Errorf("parse policy: role without key")
		}
		if _, dup := seen[key]; dup {
			return Policy{}, fmt.Errorf("parse policy: duplicate role %q", key)
		}
		seen[key] = struct{}{}
		if role.All && len(role.Allow) > 0 {
			return Policy{}, fmt.Errorf("parse policy: role %q mixes all and allow", key)
		}
	}
	return p, nil
}

// Grants resolves the permission keys of a role against the catalog. Keys
// listed in the policy but missing from the catalog are reported so a typo
// does not silently drop a grant.
func (r RolePolicy) Grants(catalog []string) ([]string, error) {
	known := make(map[string]struct{}, len(catalog))
	for _, key := range catalog {
		known[key] = struct{}{}
	}
	listed := r.Allow
	if r.All {
		listed = r.Except
	}
	for _, key := range listed {
		if _, ok := known[key]; !ok {
			return nil, fmt.Errorf("role %s: unknown permission %q", r.Key, key)
		}
	}

	var out []string
	if r.All {
		blocked := make(map[string]struct{}, len(r.Except))
		for _, key := range r.Except {
			blocked[key] = struct{}{}
		}
		for _, key := range catalog {
			if _, skip := blocked[key]; !skip {
				out = append(out, key)
			}
		}
	} else {
		out = append(out, r.Allow...)
	}
	sort.Strings(out)
	return out, nil
}
