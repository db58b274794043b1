// Package source loads automation rules from YAML files and reloads them
// when the files change.
//
// A rule file holds a top-level rules list:
//
//	rules:
//	  - name: Large Batch Export
//	    conditions:
//	      - type: data_count
//	        operator: greater_than
//	        value: 100
//	    actions:
//	      - type: export_csv
//	        export:
//	          include_timestamps: true
//
// Rules default to enabled. A rule without an id is given one derived from
// its name, so reloads keep the identity of unchanged rules. A path may name a single file or a directory,
// in which case every .yaml and .yml file below it is loaded in lexical
// order.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/scanport/pkg/automation"
)

// Document is the top-level layout of a rule file.
type Document struct {
	Rules []automation.Rule `yaml:"rules"`
}

// LoadError reports a rule file that could not be loaded.
type LoadError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load rules from %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Load reads rules from a file or a directory of rule files.
func Load(path string) ([]automation.Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	if !info.IsDir() {
		return LoadFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && isHidden(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if isRuleFile(p) && !isHidden(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	sort.Strings(files)

	var rules []automation.Rule
	for _, f := range files {
		loaded, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		rules = append(rules, loaded...)
	}
	return rules, nil
}

// LoadFile reads the rules of one file.
func LoadFile(path string) ([]automation.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	return rules, nil
}

// Parse decodes and validates a rule document. Unknown keys are rejected.
func Parse(data []byte) ([]automation.Rule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid rule document: %w", err)
	}

	var errs []error
	for _, r := range doc.Rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	assignIDs(doc.Rules)
	return doc.Rules, nil
}

// assignIDs fills missing rule IDs with a slug of the rule name. Collisions
// get a numeric suffix.
func assignIDs(rules []automation.Rule) {
	taken := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.ID != "" {
			taken[r.ID] = true
		}
	}
	for i := range rules {
		if rules[i].ID != "" {
			continue
		}
		base := "rule-" + slug(rules[i].Name)
		id := base
		for n := 2; taken[id]; n++ {
			id = fmt.Sprintf("%s-%d", base, n)
		}
		taken[id] = true
		rules[i].ID = id
	}
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Marshal encodes rules as a rule document.
func Marshal(rules []automation.Rule) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Rules: rules}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isRuleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
