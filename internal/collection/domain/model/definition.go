package model

import (
	"fmt"
	"regexp"
)

// DefaultVersion is used when a definition declares no versions
const DefaultVersion = "1.0.0"

var collectionNamePattern = regexp.MustCompile(`^[a-z-]{3,}$`)

// Definition describes one collection
type Definition struct {
	// Name is the store collection name
	Name string `json:"name"`
	// EntityName is used in messages, e.g. "user"
	EntityName string `json:"entityName,omitempty"`
	// UniqueKeys derive _id from these fields in order. Empty means _id alone.
	UniqueKeys []string `json:"uniqueKeys,omitempty"`
	// Versions lists schema versions, newest first
	Versions []string `json:"versions,omitempty"`
	// Schema is an optional JSON schema for validateItem
	Schema map[string]interface{} `json:"schema,omitempty"`
}

// HasCompositeKey reports whether _id is derived from unique key fields
func (d Definition) HasCompositeKey() bool {
	if len(d.UniqueKeys) == 0 {
		return false
	}
	return !(len(d.UniqueKeys) == 1 && d.UniqueKeys[0] == FieldID)
}

// CurrentVersion returns the newest schema version
func (d Definition) CurrentVersion() string {
	if len(d.Versions) > 0 && d.Versions[0] != "" {
		return d.Versions[0]
	}
	return DefaultVersion
}

// Entity returns EntityName, falling back to Name
func (d Definition) Entity() string {
	if d.EntityName != "" {
		return d.EntityName
	}
	return d.Name
}

// CheckName returns an error when Name breaks the naming convention
func (d Definition) CheckName() error {
	if !collectionNamePattern.MatchString(d.Name) {
		return fmt.Errorf("collection name %q should match %s", d.Name, collectionNamePattern.String())
	}
	return nil
}
