// Package query turns untrusted list parameters into safe, allow-listed
// predicates and pages. Column identifiers only ever come from server-defined
// allow-lists and field specs; caller input is bound as query parameters.
package query

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// namer canonicalizes caller-supplied field keys the same way gorm names
// columns, so "userId", "UserID" and "user_id" all resolve to "user_id".
var namer = schema.NamingStrategy{}

// canonicalField normalizes an untrusted filter key to a column identifier.
// Returns "" for keys that cannot be normalized.
func canonicalField(key string) string {
	key = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), ":"))
	if key == "" {
		return ""
	}
	return namer.ColumnName("", key)
}

// ApplyFilter applies the caller's filter map to db, restricted to the
// allowed fields. Keys that do not resolve to an allowed field are silently
// dropped, never an error; probing for unknown columns must not leak schema
// details. Scalar values become equality predicates, slice values become
// membership predicates, and accepted pairs are AND-combined. An empty
// filter map returns db unchanged.
func ApplyFilter(db *gorm.DB, filters map[string]any, allowed []string) *gorm.DB {
	if len(filters) == 0 {
		return db
	}

	allowSet := make(map[string]struct{}, len(allowed))
	for _, field := range allowed {
		allowSet[field] = struct{}{}
	}

	conds := make(map[string]any, len(filters))
	for key, value := range filters {
		field := canonicalField(key)
		if _, ok := allowSet[field]; !ok {
			continue
		}
		conds[field] = value
	}

	if len(conds) == 0 {
		return db
	}

	// gorm renders slice values as IN and scalars as equality.
	return db.Where(conds)
}

// Relation names an association to join once, with the columns on the joined
// table to search.
type Relation struct {
	Name   string
	Fields []string
}

// SearchSpec lists where a search term may match: directly on the primary
// table's columns and across joined relations' columns.
type SearchSpec struct {
	Fields    []string
	Relations []Relation
}

// ApplySearch applies a case-insensitive substring search for term over the
// spec's fields, OR-combining every match site. Relations are joined once
// each. An empty term returns db unchanged. There is no tokenization or
// ranking, only substring containment.
func ApplySearch(db *gorm.DB, term string, spec SearchSpec) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" {
		return db
	}

	pattern := "%" + strings.ToLower(term) + "%"

	conds := make([]string, 0, len(spec.Fields))
	args := make([]any, 0, len(spec.Fields))
	for _, field := range spec.Fields {
		// field comes from the server-defined spec, not from the caller.
		conds = append(conds, fmt.Sprintf("LOWER(%s) LIKE ?", field))
		args = append(args, pattern)
	}

	tx := db
	for _, rel := range spec.Relations {
		tx = tx.Joins(rel.Name)
		for _, field := range rel.Fields {
			conds = append(conds, fmt.Sprintf("LOWER(%q.%s) LIKE ?", rel.Name, field))
			args = append(args, pattern)
		}
	}

	if len(conds) == 0 {
		return db
	}

	return tx.Where(strings.Join(conds, " OR "), args...)
}
