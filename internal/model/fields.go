// Package model defines the data types exchanged between the importers,
// the reconciliation engine and the Checkmk API clients.
package model

import "strings"

// BuiltinAttributes are host attributes managed by Checkmk itself.
// They never take part in attribute comparison and imported attributes
// must not collide with them.
var BuiltinAttributes = map[string]struct{}{
	"locked_by": {},
	"labels":    {},
	"meta_data": {},
}

// IPFieldNames are the import field names recognized as IP address
// candidates. The order is fixed: the first populated field wins.
var IPFieldNames = []string{"ipv4", "ip", "ipaddress"}

// IsBuiltinAttribute reports whether name is a Checkmk-managed attribute.
func IsBuiltinAttribute(name string) bool {
	_, ok := BuiltinAttributes[name]
	return ok
}

// IsIPField reports whether name is one of the recognized IP field names.
func IsIPField(name string) bool {
	for _, field := range IPFieldNames {
		if name == field {
			return true
		}
	}
	return false
}

// IsTagField reports whether an import field carries a host tag.
// Tag fields are prefixed "tag_", matching how the Checkmk API names them.
func IsTagField(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "tag_")
}

// IsAttributeField reports whether an import field carries a free-form
// host attribute, marked by the "attr_" prefix.
func IsAttributeField(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "attr_")
}

// FieldsContainIP reports whether the field list contains any IP field.
func FieldsContainIP(fields []string) bool {
	for _, field := range fields {
		if IsIPField(field) {
			return true
		}
	}
	return false
}

// FieldsContainTags reports whether the field list contains any tag field.
func FieldsContainTags(fields []string) bool {
	for _, field := range fields {
		if IsTagField(field) {
			return true
		}
	}
	return false
}

// NormalizeHostname generates the canonical hostname form used for all
// matching against Checkmk: lowercased, spaces replaced by underscores.
func NormalizeHostname(hostname string) string {
	return strings.ReplaceAll(strings.ToLower(hostname), " ", "_")
}
