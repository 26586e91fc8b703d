// Package engine implements the reconciliation core: record
// normalization, tag matching, folder path derivation, the diffing
// pass that produces the operation batches, and the applier that
// executes them against a Checkmk site.
package engine

import (
	"regexp"
	"strings"

	"hostsync/internal/model"
)

// sepFieldPattern matches multi-value fields of the form "name:sep(,)".
var sepFieldPattern = regexp.MustCompile(`(.*):sep\((.*)\)`)

// Normalize splits a raw imported record into the three disjoint
// buckets (labels, attributes, tags) and extracts the IP address.
// It is a pure function: the result is fully re-derivable from the
// record and the hostname field alone.
func Normalize(record model.ImportedRecord, hostnameField string) model.NormalizedHost {
	host := model.NormalizedHost{
		Labels:     hostLabels(record, hostnameField),
		Attributes: hostAttributes(record),
		Tags:       hostTags(record),
		IP:         ipAddress(record),
	}
	return host
}

// hostLabels extracts the label bucket: every field that is not the
// hostname, not an IP field, not a tag, not an attribute and not a
// builtin. Keys are lowercased and a "label_" prefix is stripped.
//
// A field named "name:sep(<sep>)" is expanded: its value is split on
// <sep> and each token yields a boolean-true label "name/token".
func hostLabels(record model.ImportedRecord, hostnameField string) map[string]string {
	expanded := make(map[string]string, len(record))
	for key, value := range record {
		if key == hostnameField {
			continue
		}

		if match := sepFieldPattern.FindStringSubmatch(key); match != nil {
			name, sep := match[1], match[2]
			for _, token := range strings.Split(value, sep) {
				expanded[strings.ToLower(name+"/"+token)] = "true"
			}
			continue
		}

		expanded[strings.ToLower(key)] = value
	}

	labels := make(map[string]string, len(expanded))
	for key, value := range expanded {
		if model.IsTagField(key) || model.IsIPField(key) ||
			model.IsAttributeField(key) || model.IsBuiltinAttribute(key) {
			continue
		}
		labels[strings.TrimPrefix(key, "label_")] = value
	}

	return labels
}

// hostAttributes extracts fields prefixed "attr_", stripping the
// prefix. An attribute whose stripped name collides with a builtin
// attribute is dropped.
func hostAttributes(record model.ImportedRecord) map[string]string {
	attributes := make(map[string]string)
	for key, value := range record {
		if !model.IsAttributeField(key) {
			continue
		}
		name := key[len("attr_"):]
		if model.IsBuiltinAttribute(name) {
			continue
		}
		attributes[name] = value
	}
	return attributes
}

// hostTags extracts fields prefixed "tag_", stripping the prefix.
// The remaining name is the requested tag-group name, still unresolved
// against the site's tag catalog.
func hostTags(record model.ImportedRecord) map[string]string {
	tags := make(map[string]string)
	for key, value := range record {
		if model.IsTagField(key) {
			tags[key[len("tag_"):]] = value
		}
	}
	return tags
}

// ipAddress returns the host's IP address, if any. The IP field names
// are probed in their fixed order and the first populated one wins.
// A comma-separated value is cut at the first comma.
func ipAddress(record model.ImportedRecord) string {
	for _, field := range model.IPFieldNames {
		value, ok := record[field]
		if !ok {
			continue
		}
		ip, _, _ := strings.Cut(value, ",")
		return strings.TrimSpace(ip)
	}
	return ""
}
