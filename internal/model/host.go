package model

import (
	"fmt"
	"strings"
)

// RemoteHost is a host as known to the Checkmk site. Attributes hold
// whatever the API returned, including the nested "labels" map and the
// "locked_by" ownership marker.
type RemoteHost struct {
	Name       string         `json:"name"`
	Folder     string         `json:"folder"` // absolute path, e.g. "/prod/web"
	Attributes map[string]any `json:"attributes"`
}

// LockedBy returns the ownership marker, or "" when the host is unlocked.
func (h RemoteHost) LockedBy() string {
	value, ok := h.Attributes["locked_by"]
	if !ok {
		return ""
	}
	locked, _ := value.(string)
	return locked
}

// Labels returns the host's label map. JSON decoding yields
// map[string]any, so values are converted back to strings.
func (h RemoteHost) Labels() map[string]string {
	labels := make(map[string]string)
	switch raw := h.Attributes["labels"].(type) {
	case map[string]string:
		for key, value := range raw {
			labels[key] = value
		}
	case map[string]any:
		for key, value := range raw {
			labels[key] = stringify(value)
		}
	}
	return labels
}

// IPAddress returns the configured "ipaddress" attribute, or "".
func (h RemoteHost) IPAddress() string {
	value, ok := h.Attributes["ipaddress"]
	if !ok {
		return ""
	}
	return stringify(value)
}

// Tags returns the host's tag attributes keyed by tag-group name,
// with the "tag_" prefix stripped.
func (h RemoteHost) Tags() map[string]string {
	tags := make(map[string]string)
	for key, value := range h.Attributes {
		if IsTagField(key) {
			tags[key[len("tag_"):]] = stringify(value)
		}
	}
	return tags
}

// ComparableAttributes returns the attributes that take part in the
// modification check: everything except builtins and tags, stringified
// so they compare against imported values.
func (h RemoteHost) ComparableAttributes() map[string]string {
	comparable := make(map[string]string)
	for key, value := range h.Attributes {
		if IsBuiltinAttribute(key) || IsTagField(key) {
			continue
		}
		comparable[key] = stringify(value)
	}
	return comparable
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// TagCatalog maps a tag-group identifier to its legal choice values.
type TagCatalog map[string][]string

// Groups returns the tag-group identifiers, unsorted.
func (c TagCatalog) Groups() []string {
	groups := make([]string, 0, len(c))
	for group := range c {
		groups = append(groups, group)
	}
	return groups
}

// String is used in log output.
func (c TagCatalog) String() string {
	return strings.Join(c.Groups(), ", ")
}
