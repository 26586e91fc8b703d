package model

// ImportedRecord is a single host row read from the import file,
// mapping field name to raw string value.
type ImportedRecord map[string]string

// ImportSnapshot is the result of phase 1. It is handed to phase 2
// through JSON serialization, so field names must round-trip losslessly.
type ImportSnapshot struct {
	Hosts         []ImportedRecord `json:"hosts"`
	HostnameField string           `json:"hostname_field"`
	FieldNames    []string         `json:"fieldnames"`
}

// NormalizedHost is the derived view of an ImportedRecord, split into
// the three disjoint buckets plus the optional IP address. A key belongs
// to exactly one bucket, decided by prefix matching.
type NormalizedHost struct {
	Labels     map[string]string // lowercased keys, "label_" prefix stripped
	Attributes map[string]string // "attr_" prefix stripped, builtins dropped
	Tags       map[string]string // tag-group name (unresolved) -> chosen value
	IP         string            // empty when the record carries no IP
}
