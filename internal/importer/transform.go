package importer

import (
	"strings"

	"hostsync/internal/model"
)

// replacableChars cause trouble in REST API object values and are
// replaced before the records reach the engine.
const (
	replacableChars = "äöüÄÖÜ(),"
	replacementChar = "_"
)

// Transform rewrites an import snapshot in place.
type Transform func(*model.ImportSnapshot)

// Lowercase converts every field name, record key and record value to
// lowercase, including the hostname field.
func Lowercase(snapshot *model.ImportSnapshot) {
	for i, record := range snapshot.Hosts {
		lowered := make(model.ImportedRecord, len(record))
		for key, value := range record {
			lowered[strings.ToLower(key)] = strings.ToLower(value)
		}
		snapshot.Hosts[i] = lowered
	}

	for i, field := range snapshot.FieldNames {
		snapshot.FieldNames[i] = strings.ToLower(field)
	}

	snapshot.HostnameField = strings.ToLower(snapshot.HostnameField)
}

// Sanitize replaces characters the REST API rejects in record values.
// Keys and field names stay untouched.
func Sanitize(snapshot *model.ImportSnapshot) {
	for _, record := range snapshot.Hosts {
		for key, value := range record {
			record[key] = sanitizeValue(value)
		}
	}
}

func sanitizeValue(value string) string {
	if !strings.ContainsAny(value, replacableChars) {
		return value
	}

	for _, char := range replacableChars {
		value = strings.ReplaceAll(value, string(char), replacementChar)
	}
	return value
}
