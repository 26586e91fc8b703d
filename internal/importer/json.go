package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"hostsync/internal/model"
)

// jsonHostnameFields are probed in order to find the hostname field of
// a JSON export. IP fields serve as a fallback.
var jsonHostnameFields = []string{"name", "hostname"}

// JSONImporter reads hosts from a file containing a JSON array of flat
// host objects.
type JSONImporter struct {
	path   string
	logger zerolog.Logger
}

// NewJSONImporter creates a JSON importer.
func NewJSONImporter(path string, logger zerolog.Logger) *JSONImporter {
	return &JSONImporter{
		path:   path,
		logger: logger.With().Str("component", "json-importer").Logger(),
	}
}

// Import reads the whole file into a snapshot.
func (i *JSONImporter) Import(ctx context.Context) (*model.ImportSnapshot, error) {
	file, err := os.Open(i.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", i.path, err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.UseNumber()

	var raw []map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", i.path, err)
	}

	snapshot := &model.ImportSnapshot{}

	fields := make(map[string]struct{})
	for _, entry := range raw {
		record := make(model.ImportedRecord, len(entry))
		for key, value := range entry {
			record[key] = stringValue(value)
			fields[key] = struct{}{}
		}
		snapshot.Hosts = append(snapshot.Hosts, record)
	}

	snapshot.FieldNames = sortedFields(fields)
	snapshot.HostnameField = detectHostnameField(fields)

	i.logger.Debug().Int("count", len(snapshot.Hosts)).Msg("imported hosts")
	return snapshot, nil
}

func detectHostnameField(fields map[string]struct{}) string {
	candidates := append(append([]string{}, jsonHostnameFields...), model.IPFieldNames...)
	for _, candidate := range candidates {
		if _, ok := fields[candidate]; ok {
			return candidate
		}
	}
	return ""
}

func sortedFields(fields map[string]struct{}) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stringValue renders a decoded JSON value the way it was written in
// the source file.
func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
