package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"hostsync/internal/model"
)

// bvqFieldMapping maps record fields to the keys of a BVQ host entry.
// BVQ sends more fields than are handled here; masterGroupingObjectIpv4
// and masterGroupingObjectIpv6 are excluded on purpose.
var bvqFieldMapping = []struct {
	field string
	key   string
}{
	{"label_bvq_type", "tag"},
	{"ipv4", "ipv4"},
	{"ipv6", "ipv6"},
}

// BVQImporter reads hosts from a BVQ export. Host entries live under
// the hostAddress key of each array element and the hostname is always
// carried in the name field.
type BVQImporter struct {
	path   string
	logger zerolog.Logger
}

// NewBVQImporter creates a BVQ importer.
func NewBVQImporter(path string, logger zerolog.Logger) *BVQImporter {
	return &BVQImporter{
		path:   path,
		logger: logger.With().Str("component", "bvq-importer").Logger(),
	}
}

// Import reads the whole file into a snapshot.
func (i *BVQImporter) Import(ctx context.Context) (*model.ImportSnapshot, error) {
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

	snapshot := &model.ImportSnapshot{HostnameField: "name"}

	fields := make(map[string]struct{})
	for _, entry := range raw {
		address, ok := entry["hostAddress"].(map[string]any)
		if !ok {
			continue
		}

		record := model.ImportedRecord{"name": stringValue(address["name"])}
		for _, mapping := range bvqFieldMapping {
			if value, ok := address[mapping.key]; ok {
				record[mapping.field] = stringValue(value)
			}
		}

		for key := range record {
			fields[key] = struct{}{}
		}
		snapshot.Hosts = append(snapshot.Hosts, record)
	}

	snapshot.FieldNames = sortedFields(fields)

	i.logger.Debug().Int("count", len(snapshot.Hosts)).Msg("imported hosts")
	return snapshot, nil
}
