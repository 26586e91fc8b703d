package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"hostsync/internal/model"
)

// CSVImporter reads hosts from a CSV export. The first row is the
// header and the first column carries the hostname.
type CSVImporter struct {
	path      string
	delimiter rune
	logger    zerolog.Logger
}

// NewCSVImporter creates a CSV importer. An empty delimiter means the
// default comma.
func NewCSVImporter(path, delimiter string, logger zerolog.Logger) *CSVImporter {
	sep := ','
	if delimiter != "" {
		sep = []rune(delimiter)[0]
	}

	return &CSVImporter{
		path:      path,
		delimiter: sep,
		logger:    logger.With().Str("component", "csv-importer").Logger(),
	}
}

// Import reads the whole file into a snapshot.
func (i *CSVImporter) Import(ctx context.Context) (*model.ImportSnapshot, error) {
	file, err := os.Open(i.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", i.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = i.delimiter
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", i.path, err)
	}

	snapshot := &model.ImportSnapshot{}
	if len(rows) == 0 {
		return snapshot, nil
	}

	snapshot.FieldNames = rows[0]
	snapshot.HostnameField = rows[0][0]

	for _, row := range rows[1:] {
		record := make(model.ImportedRecord, len(snapshot.FieldNames))
		for column, field := range snapshot.FieldNames {
			if column < len(row) {
				record[field] = row[column]
			} else {
				record[field] = ""
			}
		}
		snapshot.Hosts = append(snapshot.Hosts, record)
	}

	i.logger.Debug().Int("count", len(snapshot.Hosts)).Msg("imported hosts")
	return snapshot, nil
}
