package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"hostsync/internal/model"
)

// XLSXImporter reads hosts from an Excel workbook. The first row of
// the sheet is the header and the first column carries the hostname.
type XLSXImporter struct {
	path   string
	sheet  string
	logger zerolog.Logger
}

// NewXLSXImporter creates an Excel importer. An empty sheet name means
// the first sheet of the workbook.
func NewXLSXImporter(path, sheet string, logger zerolog.Logger) *XLSXImporter {
	return &XLSXImporter{
		path:   path,
		sheet:  sheet,
		logger: logger.With().Str("component", "xlsx-importer").Logger(),
	}
}

// Import reads the configured sheet into a snapshot.
func (i *XLSXImporter) Import(ctx context.Context) (*model.ImportSnapshot, error) {
	workbook, err := excelize.OpenFile(i.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", i.path, err)
	}
	defer workbook.Close()

	sheet := i.sheet
	if sheet == "" {
		sheet = workbook.GetSheetName(0)
	}

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, i.path, err)
	}

	snapshot := &model.ImportSnapshot{}
	if len(rows) == 0 || len(rows[0]) == 0 {
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

	i.logger.Debug().Int("count", len(snapshot.Hosts)).Str("sheet", sheet).Msg("imported hosts")
	return snapshot, nil
}
