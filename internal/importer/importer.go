// Package importer reads host inventories from flat files.
//
// Every importer produces an ImportSnapshot: the raw records, the set
// of field names and the field that carries the hostname. Optional
// transforms (lowercasing, value sanitizing) run on top of the raw
// import before the snapshot is handed to the sync engine.
package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"hostsync/internal/config"
	"hostsync/internal/model"
)

// Importer reads one host inventory source.
type Importer interface {
	Import(ctx context.Context) (*model.ImportSnapshot, error)
}

// New creates the importer for the connection's file format, wrapped
// with the configured transforms and a final snapshot validation.
func New(cfg *config.ConnectionConfig, logger zerolog.Logger) (Importer, error) {
	var source Importer

	switch cfg.Format {
	case "csv":
		source = NewCSVImporter(cfg.Path, cfg.CSVDelimiter, logger)
	case "json":
		source = NewJSONImporter(cfg.Path, logger)
	case "bvq":
		source = NewBVQImporter(cfg.Path, logger)
	case "xlsx":
		source = NewXLSXImporter(cfg.Path, cfg.XLSXSheet, logger)
	default:
		return nil, fmt.Errorf("invalid file format %q", cfg.Format)
	}

	var stages []Transform
	if cfg.LowercaseAll {
		logger.Info().Msg("all imported values will be lowercased")
		stages = append(stages, Lowercase)
	}
	if cfg.SanitizeValues {
		logger.Info().Msg("special characters in imported values will be replaced")
		stages = append(stages, Sanitize)
	}

	return &pipeline{source: source, stages: stages, path: cfg.Path}, nil
}

// pipeline runs the source import, applies the transforms in order and
// validates the resulting snapshot.
type pipeline struct {
	source Importer
	stages []Transform
	path   string
}

func (p *pipeline) Import(ctx context.Context) (*model.ImportSnapshot, error) {
	snapshot, err := p.source.Import(ctx)
	if err != nil {
		return nil, err
	}

	for _, stage := range p.stages {
		stage(snapshot)
	}

	if len(snapshot.FieldNames) == 0 {
		return nil, fmt.Errorf("unable to detect available fields in %s, is the file empty?", p.path)
	}
	if snapshot.HostnameField == "" {
		return nil, fmt.Errorf("unable to detect hostname field in %s", p.path)
	}

	return snapshot, nil
}
