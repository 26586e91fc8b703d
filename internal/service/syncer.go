// Package service orchestrates one sync cycle per connection: import
// the source file, diff it against the site and apply the batches.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"hostsync/internal/client/checkmk"
	"hostsync/internal/config"
	"hostsync/internal/engine"
	"hostsync/internal/importer"
	"hostsync/internal/model"
)

// Syncer runs sync cycles for one connection.
type Syncer struct {
	cfg    *config.Config
	conn   config.ConnectionConfig
	logger zerolog.Logger
}

// NewSyncer creates a syncer for the given connection.
func NewSyncer(cfg *config.Config, conn config.ConnectionConfig, logger zerolog.Logger) *Syncer {
	return &Syncer{
		cfg:    cfg,
		conn:   conn,
		logger: logger.With().Str("connection", conn.ID).Logger(),
	}
}

// Run executes one full cycle: import, persist the snapshot, then
// reconcile and apply.
func (s *Syncer) Run(ctx context.Context) (engine.ApplyResult, error) {
	snapshot, err := s.ImportHosts(ctx)
	if err != nil {
		return engine.ApplyResult{}, err
	}

	if err := s.SaveSnapshot(snapshot); err != nil {
		return engine.ApplyResult{}, err
	}

	return s.SyncHosts(ctx, snapshot)
}

// ImportHosts reads the connection's source file into a snapshot.
func (s *Syncer) ImportHosts(ctx context.Context) (*model.ImportSnapshot, error) {
	source, err := importer.New(&s.conn, s.logger)
	if err != nil {
		return nil, err
	}

	snapshot, err := source.Import(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("hosts", len(snapshot.Hosts)).
		Str("hostname_field", snapshot.HostnameField).
		Msg("imported hosts")
	return snapshot, nil
}

// snapshotPath is where the import snapshot of this connection is
// persisted between the import and sync phases.
func (s *Syncer) snapshotPath() string {
	dir := s.conn.SnapshotDir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "hostsync-"+s.conn.ID+".json")
}

// SaveSnapshot persists the snapshot as JSON.
func (s *Syncer) SaveSnapshot(snapshot *model.ImportSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	path := s.snapshotPath()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}

	s.logger.Debug().Str("path", path).Msg("saved snapshot")
	return nil
}

// LoadSnapshot reads back the snapshot of a previous import phase.
func (s *Syncer) LoadSnapshot() (*model.ImportSnapshot, error) {
	path := s.snapshotPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	var snapshot model.ImportSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &snapshot, nil
}

// SyncHosts diffs the snapshot against the site and applies the
// resulting batches.
func (s *Syncer) SyncHosts(ctx context.Context, snapshot *model.ImportSnapshot) (engine.ApplyResult, error) {
	gateway := s.newGateway(ctx)

	remote, err := gateway.GetHosts(ctx)
	if err != nil {
		return engine.ApplyResult{}, fmt.Errorf("failed to fetch hosts: %w", err)
	}

	matcher, err := s.tagMatcher(ctx, gateway, snapshot.FieldNames)
	if err != nil {
		return engine.ApplyResult{}, err
	}

	hostFilters, err := engine.CompileFilters(s.conn.HostFilters)
	if err != nil {
		return engine.ApplyResult{}, err
	}
	overtakeFilters, err := engine.CompileFilters(s.conn.HostOvertakeFilters)
	if err != nil {
		return engine.ApplyResult{}, err
	}

	reconciler := engine.NewReconciler(engine.ReconcilerOptions{
		Identity:        s.conn.Identity(s.cfg.Checkmk.Site),
		Folder:          s.conn.Folder,
		LabelPathKeys:   s.conn.LabelPathKeys(),
		HostFilters:     hostFilters,
		OvertakeFilters: overtakeFilters,
		LabelPrefix:     s.conn.LabelPrefix,
		SyncIPs:         model.FieldsContainIP(snapshot.FieldNames),
	}, matcher, s.logger)

	batches, err := reconciler.Reconcile(snapshot.Hosts, snapshot.HostnameField, remote)
	if err != nil {
		return engine.ApplyResult{}, err
	}

	applier := engine.NewApplier(gateway, engine.ApplierOptions{
		ServiceDiscovery: !s.conn.DisableDiscovery,
		LabelPaths:       s.conn.LabelPathTemplate != "",
	}, s.logger)

	result, err := applier.Apply(ctx, batches)
	if err != nil {
		return result, err
	}

	s.logger.Info().Msg(result.Summary())
	return result, nil
}

// newGateway builds the site gateway for this connection: the
// configured API client, chunked when a chunk size is set.
func (s *Syncer) newGateway(ctx context.Context) engine.Gateway {
	var gateway engine.Gateway
	if s.cfg.Checkmk.API == "legacy" {
		gateway = checkmk.NewLegacyClient(&s.cfg.Checkmk, &s.cfg.HTTP.Retry, s.logger)
	} else {
		gateway = checkmk.NewRestClient(ctx, &s.cfg.Checkmk, &s.cfg.HTTP.Retry, s.logger)
	}

	if s.conn.ChunkSize > 0 {
		gateway = engine.NewChunkedGateway(gateway, s.conn.ChunkSize)
	}
	return gateway
}

// tagMatcher fetches the tag catalog when the import carries tag
// fields. A site that cannot serve the catalog disables tag handling
// for the cycle instead of failing it.
func (s *Syncer) tagMatcher(ctx context.Context, gateway engine.Gateway, fields []string) (*engine.TagMatcher, error) {
	if !model.FieldsContainTags(fields) {
		return nil, nil
	}

	if !gateway.SupportsTags() {
		s.logger.Warn().Msg("site does not serve the tag catalog, tag handling disabled")
		return nil, nil
	}

	catalog, err := gateway.GetHostTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tag catalog: %w", err)
	}

	return engine.NewTagMatcher(catalog), nil
}
