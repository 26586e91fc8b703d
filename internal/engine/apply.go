package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"hostsync/internal/model"
)

// ApplierOptions tune the apply phase.
type ApplierOptions struct {
	// ServiceDiscovery triggers a bulk discovery on newly created
	// hosts and waits for it to finish.
	ServiceDiscovery bool

	// LabelPaths marks that folder paths are derived from labels, so
	// folders referenced by creates and moves may not exist yet.
	LabelPaths bool

	// Poll settings for the folder-visibility and discovery waits.
	// Zero values fall back to the defaults below.
	FolderTimeout     time.Duration
	FolderInterval    time.Duration
	DiscoveryTimeout  time.Duration
	DiscoveryInterval time.Duration
}

const (
	defaultFolderTimeout     = 60 * time.Second
	defaultFolderInterval    = 2 * time.Second
	defaultDiscoveryTimeout  = 60 * time.Second
	defaultDiscoveryInterval = 500 * time.Millisecond
)

// ApplyResult reports what one apply pass changed.
type ApplyResult struct {
	Created  []string
	Modified []string
	Moved    []string
	Deleted  []string
}

// Changed reports whether anything was touched.
func (r ApplyResult) Changed() bool {
	return len(r.Created) > 0 || len(r.Modified) > 0 || len(r.Moved) > 0 || len(r.Deleted) > 0
}

// Summary renders the human-readable change message.
func (r ApplyResult) Summary() string {
	if !r.Changed() {
		return "Nothing changed"
	}

	var parts []string
	if len(r.Created) > 0 {
		parts = append(parts, fmt.Sprintf("%d created", len(r.Created)))
	}
	if len(r.Modified) > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", len(r.Modified)))
	}
	if len(r.Moved) > 0 {
		parts = append(parts, fmt.Sprintf("%d moved", len(r.Moved)))
	}
	if len(r.Deleted) > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", len(r.Deleted)))
	}
	return "Hosts: " + strings.Join(parts, ", ")
}

// Applier executes the operation batches against the site in a fixed
// order: folders first, then create, modify, delete, move, with a
// final activation when the gateway needs one.
type Applier struct {
	gateway Gateway
	opts    ApplierOptions
	logger  zerolog.Logger
}

// NewApplier creates an applier over the given gateway.
func NewApplier(gateway Gateway, opts ApplierOptions, logger zerolog.Logger) *Applier {
	if opts.FolderTimeout == 0 {
		opts.FolderTimeout = defaultFolderTimeout
	}
	if opts.FolderInterval == 0 {
		opts.FolderInterval = defaultFolderInterval
	}
	if opts.DiscoveryTimeout == 0 {
		opts.DiscoveryTimeout = defaultDiscoveryTimeout
	}
	if opts.DiscoveryInterval == 0 {
		opts.DiscoveryInterval = defaultDiscoveryInterval
	}
	return &Applier{
		gateway: gateway,
		opts:    opts,
		logger:  logger.With().Str("component", "applier").Logger(),
	}
}

// Apply executes the batches. Per-host rejections are logged and do
// not abort the pass; transport failures do.
func (a *Applier) Apply(ctx context.Context, batches model.Batches) (ApplyResult, error) {
	var result ApplyResult

	if a.opts.LabelPaths && (len(batches.Create) > 0 || len(batches.Move) > 0) {
		if err := a.ensureFolders(ctx, batches); err != nil {
			return result, err
		}
	}

	created, err := a.createHosts(ctx, batches.Create)
	if err != nil {
		return result, err
	}
	result.Created = created

	modified, err := a.modifyHosts(ctx, batches.Modify)
	if err != nil {
		return result, err
	}
	result.Modified = modified

	deleted, err := a.deleteHosts(ctx, batches.Delete)
	if err != nil {
		return result, err
	}
	result.Deleted = deleted

	result.Moved = a.moveHosts(ctx, batches.Move)

	if result.Changed() && a.gateway.RequiresActivation() {
		activated, err := a.gateway.ActivateChanges(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to activate changes: %w", err)
		}
		if !activated {
			a.logger.Info().Msg("there was no change to activate")
		}
	}

	return result, nil
}

// ensureFolders creates every folder the creates and moves reference
// but the site does not have yet, then waits until they are visible.
// The wait is best effort: a timeout is logged, not fatal, because the
// next cycle re-diffs and reissues outstanding work.
func (a *Applier) ensureFolders(ctx context.Context, batches model.Batches) error {
	required := a.gateway.FoldersForHosts(batches.Create, batches.Move)

	existing, err := a.gateway.GetFolders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}

	var missing []string
	for folder := range required {
		if _, ok := existing[folder]; !ok {
			missing = append(missing, folder)
		}
	}
	if len(missing) == 0 {
		a.logger.Debug().Msg("no folders to create")
		return nil
	}

	// Lexicographic order addresses parents before children when
	// paths share prefixes.
	sort.Strings(missing)

	a.logger.Debug().Strs("folders", missing).Msg("creating folders")
	for _, folder := range missing {
		a.logger.Info().Str("folder", folder).Msg("creating folder")
		if err := a.gateway.AddFolder(ctx, folder); err != nil {
			return fmt.Errorf("failed to create folder %q: %w", folder, err)
		}
	}

	if _, err := a.gateway.ActivateChanges(ctx); err != nil {
		return fmt.Errorf("failed to activate folder creation: %w", err)
	}

	a.waitForFolders(ctx, missing)
	return nil
}

// waitForFolders polls until the created folders are visible or the
// timeout elapses.
func (a *Applier) waitForFolders(ctx context.Context, folders []string) {
	a.logger.Debug().Msg("waiting for folders to be created")

	waitCtx, cancel := context.WithTimeout(ctx, a.opts.FolderTimeout)
	defer cancel()

	check := func() error {
		existing, err := a.gateway.GetFolders(waitCtx)
		if err != nil {
			return backoff.Permanent(err)
		}
		var missing []string
		for _, folder := range folders {
			if _, ok := existing[folder]; !ok {
				missing = append(missing, folder)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("folders still missing: %s", strings.Join(missing, ", "))
		}
		return nil
	}

	wait := backoff.WithContext(backoff.NewConstantBackOff(a.opts.FolderInterval), waitCtx)
	if err := backoff.Retry(check, wait); err != nil {
		a.logger.Warn().
			Err(err).
			Dur("timeout", a.opts.FolderTimeout).
			Msg("timed out waiting for folders to be created")
	}
}

// createHosts adds the new hosts and, when enabled, runs a service
// discovery on the ones the site accepted.
func (a *Applier) createHosts(ctx context.Context, creates []model.HostCreate) ([]string, error) {
	if len(creates) == 0 {
		a.logger.Debug().Msg("nothing to create")
		return nil, nil
	}

	a.logger.Debug().Int("count", len(creates)).Msg("creating hosts")
	result, err := a.gateway.AddHosts(ctx, creates)
	if err != nil {
		return nil, fmt.Errorf("failed to add hosts: %w", err)
	}
	a.logFailed("creation", result.Failed)

	if len(result.Succeeded) > 0 && a.opts.ServiceDiscovery {
		a.discoverHosts(ctx, result.Succeeded)
	}

	return result.Succeeded, nil
}

// discoverHosts triggers a bulk discovery and waits for completion.
// A timeout is logged as an error but does not abort the cycle.
func (a *Applier) discoverHosts(ctx context.Context, hostnames []string) {
	a.logger.Debug().Int("count", len(hostnames)).Msg("discovering services on new hosts")

	if err := a.gateway.DiscoverServices(ctx, hostnames); err != nil {
		a.logger.Error().Err(err).Msg("failed to start bulk discovery")
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.opts.DiscoveryTimeout)
	defer cancel()

	started := time.Now()
	check := func() error {
		running, err := a.gateway.IsDiscoveryRunning(waitCtx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if running {
			return fmt.Errorf("discovery still running")
		}
		return nil
	}

	wait := backoff.WithContext(backoff.NewConstantBackOff(a.opts.DiscoveryInterval), waitCtx)
	if err := backoff.Retry(check, wait); err != nil {
		a.logger.Error().
			Err(err).
			Dur("timeout", a.opts.DiscoveryTimeout).
			Msg("timed out waiting for bulk discovery to finish")
		return
	}

	a.logger.Debug().Dur("duration", time.Since(started)).Msg("bulk discovery finished")
}

func (a *Applier) modifyHosts(ctx context.Context, modifies []model.HostModify) ([]string, error) {
	if len(modifies) == 0 {
		a.logger.Debug().Msg("nothing to modify")
		return nil, nil
	}

	a.logger.Debug().Int("count", len(modifies)).Msg("modifying hosts")
	result, err := a.gateway.ModifyHosts(ctx, modifies)
	if err != nil {
		return nil, fmt.Errorf("failed to modify hosts: %w", err)
	}
	a.logFailed("modification", result.Failed)

	return result.Succeeded, nil
}

func (a *Applier) deleteHosts(ctx context.Context, hostnames []string) ([]string, error) {
	if len(hostnames) == 0 {
		a.logger.Debug().Msg("nothing to delete")
		return nil, nil
	}

	if err := a.gateway.DeleteHosts(ctx, hostnames); err != nil {
		return nil, fmt.Errorf("failed to delete hosts: %w", err)
	}

	a.logger.Debug().Strs("hosts", hostnames).Msg("deleted hosts")
	return hostnames, nil
}

// moveHosts moves hosts one at a time. A rejected move is logged and
// skipped; it is retried naturally on the next cycle.
func (a *Applier) moveHosts(ctx context.Context, moves []model.HostMove) []string {
	var succeeded []string
	for _, move := range moves {
		if err := a.gateway.MoveHost(ctx, move.Hostname, move.Folder); err != nil {
			a.logger.Error().
				Err(err).
				Str("host", move.Hostname).
				Str("folder", move.Folder).
				Msg("failed to move host")
			continue
		}
		a.logger.Info().
			Str("host", move.Hostname).
			Str("folder", move.Folder).
			Msg("moved host")
		succeeded = append(succeeded, move.Hostname)
	}
	return succeeded
}

// logFailed logs per-host rejections in stable order.
func (a *Applier) logFailed(operation string, failed map[string]string) {
	hostnames := make([]string, 0, len(failed))
	for hostname := range failed {
		hostnames = append(hostnames, hostname)
	}
	sort.Strings(hostnames)

	for _, hostname := range hostnames {
		a.logger.Error().
			Str("host", hostname).
			Str("reason", failed[hostname]).
			Msgf("%s failed", operation)
	}
}
