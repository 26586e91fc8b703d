package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"hostsync/internal/model"
)

// CompileFilters compiles hostname filter patterns. Matching is
// anchored at the start of the hostname but not at the end, so a
// pattern covering only a prefix still accepts the host.
func CompileFilters(patterns []string) ([]*regexp.Regexp, error) {
	filters := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		filter, err := regexp.Compile("^(?:" + pattern + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid host filter %q: %w", pattern, err)
		}
		filters = append(filters, filter)
	}
	return filters, nil
}

func matchesAny(filters []*regexp.Regexp, hostname string) bool {
	for _, filter := range filters {
		if filter.MatchString(hostname) {
			return true
		}
	}
	return false
}

// ReconcilerOptions carry the per-connection settings that shape a
// reconciliation pass.
type ReconcilerOptions struct {
	// Identity is the ownership marker written to locked_by. Hosts
	// carrying a different marker are never touched.
	Identity string

	// Folder is the fixed target folder. With LabelPathKeys set it
	// becomes the root segment of the derived path instead.
	Folder string

	// LabelPathKeys are the ordered label keys the folder path is
	// derived from. Empty means all hosts go to Folder directly.
	LabelPathKeys []string

	// HostFilters accept imported hostnames (OR semantics, empty
	// list accepts everything).
	HostFilters []*regexp.Regexp

	// OvertakeFilters select unlocked existing hosts this connection
	// may take ownership of.
	OvertakeFilters []*regexp.Regexp

	// LabelPrefix, when set, is prepended to every imported label.
	// Only labels carrying the prefix are compared and replaced on
	// existing hosts; others are preserved untouched.
	LabelPrefix string

	// SyncIPs enables IP address comparison and updates. It is set
	// when the import's field list contains an IP field.
	SyncIPs bool
}

// Reconciler computes the minimal operation batches that make the
// site's inventory match an import snapshot, respecting ownership.
type Reconciler struct {
	opts    ReconcilerOptions
	matcher *TagMatcher // nil disables tag handling for the cycle
	logger  zerolog.Logger
}

// NewReconciler creates a reconciler. matcher may be nil when the
// import carries no tags or the site cannot serve the tag catalog.
func NewReconciler(opts ReconcilerOptions, matcher *TagMatcher, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		opts:    opts,
		matcher: matcher,
		logger:  logger.With().Str("component", "reconciler").Logger(),
	}
}

// ownership is the per-cycle partition of the remote host set.
type ownership struct {
	managed   map[string]model.RemoteHost
	overtake  map[string]struct{}
	unrelated map[string]struct{}
}

// partition splits the remote hosts into managed, overtakable and
// unrelated. A host locked by another identity is never overtaken.
func (r *Reconciler) partition(remote map[string]model.RemoteHost) ownership {
	state := ownership{
		managed:   make(map[string]model.RemoteHost),
		overtake:  make(map[string]struct{}),
		unrelated: make(map[string]struct{}),
	}

	for hostname, host := range remote {
		lockedBy := host.LockedBy()
		switch {
		case lockedBy == r.opts.Identity:
			state.managed[hostname] = host
		case lockedBy == "" && matchesAny(r.opts.OvertakeFilters, hostname):
			r.logger.Debug().Str("host", hostname).Msg("marking host for takeover")
			state.overtake[hostname] = struct{}{}
		default:
			state.unrelated[hostname] = struct{}{}
		}
	}

	r.logger.Info().
		Int("managed", len(state.managed)).
		Int("overtakable", len(state.overtake)).
		Int("unrelated", len(state.unrelated)).
		Msg("partitioned existing hosts")

	return state
}

// Reconcile produces the four operation batches for one cycle.
// An unknown tag group in the import aborts the cycle; an invalid tag
// choice is logged and applied anyway.
func (r *Reconciler) Reconcile(records []model.ImportedRecord, hostnameField string, remote map[string]model.RemoteHost) (model.Batches, error) {
	state := r.partition(remote)

	var batches model.Batches
	imported := make(map[string]struct{}, len(records))

	for _, record := range records {
		hostname := model.NormalizeHostname(record[hostnameField])
		imported[hostname] = struct{}{}

		if len(r.opts.HostFilters) > 0 && !matchesAny(r.opts.HostFilters, hostname) {
			continue
		}

		existing, exists := remote[hostname]
		if !exists {
			r.logger.Debug().Str("host", hostname).Msg("creating new host")
			create, err := r.creation(hostname, record, hostnameField)
			if err != nil {
				return model.Batches{}, err
			}
			batches.Create = append(batches.Create, create)
			continue
		}

		if _, unrelated := state.unrelated[hostname]; unrelated {
			// Not managed by this connection, leave it alone.
			continue
		}

		_, overtake := state.overtake[hostname]

		r.logger.Debug().Str("host", hostname).Msg("checking managed host")
		modify, changed, err := r.modification(hostname, existing, record, hostnameField, overtake)
		if err != nil {
			return model.Batches{}, err
		}
		if changed {
			batches.Modify = append(batches.Modify, modify)
		}

		if move, moved := r.move(hostname, existing, record, hostnameField); moved {
			batches.Move = append(batches.Move, move)
		}
	}

	// Only hosts this connection owns may be deleted, and never one
	// still present in the import.
	for hostname := range state.managed {
		if _, present := imported[hostname]; !present {
			batches.Delete = append(batches.Delete, hostname)
		}
	}

	r.logger.Info().
		Int("create", len(batches.Create)).
		Int("modify", len(batches.Modify)).
		Int("move", len(batches.Move)).
		Int("delete", len(batches.Delete)).
		Msg("planned host actions")

	return batches, nil
}

// folderPath derives the target folder for a host from its labels,
// falling back to the fixed configured folder when no label keys are
// configured.
func (r *Reconciler) folderPath(labels map[string]string) string {
	if len(r.opts.LabelPathKeys) == 0 {
		return r.opts.Folder
	}
	return FolderPath(labels, r.opts.LabelPathKeys, r.opts.Folder)
}

// prefixLabels applies the configured label prefix to every key.
func (r *Reconciler) prefixLabels(labels map[string]string) map[string]string {
	if r.opts.LabelPrefix == "" {
		return labels
	}
	prefixed := make(map[string]string, len(labels))
	for key, value := range labels {
		prefixed[r.opts.LabelPrefix+key] = value
	}
	return prefixed
}

// resolveTags maps imported tag names to canonical tag-group ids.
// Invalid choices are logged and still applied; unknown groups fail.
func (r *Reconciler) resolveTags(tags map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(tags))
	for name, value := range tags {
		canonical, err := r.matcher.Resolve(name)
		if err != nil {
			return nil, err
		}
		if ok, _ := r.matcher.ValidChoice(canonical, value, false); !ok {
			r.logger.Error().
				Str("tag_group", canonical).
				Str("value", value).
				Msg("value is not a valid choice for tag group")
		}
		resolved[canonical] = value
	}
	return resolved, nil
}

// needsModification reports whether any wanted key is missing from
// current or differs in value. Extra keys on the remote side do not
// count as a difference.
func (r *Reconciler) needsModification(current, wanted map[string]string) bool {
	for key, value := range wanted {
		existing, ok := current[key]
		if !ok {
			r.logger.Debug().Str("key", key).Msg("missing on remote host")
			return true
		}
		if existing != value {
			r.logger.Debug().
				Str("key", key).
				Str("current", existing).
				Str("wanted", value).
				Msg("difference detected")
			return true
		}
	}
	return false
}

// creation builds the create tuple for a host absent from the site.
func (r *Reconciler) creation(hostname string, record model.ImportedRecord, hostnameField string) (model.HostCreate, error) {
	normalized := Normalize(record, hostnameField)

	attributes := map[string]any{
		"labels": r.prefixLabels(normalized.Labels),
		// Lock the host so later cycles can recognize it as ours.
		"locked_by": r.opts.Identity,
	}

	if normalized.IP != "" {
		attributes["ipaddress"] = normalized.IP
	}

	if r.matcher != nil {
		tags, err := r.resolveTags(normalized.Tags)
		if err != nil {
			return model.HostCreate{}, err
		}
		for group, value := range tags {
			attributes["tag_"+group] = value
		}
	}

	for key, value := range normalized.Attributes {
		attributes[key] = value
	}

	return model.HostCreate{
		Hostname:   hostname,
		Folder:     r.folderPath(normalized.Labels),
		Attributes: attributes,
	}, nil
}

// modification decides whether an existing host needs an update and
// builds the modify tuple. Attribute, label, tag and IP differences
// are evaluated independently; a host marked for overtake is always
// updated so the ownership marker flips.
func (r *Reconciler) modification(hostname string, existing model.RemoteHost, record model.ImportedRecord, hostnameField string, overtake bool) (model.HostModify, bool, error) {
	normalized := Normalize(record, hostnameField)

	futureAttributes := normalized.Attributes
	comparableAttributes := existing.ComparableAttributes()

	allRemoteLabels := existing.Labels()
	remoteLabels := allRemoteLabels
	if r.opts.LabelPrefix != "" {
		// Only labels carrying our prefix are under management.
		remoteLabels = make(map[string]string)
		for key, value := range allRemoteLabels {
			if strings.HasPrefix(key, r.opts.LabelPrefix) {
				remoteLabels[key] = value
			}
		}
	}
	futureLabels := r.prefixLabels(normalized.Labels)

	var remoteTags, futureTags map[string]string
	if r.matcher != nil {
		remoteTags = existing.Tags()
		resolved, err := r.resolveTags(normalized.Tags)
		if err != nil {
			return model.HostModify{}, false, err
		}
		futureTags = resolved
	}

	existingIP := existing.IPAddress()
	futureIP := normalized.IP

	updateNeeded := func() bool {
		if overtake {
			r.logger.Debug().Str("host", hostname).Msg("host marked for overtake")
			return true
		}
		if r.needsModification(comparableAttributes, futureAttributes) {
			r.logger.Debug().Str("host", hostname).Msg("attributes require update")
			return true
		}
		if r.needsModification(remoteLabels, futureLabels) {
			r.logger.Debug().Str("host", hostname).Msg("labels require update")
			return true
		}
		if r.matcher != nil && r.needsModification(remoteTags, futureTags) {
			r.logger.Debug().Str("host", hostname).Msg("tags require update")
			return true
		}
		if r.opts.SyncIPs && existingIP != futureIP {
			r.logger.Debug().Str("host", hostname).Msg("IP address requires update")
			return true
		}
		return false
	}

	if !updateNeeded() {
		return model.HostModify{}, false, nil
	}

	attributes := make(map[string]any, len(existing.Attributes))
	for key, value := range existing.Attributes {
		attributes[key] = value
	}

	// Existing labels survive, imported ones win on conflict.
	mergedLabels := make(map[string]string, len(allRemoteLabels)+len(futureLabels))
	for key, value := range allRemoteLabels {
		mergedLabels[key] = value
	}
	for key, value := range futureLabels {
		mergedLabels[key] = value
	}
	attributes["labels"] = mergedLabels

	var unset []string
	if r.opts.SyncIPs {
		if futureIP == "" {
			if existingIP != "" {
				unset = append(unset, "ipaddress")
			}
		} else {
			attributes["ipaddress"] = futureIP
		}
	}

	for group, value := range futureTags {
		attributes["tag_"+group] = value
	}

	for key, value := range futureAttributes {
		attributes[key] = value
	}

	if overtake {
		r.logger.Info().Str("host", hostname).Msg("overtaking host")
		attributes["locked_by"] = r.opts.Identity
	}

	if _, present := attributes["hostname"]; present {
		r.logger.Debug().Str("host", hostname).Msg("dropping stray hostname attribute")
		delete(attributes, "hostname")
	}

	return model.HostModify{Hostname: hostname, Attributes: attributes, Unset: unset}, true, nil
}

// move checks whether the host's current folder matches the one its
// labels derive, independent of the modification decision.
func (r *Reconciler) move(hostname string, existing model.RemoteHost, record model.ImportedRecord, hostnameField string) (model.HostMove, bool) {
	normalized := Normalize(record, hostnameField)
	futureFolder := r.folderPath(normalized.Labels)

	absoluteFuture := PathSeparator + futureFolder
	if existing.Folder == absoluteFuture {
		return model.HostMove{}, false
	}

	r.logger.Debug().
		Str("host", hostname).
		Str("current", existing.Folder).
		Str("wanted", absoluteFuture).
		Msg("folder requires update")

	return model.HostMove{Hostname: hostname, Folder: futureFolder}, true
}
