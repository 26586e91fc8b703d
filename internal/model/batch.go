package model

// HostCreate describes one host to add to the site.
type HostCreate struct {
	Hostname   string
	Folder     string // relative path, no leading slash
	Attributes map[string]any
}

// HostModify describes attribute updates for one existing host.
type HostModify struct {
	Hostname   string
	Attributes map[string]any // attributes to set, labels merged in
	Unset      []string       // attribute names to remove
}

// HostMove describes one host changing folders.
type HostMove struct {
	Hostname string
	Folder   string // relative target path, no leading slash
}

// Batches are the four operation sets produced by one reconciliation
// pass. They are consumed by the applier and discarded afterwards.
type Batches struct {
	Create []HostCreate
	Modify []HostModify
	Move   []HostMove
	Delete []string
}

// Empty reports whether the cycle has nothing to apply.
func (b Batches) Empty() bool {
	return len(b.Create) == 0 && len(b.Modify) == 0 && len(b.Move) == 0 && len(b.Delete) == 0
}

// HostResult is the outcome of a bulk create or modify call. Failed
// maps hostname to the site's reason; Succeeded lists the hostnames
// the site accepted.
type HostResult struct {
	Failed    map[string]string
	Succeeded []string
}

// Merge folds another partial result into this one.
func (r *HostResult) Merge(other HostResult) {
	if r.Failed == nil && len(other.Failed) > 0 {
		r.Failed = make(map[string]string, len(other.Failed))
	}
	for hostname, reason := range other.Failed {
		r.Failed[hostname] = reason
	}
	r.Succeeded = append(r.Succeeded, other.Succeeded...)
}
