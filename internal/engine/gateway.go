package engine

import (
	"context"

	"hostsync/internal/model"
)

// Gateway is the remote-inventory capability the engine reconciles
// against. Both API variants of Checkmk (legacy web API and REST API)
// satisfy it; the capability flags let the engine adapt without
// knowing which protocol is in use.
type Gateway interface {
	GetHosts(ctx context.Context) (map[string]model.RemoteHost, error)
	AddHosts(ctx context.Context, hosts []model.HostCreate) (model.HostResult, error)
	ModifyHosts(ctx context.Context, hosts []model.HostModify) (model.HostResult, error)
	DeleteHosts(ctx context.Context, hostnames []string) error
	MoveHost(ctx context.Context, hostname, folder string) error

	GetHostTags(ctx context.Context) (model.TagCatalog, error)

	DiscoverServices(ctx context.Context, hostnames []string) error
	IsDiscoveryRunning(ctx context.Context) (bool, error)

	// ActivateChanges commits staged changes. It returns false when
	// the site reports there was nothing to activate.
	ActivateChanges(ctx context.Context) (bool, error)

	GetFolders(ctx context.Context) (map[string]struct{}, error)
	AddFolder(ctx context.Context, folder string) error

	// FoldersForHosts returns the folder paths the given creates and
	// moves require, formatted the way this protocol expects them.
	FoldersForHosts(creates []model.HostCreate, moves []model.HostMove) map[string]struct{}

	// SupportsTags reports whether the site can serve its tag
	// catalog. Older API versions cannot.
	SupportsTags() bool

	// RequiresActivation reports whether the caller must trigger an
	// explicit activation after applying changes.
	RequiresActivation() bool
}
