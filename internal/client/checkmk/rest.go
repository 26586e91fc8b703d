// Package checkmk provides clients for the two wire protocols of the
// Checkmk configuration API: the REST API and the legacy web API.
// Both satisfy the engine's Gateway capability contract.
package checkmk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"hostsync/internal/config"
	"hostsync/internal/model"
)

// PathSeparator joins folder path segments on the wire.
const PathSeparator = "/"

// restTagSupport is the first Checkmk version whose REST API serves
// the host tag catalog.
var restTagSupport = [4]int{2, 1, 0, 17}

// RestClient talks to the Checkmk REST API.
type RestClient struct {
	httpClient   *resty.Client
	logger       zerolog.Logger
	supportsTags bool
}

// retryCondition determines whether a request should be retried.
// Only retry on timeout, 5xx errors, or connection failures; never on
// 4xx client errors.
func retryCondition(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp != nil && resp.StatusCode() >= 500 {
		return true
	}
	return false
}

func newHTTPClient(cfg *config.CheckmkConfig, retryCfg *config.RetryConfig, baseURL string) *resty.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retry := config.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
	if retryCfg != nil {
		retry = *retryCfg
	}

	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(retry.MaxRetries).
		SetRetryWaitTime(retry.BaseDelay).
		SetRetryMaxWaitTime(retry.BaseDelay * 8).
		AddRetryCondition(retryCondition)
}

// NewRestClient creates a REST API client and probes the site version
// once to decide whether tag sync is available. A failed probe
// disables tag support for safety rather than failing the client.
func NewRestClient(ctx context.Context, cfg *config.CheckmkConfig, retryCfg *config.RetryConfig, logger zerolog.Logger) *RestClient {
	baseURL := strings.TrimRight(cfg.Endpoint, "/") + "/check_mk/api/1.0"

	httpClient := newHTTPClient(cfg, retryCfg, baseURL).
		SetHeader("Authorization", "Bearer "+cfg.Username+" "+cfg.Secret).
		SetHeader("Content-Type", "application/json")

	c := &RestClient{
		httpClient: httpClient,
		logger:     logger.With().Str("component", "checkmk-rest").Logger(),
	}
	c.supportsTags = c.probeTagSupport(ctx)

	return c
}

// probeTagSupport reads the site version and checks whether the REST
// API can serve host tag groups.
func (c *RestClient) probeTagSupport(ctx context.Context) bool {
	var result versionResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/version")
	if err != nil || resp.StatusCode() != http.StatusOK {
		c.logger.Warn().Err(err).Msg("failed to read site version, disabling tag sync")
		return false
	}

	version, err := parseVersion(result.Versions.Checkmk)
	if err != nil {
		c.logger.Warn().Err(err).Str("version", result.Versions.Checkmk).Msg("unparseable site version, disabling tag sync")
		return false
	}

	for i := range restTagSupport {
		if version[i] != restTagSupport[i] {
			return version[i] > restTagSupport[i]
		}
	}
	return true
}

// parseVersion turns a version string like "2.1.0p17.cee" into its
// numeric components.
func parseVersion(raw string) ([4]int, error) {
	var version [4]int

	release, patch, ok := strings.Cut(raw, "p")
	if !ok {
		return version, fmt.Errorf("no patch release in version %q", raw)
	}
	patch, _, _ = strings.Cut(patch, ".") // may trail in .cee

	parts := strings.Split(release, ".")
	if len(parts) != 3 {
		return version, fmt.Errorf("unexpected version format %q", raw)
	}

	for i, part := range append(parts, patch) {
		number, err := strconv.Atoi(part)
		if err != nil {
			return version, fmt.Errorf("unexpected version format %q: %w", raw, err)
		}
		version[i] = number
	}

	return version, nil
}

// prefixPath makes sure a folder path carries the leading separator
// the REST API expects.
func prefixPath(path string) string {
	if !strings.HasPrefix(path, PathSeparator) {
		return PathSeparator + path
	}
	return path
}

// SupportsTags reports whether the site version serves the tag catalog.
func (c *RestClient) SupportsTags() bool {
	return c.supportsTags
}

// RequiresActivation reports true: REST changes stay pending until an
// explicit activation.
func (c *RestClient) RequiresActivation() bool {
	return true
}

// GetHosts retrieves all hosts with their configured attributes.
func (c *RestClient) GetHosts(ctx context.Context) (map[string]model.RemoteHost, error) {
	var result hostCollection

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetQueryParam("effective_attributes", "false").
		Get("/domain-types/host_config/collections/all")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch hosts: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("host listing returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	hosts := make(map[string]model.RemoteHost, len(result.Value))
	for _, host := range result.Value {
		hosts[host.ID] = model.RemoteHost{
			Name:       host.ID,
			Folder:     host.Extensions.Folder,
			Attributes: host.Extensions.Attributes,
		}
	}

	c.logger.Debug().Int("count", len(hosts)).Msg("fetched hosts")
	return hosts, nil
}

// AddHosts creates the given hosts through one bulk-create call. A
// rejected call marks every host of the batch as failed with the
// site's reason; the cycle carries on.
func (c *RestClient) AddHosts(ctx context.Context, hosts []model.HostCreate) (model.HostResult, error) {
	entries := make([]map[string]any, 0, len(hosts))
	for _, host := range hosts {
		entries = append(entries, map[string]any{
			"host_name":  host.Hostname,
			"folder":     prefixPath(host.Folder),
			"attributes": host.Attributes,
		})
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{"entries": entries}).
		Post("/domain-types/host_config/actions/bulk-create/invoke")
	if err != nil {
		return model.HostResult{}, fmt.Errorf("failed to add hosts: %w", err)
	}

	return bulkResult(hosts, resp, hostCreateName)
}

// ModifyHosts updates the given hosts through one bulk-update call.
func (c *RestClient) ModifyHosts(ctx context.Context, hosts []model.HostModify) (model.HostResult, error) {
	entries := make([]map[string]any, 0, len(hosts))
	for _, host := range hosts {
		entries = append(entries, map[string]any{
			"host_name":         host.Hostname,
			"attributes":        withoutMetaData(host.Attributes),
			"remove_attributes": host.Unset,
		})
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{"entries": entries}).
		Put("/domain-types/host_config/actions/bulk-update/invoke")
	if err != nil {
		return model.HostResult{}, fmt.Errorf("failed to modify hosts: %w", err)
	}

	return bulkResult(hosts, resp, hostModifyName)
}

func hostCreateName(h model.HostCreate) string { return h.Hostname }
func hostModifyName(h model.HostModify) string { return h.Hostname }

// bulkResult translates a bulk call response into per-host outcomes.
func bulkResult[T any](hosts []T, resp *resty.Response, name func(T) string) (model.HostResult, error) {
	var result model.HostResult
	if resp.StatusCode() < 400 {
		for _, host := range hosts {
			result.Succeeded = append(result.Succeeded, name(host))
		}
		return result, nil
	}

	reason := strings.TrimSpace(string(resp.Body()))
	result.Failed = make(map[string]string, len(hosts))
	for _, host := range hosts {
		result.Failed[name(host)] = reason
	}
	return result, nil
}

// withoutMetaData drops the meta_data attribute: since Checkmk 2.1
// the API rejects updates that carry it.
func withoutMetaData(attributes map[string]any) map[string]any {
	if _, present := attributes["meta_data"]; !present {
		return attributes
	}
	cleaned := make(map[string]any, len(attributes))
	for key, value := range attributes {
		if key == "meta_data" {
			continue
		}
		cleaned[key] = value
	}
	return cleaned
}

// DeleteHosts removes the given hosts through one bulk-delete call.
func (c *RestClient) DeleteHosts(ctx context.Context, hostnames []string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{"entries": hostnames}).
		Post("/domain-types/host_config/actions/bulk-delete/invoke")
	if err != nil {
		return fmt.Errorf("failed to delete hosts: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("host deletion returned status %d: %s", resp.StatusCode(), resp.Body())
	}
	return nil
}

// MoveHost moves one host to a new folder. The REST API guards moves
// with an etag, so the host object is fetched first.
func (c *RestClient) MoveHost(ctx context.Context, hostname, folder string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get("/objects/host_config/" + hostname)
	if err != nil {
		return fmt.Errorf("failed to fetch host %q: %w", hostname, err)
	}
	etag := resp.Header().Get("Etag")

	resp, err = c.httpClient.R().
		SetContext(ctx).
		SetHeader("If-Match", etag).
		SetBody(map[string]any{"target_folder": prefixPath(folder)}).
		Post("/objects/host_config/" + hostname + "/actions/move/invoke")
	if err != nil {
		return fmt.Errorf("failed to move host %q: %w", hostname, err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("move of %q returned status %d: %s", hostname, resp.StatusCode(), resp.Body())
	}
	return nil
}

// GetHostTags retrieves the tag catalog: builtin and custom tag groups
// with their legal choices.
func (c *RestClient) GetHostTags(ctx context.Context) (model.TagCatalog, error) {
	var result tagGroupCollection

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/domain-types/host_tag_group/collections/all")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tag groups: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("tag group listing returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	catalog := make(model.TagCatalog, len(result.Value))
	for _, group := range result.Value {
		choices := make([]string, 0, len(group.Extensions.Tags))
		for _, choice := range group.Extensions.Tags {
			choices = append(choices, choice.ID)
		}
		catalog[group.ID] = choices
	}

	return catalog, nil
}

// DiscoverServices starts a bulk service discovery on the given hosts.
func (c *RestClient) DiscoverServices(ctx context.Context, hostnames []string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{"hostnames": hostnames}).
		Post("/domain-types/discovery_run/actions/bulk-discovery-start/invoke")
	if err != nil {
		return fmt.Errorf("failed to start bulk discovery: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("bulk discovery returned status %d: %s", resp.StatusCode(), resp.Body())
	}
	return nil
}

// IsDiscoveryRunning checks the bulk discovery background job.
func (c *RestClient) IsDiscoveryRunning(ctx context.Context) (bool, error) {
	var result backgroundJob

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/objects/background_job/bulk_discovery")
	if err != nil {
		return false, fmt.Errorf("failed to check discovery status: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("discovery status returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	return result.Extensions.Active, nil
}

// ActivateChanges commits pending changes. A site that reports nothing
// to activate yields (false, nil).
func (c *RestClient) ActivateChanges(ctx context.Context) (bool, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"redirect":              false,
			"force_foreign_changes": false,
		}).
		Post("/domain-types/activation_run/actions/activate-changes/invoke")
	if err != nil {
		return false, fmt.Errorf("failed to activate changes: %w", err)
	}

	switch {
	case resp.StatusCode() < 400:
		return true, nil
	case resp.StatusCode() == http.StatusUnprocessableEntity:
		// Nothing was pending.
		return false, nil
	default:
		return false, fmt.Errorf("activation returned status %d: %s", resp.StatusCode(), resp.Body())
	}
}

// GetFolders retrieves every folder path of the site, absolute form.
func (c *RestClient) GetFolders(ctx context.Context) (map[string]struct{}, error) {
	var result folderCollection

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetQueryParams(map[string]string{
			"parent":    PathSeparator,
			"recursive": "true",
		}).
		Get("/domain-types/folder_config/collections/all")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch folders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("folder listing returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	folders := make(map[string]struct{}, len(result.Value))
	for _, folder := range result.Value {
		folders[folder.Extensions.Path] = struct{}{}
	}

	return folders, nil
}

// AddFolder creates one folder. A rejection for a missing parent
// triggers the parent's creation and one resubmission; a second
// rejection is dropped silently and healed by the next cycle.
func (c *RestClient) AddFolder(ctx context.Context, folder string) error {
	parent, name := splitFolder(folder)

	body := map[string]any{
		"name":   name,
		"title":  name,
		"parent": parent,
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post("/domain-types/folder_config/collections/all")
	if err != nil {
		return fmt.Errorf("failed to add folder %q: %w", folder, err)
	}

	if resp.StatusCode() == http.StatusBadRequest {
		var problem restProblem
		if jsonErr := json.Unmarshal(resp.Body(), &problem); jsonErr != nil {
			return nil
		}
		if _, parentMissing := problem.Fields["parent"]; parentMissing {
			if err := c.AddFolder(ctx, parent); err != nil {
				return err
			}
			retry, err := c.httpClient.R().
				SetContext(ctx).
				SetBody(body).
				Post("/domain-types/folder_config/collections/all")
			if err == nil && retry.StatusCode() >= 400 {
				c.logger.Debug().
					Str("folder", folder).
					Int("status", retry.StatusCode()).
					Msg("folder creation retry rejected")
			}
		}
		return nil
	}

	if resp.StatusCode() >= 400 {
		return fmt.Errorf("folder creation returned status %d: %s", resp.StatusCode(), resp.Body())
	}
	return nil
}

// splitFolder splits an absolute folder path into its parent path and
// the folder name.
func splitFolder(folder string) (parent, name string) {
	trimmed := prefixPath(folder)
	index := strings.LastIndex(trimmed, PathSeparator)
	parent = trimmed[:index]
	if parent == "" {
		parent = PathSeparator
	}
	return parent, trimmed[index+1:]
}

// FoldersForHosts returns the folders the creates and moves reference,
// prefixed the way the REST API reports them.
func (c *RestClient) FoldersForHosts(creates []model.HostCreate, moves []model.HostMove) map[string]struct{} {
	folders := make(map[string]struct{})
	for _, host := range creates {
		folders[prefixPath(host.Folder)] = struct{}{}
	}
	for _, host := range moves {
		folders[prefixPath(host.Folder)] = struct{}{}
	}
	return folders
}
