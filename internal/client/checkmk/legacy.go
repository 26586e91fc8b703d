package checkmk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"hostsync/internal/config"
	"hostsync/internal/model"
)

// LegacyClient talks to the legacy Checkmk web API (webapi.py).
// Folder paths are written Unix style without the leading separator,
// and credentials travel as query parameters.
type LegacyClient struct {
	httpClient *resty.Client
	username   string
	secret     string
	logger     zerolog.Logger
}

// NewLegacyClient creates a legacy web-API client.
func NewLegacyClient(cfg *config.CheckmkConfig, retryCfg *config.RetryConfig, logger zerolog.Logger) *LegacyClient {
	baseURL := strings.TrimRight(cfg.Endpoint, "/") + "/check_mk/webapi.py"

	return &LegacyClient{
		httpClient: newHTTPClient(cfg, retryCfg, baseURL),
		username:   cfg.Username,
		secret:     cfg.Secret,
		logger:     logger.With().Str("component", "checkmk-webapi").Logger(),
	}
}

// call performs one web-API action. The request payload is sent as the
// "request" form field, JSON encoded; the result is decoded out of the
// response envelope into result when non-nil.
func (c *LegacyClient) call(ctx context.Context, action string, payload any, result any) error {
	request := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"action":        action,
			"_username":     c.username,
			"_secret":       c.secret,
			"output_format": "json",
		})

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", action, err)
		}
		request.SetFormData(map[string]string{"request": string(encoded)})
	}

	resp, err := request.Post("")
	if err != nil {
		return fmt.Errorf("%s failed: %w", action, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", action, resp.StatusCode(), resp.Body())
	}

	var envelope legacyEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	if envelope.ResultCode != 0 {
		return &APIError{Action: action, Message: fmt.Sprint(envelope.Result)}
	}

	if result != nil {
		raw, err := json.Marshal(envelope.Result)
		if err != nil {
			return fmt.Errorf("failed to re-encode %s result: %w", action, err)
		}
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", action, err)
		}
	}

	return nil
}

// APIError is a web-API level failure (result_code != 0).
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("web API action %s failed: %s", e.Action, e.Message)
}

// SupportsTags reports true: the web API always serves get_hosttags.
func (c *LegacyClient) SupportsTags() bool {
	return true
}

// RequiresActivation reports true.
func (c *LegacyClient) RequiresActivation() bool {
	return true
}

// GetHosts retrieves all hosts with their configured attributes.
func (c *LegacyClient) GetHosts(ctx context.Context) (map[string]model.RemoteHost, error) {
	result := make(map[string]legacyHost)
	if err := c.call(ctx, "get_all_hosts", nil, &result); err != nil {
		return nil, err
	}

	hosts := make(map[string]model.RemoteHost, len(result))
	for hostname, host := range result {
		hosts[hostname] = model.RemoteHost{
			Name:       hostname,
			Folder:     prefixPath(host.Path),
			Attributes: host.Attributes,
		}
	}

	c.logger.Debug().Int("count", len(hosts)).Msg("fetched hosts")
	return hosts, nil
}

// AddHosts creates the given hosts. The web API reports per-host
// failures in its result.
func (c *LegacyClient) AddHosts(ctx context.Context, hosts []model.HostCreate) (model.HostResult, error) {
	entries := make([]map[string]any, 0, len(hosts))
	for _, host := range hosts {
		entries = append(entries, map[string]any{
			"hostname":   host.Hostname,
			"folder":     host.Folder,
			"attributes": host.Attributes,
		})
	}

	var result legacyHostResult
	if err := c.call(ctx, "add_hosts", map[string]any{"hosts": entries}, &result); err != nil {
		return model.HostResult{}, err
	}

	return model.HostResult{Failed: result.FailedHosts, Succeeded: result.SucceededHosts}, nil
}

// ModifyHosts updates the given hosts.
func (c *LegacyClient) ModifyHosts(ctx context.Context, hosts []model.HostModify) (model.HostResult, error) {
	entries := make([]map[string]any, 0, len(hosts))
	for _, host := range hosts {
		entries = append(entries, map[string]any{
			"hostname":         host.Hostname,
			"attributes":       withoutMetaData(host.Attributes),
			"unset_attributes": host.Unset,
		})
	}

	var result legacyHostResult
	if err := c.call(ctx, "edit_hosts", map[string]any{"hosts": entries}, &result); err != nil {
		return model.HostResult{}, err
	}

	return model.HostResult{Failed: result.FailedHosts, Succeeded: result.SucceededHosts}, nil
}

// DeleteHosts removes the given hosts.
func (c *LegacyClient) DeleteHosts(ctx context.Context, hostnames []string) error {
	return c.call(ctx, "delete_hosts", map[string]any{"hostnames": hostnames}, nil)
}

// MoveHost moves one host to a new folder.
func (c *LegacyClient) MoveHost(ctx context.Context, hostname, folder string) error {
	return c.call(ctx, "move_host", map[string]any{
		"hostname": hostname,
		"folder":   folder,
	}, nil)
}

// GetHostTags retrieves the tag catalog, merging custom and builtin
// tag groups. Auxiliary tags are not included.
func (c *LegacyClient) GetHostTags(ctx context.Context) (model.TagCatalog, error) {
	var result legacyTagResponse
	if err := c.call(ctx, "get_hosttags", map[string]any{}, &result); err != nil {
		return nil, err
	}

	groups := append(result.TagGroups, result.Builtin.TagGroups...)
	catalog := make(model.TagCatalog, len(groups))
	for _, group := range groups {
		choices := make([]string, 0, len(group.Tags))
		for _, choice := range group.Tags {
			choices = append(choices, choice.ID)
		}
		catalog[group.ID] = choices
	}

	return catalog, nil
}

// DiscoverServices starts a bulk service discovery on the given hosts.
func (c *LegacyClient) DiscoverServices(ctx context.Context, hostnames []string) error {
	return c.call(ctx, "bulk_discovery_start", map[string]any{"hostnames": hostnames}, nil)
}

// IsDiscoveryRunning checks the bulk discovery status.
func (c *LegacyClient) IsDiscoveryRunning(ctx context.Context) (bool, error) {
	var result legacyDiscoveryStatus
	if err := c.call(ctx, "bulk_discovery_status", nil, &result); err != nil {
		return false, err
	}
	return result.IsActive, nil
}

// ActivateChanges commits pending changes. The web API reports an
// empty queue as an error, which is translated to (false, nil).
func (c *LegacyClient) ActivateChanges(ctx context.Context) (bool, error) {
	err := c.call(ctx, "activate_changes", nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "no changes to activate") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetFolders retrieves every folder path of the site.
func (c *LegacyClient) GetFolders(ctx context.Context) (map[string]struct{}, error) {
	var result []string
	if err := c.call(ctx, "get_all_folders", map[string]any{}, &result); err != nil {
		return nil, err
	}

	folders := make(map[string]struct{}, len(result))
	for _, folder := range result {
		folders[folder] = struct{}{}
	}
	return folders, nil
}

// AddFolder creates one folder. The web API creates missing parents
// implicitly.
func (c *LegacyClient) AddFolder(ctx context.Context, folder string) error {
	return c.call(ctx, "add_folder", map[string]any{
		"folder":     folder,
		"attributes": map[string]any{},
	}, nil)
}

// FoldersForHosts returns the folders the creates and moves reference,
// unprefixed the way the web API reports them.
func (c *LegacyClient) FoldersForHosts(creates []model.HostCreate, moves []model.HostMove) map[string]struct{} {
	folders := make(map[string]struct{})
	for _, host := range creates {
		folders[host.Folder] = struct{}{}
	}
	for _, host := range moves {
		folders[host.Folder] = struct{}{}
	}
	return folders
}
