package checkmk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hostsync/internal/config"
	"hostsync/internal/model"
)

func newTestLegacyClient(t *testing.T, handler http.HandlerFunc) *LegacyClient {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/check_mk/webapi.py", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := &config.CheckmkConfig{
		Endpoint: server.URL,
		Site:     "mysite",
		Username: "hostsync",
		Secret:   "test-secret",
		Timeout:  5 * time.Second,
	}
	retryCfg := &config.RetryConfig{MaxRetries: 1, BaseDelay: 10 * time.Millisecond}
	return NewLegacyClient(cfg, retryCfg, zerolog.Nop())
}

// legacyOK writes a successful web-API envelope around result.
func legacyOK(w http.ResponseWriter, result any) {
	json.NewEncoder(w).Encode(map[string]any{
		"result":      result,
		"result_code": 0,
	})
}

func TestLegacyClientRequestEncoding(t *testing.T) {
	var action, username string
	var payload struct {
		Hosts []map[string]any `json:"hosts"`
	}

	client := newTestLegacyClient(t, func(w http.ResponseWriter, r *http.Request) {
		action = r.URL.Query().Get("action")
		username = r.URL.Query().Get("_username")
		if err := json.Unmarshal([]byte(r.PostFormValue("request")), &payload); err != nil {
			t.Errorf("request form field is not JSON: %v", err)
		}
		legacyOK(w, map[string]any{
			"succeeded_hosts": []string{"web01"},
			"failed_hosts":    map[string]string{},
		})
	})

	result, err := client.AddHosts(context.Background(), []model.HostCreate{
		{Hostname: "web01", Folder: "cmdb/muc", Attributes: map[string]any{"alias": "Web 01"}},
	})
	if err != nil {
		t.Fatalf("AddHosts returned error: %v", err)
	}

	if action != "add_hosts" || username != "hostsync" {
		t.Errorf("query params: action=%q _username=%q", action, username)
	}
	if len(payload.Hosts) != 1 || payload.Hosts[0]["folder"] != "cmdb/muc" {
		t.Errorf("request payload = %v, want unprefixed folder", payload.Hosts)
	}
	if len(result.Succeeded) != 1 || result.Succeeded[0] != "web01" {
		t.Errorf("Succeeded = %v", result.Succeeded)
	}
}

func TestLegacyClientGetHosts(t *testing.T) {
	client := newTestLegacyClient(t, func(w http.ResponseWriter, r *http.Request) {
		legacyOK(w, map[string]any{
			"web01": map[string]any{
				"path":       "cmdb/muc",
				"attributes": map[string]any{"locked_by": "mysite/hostsync/cmdb"},
			},
		})
	})

	hosts, err := client.GetHosts(context.Background())
	if err != nil {
		t.Fatalf("GetHosts returned error: %v", err)
	}

	host, ok := hosts["web01"]
	if !ok {
		t.Fatalf("host web01 missing, got %v", hosts)
	}
	if host.Folder != "/cmdb/muc" {
		t.Errorf("Folder = %q, want the prefixed path", host.Folder)
	}
}

func TestLegacyClientResultCode(t *testing.T) {
	client := newTestLegacyClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result":      "Check_MK exception: no such host",
			"result_code": 1,
		})
	})

	err := client.DeleteHosts(context.Background(), []string{"gone01"})
	if err == nil {
		t.Fatal("result_code 1 did not return an error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError", err)
	}
	if apiErr.Action != "delete_hosts" {
		t.Errorf("Action = %q", apiErr.Action)
	}
}

func TestLegacyClientModifyHosts(t *testing.T) {
	var payload struct {
		Hosts []struct {
			Attributes map[string]any `json:"attributes"`
			Unset      []string       `json:"unset_attributes"`
		} `json:"hosts"`
	}

	client := newTestLegacyClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.Unmarshal([]byte(r.PostFormValue("request")), &payload); err != nil {
			t.Errorf("request form field is not JSON: %v", err)
		}
		legacyOK(w, map[string]any{
			"succeeded_hosts": []string{"web01"},
			"failed_hosts":    map[string]string{},
		})
	})

	_, err := client.ModifyHosts(context.Background(), []model.HostModify{
		{
			Hostname:   "web01",
			Attributes: map[string]any{"alias": "Web 01", "meta_data": map[string]any{}},
			Unset:      []string{"ipaddress"},
		},
	})
	if err != nil {
		t.Fatalf("ModifyHosts returned error: %v", err)
	}

	if _, present := payload.Hosts[0].Attributes["meta_data"]; present {
		t.Error("meta_data was not stripped from the edit payload")
	}
	if len(payload.Hosts[0].Unset) != 1 || payload.Hosts[0].Unset[0] != "ipaddress" {
		t.Errorf("unset_attributes = %v", payload.Hosts[0].Unset)
	}
}

func TestLegacyClientActivateChanges(t *testing.T) {
	response := map[string]any{"result": nil, "result_code": 0}

	client := newTestLegacyClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(response)
	})

	activated, err := client.ActivateChanges(context.Background())
	if err != nil || !activated {
		t.Errorf("ActivateChanges = %v, %v, want true, nil", activated, err)
	}

	response = map[string]any{
		"result":      "Check_MK exception: no changes to activate",
		"result_code": 1,
	}
	activated, err = client.ActivateChanges(context.Background())
	if err != nil {
		t.Errorf("empty activation queue must not be an error: %v", err)
	}
	if activated {
		t.Error("ActivateChanges = true for an empty queue")
	}
}

func TestLegacyClientGetHostTags(t *testing.T) {
	client := newTestLegacyClient(t, func(w http.ResponseWriter, r *http.Request) {
		legacyOK(w, map[string]any{
			"tag_groups": []map[string]any{
				{"id": "Criticality", "tags": []map[string]any{{"id": "prod"}, {"id": "test"}}},
			},
			"builtin": map[string]any{
				"tag_groups": []map[string]any{
					{"id": "agent", "tags": []map[string]any{{"id": "cmk-agent"}}},
				},
			},
		})
	})

	catalog, err := client.GetHostTags(context.Background())
	if err != nil {
		t.Fatalf("GetHostTags returned error: %v", err)
	}

	if len(catalog) != 2 {
		t.Fatalf("catalog = %v, want custom and builtin groups merged", catalog)
	}
	if len(catalog["Criticality"]) != 2 || catalog["Criticality"][0] != "prod" {
		t.Errorf("Criticality choices = %v", catalog["Criticality"])
	}
	if len(catalog["agent"]) != 1 || catalog["agent"][0] != "cmk-agent" {
		t.Errorf("agent choices = %v", catalog["agent"])
	}
}

func TestLegacyClientGetFolders(t *testing.T) {
	client := newTestLegacyClient(t, func(w http.ResponseWriter, r *http.Request) {
		legacyOK(w, []string{"", "cmdb", "cmdb/muc"})
	})

	folders, err := client.GetFolders(context.Background())
	if err != nil {
		t.Fatalf("GetFolders returned error: %v", err)
	}
	if _, ok := folders["cmdb/muc"]; !ok {
		t.Errorf("folders = %v, want unprefixed paths", folders)
	}
}
