package checkmk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hostsync/internal/config"
	"hostsync/internal/model"
)

const restPrefix = "/check_mk/api/1.0"

// newRestTestServer serves the REST API under its real path prefix and
// answers the version probe unless the mux overrides it.
func newRestTestServer(t *testing.T, version string, mux *http.ServeMux) *httptest.Server {
	t.Helper()

	if mux == nil {
		mux = http.NewServeMux()
	}
	mux.HandleFunc(restPrefix+"/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"versions": map[string]string{"checkmk": version},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestRestClient(t *testing.T, serverURL string) *RestClient {
	t.Helper()

	cfg := &config.CheckmkConfig{
		Endpoint: serverURL,
		Site:     "mysite",
		Username: "hostsync",
		Secret:   "test-secret",
		Timeout:  5 * time.Second,
	}
	retryCfg := &config.RetryConfig{MaxRetries: 1, BaseDelay: 10 * time.Millisecond}
	return NewRestClient(context.Background(), cfg, retryCfg, zerolog.Nop())
}

func TestRestClientTagSupportProbe(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"2.1.0p17.cee", true},
		{"2.1.0p20.cee", true},
		{"2.2.0p1", true},
		{"2.1.0p16", false},
		{"2.0.0p28.cee", false},
		{"garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			server := newRestTestServer(t, tt.version, nil)
			client := newTestRestClient(t, server.URL)
			if got := client.SupportsTags(); got != tt.want {
				t.Errorf("SupportsTags() for %q = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}

func TestRestClientGetHosts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(restPrefix+"/domain-types/host_config/collections/all", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("effective_attributes") != "false" {
			t.Error("effective_attributes=false missing from host listing")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{
					"id": "web01",
					"extensions": map[string]any{
						"folder": "/cmdb/muc",
						"attributes": map[string]any{
							"locked_by": "mysite/hostsync/cmdb",
							"labels":    map[string]any{"env": "prod"},
						},
					},
				},
			},
		})
	})

	server := newRestTestServer(t, "2.1.0p17", mux)
	client := newTestRestClient(t, server.URL)

	hosts, err := client.GetHosts(context.Background())
	if err != nil {
		t.Fatalf("GetHosts returned error: %v", err)
	}

	host, ok := hosts["web01"]
	if !ok {
		t.Fatalf("host web01 missing, got %v", hosts)
	}
	if host.Folder != "/cmdb/muc" {
		t.Errorf("Folder = %q", host.Folder)
	}
	if host.LockedBy() != "mysite/hostsync/cmdb" {
		t.Errorf("LockedBy = %q", host.LockedBy())
	}
}

func TestRestClientAddHosts(t *testing.T) {
	var payload struct {
		Entries []map[string]any `json:"entries"`
	}

	mux := http.NewServeMux()
	mux.HandleFunc(restPrefix+"/domain-types/host_config/actions/bulk-create/invoke", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	server := newRestTestServer(t, "2.1.0p17", mux)
	client := newTestRestClient(t, server.URL)

	result, err := client.AddHosts(context.Background(), []model.HostCreate{
		{Hostname: "web01", Folder: "cmdb/muc", Attributes: map[string]any{"labels": map[string]string{}}},
	})
	if err != nil {
		t.Fatalf("AddHosts returned error: %v", err)
	}

	if len(result.Succeeded) != 1 || result.Succeeded[0] != "web01" {
		t.Errorf("Succeeded = %v", result.Succeeded)
	}
	if payload.Entries[0]["folder"] != "/cmdb/muc" {
		t.Errorf("folder on the wire = %v, want absolute path", payload.Entries[0]["folder"])
	}
}

func TestRestClientAddHostsRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(restPrefix+"/domain-types/host_config/actions/bulk-create/invoke", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "These fields have problems: entries", http.StatusBadRequest)
	})

	server := newRestTestServer(t, "2.1.0p17", mux)
	client := newTestRestClient(t, server.URL)

	result, err := client.AddHosts(context.Background(), []model.HostCreate{
		{Hostname: "web01"}, {Hostname: "web02"},
	})
	if err != nil {
		t.Fatalf("a rejected batch must not be a transport error: %v", err)
	}

	if len(result.Failed) != 2 {
		t.Errorf("Failed = %v, want both hosts", result.Failed)
	}
	if len(result.Succeeded) != 0 {
		t.Errorf("Succeeded = %v, want none", result.Succeeded)
	}
}

func TestRestClientModifyHostsStripsMetaData(t *testing.T) {
	var payload struct {
		Entries []struct {
			Attributes map[string]any `json:"attributes"`
			Remove     []string       `json:"remove_attributes"`
		} `json:"entries"`
	}

	mux := http.NewServeMux()
	mux.HandleFunc(restPrefix+"/domain-types/host_config/actions/bulk-update/invoke", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	server := newRestTestServer(t, "2.1.0p17", mux)
	client := newTestRestClient(t, server.URL)

	_, err := client.ModifyHosts(context.Background(), []model.HostModify{
		{
			Hostname:   "web01",
			Attributes: map[string]any{"alias": "Web 01", "meta_data": map[string]any{"created_at": "x"}},
			Unset:      []string{"ipaddress"},
		},
	})
	if err != nil {
		t.Fatalf("ModifyHosts returned error: %v", err)
	}

	if _, present := payload.Entries[0].Attributes["meta_data"]; present {
		t.Error("meta_data was not stripped from the update payload")
	}
	if len(payload.Entries[0].Remove) != 1 || payload.Entries[0].Remove[0] != "ipaddress" {
		t.Errorf("remove_attributes = %v", payload.Entries[0].Remove)
	}
}

func TestRestClientMoveHostSendsEtag(t *testing.T) {
	var ifMatch string

	mux := http.NewServeMux()
	mux.HandleFunc(restPrefix+"/objects/host_config/web01", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Etag", `"abc123"`)
		w.Write([]byte("{}"))
	})
	mux.HandleFunc(restPrefix+"/objects/host_config/web01/actions/move/invoke", func(w http.ResponseWriter, r *http.Request) {
		ifMatch = r.Header.Get("If-Match")
		w.WriteHeader(http.StatusOK)
	})

	server := newRestTestServer(t, "2.1.0p17", mux)
	client := newTestRestClient(t, server.URL)

	if err := client.MoveHost(context.Background(), "web01", "cmdb/ber"); err != nil {
		t.Fatalf("MoveHost returned error: %v", err)
	}
	if ifMatch != `"abc123"` {
		t.Errorf("If-Match = %q, want the fetched etag", ifMatch)
	}
}

func TestRestClientActivateChanges(t *testing.T) {
	status := http.StatusOK

	mux := http.NewServeMux()
	mux.HandleFunc(restPrefix+"/domain-types/activation_run/actions/activate-changes/invoke", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	server := newRestTestServer(t, "2.1.0p17", mux)
	client := newTestRestClient(t, server.URL)

	activated, err := client.ActivateChanges(context.Background())
	if err != nil || !activated {
		t.Errorf("ActivateChanges = %v, %v, want true, nil", activated, err)
	}

	// 422 means there was nothing to activate.
	status = http.StatusUnprocessableEntity
	activated, err = client.ActivateChanges(context.Background())
	if err != nil {
		t.Errorf("empty activation queue must not be an error: %v", err)
	}
	if activated {
		t.Error("ActivateChanges = true for an empty queue")
	}
}

func TestRestClientAddFolderCreatesMissingParent(t *testing.T) {
	var created []string
	rejectedOnce := false

	mux := http.NewServeMux()
	mux.HandleFunc(restPrefix+"/domain-types/folder_config/collections/all", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name   string `json:"name"`
			Parent string `json:"parent"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		if body.Parent == "/cmdb" && !rejectedOnce {
			rejectedOnce = true
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"title":  "Bad Request",
				"fields": map[string]any{"parent": []string{"does not exist"}},
			})
			return
		}
		created = append(created, body.Parent+"/"+body.Name)
		w.WriteHeader(http.StatusOK)
	})

	server := newRestTestServer(t, "2.1.0p17", mux)
	client := newTestRestClient(t, server.URL)

	if err := client.AddFolder(context.Background(), "cmdb/muc"); err != nil {
		t.Fatalf("AddFolder returned error: %v", err)
	}

	// Parent first, then the retried child.
	want := []string{"//cmdb", "/cmdb/muc"}
	if len(created) != 2 || created[0] != want[0] || created[1] != want[1] {
		t.Errorf("created folders = %v, want %v", created, want)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		raw     string
		want    [4]int
		wantErr bool
	}{
		{raw: "2.1.0p17.cee", want: [4]int{2, 1, 0, 17}},
		{raw: "2.1.0p17", want: [4]int{2, 1, 0, 17}},
		{raw: "2.2.0p3.cre", want: [4]int{2, 2, 0, 3}},
		{raw: "2.1.0", wantErr: true},
		{raw: "nonsense", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseVersion(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseVersion(%q) returned no error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVersion(%q) returned error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("parseVersion(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSplitFolder(t *testing.T) {
	tests := []struct {
		folder     string
		wantParent string
		wantName   string
	}{
		{"cmdb/muc", "/cmdb", "muc"},
		{"/cmdb/muc/r12", "/cmdb/muc", "r12"},
		{"cmdb", "/", "cmdb"},
	}

	for _, tt := range tests {
		parent, name := splitFolder(tt.folder)
		if parent != tt.wantParent || name != tt.wantName {
			t.Errorf("splitFolder(%q) = %q, %q, want %q, %q",
				tt.folder, parent, name, tt.wantParent, tt.wantName)
		}
	}
}
