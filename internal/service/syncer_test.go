package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostsync/internal/config"
	"hostsync/internal/model"
)

// legacySite fakes a Checkmk web API: it serves an empty site and
// records the hosts a cycle creates.
type legacySite struct {
	added     []map[string]any
	activated int
}

func (s *legacySite) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := any(nil)
		switch r.URL.Query().Get("action") {
		case "get_all_hosts":
			result = map[string]any{}
		case "add_hosts":
			var payload struct {
				Hosts []map[string]any `json:"hosts"`
			}
			require.NoError(t, json.Unmarshal([]byte(r.PostFormValue("request")), &payload))
			s.added = append(s.added, payload.Hosts...)

			succeeded := make([]string, 0, len(payload.Hosts))
			for _, host := range payload.Hosts {
				succeeded = append(succeeded, host["hostname"].(string))
			}
			result = map[string]any{
				"succeeded_hosts": succeeded,
				"failed_hosts":    map[string]string{},
			}
		case "activate_changes":
			s.activated++
		}

		json.NewEncoder(w).Encode(map[string]any{
			"result":      result,
			"result_code": 0,
		})
	}
}

func newTestSyncer(t *testing.T, site *legacySite, conn config.ConnectionConfig) *Syncer {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/check_mk/webapi.py", site.handler(t))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Checkmk: config.CheckmkConfig{
			Endpoint: server.URL,
			Site:     "mysite",
			Username: "hostsync",
			Secret:   "test-secret",
			Timeout:  5 * time.Second,
			API:      "legacy",
		},
		HTTP: config.HTTPConfig{
			Retry: config.RetryConfig{MaxRetries: 1, BaseDelay: 10 * time.Millisecond},
		},
	}
	return NewSyncer(cfg, conn, zerolog.Nop())
}

func writeSourceFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSyncerRun(t *testing.T) {
	dir := t.TempDir()
	source := writeSourceFile(t, dir, "hostname,ipv4\nweb01,10.0.0.5\n")

	site := &legacySite{}
	syncer := newTestSyncer(t, site, config.ConnectionConfig{
		ID:               "cmdb",
		Path:             source,
		Format:           "csv",
		Folder:           "cmdb",
		DisableDiscovery: true,
		SnapshotDir:      dir,
	})

	result, err := syncer.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"web01"}, result.Created)
	assert.Equal(t, 1, site.activated)

	require.Len(t, site.added, 1)
	assert.Equal(t, "cmdb", site.added[0]["folder"])

	assert.FileExists(t, filepath.Join(dir, "hostsync-cmdb.json"))
}

func TestSyncerRunNothingToDo(t *testing.T) {
	dir := t.TempDir()
	source := writeSourceFile(t, dir, "hostname\n")

	site := &legacySite{}
	syncer := newTestSyncer(t, site, config.ConnectionConfig{
		ID:               "cmdb",
		Path:             source,
		Format:           "csv",
		DisableDiscovery: true,
		SnapshotDir:      dir,
	})

	result, err := syncer.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Changed())
	assert.Equal(t, 0, site.activated, "an unchanged cycle must not activate")
}

func TestSyncerSnapshotRoundtrip(t *testing.T) {
	syncer := NewSyncer(&config.Config{}, config.ConnectionConfig{
		ID:          "cmdb",
		SnapshotDir: t.TempDir(),
	}, zerolog.Nop())

	snapshot := &model.ImportSnapshot{
		Hosts:         []model.ImportedRecord{{"hostname": "web01", "env": "prod"}},
		FieldNames:    []string{"hostname", "env"},
		HostnameField: "hostname",
	}
	require.NoError(t, syncer.SaveSnapshot(snapshot))

	loaded, err := syncer.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)
}
