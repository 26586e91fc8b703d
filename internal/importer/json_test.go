package importer

import (
	"context"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestJSONImporter(t *testing.T) {
	path := writeTestFile(t, "hosts.json", `[
		{"hostname": "web01", "env": "prod", "port": 8080},
		{"hostname": "db01", "env": "test"}
	]`)

	imp := NewJSONImporter(path, zerolog.Nop())
	snapshot, err := imp.Import(context.Background())
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}

	if snapshot.HostnameField != "hostname" {
		t.Errorf("HostnameField = %q, want %q", snapshot.HostnameField, "hostname")
	}
	if !reflect.DeepEqual(snapshot.FieldNames, []string{"env", "hostname", "port"}) {
		t.Errorf("FieldNames = %v", snapshot.FieldNames)
	}
	if snapshot.Hosts[0]["port"] != "8080" {
		t.Errorf("numeric value = %q, want %q", snapshot.Hosts[0]["port"], "8080")
	}
}

func TestJSONImporterHostnameFieldProbing(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "name wins over hostname",
			content: `[{"name": "a", "hostname": "b"}]`,
			want:    "name",
		},
		{
			name:    "ip field as fallback",
			content: `[{"ipv4": "10.0.0.1", "env": "prod"}]`,
			want:    "ipv4",
		},
		{
			name:    "no candidate",
			content: `[{"env": "prod"}]`,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestFile(t, "hosts.json", tt.content)
			imp := NewJSONImporter(path, zerolog.Nop())
			snapshot, err := imp.Import(context.Background())
			if err != nil {
				t.Fatalf("Import returned error: %v", err)
			}
			if snapshot.HostnameField != tt.want {
				t.Errorf("HostnameField = %q, want %q", snapshot.HostnameField, tt.want)
			}
		})
	}
}

func TestJSONImporterInvalidDocument(t *testing.T) {
	path := writeTestFile(t, "hosts.json", `{"not": "an array"}`)

	imp := NewJSONImporter(path, zerolog.Nop())
	if _, err := imp.Import(context.Background()); err == nil {
		t.Error("non-array document did not return an error")
	}
}
