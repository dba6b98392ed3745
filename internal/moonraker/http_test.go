package moonraker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Host != defaultHost {
		t.Fatalf("url = %q, want http://%s", u.String(), defaultHost)
	}

	u, err = parseBaseURL("wss://printer.local:7125/websocket?token=x")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "https" || u.Path != "" || u.RawQuery != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func TestHTTPClient_ListDeleteAndMedia(t *testing.T) {
	t.Parallel()

	var gotRoot, gotDelete, gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/server/files/list":
			gotRoot = r.URL.Query().Get("root")
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": []FileEntry{{Path: "benchy.gcode", Size: 1024, Modified: 1700000000.5}},
			})
		case r.Method == http.MethodDelete:
			gotDelete = r.URL.Path
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewHTTPClient(server.URL)
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	files, err := c.ListFiles(ctx, "")
	if err != nil {
		t.Fatalf("ListFiles returned error: %v", err)
	}
	if gotRoot != "gcodes" {
		t.Fatalf("root = %q, want gcodes", gotRoot)
	}
	if len(files) != 1 || files[0].Path != "benchy.gcode" || files[0].ModifiedTime().Unix() != 1700000000 {
		t.Fatalf("files = %+v, want benchy.gcode", files)
	}

	if err := c.DeleteFile(ctx, "gcodes", "benchy.gcode"); err != nil {
		t.Fatalf("DeleteFile returned error: %v", err)
	}
	if gotDelete != "/server/files/gcodes/benchy.gcode" {
		t.Fatalf("delete path = %q", gotDelete)
	}
	if err := c.DeleteFile(ctx, "gcodes", " "); err == nil {
		t.Fatalf("DeleteFile returned nil error for empty name")
	}

	if !strings.HasPrefix(gotUserAgent, "katana-link/") {
		t.Fatalf("User-Agent = %q, want katana-link/*", gotUserAgent)
	}
	if got := c.MediaURL("print_0001.mp4"); got != server.URL+"/server/files/timelapse/print_0001.mp4" {
		t.Fatalf("MediaURL = %q", got)
	}
}

func TestHTTPClient_StatusAndDecodeErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("root") == "broken" {
			_, _ = w.Write([]byte("{not-json"))
			return
		}
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	c, err := NewHTTPClient(server.URL)
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}
	if _, err := c.ListFiles(context.Background(), "broken"); err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("ListFiles error = %v, want decode response error", err)
	}
	if _, err := c.ListFiles(context.Background(), "gcodes"); err == nil || !strings.Contains(err.Error(), "returned status 500") {
		t.Fatalf("ListFiles error = %v, want status 500 error", err)
	}
}
