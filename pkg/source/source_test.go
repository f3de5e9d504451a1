package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sheetServer(t *testing.T, tabs []string, data map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tabs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tabs)
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		csvBody, ok := data[r.URL.Query().Get("tab")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(csvBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

const sampleCSV = "Device ID,Timestamp,Temperature (°C)\nesp32-01,2024-07-01 10:00:00,25\n"

func TestFetchPreferredTab(t *testing.T) {
	srv := sheetServer(t, []string{"May2024", "Jun2024", "Jul2024"}, map[string]string{
		"Jun2024": sampleCSV,
	})

	c := NewClient(srv.URL, "Jun2024", 5*time.Second)
	table, tab, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if tab != "Jun2024" {
		t.Errorf("tab = %q, want preferred tab", tab)
	}
	if len(table.Headers) != 3 || len(table.Rows) != 1 {
		t.Errorf("table = %+v", table)
	}
}

func TestFetchFallsBackToNewestTab(t *testing.T) {
	srv := sheetServer(t, []string{"May2024", "Jun2024", "Jul2024"}, map[string]string{
		"Jul2024": sampleCSV,
	})

	// Configured tab no longer exists.
	c := NewClient(srv.URL, "Apr2024", 5*time.Second)
	_, tab, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if tab != "Jul2024" {
		t.Errorf("tab = %q, want newest tab fallback", tab)
	}
}

func TestFetchEmptyTab(t *testing.T) {
	srv := sheetServer(t, []string{"Jul2024"}, map[string]string{"Jul2024": ""})

	c := NewClient(srv.URL, "", 5*time.Second)
	if _, _, err := c.Fetch(context.Background()); err == nil {
		t.Error("expected error for empty tab")
	}
}

func TestFetchServerDown(t *testing.T) {
	srv := sheetServer(t, nil, nil)
	url := srv.URL
	srv.Close()

	c := NewClient(url, "", time.Second)
	if _, _, err := c.Fetch(context.Background()); err == nil {
		t.Error("expected error when the endpoint is unreachable")
	}
}

func TestFetchNoTabs(t *testing.T) {
	srv := sheetServer(t, []string{}, nil)

	c := NewClient(srv.URL, "", time.Second)
	if _, _, err := c.Fetch(context.Background()); err == nil {
		t.Error("expected error when the sheet has no tabs")
	}
}
