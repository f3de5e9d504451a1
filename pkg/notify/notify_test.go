package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubNotifier struct {
	name string
	err  error
	sent int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(ctx context.Context, deviceID, message string) error {
	s.sent++
	return s.err
}

func TestFanout(t *testing.T) {
	good := &stubNotifier{name: "good"}
	bad := &stubNotifier{name: "bad", err: errors.New("boom")}

	failed := Fanout(context.Background(), []Notifier{good, bad}, "dev", "msg")
	if len(failed) != 1 || failed[0] != "bad" {
		t.Errorf("failed = %v, want [bad]", failed)
	}
	if good.sent != 1 || bad.sent != 1 {
		t.Error("every channel must be attempted")
	}
}

func TestTelegramSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "chat-1", 5*time.Second)
	tg.SetBaseURL(srv.URL)

	if err := tg.Send(context.Background(), "dev", "⚠️ Alert"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got["chat_id"] != "chat-1" || got["text"] != "⚠️ Alert" || got["parse_mode"] != "Markdown" {
		t.Errorf("payload = %v", got)
	}
}

func TestTelegramSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "chat-1", 5*time.Second)
	tg.SetBaseURL(srv.URL)
	if err := tg.Send(context.Background(), "dev", "msg"); err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestGitHubUpdateDashboardPatchesMarkedComment(t *testing.T) {
	var patched string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 11, "body": "unrelated"}, {"id": 42, "body": "MARK old dashboard"}]`)
	})
	mux.HandleFunc("PATCH /repos/o/r/issues/comments/42", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		patched = body["body"]
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gh := NewGitHub("o/r", "7", "tok", "MARK", 5*time.Second)
	gh.SetBaseURLs(srv.URL, srv.URL)

	if err := gh.UpdateDashboard(context.Background(), "MARK new dashboard"); err != nil {
		t.Fatalf("UpdateDashboard failed: %v", err)
	}
	if patched != "MARK new dashboard" {
		t.Errorf("patched body = %q", patched)
	}
}

func TestGitHubUpdateDashboardCreatesWhenMissing(t *testing.T) {
	created := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("POST /repos/o/r/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		created = true
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gh := NewGitHub("o/r", "7", "tok", "MARK", 5*time.Second)
	gh.SetBaseURLs(srv.URL, srv.URL)

	if err := gh.UpdateDashboard(context.Background(), "MARK dashboard"); err != nil {
		t.Fatalf("UpdateDashboard failed: %v", err)
	}
	if !created {
		t.Error("expected a new comment to be created")
	}
}

func TestGitHubUploadAsset(t *testing.T) {
	var put map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/contents/charts/a.svg", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha": "oldsha"}`)
	})
	mux.HandleFunc("PUT /repos/o/r/contents/charts/a.svg", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&put)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gh := NewGitHub("o/r", "7", "tok", "MARK", 5*time.Second)
	gh.SetBaseURLs(srv.URL, srv.URL)

	url, err := gh.UploadAsset(context.Background(), "charts/a.svg", []byte("<svg/>"), "update chart")
	if err != nil {
		t.Fatalf("UploadAsset failed: %v", err)
	}
	if put["sha"] != "oldsha" {
		t.Error("existing asset sha must be sent so the PUT updates in place")
	}
	if want := srv.URL + "/o/r/main/charts/a.svg"; url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
}
