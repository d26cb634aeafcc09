package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tyeth/tank-sensor/internal/tank"
)

func testReport() Report {
	return Report{
		DeviceID:  "dev-1",
		Fill:      tank.FillEstimate(465),
		Percent:   38.75,
		Reason:    "band exceeded",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFormatValue(t *testing.T) {
	if got := FormatValue(testReport()); got != "46.5" {
		t.Errorf("FormatValue = %q, want %q", got, "46.5")
	}
	if got := FormatValue(Report{Fill: 1200}); got != "120.0" {
		t.Errorf("FormatValue = %q, want %q", got, "120.0")
	}
}

func TestTopic(t *testing.T) {
	if got := Topic("alice", "tank-level"); got != "alice/feeds/tank-level" {
		t.Errorf("Topic = %q, want %q", got, "alice/feeds/tank-level")
	}
}

func newRESTPublisher(ts *httptest.Server) *RESTPublisher {
	return NewRESTPublisher(RESTOptions{
		BaseURL:   ts.URL,
		Username:  "alice",
		Key:       "aio-key-123",
		Feed:      "tank-level",
		ErrorFeed: "tank-errors",
	})
}

func TestRESTPublish(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-AIO-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := newRESTPublisher(ts)
	if err := p.Publish(context.Background(), testReport()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if gotPath != "/alice/feeds/tank-level/data" {
		t.Errorf("path = %q, want %q", gotPath, "/alice/feeds/tank-level/data")
	}
	if gotKey != "aio-key-123" {
		t.Errorf("X-AIO-Key = %q, want %q", gotKey, "aio-key-123")
	}
	if gotBody["value"] != "46.5" {
		t.Errorf("value = %q, want %q", gotBody["value"], "46.5")
	}
}

func TestRESTPublishCreatesMissingFeed(t *testing.T) {
	var dataPosts, createPosts int
	var createdName string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/alice/feeds/tank-level/data":
			dataPosts++
			if createPosts == 0 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case "/alice/feeds":
			createPosts++
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			createdName = body["name"]
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer ts.Close()

	p := newRESTPublisher(ts)
	if err := p.Publish(context.Background(), testReport()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if dataPosts != 2 {
		t.Errorf("data posts = %d, want 2 (fail, then retry after create)", dataPosts)
	}
	if createPosts != 1 {
		t.Errorf("create posts = %d, want 1", createPosts)
	}
	if createdName != "tank-level" {
		t.Errorf("created feed name = %q, want %q", createdName, "tank-level")
	}
}

func TestRESTPublishErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuth},
		{"forbidden", http.StatusForbidden, ErrAuth},
		{"server error", http.StatusInternalServerError, ErrNetwork},
		{"unprocessable", http.StatusUnprocessableEntity, ErrRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer ts.Close()

			err := newRESTPublisher(ts).Publish(context.Background(), testReport())
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want kind %v", err, tc.want)
			}
		})
	}
}

func TestRESTPublishUnreachableServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	ts.Close()

	err := newRESTPublisher(ts).Publish(context.Background(), testReport())
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("err = %v, want kind ErrNetwork", err)
	}
}

func TestRESTPublishError(t *testing.T) {
	var gotPath, gotValue string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		gotValue = body["value"]
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := newRESTPublisher(ts)
	long := strings.Repeat("x", 400)
	if err := p.PublishError(context.Background(), long); err != nil {
		t.Fatalf("PublishError: %v", err)
	}

	if gotPath != "/alice/feeds/tank-errors/data" {
		t.Errorf("path = %q, want error feed data path", gotPath)
	}
	if len(gotValue) != 250 {
		t.Errorf("error value length = %d, want clipped to 250", len(gotValue))
	}
}

func TestRESTPublishErrorWithoutFeedConfigured(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request made with no error feed configured")
	}))
	defer ts.Close()

	p := newRESTPublisher(ts)
	p.opts.ErrorFeed = ""
	if err := p.PublishError(context.Background(), "boom"); err != nil {
		t.Fatalf("PublishError: %v", err)
	}
}

func TestFakePublisherFailFirst(t *testing.T) {
	f := NewFakePublisher()
	f.FailFirst = 2

	ctx := context.Background()
	r := testReport()

	if err := f.Publish(ctx, r); !errors.Is(err, ErrNetwork) {
		t.Errorf("first publish err = %v, want ErrNetwork", err)
	}
	if err := f.Publish(ctx, r); !errors.Is(err, ErrNetwork) {
		t.Errorf("second publish err = %v, want ErrNetwork", err)
	}
	if err := f.Publish(ctx, r); err != nil {
		t.Errorf("third publish err = %v, want nil", err)
	}
	if f.Attempts != 3 || len(f.Reports) != 1 {
		t.Errorf("attempts = %d, reports = %d, want 3 attempts and 1 report",
			f.Attempts, len(f.Reports))
	}
}
