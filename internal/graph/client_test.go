package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/driveshow/driveshow/internal/domain"
	"github.com/driveshow/driveshow/internal/logging"
	"github.com/driveshow/driveshow/internal/retry"
)

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) { return string(s), nil }

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer token" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestGetConfig_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/root:/slideshow.json:/content", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		http.Redirect(w, r, "/download/slideshow.json", http.StatusFound)
	})
	mux.HandleFunc("/download/slideshow.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"directories":["Pictures","Art/Paintings"],"interval":42}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(ts.URL, "slideshow.json", staticTokens("token"), logging.Null())
	cfg, err := c.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if len(cfg.Directories) != 2 || cfg.Directories[0] != "Pictures" {
		t.Errorf("unexpected directories: %v", cfg.Directories)
	}
	if cfg.Interval != 42 {
		t.Errorf("interval = %d, want 42", cfg.Interval)
	}
}

func TestGetConfig_ParseFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `directories = Pictures`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "slideshow.json", staticTokens("token"), logging.Null())
	if _, err := c.GetConfig(context.Background()); !errors.Is(err, domain.ErrConfigParse) {
		t.Fatalf("expected ErrConfigParse, got %v", err)
	}
}

func TestListFolder_RecursesAndPages(t *testing.T) {
	var ts *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/root:/Pictures:/children", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		if got := r.URL.Query().Get("$select"); got == "" {
			t.Error("missing $select query")
		}
		fmt.Fprintf(w, `{
			"@odata.nextLink": "%s/page2",
			"value": [
				{"id":"sub","name":"Holiday","folder":{"childCount":1}},
				{"id":"a","name":"a.jpg","size":10,"eTag":"e-a","file":{"mimeType":"image/jpeg"}},
				{"id":"doc","name":"notes.txt","file":{"mimeType":"text/plain"}}
			]}`, ts.URL)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"id":"b","name":"b.png","size":20,"eTag":"e-b","file":{"mimeType":"image/png"}}]}`)
	})
	mux.HandleFunc("/items/sub/children", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"id":"c","name":"c.gif","size":30,"eTag":"e-c","file":{"mimeType":"image/gif"},"image":{"width":1,"height":1}}]}`)
	})
	ts = httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(ts.URL, "slideshow.json", staticTokens("token"), logging.Null())
	images, err := c.ListFolder(context.Background(), "Pictures")
	if err != nil {
		t.Fatalf("list folder: %v", err)
	}

	var ids []string
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	sort.Strings(ids)
	want := []string{"a", "b", "c"}
	if len(ids) != len(want) {
		t.Fatalf("got ids %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got ids %v, want %v", ids, want)
		}
	}

	for _, img := range images {
		if img.ID == "c" && img.Path != "Pictures/Holiday" {
			t.Errorf("nested image path = %q, want Pictures/Holiday", img.Path)
		}
	}
}

func TestListFolder_MissingDirectory(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "slideshow.json", staticTokens("token"), logging.Null())
	if _, err := c.ListFolder(context.Background(), "Nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDownload_WritesContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		if r.URL.Path != "/items/img1/content" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte("jpegbytes"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "slideshow.json", staticTokens("token"), logging.Null())
	var buf bytes.Buffer
	n, err := c.Download(context.Background(), "img1", &buf)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if n != int64(len("jpegbytes")) || buf.String() != "jpegbytes" {
		t.Errorf("downloaded %d bytes %q", n, buf.String())
	}
}

func TestDownload_ServerErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "slideshow.json", staticTokens("token"), logging.Null())
	var buf bytes.Buffer
	_, err := c.Download(context.Background(), "img1", &buf)
	if err == nil || !retry.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestListFolder_EmptyDirectoryName(t *testing.T) {
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "slideshow.json", staticTokens("token"), logging.Null())
	for _, dir := range []string{"", "/", "   ", "///"} {
		if _, err := c.ListFolder(context.Background(), dir); err == nil {
			t.Errorf("ListFolder(%q): expected an error", dir)
		}
	}
	if requests != 0 {
		t.Errorf("expected no requests for empty directory names, got %d", requests)
	}
}
