package deploy

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method      string
	Path        string
	Auth        string
	ContentType string
}

// fakeProvider serves the Netlify, Vercel and Render endpoints used by the adapters
type fakeProvider struct {
	server *httptest.Server

	mu       sync.Mutex
	seq      int
	requests []recordedRequest
	uploads  map[string][]byte
	triggers []string
	fail     map[string]int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{
		uploads: make(map[string][]byte),
		fail:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sites", func(w http.ResponseWriter, r *http.Request) {
		id := f.nextID("site")
		writeJSON(w, fmt.Sprintf(`{"id":"%s","site_id":"%s","ssl_url":"https://%s.netlify.app"}`, id, id, id))
	})
	mux.HandleFunc("POST /api/v1/sites/{id}/deploys", func(w http.ResponseWriter, r *http.Request) {
		f.storeUpload(r.PathValue("id"), r)
		writeJSON(w, `{"id":"deploy-1","state":"uploaded"}`)
	})
	mux.HandleFunc("POST /v13/deployments", func(w http.ResponseWriter, r *http.Request) {
		id := f.nextID("dpl")
		writeJSON(w, fmt.Sprintf(`{"id":"%s","url":"%s.vercel.app"}`, id, id))
	})
	mux.HandleFunc("PATCH /v13/deployments/{id}/files", func(w http.ResponseWriter, r *http.Request) {
		f.storeUpload(r.PathValue("id"), r)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /v1/artifacts", func(w http.ResponseWriter, r *http.Request) {
		id := f.nextID("art")
		writeJSON(w, fmt.Sprintf(`{"uploadUrl":"%s/upload/%s","serviceUrl":"https://svc.onrender.com"}`, f.server.URL, id))
	})
	mux.HandleFunc("PUT /upload/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.storeUpload(r.PathValue("id"), r)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /v1/services/{id}/deploys", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.triggers = append(f.triggers, r.PathValue("id"))
		f.mu.Unlock()
		writeJSON(w, `{"id":"dep-1"}`)
	})

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
		})
		status := f.fail[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if status != 0 {
			http.Error(w, `{"message":"provider unavailable"}`, status)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)

	return f
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (f *fakeProvider) nextID(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeProvider) storeUpload(id string, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.uploads[id] = data
	f.mu.Unlock()
}

// failWith makes every request matching "METHOD /path" return status
func (f *fakeProvider) failWith(route string, status int) {
	f.mu.Lock()
	f.fail[route] = status
	f.mu.Unlock()
}

// clearFailure undoes failWith for route
func (f *fakeProvider) clearFailure(route string) {
	f.mu.Lock()
	delete(f.fail, route)
	f.mu.Unlock()
}

func (f *fakeProvider) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeProvider) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeProvider) upload(id string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[id]
}

func unzipBytes(t *testing.T, data []byte) map[string]string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string)
	for _, file := range r.File {
		rc, err := file.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[file.Name] = string(content)
	}
	return out
}
