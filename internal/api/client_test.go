package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdf360/planview/pkg/core"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:5000/")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
	if c.httpClient == nil {
		t.Error("expected httpClient to be initialized")
	}
}

func TestHealthcheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health/ready" {
					t.Errorf("expected path /health/ready, got %s", r.URL.Path)
				}
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			err := NewClient(server.URL).Healthcheck()
			if (err != nil) != tt.wantErr {
				t.Errorf("Healthcheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHealthcheck_ConnectionError(t *testing.T) {
	c := NewClient("http://localhost:1")
	if err := c.Healthcheck(); err == nil {
		t.Error("expected error for connection failure")
	}
}

func TestCreateProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if body["name"] != "Site A" {
			t.Errorf("expected name 'Site A', got %s", body["name"])
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(core.Project{ID: 7, Name: body["name"], Folder: body["name"]})
	}))
	defer server.Close()

	p, err := NewClient(server.URL).CreateProject("Site A", "")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if p.ID != 7 || p.Folder != "Site A" {
		t.Errorf("unexpected project %+v", p)
	}
}

func TestCreateProject_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid name"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).CreateProject("", "")
	if err == nil {
		t.Fatal("expected error for bad request")
	}
	if want := "server returned status 400: invalid name"; err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestUploadPlan(t *testing.T) {
	tmpDir := t.TempDir()
	planFile := filepath.Join(tmpDir, "ground.png")
	content := []byte("png-bytes")
	if err := os.WriteFile(planFile, content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	var received struct {
		title, subfolder, fileName string
		content                    []byte
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/3/plans" {
			t.Errorf("expected path /api/projects/3/plans, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received.title = r.FormValue("title")
		received.subfolder = r.FormValue("subfolder")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("failed to get form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		received.fileName = header.Filename
		received.content, _ = io.ReadAll(file)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(core.Plan{ID: 11, ProjectID: 3, Title: received.title})
	}))
	defer server.Close()

	plan, err := NewClient(server.URL).UploadPlan(3, planFile, "Ground", "Level 1")
	if err != nil {
		t.Fatalf("UploadPlan() error = %v", err)
	}
	if plan.ID != 11 || plan.Title != "Ground" {
		t.Errorf("unexpected plan %+v", plan)
	}
	if received.title != "Ground" {
		t.Errorf("expected title 'Ground', got %s", received.title)
	}
	if received.subfolder != "Level 1" {
		t.Errorf("expected subfolder 'Level 1', got %s", received.subfolder)
	}
	if received.fileName != "ground.png" {
		t.Errorf("expected filename 'ground.png', got %s", received.fileName)
	}
	if string(received.content) != string(content) {
		t.Errorf("content mismatch: expected %s, got %s", content, received.content)
	}
}

func TestUploadPlan_FileNotFound(t *testing.T) {
	c := NewClient("http://localhost:5000")
	if _, err := c.UploadPlan(1, "/nonexistent/file.png", "x", ""); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestUploadPlan_ServerError(t *testing.T) {
	tmpDir := t.TempDir()
	planFile := filepath.Join(tmpDir, "ground.png")
	if err := os.WriteFile(planFile, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).UploadPlan(1, planFile, "x", ""); err == nil {
		t.Error("expected error for server error response")
	}
}
