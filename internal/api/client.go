package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdf360/planview/pkg/core"
)

// Client talks to a running planview REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the server is ready.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/health/ready")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// CreateProject registers a project. An empty folder derives from the name.
func (c *Client) CreateProject(name, folder string) (core.Project, error) {
	body, err := json.Marshal(map[string]string{"name": name, "folder": folder})
	if err != nil {
		return core.Project{}, err
	}
	resp, err := c.httpClient.Post(c.baseURL+"/api/projects", "application/json", bytes.NewReader(body))
	if err != nil {
		return core.Project{}, fmt.Errorf("create project request failed: %w", err)
	}
	defer resp.Body.Close()

	var p core.Project
	if err := decodeResponse(resp, http.StatusCreated, &p); err != nil {
		return core.Project{}, err
	}
	return p, nil
}

// UploadPlan sends a plan document into a project, optionally below subfolder.
func (c *Client) UploadPlan(projectID uint, filePath, title, subfolder string) (core.Plan, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return core.Plan{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Create multipart form
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write form fields and file in goroutine
	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		_ = writer.WriteField("title", title)
		_ = writer.WriteField("subfolder", subfolder)

		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			return
		}
		errCh <- nil
	}()

	url := fmt.Sprintf("%s/api/projects/%d/plans", c.baseURL, projectID)
	req, err := http.NewRequest(http.MethodPost, url, pr)
	if err != nil {
		return core.Plan{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Plan{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// Check goroutine error
	if writeErr := <-errCh; writeErr != nil {
		return core.Plan{}, writeErr
	}

	var plan core.Plan
	if err := decodeResponse(resp, http.StatusCreated, &plan); err != nil {
		return core.Plan{}, err
	}
	return plan, nil
}

func decodeResponse(resp *http.Response, want int, v any) error {
	if resp.StatusCode != want {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error != "" {
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, body.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}
