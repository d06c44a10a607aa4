package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"reelforge/internal/api"
)

// apiClient talks to a running daemon.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		// No client timeout: assemble blocks for the whole render.
		http: &http.Client{},
	}
}

// apiError is a decoded non-2xx response.
type apiError struct {
	Status    int
	Kind      string
	Message   string
	RequestID string
}

func (e *apiError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Kind != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Kind)
	}
	if e.RequestID != "" {
		msg += " [request " + e.RequestID + "]"
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, msg)
}

func (c *apiClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a JSON body into out when out is non-nil.
func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &apiError{Status: resp.StatusCode}
	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Kind = body.Kind
		apiErr.Message = body.Error
		apiErr.RequestID = body.RequestID
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) Status(ctx context.Context) (api.DaemonStatus, error) {
	var st api.DaemonStatus
	err := c.get(ctx, "/api/status", &st)
	return st, err
}

func (c *apiClient) History(ctx context.Context, projectID string, limit int) (api.HistoryResponse, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("project", projectID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp api.HistoryResponse
	err := c.get(ctx, path, &resp)
	return resp, err
}

// CreateProject posts a descriptor file. The content type follows the file
// extension so the daemon picks the right decoder.
func (c *apiClient) CreateProject(ctx context.Context, descriptorPath string) (api.ProjectStatus, error) {
	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		return api.ProjectStatus{}, fmt.Errorf("read descriptor: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/projects", bytes.NewReader(data))
	if err != nil {
		return api.ProjectStatus{}, err
	}
	req.Header.Set("Content-Type", descriptorContentType(descriptorPath))
	var st api.ProjectStatus
	err = c.do(req, &st)
	return st, err
}

func descriptorContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "application/yaml"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func (c *apiClient) ListProjects(ctx context.Context) ([]api.ProjectStatus, error) {
	var resp api.ProjectListResponse
	err := c.get(ctx, "/api/projects", &resp)
	return resp.Items, err
}

func (c *apiClient) GetProject(ctx context.Context, id string) (api.ProjectStatus, error) {
	var st api.ProjectStatus
	err := c.get(ctx, "/api/projects/"+url.PathEscape(id), &st)
	return st, err
}

func (c *apiClient) DeleteProject(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// UploadAsset streams a local file under name. An empty contentType is
// derived from the file and name.
func (c *apiClient) UploadAsset(ctx context.Context, id, name, path, contentType string) (api.AssetResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return api.AssetResponse{}, fmt.Errorf("open asset: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return api.AssetResponse{}, fmt.Errorf("stat asset: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPut,
		"/api/projects/"+url.PathEscape(id)+"/assets/"+url.PathEscape(name), file)
	if err != nil {
		return api.AssetResponse{}, err
	}
	req.ContentLength = info.Size()
	if contentType == "" {
		contentType = declaredContentType(name, path)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	var resp api.AssetResponse
	err = c.do(req, &resp)
	return resp, err
}

func (c *apiClient) Assemble(ctx context.Context, id string) (api.AssembleResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/assemble", nil)
	if err != nil {
		return api.AssembleResponse{}, err
	}
	var resp api.AssembleResponse
	err = c.do(req, &resp)
	return resp, err
}

func (c *apiClient) Plan(ctx context.Context, id string) (api.PlanResponse, error) {
	var resp api.PlanResponse
	err := c.get(ctx, "/api/projects/"+url.PathEscape(id)+"/plan", &resp)
	return resp, err
}

// DownloadOutput copies the rendered file to w and returns the byte count.
func (c *apiClient) DownloadOutput(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id)+"/output", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "video/mp4")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, decodeAPIError(resp)
	}
	return io.Copy(w, resp.Body)
}
