// Package backend is the HTTP client for the validation and ontology backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/ifcsync/internal/core/model"
	"github.com/agenthands/ifcsync/internal/logger"
)

const (
	maxErrorBodySize = 4096

	EndpointValidate        = "/validate"
	EndpointGraphData       = "/graph-data"
	EndpointFullGraph       = "/api/full-graph"
	EndpointExpandGraph     = "/api/expand-graph"
	EndpointOntologySummary = "/ontology-summary"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("component", "backend"),
	}
}

// Validate uploads an IFC file as multipart field "ifc_file".
func (c *Client) Validate(ctx context.Context, filename string, file io.Reader) (*model.ValidationResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("ifc_file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, EndpointValidate, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := c.do(req, EndpointValidate)
	if err != nil {
		return nil, err
	}
	resp, err := model.DecodeValidationResponse(data)
	if err != nil {
		return nil, &TransportError{Endpoint: EndpointValidate, Err: err}
	}
	if resp.Error != "" {
		return nil, &ReportedError{Endpoint: EndpointValidate, Message: resp.Error}
	}
	return resp, nil
}

// GraphByObject fetches the neighbourhood of the object with the given name.
func (c *Client) GraphByObject(ctx context.Context, object string) (*model.GraphData, error) {
	q := url.Values{"object": {object}}
	req, err := c.newRequest(ctx, http.MethodGet, EndpointGraphData+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.graph(req, EndpointGraphData)
}

func (c *Client) FullGraph(ctx context.Context) (*model.GraphData, error) {
	req, err := c.newRequest(ctx, http.MethodGet, EndpointFullGraph, nil)
	if err != nil {
		return nil, err
	}
	return c.graph(req, EndpointFullGraph)
}

// ExpandNode fetches both directions of relations around a node URI.
func (c *Client) ExpandNode(ctx context.Context, nodeURI string) (*model.GraphData, error) {
	payload, err := json.Marshal(map[string]string{"node_uri": nodeURI})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, EndpointExpandGraph, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.graph(req, EndpointExpandGraph)
}

func (c *Client) OntologySummary(ctx context.Context) (*model.OntologySummary, error) {
	req, err := c.newRequest(ctx, http.MethodGet, EndpointOntologySummary, nil)
	if err != nil {
		return nil, err
	}
	data, err := c.do(req, EndpointOntologySummary)
	if err != nil {
		return nil, err
	}

	var out struct {
		model.OntologySummary
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &TransportError{Endpoint: EndpointOntologySummary, Err: err}
	}
	if out.Error != "" {
		return nil, &ReportedError{Endpoint: EndpointOntologySummary, Message: out.Error}
	}
	return &out.OntologySummary, nil
}

// FetchAsset downloads a composite model. Relative paths are resolved against
// the backend base URL.
func (c *Client) FetchAsset(ctx context.Context, path string) ([]byte, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = "/" + strings.TrimLeft(path, "/")
	}
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, target)
}

func (c *Client) graph(req *http.Request, endpoint string) (*model.GraphData, error) {
	data, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}
	var g model.GraphData
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	if g.Error != "" {
		return nil, &ReportedError{Endpoint: endpoint, Message: g.Error}
	}
	return &g, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	u := target
	if strings.HasPrefix(target, "/") {
		u = c.baseURL + target
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do executes req and returns the body of a 2xx response. Any other status is
// a TransportError carrying the body's error text when there is one.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("backend request failed", "endpoint", endpoint, "error", err)
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("backend response",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		var bodyErr error
		var reported struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &reported) == nil && reported.Error != "" {
			bodyErr = errors.New(reported.Error)
		} else if text := strings.TrimSpace(string(body)); text != "" {
			bodyErr = errors.New(text)
		}
		return nil, &TransportError{Endpoint: endpoint, Status: resp.StatusCode, Err: bodyErr}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Status: resp.StatusCode, Err: err}
	}
	return data, nil
}
