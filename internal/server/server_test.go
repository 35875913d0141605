package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ifcsync/internal/config"
	"github.com/agenthands/ifcsync/internal/core"
	"github.com/agenthands/ifcsync/internal/core/highlight"
	"github.com/agenthands/ifcsync/internal/core/ingest"
	"github.com/agenthands/ifcsync/internal/core/model"
	"github.com/agenthands/ifcsync/internal/metrics"
	"github.com/agenthands/ifcsync/internal/scene"
	"github.com/agenthands/ifcsync/internal/view/graphview"
	"github.com/agenthands/ifcsync/internal/view/viewer3d"
)

const base = "http://exemplo.org/bim#"

type MockValidator struct{}

func (MockValidator) Validate(_ context.Context, _ string, file io.Reader) (*model.ValidationResponse, error) {
	_, _ = io.ReadAll(file)
	return &model.ValidationResponse{
		Validation: []model.ValidationResult{
			{Type: model.ResultConflict, Element: "ifc:G1", Message: "Parede sem porta"},
		},
		Elements3DData: []model.Element3D{{
			GlobalID: "G1",
			Type:     "IfcWall",
			Vertices: []float32{-1, -1, 0, 1, -1, 0, 1, 1, 0, -1, 1, 0},
			Indices:  []uint32{0, 1, 2, 0, 2, 3},
		}},
	}, nil
}

type MockGraphSource struct{}

func (MockGraphSource) graph() *model.GraphData {
	return &model.GraphData{Nodes: []model.GraphNode{{ID: base + "G1", Label: "G1"}}}
}

func (m MockGraphSource) GraphByObject(context.Context, string) (*model.GraphData, error) {
	return m.graph(), nil
}

func (m MockGraphSource) FullGraph(context.Context) (*model.GraphData, error) {
	return m.graph(), nil
}

func (m MockGraphSource) ExpandNode(context.Context, string) (*model.GraphData, error) {
	return m.graph(), nil
}

func (MockGraphSource) OntologySummary(context.Context) (*model.OntologySummary, error) {
	return &model.OntologySummary{}, nil
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newRouterWith(t, config.Default().Server)
}

func newRouterWith(t *testing.T, cfg config.ServerConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := scene.DefaultPalette()
	engine := core.NewEngine(core.Deps{
		Validator: MockValidator{},
		Graph:     MockGraphSource{},
		Ingestor:  ingest.NewIngestor(p, "y", nil, nil, m),
		Machine:   highlight.NewMachine(p),
		Viewer:    viewer3d.NewController(viewer3d.NewHeadless(75), 1.5, nil),
		GraphView: graphview.NewController(graphview.NewHeadless(), graphview.DefaultFocus(), nil),
		Metrics:   m,
	}, core.Options{Reconcile3D: true})

	return NewServer(engine, cfg, reg, nil).SetupRouter()
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func upload(t *testing.T, r *gin.Engine) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("ifc_file", "casa.ifc")
	require.NoError(t, err)
	_, err = part.Write([]byte("ISO-10303-21;"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/validate", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return do(r, req)
}

func TestValidateRejectsOversizedUpload(t *testing.T) {
	cfg := config.Default().Server
	cfg.MaxUploadMB = 1
	r := newRouterWith(t, cfg)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("ifc_file", "grande.ifc")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 2<<20))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/validate", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := do(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	rec = do(r, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "G1")
}

func TestHealthz(t *testing.T) {
	r := newRouter(t)
	rec := do(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateLoadsModel(t *testing.T) {
	r := newRouter(t)
	rec := upload(t, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ModelID   string           `json:"model_id"`
		Report    ingest.Report    `json:"report"`
		Conflicts []map[string]any `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ModelID)
	assert.Equal(t, 1, resp.Report.Processed)
	assert.Len(t, resp.Conflicts, 1)

	rec = do(r, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var state struct {
		State    string `json:"state"`
		Elements []struct {
			Color      string `json:"color"`
			Appearance string `json:"appearance"`
		} `json:"elements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Len(t, state.Elements, 1)
	assert.Equal(t, "#ff0000", state.Elements[0].Color)
	assert.Equal(t, "conflict", state.Elements[0].Appearance)
	assert.Equal(t, highlight.StateConflicted.String(), state.State)
}

func TestValidateWithoutFile(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/validate", nil)
	rec := do(r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPickWithPointer(t *testing.T) {
	r := newRouter(t)
	require.Equal(t, http.StatusOK, upload(t, r).Code)

	rec := do(r, jsonRequest(http.MethodPost, "/viewer/pick",
		`{"client_x": 150, "client_y": 100, "rect": {"left": 50, "top": 0, "width": 200, "height": 200}}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var res core.PickResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Hit)
	assert.Equal(t, "G1", string(res.ID))
	assert.True(t, res.Focused)

	rec = do(r, jsonRequest(http.MethodPost, "/viewer/pick",
		`{"client_x": 10, "client_y": 10, "rect": {"left": 50, "top": 0, "width": 200, "height": 200}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, jsonRequest(http.MethodPost, "/viewer/pick", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, httptest.NewRequest(http.MethodPost, "/viewer/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestFrame(t *testing.T) {
	r := newRouter(t)
	require.Equal(t, http.StatusOK, upload(t, r).Code)

	assert.Equal(t, http.StatusOK, do(r, jsonRequest(http.MethodPost, "/viewer/frame", `{"id": "G1"}`)).Code)
	assert.Equal(t, http.StatusNotFound, do(r, jsonRequest(http.MethodPost, "/viewer/frame", `{"id": "ZZ"}`)).Code)
}

func TestGraphRoutes(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(r, httptest.NewRequest(http.MethodGet, "/graph", nil)).Code)

	rec := do(r, httptest.NewRequest(http.MethodGet, "/graph?object=Parede", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var data model.GraphData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Len(t, data.Nodes, 1)

	rec = do(r, jsonRequest(http.MethodPost, "/graph/activate", `{"node_uri": "`+base+`G1"}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, jsonRequest(http.MethodPost, "/graph/activate", `{"node_uri": "`+base+`G9"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, jsonRequest(http.MethodPost, "/graph/expand", `{"node_uri": "`+base+`G1"}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNoContent, do(r, httptest.NewRequest(http.MethodPost, "/graph/reset", nil)).Code)
	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/ontology-summary", nil)).Code)
}

func TestMetricsExposed(t *testing.T) {
	r := newRouter(t)
	require.Equal(t, http.StatusOK, upload(t, r).Code)

	rec := do(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ifcsync_model_loads_total")
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/validate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := do(r, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestJournal(t *testing.T) {
	r := newRouter(t)
	require.Equal(t, http.StatusOK, upload(t, r).Code)

	rec := do(r, httptest.NewRequest(http.MethodGet, "/journal", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Foram destacados 1 elementos com conflitos em vermelho.")
}
