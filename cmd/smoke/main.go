// Smoke checks a running ifcsync server end to end. With BOLT_URI set it first
// seeds a small ontology so graph queries have something to return.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/agenthands/ifcsync/internal/config"
	"github.com/agenthands/ifcsync/internal/driver"
	"github.com/agenthands/ifcsync/internal/logger"
)

var baseURL = "http://localhost:8080"

func main() {
	if v := os.Getenv("SMOKE_URL"); v != "" {
		baseURL = v
	}
	if len(os.Args) < 2 {
		fmt.Println("usage: smoke <model.ifc>")
		os.Exit(2)
	}
	ctx := context.Background()

	if uri := os.Getenv("BOLT_URI"); uri != "" {
		fmt.Println("0. Seeding ontology...")
		if err := seed(ctx, uri); err != nil {
			fmt.Printf("FAILED: Seed ontology: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("PASSED: Seed ontology")
	}

	fmt.Println("1. Uploading model...")
	if !upload(os.Args[1]) {
		fmt.Println("FAILED: Upload")
		os.Exit(1)
	}
	fmt.Println("PASSED: Upload")

	steps := []struct {
		name, method, endpoint string
		payload                interface{}
	}{
		{"State", http.MethodGet, "/state", nil},
		{"Pick centre", http.MethodPost, "/viewer/pick", map[string]float64{"x": 0, "y": 0}},
		{"Full graph", http.MethodGet, "/graph/full", nil},
		{"Ontology summary", http.MethodGet, "/ontology-summary", nil},
		{"Journal", http.MethodGet, "/journal", nil},
	}
	for i, s := range steps {
		fmt.Printf("%d. %s...\n", i+2, s.name)
		if !sendRequest(s.method, s.endpoint, s.payload) {
			fmt.Printf("FAILED: %s\n", s.name)
			os.Exit(1)
		}
		fmt.Printf("PASSED: %s\n", s.name)
	}
}

func loadConfig() *config.Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.toml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Warning: %v. Using defaults\n", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	return cfg
}

type relation struct{ from, label, to string }

// fixture is the small ontology seeded before the checks, under prefix.
func fixture(prefix string) ([]driver.Resource, []relation) {
	resources := []driver.Resource{
		{URI: prefix + "ParedeExterior", Label: "ParedeExterior", Type: "IfcWall"},
		{URI: prefix + "PortaPrincipal", Label: "PortaPrincipal", Type: "IfcDoor"},
		{URI: prefix + "Piso1", Label: "Piso1", Type: "IfcBuildingStorey"},
	}
	relations := []relation{
		{prefix + "ParedeExterior", "contem", prefix + "PortaPrincipal"},
		{prefix + "Piso1", "contem", prefix + "ParedeExterior"},
	}
	return resources, relations
}

func seed(ctx context.Context, uri string) error {
	prefix := loadConfig().Graph.OntologyPrefix
	d, err := driver.NewBoltDriver(ctx, uri, os.Getenv("BOLT_USER"), os.Getenv("BOLT_PASSWORD"), "", logger.Nop())
	if err != nil {
		return err
	}
	defer d.Close(ctx)
	if err := d.BuildIndices(ctx); err != nil {
		return err
	}

	store := driver.NewOntologyStore(d, 0, logger.Nop())
	resources, relations := fixture(prefix)
	for _, r := range resources {
		if err := store.SaveResource(ctx, r); err != nil {
			return err
		}
	}
	for _, r := range relations {
		if err := store.SaveRelation(ctx, r.from, r.label, r.to); err != nil {
			return err
		}
	}
	return nil
}

func upload(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("Error opening model: %v\n", err)
		return false
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("ifc_file", filepath.Base(path))
	if err != nil {
		fmt.Printf("Error creating form: %v\n", err)
		return false
	}
	if _, err := io.Copy(part, f); err != nil {
		fmt.Printf("Error reading model: %v\n", err)
		return false
	}
	w.Close()

	req, err := http.NewRequest(http.MethodPost, baseURL+"/validate", &body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return do(req, 10*time.Minute)
}

func sendRequest(method, endpoint string, payload interface{}) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req, 30*time.Second)
}

func do(req *http.Request, timeout time.Duration) bool {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if len(respBody) > 400 {
		respBody = append(respBody[:400], "..."...)
	}
	fmt.Printf("Response Status: %s\n", resp.Status)
	fmt.Printf("Response Body: %s\n", string(respBody))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
