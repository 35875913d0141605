package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ResultKind string

const (
	ResultSuccess  ResultKind = "SUCESSO"
	ResultConflict ResultKind = "CONFLITO"
	ResultWarning  ResultKind = "ERRO"
)

type ValidationResult struct {
	Type          ResultKind `json:"type"`
	Element       string     `json:"element,omitempty"`
	Message       string     `json:"message"`
	SuggestionLLM string     `json:"suggestion_llm,omitempty"`
}

// Element3D is one per-element geometry entry produced by the backend.
type Element3D struct {
	GlobalID    string    `json:"globalId"`
	Type        string    `json:"type"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Material    string    `json:"material,omitempty"`
	Vertices    []float32 `json:"vertices"`
	Indices     []uint32  `json:"indices"`
}

// ElementMeta is the side-channel metadata that accompanies a composite asset.
type ElementMeta struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Material    string `json:"material,omitempty"`
}

type ValidationResponse struct {
	Validation     []ValidationResult     `json:"validation"`
	Elements3DData []Element3D            `json:"elements_3d_data,omitempty"`
	ModelPath      string                 `json:"model_path,omitempty"`
	Metadata       map[string]ElementMeta `json:"metadata,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// DecodeValidationResponse accepts both the full object payload and a bare
// array of validation results.
func DecodeValidationResponse(data []byte) (*ValidationResponse, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty validation response")
	}

	if trimmed[0] == '[' {
		var results []ValidationResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("failed to decode validation results: %w", err)
		}
		return &ValidationResponse{Validation: results}, nil
	}

	var resp ValidationResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode validation response: %w", err)
	}
	return &resp, nil
}
