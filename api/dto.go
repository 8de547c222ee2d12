/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Stored documents are
  returned with their payload untouched; everything else is a small
  envelope around it.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Documents:
    DocumentDTO

  Validation:
    ValidateRequest, VerdictDTO

  Collections:
    CollectionDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

  Audit:
    AuditRunDTO, FindingDTO

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON is returned as-is by GET /api/policy
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/finance-gate/generic"
)

// =============================================================================
// DOCUMENTS
// =============================================================================

// DocumentDTO is one stored record.
type DocumentDTO struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Version    int64           `json:"version"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Data       json.RawMessage `json:"data"`
}

func toDocumentDTO(d generic.Document) DocumentDTO {
	return DocumentDTO{
		Collection: d.Collection,
		Key:        d.Key,
		Version:    d.Version,
		UpdatedAt:  d.UpdatedAt,
		Data:       d.Data,
	}
}

func toDocumentDTOs(docs []generic.Document) []DocumentDTO {
	out := make([]DocumentDTO, len(docs))
	for i, d := range docs {
		out[i] = toDocumentDTO(d)
	}
	return out
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateRequest asks for a verdict without committing anything.
// When Previous is omitted and Key names a stored record, that record is
// used as the previous version.
type ValidateRequest struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key,omitempty"`
	Proposed   json.RawMessage `json:"proposed"`
	Previous   json.RawMessage `json:"previous,omitempty"`
}

// VerdictDTO is the outcome of one validation.
type VerdictDTO struct {
	Accepted bool   `json:"accepted"`
	Kind     string `json:"kind,omitempty"`
	Field    string `json:"field,omitempty"`
	Error    string `json:"error,omitempty"`
}

func acceptedVerdict() VerdictDTO {
	return VerdictDTO{Accepted: true}
}

func rejectedVerdict(r *generic.Rejection) VerdictDTO {
	return VerdictDTO{Kind: string(r.Kind), Field: r.Field, Error: r.Message}
}

// =============================================================================
// COLLECTIONS
// =============================================================================

// CollectionDTO describes one collection the gate knows about.
type CollectionDTO struct {
	Name       string `json:"name"`
	Registered bool   `json:"registered"`
	Stored     bool   `json:"stored"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// AUDIT
// =============================================================================

// FindingDTO is one stored record that no longer passes its pipeline.
type FindingDTO struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
	Kind       string `json:"kind"`
	Error      string `json:"error"`
}

// AuditRunDTO summarises one sweep over the store.
type AuditRunDTO struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Checked    int          `json:"checked"`
	Findings   []FindingDTO `json:"findings"`
	Error      string       `json:"error,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
