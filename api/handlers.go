/*
handlers.go - HTTP API handlers for the write gate

PURPOSE:
  Exposes the validation engine over REST. Every create or update of a
  document goes through the gate: the collection's pipeline decides, and
  only accepted writes are committed. A dry-run endpoint returns the
  verdict without writing.

ENDPOINTS:
  Validation:
    POST   /api/validate                              Dry-run verdict

  Documents:
    GET    /api/collections                           Known collections
    GET    /api/collections/{collection}/docs         List documents
    POST   /api/collections/{collection}/docs         Create (generated key)
    GET    /api/collections/{collection}/docs/{key}   Get document
    PUT    /api/collections/{collection}/docs/{key}   Create or update
    DELETE /api/collections/{collection}/docs/{key}   Delete (not validated)

  Policy:
    GET    /api/policy                                Effective thresholds

  Scenarios / Audit:
    see scenarios.go and scheduler.go

ERROR HANDLING:
  - 400: Malformed request envelope
  - 404: Document not found
  - 409: Version conflict (record changed after it was validated)
  - 413: Payload too large
  - 422: Rejected write, body is a VerdictDTO
  - 500: Store failures

SECURITY NOTE:
  No authentication. Submitter and approver identities are taken from the
  payload as-is.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - generic/gate.go: Validate-then-commit
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/finance-gate/collections"
	"github.com/warp/finance-gate/factory"
	"github.com/warp/finance-gate/finance"
	"github.com/warp/finance-gate/generic"
	"github.com/warp/finance-gate/logging"
	"github.com/warp/finance-gate/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is what the API needs from persistence.
type Store interface {
	generic.Store
	Collections(ctx context.Context) ([]string, error)
	Reset(ctx context.Context) error
}

// Options configures a Handler.
type Options struct {
	Policy          finance.Policy
	Clock           generic.Clock
	Fenced          bool
	AcceptUnknown   bool
	MaxPayloadBytes int64
	CORSOrigins     []string
	Metrics         *metrics.Metrics
}

// DefaultMaxPayloadBytes caps request bodies when Options leaves it unset.
const DefaultMaxPayloadBytes = 1 << 20

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         Store
	Dispatcher    *generic.Dispatcher
	Gate          *generic.Gate
	Policy        finance.Policy
	PolicyFactory *factory.PolicyFactory
	Metrics       *metrics.Metrics
	Auditor       *Auditor

	clock       generic.Clock
	maxPayload  int64
	corsOrigins []string

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler wires the dispatcher, gate and auditor over store.
func NewHandler(store Store, opts Options) *Handler {
	if opts.Clock == nil {
		opts.Clock = generic.SystemClock{}
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = DefaultMaxPayloadBytes
	}

	var dopts []generic.DispatcherOption
	if opts.AcceptUnknown {
		dopts = append(dopts, generic.AcceptUnknown())
	}
	if opts.Metrics != nil {
		dopts = append(dopts, generic.WithObserver(opts.Metrics))
	}
	d := collections.NewDispatcher(collections.Deps{
		Reader: store,
		Clock:  opts.Clock,
		Policy: opts.Policy,
	}, dopts...)

	h := &Handler{
		Store:         store,
		Dispatcher:    d,
		Gate:          generic.NewGate(d, store, opts.Fenced),
		Policy:        opts.Policy,
		PolicyFactory: factory.NewPolicyFactory(),
		Metrics:       opts.Metrics,
		clock:         opts.Clock,
		maxPayload:    opts.MaxPayloadBytes,
		corsOrigins:   opts.CORSOrigins,
	}
	h.Auditor = NewAuditor(store, d, opts.Clock)
	return h
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"fenced": h.Gate.Fenced(),
	})
}

// =============================================================================
// VALIDATION ENDPOINT
// =============================================================================

// Validate returns the verdict for a write without committing it.
// POST /api/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readPayload(w, r)
	if !ok {
		return
	}

	var req ValidateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Collection) == "" {
		writeError(w, http.StatusBadRequest, "collection is required", nil)
		return
	}
	if len(req.Proposed) == 0 {
		writeError(w, http.StatusBadRequest, "proposed is required", nil)
		return
	}

	ctx := r.Context()
	attempt := generic.WriteAttempt{
		Collection: req.Collection,
		Key:        req.Key,
		Proposed:   req.Proposed,
		Previous:   req.Previous,
	}
	if len(attempt.Previous) == 0 && req.Key != "" {
		prev, err := h.Store.Get(ctx, req.Collection, req.Key)
		switch {
		case err == nil:
			attempt.Previous = prev.Data
		case generic.IsNotFound(err):
		default:
			h.respondGateError(w, r, req.Collection, req.Key, err)
			return
		}
	}

	if err := h.Gate.Check(ctx, attempt); err != nil {
		h.respondGateError(w, r, req.Collection, req.Key, err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedVerdict())
}

// =============================================================================
// DOCUMENT ENDPOINTS
// =============================================================================

// ListCollections returns registered and stored collection names.
// GET /api/collections
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	stored, err := h.Store.Collections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list collections", err)
		return
	}

	byName := make(map[string]*CollectionDTO)
	for _, name := range h.Dispatcher.Collections() {
		byName[name] = &CollectionDTO{Name: name, Registered: true}
	}
	for _, name := range stored {
		c, ok := byName[name]
		if !ok {
			c = &CollectionDTO{Name: name}
			byName[name] = c
		}
		c.Stored = true
	}

	out := make([]CollectionDTO, 0, len(byName))
	for _, c := range byName {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

// ListDocuments returns every document in a collection.
// GET /api/collections/{collection}/docs
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	docs, err := h.Store.List(r.Context(), collection)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTOs(docs))
}

// GetDocument returns one document.
// GET /api/collections/{collection}/docs/{key}
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	collection, key := chi.URLParam(r, "collection"), chi.URLParam(r, "key")
	doc, err := h.Store.Get(r.Context(), collection, key)
	if err != nil {
		h.respondGateError(w, r, collection, key, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(*doc))
}

// CreateDocument validates and stores a new document under a generated key.
// POST /api/collections/{collection}/docs
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	h.put(w, r, chi.URLParam(r, "collection"), uuid.NewString(), http.StatusCreated)
}

// PutDocument validates and stores a document under the given key.
// PUT /api/collections/{collection}/docs/{key}
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	h.put(w, r, chi.URLParam(r, "collection"), chi.URLParam(r, "key"), http.StatusOK)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request, collection, key string, status int) {
	body, ok := h.readPayload(w, r)
	if !ok {
		return
	}
	if !isJSONObject(body) {
		h.respondGateError(w, r, collection, key,
			generic.Reject(generic.KindDecode, "", "Payload must be a JSON object"))
		return
	}

	doc, err := h.Gate.Put(r.Context(), collection, key, body)
	h.Metrics.ObserveCommit(collection, err)
	if err != nil {
		h.respondGateError(w, r, collection, key, err)
		return
	}

	logging.WithFields(r.Context(), "collection", collection, "key", key).
		Info("write committed", "version", doc.Version)
	writeJSON(w, status, toDocumentDTO(doc))
}

// DeleteDocument removes a document. Deletes are not validated.
// DELETE /api/collections/{collection}/docs/{key}
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	collection, key := chi.URLParam(r, "collection"), chi.URLParam(r, "key")
	if err := h.Gate.Delete(r.Context(), collection, key); err != nil {
		h.respondGateError(w, r, collection, key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// POLICY ENDPOINT
// =============================================================================

// GetPolicy returns the thresholds the pipelines were built with.
// GET /api/policy
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.PolicyFactory.ToJSON(h.Policy))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) readPayload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxPayload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Payload too large", err)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return nil, false
	}
	return body, true
}

// respondGateError maps gate and store errors to HTTP responses.
func (h *Handler) respondGateError(w http.ResponseWriter, r *http.Request, collection, key string, err error) {
	log := logging.WithFields(r.Context(), "collection", collection, "key", key)

	if rej, ok := generic.AsRejection(err); ok {
		log.Info("write rejected", "kind", rej.Kind, "field", rej.Field, "reason", rej.Message)
		writeJSON(w, http.StatusUnprocessableEntity, rejectedVerdict(rej))
		return
	}
	switch {
	case errors.Is(err, generic.ErrVersionConflict):
		log.Warn("write lost compare-and-set", "error", err)
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "Record changed since it was validated; retry the write",
			Code:    "version_conflict",
			Details: err.Error(),
		})
	case generic.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Document not found", Code: "not_found"})
	default:
		log.Error("store failure", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func isJSONObject(data []byte) bool {
	trimmed := strings.TrimSpace(string(data))
	return strings.HasPrefix(trimmed, "{") && json.Valid(data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
