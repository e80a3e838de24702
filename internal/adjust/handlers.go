package adjust

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-tarif/internal/common"
	"github.com/noah-isme/backend-tarif/internal/org"
	"github.com/noah-isme/backend-tarif/internal/rounding"
)

// Handler exposes the adjustment endpoints under /api/v1.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type rateSpecRequest struct {
	Type   string           `json:"type" validate:"required,oneof=index custom"`
	Source string           `json:"source,omitempty" validate:"required_if=Type index"`
	Period string           `json:"period,omitempty"`
	Rate   *decimal.Decimal `json:"rate,omitempty" validate:"required_if=Type custom"`
}

type roundingRequest struct {
	Strategy  string `json:"strategy" validate:"omitempty,oneof=none round-100 round-500 round-1000"`
	Direction string `json:"direction" validate:"omitempty,oneof=nearest up down"`
}

type overrideRequest struct {
	ItemID  uuid.UUID        `json:"itemId" validate:"required"`
	Price   *decimal.Decimal `json:"price,omitempty"`
	Percent *decimal.Decimal `json:"percent,omitempty"`
}

type previewRequest struct {
	Rate      rateSpecRequest   `json:"rate" validate:"required"`
	Scope     string            `json:"scope,omitempty" validate:"omitempty,oneof=ALL SERVICES PRODUCTS SPECIALTY"`
	Specialty string            `json:"specialty,omitempty" validate:"required_if=Scope SPECIALTY"`
	Rounding  roundingRequest   `json:"rounding"`
	Overrides []overrideRequest `json:"overrides,omitempty" validate:"dive"`
}

type applyRequest struct {
	previewRequest
	AppliedBy string `json:"appliedBy" validate:"required"`
	Notes     string `json:"notes,omitempty"`
}

// Indices handles GET /api/v1/indices.
func (h *Handler) Indices(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.Indices.LatestIndices(r.Context(), orgID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Source < rows[j].Source })
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Items handles GET /api/v1/price-items with pagination.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	items, err := h.Service.Store.ListActiveItems(r.Context(), orgID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	total := len(items)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items[start:end],
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Preview handles POST /api/v1/adjustments/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	var req previewRequest
	input, ok := h.decodePreview(w, r, &req)
	if !ok {
		return
	}
	result, err := h.Service.Preview(r.Context(), orgID, input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Apply handles POST /api/v1/adjustments/apply.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	var req applyRequest
	input, ok := h.decodePreviewBody(w, r, &req, &req.previewRequest)
	if !ok {
		return
	}
	event, err := h.Service.Apply(r.Context(), orgID, ApplyInput{
		PreviewInput: input,
		AppliedBy:    req.AppliedBy,
		Notes:        req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": event})
}

// History handles GET /api/v1/adjustments/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 0)
	events, err := h.Service.History(r.Context(), orgID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": events})
}

// Drift handles GET /api/v1/adjustments/drift.
func (h *Handler) Drift(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	drift, err := h.Service.Drift(r.Context(), orgID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": drift})
}

// VerifyDrift handles POST /api/v1/adjustments/drift/verify. It runs the
// same check as the background job and reports whether a repair happened.
func (h *Handler) VerifyDrift(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	result, err := h.Service.VerifyDrift(r.Context(), orgID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handler) decodePreview(w http.ResponseWriter, r *http.Request, req *previewRequest) (PreviewInput, bool) {
	return h.decodePreviewBody(w, r, req, req)
}

func (h *Handler) decodePreviewBody(w http.ResponseWriter, r *http.Request, body any, req *previewRequest) (PreviewInput, bool) {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return PreviewInput{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(body); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "request validation failed", validationDetails(err))
			return PreviewInput{}, false
		}
	}
	input, err := req.toInput()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return PreviewInput{}, false
	}
	return input, true
}

func (r previewRequest) toInput() (PreviewInput, error) {
	scope, err := ParseScope(r.Scope)
	if err != nil {
		return PreviewInput{}, err
	}
	strategy, err := rounding.ParseStrategy(r.Rounding.Strategy)
	if err != nil {
		return PreviewInput{}, err
	}
	direction, err := rounding.ParseDirection(r.Rounding.Direction)
	if err != nil {
		return PreviewInput{}, err
	}
	input := PreviewInput{
		Scope:     scope,
		Specialty: r.Specialty,
		Policy:    rounding.Policy{Strategy: strategy, Direction: direction},
	}
	if r.Rate.Type == "custom" {
		input.Rate = RateInput{Custom: r.Rate.Rate}
	} else {
		input.Rate = RateInput{Source: r.Rate.Source, Period: r.Rate.Period}
	}
	for _, o := range r.Overrides {
		input.Overrides = append(input.Overrides, OverrideSpec{ItemID: o.ItemID, Price: o.Price, Percent: o.Percent})
	}
	return input, nil
}

func (h *Handler) orgID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orgID, err := org.UUIDFromContext(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "ORG_REQUIRED", "organization not resolved", nil)
		return uuid.Nil, false
	}
	return orgID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
	case errors.Is(err, ErrNoItemsToAdjust):
		common.JSONError(w, http.StatusUnprocessableEntity, "NO_ITEMS_TO_ADJUST", "no items matched the adjustment scope", nil)
	case errors.Is(err, ErrInvalidOverride):
		common.JSONError(w, http.StatusBadRequest, "INVALID_OVERRIDE", err.Error(), nil)
	case errors.Is(err, ErrUnknownIndex):
		common.JSONError(w, http.StatusNotFound, "UNKNOWN_INDEX", "no matching index observation", nil)
	default:
		var persistErr *PersistenceError
		if errors.As(err, &persistErr) {
			common.JSONError(w, http.StatusServiceUnavailable, "PERSISTENCE_FAILURE", "adjustment was rolled back, retry later", map[string]any{"op": persistErr.Op})
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func validationDetails(err error) any {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	fields := make([]map[string]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, map[string]string{"field": fe.Field(), "rule": fe.Tag()})
	}
	return map[string]any{"fields": fields}
}
