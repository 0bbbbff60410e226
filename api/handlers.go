/*
handlers.go - HTTP API handlers for the allocation engine

PURPOSE:
  Exposes the validation and booking engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Validation:
    POST   /api/validate               Check resources against one window
    POST   /api/slots/search           Find the earliest free slot

  Events:
    GET    /api/events                 List events
    POST   /api/events                 Book a series (all-or-nothing)
    GET    /api/events/{id}            Get event details
    DELETE /api/events/{id}            Cancel a scheduled event

  Resources:
    GET    /api/resources              List resources
    POST   /api/resources              Create/replace resource
    GET    /api/resources/{id}         Get resource details
    GET    /api/resources/{id}/schedule Utilization report over a period

  Constraints:
    GET    /api/constraints            List constraints with rules
    POST   /api/constraints            Create/replace constraint

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (resources, constraints, events)
  - Booking: Validate-then-commit booking flow
  - Checker: Conflict checks and slot search
  - Rules: Compatibility rule evaluation

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (checker, rules, booking)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource or event not found
  - 409: Booking rejected or commit-time conflict
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/allocation-engine/booking"
	"github.com/warp/allocation-engine/scheduling"
	"github.com/warp/allocation-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Booking *booking.Service
	Checker *scheduling.ConflictChecker
	Rules   *scheduling.RuleEngine
}

// NewHandler wires handlers onto an already constructed engine.
func NewHandler(store *sqlite.Store, svc *booking.Service, checker *scheduling.ConflictChecker, rules *scheduling.RuleEngine) *Handler {
	return &Handler{
		Store:   store,
		Booking: svc,
		Checker: checker,
		Rules:   rules,
	}
}

// =============================================================================
// VALIDATION HANDLERS
// =============================================================================

// Validate checks a resource set against one window: conflicts and rules,
// without creating anything.
// POST /api/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	window, err := parseWindow(req.Window)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}

	ids := toResourceIDs(req.ResourceIDs)

	violations, err := h.Rules.ValidateResources(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to evaluate rules", err)
		return
	}

	agg, err := h.Checker.CheckResources(r.Context(), ids, window, scheduling.EventID(req.ExcludeEventID))
	if err != nil && agg == nil {
		writeError(w, http.StatusInternalServerError, "Failed to check conflicts", err)
		return
	}
	// agg non-nil with err: fail-closed details are already inside agg.

	writeJSON(w, http.StatusOK, toValidateResponse(agg, violations))
}

// SearchSlot finds the earliest window where all resources are free.
// POST /api/slots/search
func (h *Handler) SearchSlot(w http.ResponseWriter, r *http.Request) {
	var req SlotSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	desired, err := parseWindow(req.Desired)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid desired window", err)
		return
	}

	result, err := h.Checker.FindAvailableTimeSlot(r.Context(), scheduling.SlotRequest{
		ResourceIDs:    toResourceIDs(req.ResourceIDs),
		Desired:        desired,
		DurationHours:  req.DurationHours,
		MaxDaysAhead:   req.MaxDaysAhead,
		ExcludeEventID: scheduling.EventID(req.ExcludeEventID),
	})
	if err != nil {
		if errors.Is(err, scheduling.ErrInvalidWindow) {
			writeError(w, http.StatusBadRequest, "Invalid desired window", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Slot search failed", err)
		return
	}

	resp := SlotSearchResponse{
		Available:   result.Available,
		Reason:      result.Reason,
		DayOffset:   result.DayOffset,
		Hour:        result.Hour,
		DaysChecked: result.DaysChecked,
	}
	if result.Available {
		win := toWindowDTO(result.Window)
		resp.Window = &win
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// BookEvent books a series of occurrences, all-or-nothing.
// POST /api/events
func (h *Handler) BookEvent(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required", nil)
		return
	}
	if len(req.Occurrences) == 0 {
		writeError(w, http.StatusBadRequest, "At least one occurrence window is required", nil)
		return
	}

	occurrences := make([]scheduling.TimeWindow, len(req.Occurrences))
	for i, dto := range req.Occurrences {
		window, err := parseWindow(dto)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid occurrence window", err)
			return
		}
		occurrences[i] = window
	}

	confirmation, result, err := h.Booking.Book(r.Context(), booking.Request{
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		ResourceIDs: toResourceIDs(req.ResourceIDs),
		Occurrences: occurrences,
	})
	if err != nil {
		if errors.Is(err, scheduling.ErrInvalidWindow) {
			writeError(w, http.StatusBadRequest, "Invalid occurrence window", err)
			return
		}
		if errors.Is(err, scheduling.ErrCommitConflict) {
			// Lost the race between validation and commit.
			writeError(w, http.StatusConflict, "Resources were booked concurrently, please retry", err)
			return
		}
		if result != nil {
			// Fail-closed rejection caused by a store failure.
			writeJSON(w, http.StatusConflict, toBookResponse(nil, result))
			return
		}
		writeError(w, http.StatusInternalServerError, "Booking failed", err)
		return
	}

	if !result.Accepted {
		writeJSON(w, http.StatusConflict, toBookResponse(nil, result))
		return
	}
	writeJSON(w, http.StatusCreated, toBookResponse(confirmation, result))
}

// ListEvents returns events ordered by start time.
// GET /api/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Store.ListEvents(r.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEvent returns one event with its resources.
// GET /api/events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := scheduling.EventID(chi.URLParam(r, "id"))

	event, err := h.Store.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get event", err)
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "Event not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(*event))
}

// CancelEvent cancels a scheduled event, freeing its allocations.
// DELETE /api/events/{id}
func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	id := scheduling.EventID(chi.URLParam(r, "id"))

	if err := h.Booking.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, sqlite.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "Event not found or not scheduled", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to cancel event", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// =============================================================================
// RESOURCE HANDLERS
// =============================================================================

// ListResources returns all resources. ?active=true filters to active.
// GET /api/resources
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	resources, err := h.Store.ListResources(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list resources", err)
		return
	}

	dtos := make([]ResourceDTO, len(resources))
	for i, res := range resources {
		dtos[i] = toResourceDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetResource returns one resource.
// GET /api/resources/{id}
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id := scheduling.ResourceID(chi.URLParam(r, "id"))

	res, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get resource", err)
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "Resource not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toResourceDTO(*res))
}

// CreateResource creates or replaces a resource.
// POST /api/resources
func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must not be negative", nil)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	res := scheduling.Resource{
		ID:          scheduling.ResourceID(req.ID),
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Quantity:    req.Quantity,
		IsActive:    isActive,
	}
	if err := h.Store.SaveResource(r.Context(), res); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save resource", err)
		return
	}
	writeJSON(w, http.StatusCreated, toResourceDTO(res))
}

// GetSchedule builds a utilization report for one resource.
// GET /api/resources/{id}/schedule?start=...&end=...
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := scheduling.ResourceID(chi.URLParam(r, "id"))

	period, err := parseWindow(WindowDTO{
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (start/end must be RFC3339)", err)
		return
	}

	schedule, err := h.Checker.BuildResourceSchedule(r.Context(), id, period)
	if err != nil {
		if errors.Is(err, scheduling.ErrResourceNotFound) {
			writeError(w, http.StatusNotFound, "Resource not found", err)
			return
		}
		if errors.Is(err, scheduling.ErrInvalidWindow) {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to build schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleDTO(schedule))
}

// =============================================================================
// CONSTRAINT HANDLERS
// =============================================================================

// ListConstraints returns all constraints with their rules.
// GET /api/constraints
func (h *Handler) ListConstraints(w http.ResponseWriter, r *http.Request) {
	constraints, err := h.Store.ListConstraints(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list constraints", err)
		return
	}

	dtos := make([]ConstraintDTO, len(constraints))
	for i, c := range constraints {
		dtos[i] = toConstraintDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateConstraint creates or replaces a constraint with its rules.
// POST /api/constraints
func (h *Handler) CreateConstraint(w http.ResponseWriter, r *http.Request) {
	var req CreateConstraintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	c := scheduling.Constraint{
		ID:          scheduling.ConstraintID(req.ID),
		Name:        req.Name,
		Description: req.Description,
		IsActive:    isActive,
	}
	for _, rule := range req.Rules {
		if rule.ResourceID == "" || rule.Type == "" {
			writeError(w, http.StatusBadRequest, "rules need resource_id and type", nil)
			return
		}
		c.Rules = append(c.Rules, scheduling.Rule{
			ConstraintID:      c.ID,
			ResourceID:        scheduling.ResourceID(rule.ResourceID),
			Type:              scheduling.RuleType(rule.Type),
			RelatedResourceID: scheduling.ResourceID(rule.RelatedResourceID),
			Value:             rule.Value,
		})
	}

	if err := h.Store.SaveConstraint(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save constraint", err)
		return
	}
	writeJSON(w, http.StatusCreated, toConstraintDTO(c))
}

// =============================================================================
// DTO CONVERSION
// =============================================================================

func toResourceIDs(ids []string) []scheduling.ResourceID {
	out := make([]scheduling.ResourceID, len(ids))
	for i, id := range ids {
		out[i] = scheduling.ResourceID(id)
	}
	return out
}

func parseWindow(dto WindowDTO) (scheduling.TimeWindow, error) {
	start, err := time.Parse(time.RFC3339, dto.Start)
	if err != nil {
		return scheduling.TimeWindow{}, err
	}
	end, err := time.Parse(time.RFC3339, dto.End)
	if err != nil {
		return scheduling.TimeWindow{}, err
	}
	window := scheduling.NewWindow(start, end)
	if err := window.Validate(); err != nil {
		return scheduling.TimeWindow{}, err
	}
	return window, nil
}

func toWindowDTO(w scheduling.TimeWindow) WindowDTO {
	return WindowDTO{
		Start: w.Start.Format(time.RFC3339),
		End:   w.End.Format(time.RFC3339),
	}
}

func toResourceDTO(res scheduling.Resource) ResourceDTO {
	return ResourceDTO{
		ID:          string(res.ID),
		Name:        res.Name,
		Description: res.Description,
		Type:        res.Type,
		Quantity:    res.Quantity,
		IsActive:    res.IsActive,
	}
}

func toAllocationDTOs(allocations []scheduling.Allocation) []AllocationDTO {
	if len(allocations) == 0 {
		return nil
	}
	dtos := make([]AllocationDTO, len(allocations))
	for i, a := range allocations {
		dtos[i] = AllocationDTO{
			EventID:    string(a.EventID),
			EventTitle: a.EventTitle,
			Window:     toWindowDTO(a.Window),
			Quantity:   a.QuantityUsed,
		}
	}
	return dtos
}

func toConflictDTOs(conflicts []scheduling.ConflictDetail) []ConflictDTO {
	dtos := make([]ConflictDTO, len(conflicts))
	for i, c := range conflicts {
		dtos[i] = ConflictDTO{
			ResourceID:        string(c.ResourceID),
			ResourceName:      c.ResourceName,
			TotalCapacity:     c.TotalCapacity,
			CurrentUsage:      c.CurrentUsage,
			RequestedQuantity: c.RequestedQuantity,
			AvailableQuantity: c.AvailableQuantity,
			Reason:            c.Reason,
			Allocations:       toAllocationDTOs(c.ConflictingAllocations),
		}
	}
	return dtos
}

func toViolationDTOs(violations []scheduling.Violation) []ViolationDTO {
	dtos := make([]ViolationDTO, len(violations))
	for i, v := range violations {
		dtos[i] = ViolationDTO{
			Kind:              string(v.Kind),
			Message:           v.Message,
			ResourceID:        string(v.ResourceID),
			RelatedResourceID: string(v.RelatedResourceID),
			ConstraintID:      string(v.ConstraintID),
		}
	}
	return dtos
}

func toValidateResponse(agg *scheduling.AggregateResult, violations []scheduling.Violation) ValidateResponse {
	resp := ValidateResponse{
		Violations: toViolationDTOs(violations),
	}
	if agg != nil {
		resp.HasConflict = agg.HasConflict
		resp.ResourcesChecked = agg.ResourcesChecked
		resp.ConflictingCount = agg.ConflictingCount
		resp.Conflicts = toConflictDTOs(agg.Conflicts)
		resp.ConflictingResources = make([]string, len(agg.ConflictingResources))
		for i, id := range agg.ConflictingResources {
			resp.ConflictingResources[i] = string(id)
		}
	}
	if resp.ConflictingResources == nil {
		resp.ConflictingResources = []string{}
	}
	if resp.Conflicts == nil {
		resp.Conflicts = []ConflictDTO{}
	}
	return resp
}

func toBookResponse(confirmation *booking.Confirmation, result *scheduling.BatchResult) BookResponse {
	resp := BookResponse{
		Accepted:           result.Accepted,
		Reason:             string(result.Reason),
		Violations:         toViolationDTOs(result.Violations),
		OccurrenceIndex:    result.OccurrenceIndex,
		OccurrencesChecked: result.OccurrencesChecked,
	}
	if result.Conflicts != nil {
		resp.Conflicts = toConflictDTOs(result.Conflicts.Conflicts)
	}
	if confirmation != nil {
		resp.EventIDs = make([]string, len(confirmation.EventIDs))
		for i, id := range confirmation.EventIDs {
			resp.EventIDs[i] = string(id)
		}
	}
	return resp
}

func toEventDTO(e sqlite.Event) EventDTO {
	resources := make([]string, len(e.Resources))
	for i, id := range e.Resources {
		resources[i] = string(id)
	}
	return EventDTO{
		ID:          string(e.ID),
		Title:       e.Title,
		Description: e.Description,
		Window:      toWindowDTO(e.Window),
		Status:      string(e.Status),
		CreatedBy:   e.CreatedBy,
		Resources:   resources,
	}
}

func toConstraintDTO(c scheduling.Constraint) ConstraintDTO {
	dto := ConstraintDTO{
		ID:          string(c.ID),
		Name:        c.Name,
		Description: c.Description,
		IsActive:    c.IsActive,
		Rules:       make([]RuleDTO, len(c.Rules)),
	}
	for i, rule := range c.Rules {
		dto.Rules[i] = RuleDTO{
			ResourceID:        string(rule.ResourceID),
			Type:              string(rule.Type),
			RelatedResourceID: string(rule.RelatedResourceID),
			Value:             rule.Value,
		}
	}
	return dto
}

func toScheduleDTO(s *scheduling.ResourceSchedule) ScheduleDTO {
	dto := ScheduleDTO{
		ResourceID:   string(s.ResourceID),
		ResourceName: s.ResourceName,
		Period:       toWindowDTO(s.Period),
		Allocations:  toAllocationDTOs(s.Allocations),
		TotalEvents:  s.TotalEvents,
		BusyHours:    s.BusyHours.String(),
		FreeHours:    s.FreeHours.String(),
		Days:         make([]DayAvailabilityDTO, len(s.Days)),
	}
	for i, day := range s.Days {
		dto.Days[i] = DayAvailabilityDTO{
			Date:       day.Date.Format("2006-01-02"),
			BusyHours:  day.BusyHours.String(),
			FreeHours:  day.FreeHours.String(),
			EventCount: day.EventCount,
			Weekend:    day.Weekend,
		}
	}
	return dto
}

// =============================================================================
// HELPERS
// =============================================================================

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
