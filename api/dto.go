/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Resources:
    ResourceDTO, CreateResourceRequest

  Validation:
    ValidateRequest, ValidateResponse, ConflictDTO, AllocationDTO

  Booking:
    BookRequest, BookResponse, ViolationDTO

  Slots:
    SlotSearchRequest, SlotSearchResponse

  Constraints:
    ConstraintDTO, RuleDTO, CreateConstraintRequest

  Schedule:
    ScheduleDTO, DayAvailabilityDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

TIMESTAMPS:
  All windows travel as RFC3339 strings and are parsed in handlers.

SEE ALSO:
  - handlers.go: Uses these types
  - scheduling/types.go: The domain types these mirror
*/
package api

// =============================================================================
// RESOURCE TYPES
// =============================================================================

// ResourceDTO represents a resource in API responses.
type ResourceDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Quantity    int    `json:"quantity"`
	IsActive    bool   `json:"is_active"`
}

// CreateResourceRequest creates or replaces a resource.
type CreateResourceRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Quantity    int    `json:"quantity"`
	IsActive    *bool  `json:"is_active"` // defaults to true
}

// =============================================================================
// VALIDATION TYPES
// =============================================================================

// WindowDTO is a half-open [start, end) time window.
type WindowDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ValidateRequest checks a set of resources against one window without
// creating anything.
type ValidateRequest struct {
	ResourceIDs    []string  `json:"resource_ids"`
	Window         WindowDTO `json:"window"`
	ExcludeEventID string    `json:"exclude_event_id,omitempty"`
}

// AllocationDTO is one committed allocation overlapping the checked window.
type AllocationDTO struct {
	EventID    string    `json:"event_id"`
	EventTitle string    `json:"event_title"`
	Window     WindowDTO `json:"window"`
	Quantity   int       `json:"quantity_used"`
}

// ConflictDTO describes why one resource cannot satisfy the request.
type ConflictDTO struct {
	ResourceID        string          `json:"resource_id"`
	ResourceName      string          `json:"resource_name,omitempty"`
	TotalCapacity     int             `json:"total_capacity"`
	CurrentUsage      int             `json:"current_usage"`
	RequestedQuantity int             `json:"requested_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	Reason            string          `json:"reason"`
	Allocations       []AllocationDTO `json:"conflicting_allocations,omitempty"`
}

// ValidateResponse is the aggregate verdict over all requested resources.
type ValidateResponse struct {
	HasConflict          bool           `json:"has_conflict"`
	ConflictingResources []string       `json:"conflicting_resources"`
	Conflicts            []ConflictDTO  `json:"conflicts"`
	ResourcesChecked     int            `json:"resources_checked"`
	ConflictingCount     int            `json:"conflicting_count"`
	Violations           []ViolationDTO `json:"violations"`
}

// ViolationDTO is one rule violation.
type ViolationDTO struct {
	Kind              string `json:"kind"`
	Message           string `json:"message"`
	ResourceID        string `json:"resource_id"`
	RelatedResourceID string `json:"related_resource_id,omitempty"`
	ConstraintID      string `json:"constraint_id"`
}

// =============================================================================
// BOOKING TYPES
// =============================================================================

// BookRequest books one event series: the same resources over one or more
// occurrence windows, all-or-nothing.
type BookRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	CreatedBy   string      `json:"created_by,omitempty"`
	ResourceIDs []string    `json:"resource_ids"`
	Occurrences []WindowDTO `json:"occurrences"`
}

// BookResponse reports the outcome of a booking attempt.
type BookResponse struct {
	Accepted           bool           `json:"accepted"`
	EventIDs           []string       `json:"event_ids,omitempty"`
	Reason             string         `json:"reason,omitempty"`
	Violations         []ViolationDTO `json:"violations,omitempty"`
	OccurrenceIndex    int            `json:"occurrence_index"`
	Conflicts          []ConflictDTO  `json:"conflicts,omitempty"`
	OccurrencesChecked int            `json:"occurrences_checked"`
}

// =============================================================================
// SLOT SEARCH TYPES
// =============================================================================

// SlotSearchRequest asks for the earliest window where all resources are
// simultaneously free.
type SlotSearchRequest struct {
	ResourceIDs    []string  `json:"resource_ids"`
	Desired        WindowDTO `json:"desired"`
	DurationHours  int       `json:"duration_hours,omitempty"`
	MaxDaysAhead   int       `json:"max_days_ahead,omitempty"`
	ExcludeEventID string    `json:"exclude_event_id,omitempty"`
}

// SlotSearchResponse reports the found slot, or why none exists.
type SlotSearchResponse struct {
	Available   bool       `json:"available"`
	Window      *WindowDTO `json:"window,omitempty"`
	Reason      string     `json:"reason"`
	DayOffset   int        `json:"day_offset"`
	Hour        int        `json:"hour"`
	DaysChecked int        `json:"days_checked"`
}

// =============================================================================
// CONSTRAINT TYPES
// =============================================================================

// RuleDTO is one directional rule inside a constraint.
type RuleDTO struct {
	ResourceID        string `json:"resource_id"`
	Type              string `json:"type"`
	RelatedResourceID string `json:"related_resource_id,omitempty"`
	Value             *int   `json:"value,omitempty"`
}

// ConstraintDTO represents a constraint with its rules.
type ConstraintDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	Rules       []RuleDTO `json:"rules"`
}

// CreateConstraintRequest creates or replaces a constraint.
type CreateConstraintRequest struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    *bool     `json:"is_active"` // defaults to true
	Rules       []RuleDTO `json:"rules"`
}

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventDTO represents a persisted event occurrence.
type EventDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Window      WindowDTO `json:"window"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"created_by,omitempty"`
	Resources   []string  `json:"resources,omitempty"`
}

// =============================================================================
// SCHEDULE TYPES
// =============================================================================

// DayAvailabilityDTO is one day of a resource schedule report.
type DayAvailabilityDTO struct {
	Date       string `json:"date"`
	BusyHours  string `json:"busy_hours"`
	FreeHours  string `json:"free_hours"`
	EventCount int    `json:"event_count"`
	Weekend    bool   `json:"weekend"`
}

// ScheduleDTO summarizes a resource's utilization over a period.
type ScheduleDTO struct {
	ResourceID   string               `json:"resource_id"`
	ResourceName string               `json:"resource_name"`
	Period       WindowDTO            `json:"period"`
	Allocations  []AllocationDTO      `json:"allocations"`
	TotalEvents  int                  `json:"total_events"`
	BusyHours    string               `json:"busy_hours"`
	FreeHours    string               `json:"free_hours"`
	Days         []DayAvailabilityDTO `json:"days"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
