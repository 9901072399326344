// Package models defines the core data structures for DriverDesk.
//
// It includes types for driver support requests, request categories, and
// satisfaction ratings, which are shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// RequestCategory identifies which support team handles a request.
type RequestCategory string

const (
	// Menu categories, offered to drivers as a numbered list (1-7).
	CategorySalary        RequestCategory = "Salary"
	CategoryHR            RequestCategory = "HR"
	CategoryAccident      RequestCategory = "Accident/Damage"
	CategoryEquipment     RequestCategory = "Equipment"
	CategoryReport        RequestCategory = "Report"
	CategoryVacation      RequestCategory = "Vacation/Sick Leave"
	CategoryRequestStatus RequestCategory = "Request Status"

	// Additional categories produced by the intent router.
	CategoryVehicle     RequestCategory = "Vehicle"
	CategorySchedule    RequestCategory = "Schedule"
	CategoryPerformance RequestCategory = "Performance"
	CategoryGeneral     RequestCategory = "General"
)

// MenuCategories maps the numeric menu reply to its category.
// The ordering matches the menu text shown to drivers.
var MenuCategories = map[string]RequestCategory{
	"1": CategorySalary,
	"2": CategoryHR,
	"3": CategoryAccident,
	"4": CategoryEquipment,
	"5": CategoryReport,
	"6": CategoryVacation,
	"7": CategoryRequestStatus,
}

// RequestType is the validator's classification of free request text.
type RequestType string

const (
	RequestTypeIBANChange RequestType = "iban_change"
	RequestTypeScanner    RequestType = "scanner"
	RequestTypeVacation   RequestType = "vacation"
	RequestTypeEquipment  RequestType = "equipment"
	RequestTypeGeneral    RequestType = "general"
)

// RequestStatus tracks a request's position in the back-office workflow.
type RequestStatus string

const (
	// StatusReview indicates the request awaits review by the support team.
	StatusReview RequestStatus = "review"
	// StatusUrgent indicates the request needs immediate attention.
	StatusUrgent RequestStatus = "urgent"
	// StatusDone indicates the support team resolved the request.
	StatusDone RequestStatus = "done"
	// StatusNotified indicates the driver was told about the resolution.
	StatusNotified RequestStatus = "notified"
)

// RequestPriority is derived from the category at submission time.
type RequestPriority string

const (
	PriorityCritical RequestPriority = "Critical"
	PriorityMedium   RequestPriority = "Medium"
)

// Stations is the fixed set of delivery stations drivers belong to.
// Changing this set is a deployment concern, not runtime data.
var Stations = []string{"DBE2", "DBE3"}

// CanonicalStation returns the canonical spelling of a station token, or
// "" if the token is not a known station (case-insensitive exact match).
func CanonicalStation(token string) string {
	for _, s := range Stations {
		if strings.EqualFold(token, s) {
			return s
		}
	}
	return ""
}

// IsValidStation reports whether token names a known station.
func IsValidStation(token string) bool {
	return CanonicalStation(token) != ""
}

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrEmptyBody      = errors.New("message body cannot be empty")
	ErrUnknownStation = errors.New("unknown station token")
	ErrRequestMissing = errors.New("request not found")
)

// DriverRequest is a finalized support request as persisted by the
// request store. RowID is a time-based identifier generated at
// submission; RowNumber is assigned by the store.
type DriverRequest struct {
	RowNumber int64           `json:"row_number,omitempty"`
	RowID     string          `json:"row_id"`
	CreatedAt time.Time       `json:"created_at"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Phone     string          `json:"phone"`
	Station   string          `json:"station"`
	Category  RequestCategory `json:"category"`
	Priority  RequestPriority `json:"priority"`
	Body      string          `json:"body"`
	Status    RequestStatus   `json:"status"`
	Feedback  string          `json:"feedback,omitempty"`
}

// PriorityFor derives the submission priority from a category.
// Accident and vehicle damage reports are treated as critical.
func PriorityFor(category RequestCategory) RequestPriority {
	if category == CategoryAccident || category == CategoryVehicle {
		return PriorityCritical
	}
	return PriorityMedium
}

// InitialStatusFor derives the initial workflow status from a category.
func InitialStatusFor(category RequestCategory) RequestStatus {
	if PriorityFor(category) == PriorityCritical {
		return StatusUrgent
	}
	return StatusReview
}

// SatisfactionLevel describes one point on the feedback scale.
type SatisfactionLevel struct {
	Emoji string
	Label string
}

// SatisfactionLevels maps the single-digit survey reply to its meaning.
var SatisfactionLevels = map[string]SatisfactionLevel{
	"1": {Emoji: "😊", Label: "Very Satisfied"},
	"2": {Emoji: "😐", Label: "Satisfied"},
	"3": {Emoji: "😞", Label: "Not Satisfied"},
}

// Intent is the result of classifying free text into a category,
// produced by either the remote classifier or the rule-based fallback.
type Intent struct {
	Category      RequestCategory   `json:"category"`
	Confidence    float64           `json:"confidence"`
	ExtractedInfo map[string]string `json:"extracted_info,omitempty"`
}

// Response represents an incoming message from a driver.
type Response struct {
	From        string `json:"from"`
	Body        string `json:"body"`
	ProfileName string `json:"profile_name,omitempty"`
	Time        int64  `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard JSON response for the ops endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
