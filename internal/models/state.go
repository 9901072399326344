// Package models defines conversation state structures for DriverDesk flows.
package models

import "time"

// Step identifies where a driver is inside the conversational flow.
type Step string

const (
	// StepDataCollection expects a single message with first name, last
	// name and station. This is the initial step for new conversations.
	StepDataCollection Step = "DATA_COLLECTION"
	// StepRequestCollection expects free request text, checked by the
	// request validator.
	StepRequestCollection Step = "REQUEST_COLLECTION"
	// StepClarifying collects additional request details one message at
	// a time before finalizing.
	StepClarifying Step = "CLARIFYING"
	// StepSatisfactionRating expects a 1-3 survey reply. It is opened by
	// the completion notifier, never by the request flow itself.
	StepSatisfactionRating Step = "SATISFACTION_RATING"
	// StepOnboarding is the guided three-question variant of data
	// collection used when the AI-driven path is active.
	StepOnboarding Step = "ONBOARDING"
	// StepCategorySelection expects a numeric menu reply (1-7).
	StepCategorySelection Step = "CATEGORY_SELECTION"
)

// OnboardingStep tracks progress through the guided onboarding questions.
type OnboardingStep string

const (
	OnboardingFirstName OnboardingStep = "first_name"
	OnboardingLastName  OnboardingStep = "last_name"
	OnboardingStation   OnboardingStep = "station"
)

// Profile holds the driver identity collected during onboarding.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Station   string `json:"station"`
}

// FullName returns "First Last" with missing parts trimmed away.
func (p Profile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// ConversationState is the per-driver dialogue state kept between
// webhook invocations. Exactly one state exists per identifier at any
// time; a state idle longer than the store TTL behaves as absent.
type ConversationState struct {
	Step              Step              `json:"step"`
	Profile           *Profile          `json:"profile,omitempty"`
	Category          RequestCategory   `json:"category,omitempty"`
	CollectedDetails  []string          `json:"collected_details,omitempty"`
	RequestRetryCount int               `json:"request_retry_count"`
	OnboardingStep    OnboardingStep    `json:"onboarding_step,omitempty"`
	InitialMessage    string            `json:"initial_message,omitempty"`
	ExtractedInfo     map[string]string `json:"extracted_info,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	LastActivityAt    time.Time         `json:"last_activity_at"`
}

// Clone returns a deep copy so store readers cannot mutate shared state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	if s.CollectedDetails != nil {
		out.CollectedDetails = append([]string(nil), s.CollectedDetails...)
	}
	if s.ExtractedInfo != nil {
		out.ExtractedInfo = make(map[string]string, len(s.ExtractedInfo))
		for k, v := range s.ExtractedInfo {
			out.ExtractedInfo[k] = v
		}
	}
	return &out
}

// StatePatch carries a partial update for ConversationState.Merge
// semantics: nil pointer fields are left untouched, AppendDetails is
// appended to CollectedDetails (which is append-only within a flow).
type StatePatch struct {
	Step              *Step
	Profile           *Profile
	Category          *RequestCategory
	AppendDetails     []string
	RequestRetryCount *int
	OnboardingStep    *OnboardingStep
	InitialMessage    *string
	ExtractedInfo     map[string]string
}

// Apply merges the patch into state in place.
func (p StatePatch) Apply(state *ConversationState) {
	if p.Step != nil {
		state.Step = *p.Step
	}
	if p.Profile != nil {
		prof := *p.Profile
		state.Profile = &prof
	}
	if p.Category != nil {
		state.Category = *p.Category
	}
	if len(p.AppendDetails) > 0 {
		state.CollectedDetails = append(state.CollectedDetails, p.AppendDetails...)
	}
	if p.RequestRetryCount != nil {
		state.RequestRetryCount = *p.RequestRetryCount
	}
	if p.OnboardingStep != nil {
		state.OnboardingStep = *p.OnboardingStep
	}
	if p.InitialMessage != nil {
		state.InitialMessage = *p.InitialMessage
	}
	if p.ExtractedInfo != nil {
		if state.ExtractedInfo == nil {
			state.ExtractedInfo = make(map[string]string, len(p.ExtractedInfo))
		}
		for k, v := range p.ExtractedInfo {
			state.ExtractedInfo[k] = v
		}
	}
}
