package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/treelogistics/driverdesk/internal/i18n"
	"github.com/treelogistics/driverdesk/internal/models"
	"github.com/treelogistics/driverdesk/internal/util"
)

// RequestStore persists finalized driver requests. Implemented by the
// SQL-backed request store; the engine never touches SQL directly.
type RequestStore interface {
	SaveRequest(ctx context.Context, req *models.DriverRequest) error
	RequestsByPhone(ctx context.Context, phone string, limit int) ([]models.DriverRequest, error)
	SetLatestFeedback(ctx context.Context, phone, feedback string) error
}

// IntentRouter classifies free request text into a support category.
// Implementations are expected to degrade internally (rule-based
// fallback) rather than surface low-confidence results.
type IntentRouter interface {
	Classify(ctx context.Context, text string) (models.Intent, error)
}

// FollowUpGenerator produces the next clarifying question for a
// partially described request.
type FollowUpGenerator interface {
	FollowUpQuestion(ctx context.Context, category models.RequestCategory, details []string) (string, error)
}

// identityQuestionPattern flags generated follow-ups that ask for
// things we already know from the driver's phone number and profile.
var identityQuestionPattern = regexp.MustCompile(`(?i)\b(employee id|your name|full name|identification|id number|personnel number|department)\b`)

const genericFollowUp = "Is there anything else I should know to help you with this request?"

const maxClarifyingDetails = 2

const statusHistoryLimit = 5

var statusCheckPattern = regexp.MustCompile(`(?i)^\s*(status|request status|check status|my requests?)\s*[?!.]*\s*$`)

// Engine drives the driver support conversation. It owns all step
// transitions; messaging and HTTP layers only relay text in and out.
type Engine struct {
	flows    Store
	requests RequestStore
	router   IntentRouter
	followUp FollowUpGenerator
	guided   bool
	newID    func() string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithIntentRouter enables AI-assisted category routing.
func WithIntentRouter(r IntentRouter) EngineOption {
	return func(e *Engine) { e.router = r }
}

// WithFollowUpGenerator enables AI-generated clarifying questions.
func WithFollowUpGenerator(g FollowUpGenerator) EngineOption {
	return func(e *Engine) { e.followUp = g }
}

// WithGuidedOnboarding switches new conversations to the step-by-step
// onboarding and category menu instead of the single-message intake.
func WithGuidedOnboarding(guided bool) EngineOption {
	return func(e *Engine) { e.guided = guided }
}

// WithIDGenerator overrides request id generation, for tests.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates a conversation engine backed by the given flow and
// request stores.
func NewEngine(flows Store, requests RequestStore, opts ...EngineOption) *Engine {
	e := &Engine{
		flows:    flows,
		requests: requests,
		newID:    util.NewRequestID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleMessage processes one inbound driver message and returns the
// reply to send back. A non-empty reply is valid to send even when err
// is non-nil; the error reports a failed side effect for the caller to
// log.
func (e *Engine) HandleMessage(ctx context.Context, from, body, profileName string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", nil
	}
	slog.Debug("Engine handling message", "from", from, "length", len(body))

	state, err := e.flows.Get(ctx, from)
	if err != nil {
		return "", fmt.Errorf("failed to load conversation state for %s: %w", from, err)
	}

	if state == nil {
		if statusCheckPattern.MatchString(body) {
			return e.statusSummary(ctx, from)
		}
		return e.startConversation(ctx, from, body)
	}

	switch state.Step {
	case models.StepDataCollection:
		return e.handleDataCollection(ctx, from, body, state)
	case models.StepOnboarding:
		return e.handleOnboarding(ctx, from, body, state)
	case models.StepCategorySelection:
		return e.handleCategorySelection(ctx, from, body, state)
	case models.StepClarifying:
		return e.handleClarifying(ctx, from, body, state)
	case models.StepRequestCollection:
		return e.handleRequestCollection(ctx, from, body, state)
	case models.StepSatisfactionRating:
		return e.handleSatisfactionRating(ctx, from, body, state)
	default:
		// A step this build does not know, e.g. state written by a newer
		// deployment. Restart rather than wedge the conversation.
		slog.Error("Engine encountered unknown step, restarting conversation", "from", from, "step", state.Step)
		if err := e.flows.Delete(ctx, from); err != nil {
			return "", fmt.Errorf("failed to reset conversation for %s: %w", from, err)
		}
		return e.startConversation(ctx, from, body)
	}
}

func (e *Engine) startConversation(ctx context.Context, from, body string) (string, error) {
	state := &models.ConversationState{InitialMessage: body}
	var reply string
	if e.guided {
		state.Step = models.StepOnboarding
		state.OnboardingStep = models.OnboardingFirstName
		reply = "👋 Welcome to Tree Logistics driver support! I will file your request with the right team.\n\nFirst, what is your first name?"
	} else {
		state.Step = models.StepDataCollection
		reply = fmt.Sprintf("👋 Welcome to Tree Logistics driver support! To get started, please send your first name, last name and station in one message.\n\nFor example: Maria Popescu %s", models.Stations[1])
	}
	if err := e.flows.Put(ctx, from, state); err != nil {
		return "", fmt.Errorf("failed to start conversation for %s: %w", from, err)
	}
	return reply, nil
}

func (e *Engine) handleDataCollection(ctx context.Context, from, body string, state *models.ConversationState) (string, error) {
	profile, err := parseProfile(body)
	if err != nil {
		return fmt.Sprintf("I could not read that. Please send your first name, last name and station in one message, for example: Maria Popescu %s\n\nStations: %s",
			models.Stations[1], strings.Join(models.Stations, ", ")), nil
	}
	step := models.StepRequestCollection
	if err := e.flows.Merge(ctx, from, models.StatePatch{Step: &step, Profile: &profile}); err != nil {
		return "", fmt.Errorf("failed to save driver profile for %s: %w", from, err)
	}
	slog.Debug("Engine collected driver profile", "from", from, "station", profile.Station)
	return fmt.Sprintf("Thanks %s! 🚚 What can we help you with? Describe your request in one message.", profile.FirstName), nil
}

func (e *Engine) handleOnboarding(ctx context.Context, from, body string, state *models.ConversationState) (string, error) {
	if state.Profile == nil {
		state.Profile = &models.Profile{}
	}
	switch state.OnboardingStep {
	case models.OnboardingFirstName:
		state.Profile.FirstName = strings.TrimSpace(body)
		state.OnboardingStep = models.OnboardingLastName
		if err := e.flows.Put(ctx, from, state); err != nil {
			return "", fmt.Errorf("failed to save onboarding progress for %s: %w", from, err)
		}
		return fmt.Sprintf("Nice to meet you %s! What is your last name?", state.Profile.FirstName), nil
	case models.OnboardingLastName:
		state.Profile.LastName = strings.TrimSpace(body)
		state.OnboardingStep = models.OnboardingStation
		if err := e.flows.Put(ctx, from, state); err != nil {
			return "", fmt.Errorf("failed to save onboarding progress for %s: %w", from, err)
		}
		return fmt.Sprintf("Which station do you work at?\n1 - %s\n2 - %s", models.Stations[1], models.Stations[0]), nil
	case models.OnboardingStation:
		station := stationFromReply(body)
		if station == "" {
			return fmt.Sprintf("Please reply with 1 for %s or 2 for %s.", models.Stations[1], models.Stations[0]), nil
		}
		state.Profile.Station = station
		state.Step = models.StepCategorySelection
		state.OnboardingStep = ""
		if err := e.flows.Put(ctx, from, state); err != nil {
			return "", fmt.Errorf("failed to save onboarding progress for %s: %w", from, err)
		}
		return fmt.Sprintf("All set, %s! %s", state.Profile.FirstName, categoryMenu()), nil
	default:
		state.OnboardingStep = models.OnboardingFirstName
		if err := e.flows.Put(ctx, from, state); err != nil {
			return "", fmt.Errorf("failed to save onboarding progress for %s: %w", from, err)
		}
		return "What is your first name?", nil
	}
}

func (e *Engine) handleCategorySelection(ctx context.Context, from, body string, state *models.ConversationState) (string, error) {
	choice := strings.TrimSpace(body)
	category, ok := models.MenuCategories[choice]

	if !ok && e.router != nil {
		// Drivers often ignore the menu and just describe the problem.
		intent, err := e.router.Classify(ctx, body)
		if err == nil && intent.Category != "" {
			category, ok = intent.Category, true
			if len(intent.ExtractedInfo) > 0 {
				state.ExtractedInfo = intent.ExtractedInfo
			}
			state.CollectedDetails = append(state.CollectedDetails, body)
		} else if err != nil {
			slog.Error("Engine intent classification failed", "from", from, "error", err)
		}
	}

	if !ok {
		return "Please reply with a number from the list.\n\n" + categoryMenu(), nil
	}

	if category == models.CategoryRequestStatus {
		summary, err := e.statusSummary(ctx, from)
		if err != nil {
			return "", err
		}
		return summary + "\n\nAnything else? " + categoryMenu(), nil
	}

	state.Category = category
	state.Step = models.StepClarifying
	if err := e.flows.Put(ctx, from, state); err != nil {
		return "", fmt.Errorf("failed to save category for %s: %w", from, err)
	}
	if len(state.CollectedDetails) > 0 {
		return e.clarifyOrFinalize(ctx, from, state)
	}
	return fmt.Sprintf("Got it, %s. Please describe what you need; what happened and what should we do?", category), nil
}

func (e *Engine) handleClarifying(ctx context.Context, from, body string, state *models.ConversationState) (string, error) {
	state.CollectedDetails = append(state.CollectedDetails, body)
	if err := e.flows.Merge(ctx, from, models.StatePatch{AppendDetails: []string{body}}); err != nil {
		return "", fmt.Errorf("failed to save request details for %s: %w", from, err)
	}
	return e.clarifyOrFinalize(ctx, from, state)
}

// clarifyOrFinalize either asks the next clarifying question or, once
// enough details are in, files the request.
func (e *Engine) clarifyOrFinalize(ctx context.Context, from string, state *models.ConversationState) (string, error) {
	if len(state.CollectedDetails) >= maxClarifyingDetails {
		return e.finalize(ctx, from, state, state.Category, strings.Join(state.CollectedDetails, "\n"), "")
	}
	question := genericFollowUp
	if e.followUp != nil {
		generated, err := e.followUp.FollowUpQuestion(ctx, state.Category, state.CollectedDetails)
		if err != nil {
			slog.Error("Engine follow-up generation failed", "from", from, "error", err)
		} else if generated != "" && !identityQuestionPattern.MatchString(generated) {
			question = generated
		}
	}
	return question, nil
}

func (e *Engine) handleRequestCollection(ctx context.Context, from, body string, state *models.ConversationState) (string, error) {
	result := ValidateRequest(body, state.RequestRetryCount)
	if !result.Accepted {
		retries := state.RequestRetryCount + 1
		if err := e.flows.Merge(ctx, from, models.StatePatch{RequestRetryCount: &retries}); err != nil {
			return "", fmt.Errorf("failed to save retry count for %s: %w", from, err)
		}
		slog.Debug("Engine rejected request", "from", from, "reason", result.Reason, "retries", retries)
		return result.FollowUp, nil
	}

	category := categoryForType(result.RequestType)
	if e.router != nil {
		intent, err := e.router.Classify(ctx, body)
		if err != nil {
			slog.Error("Engine intent classification failed, using keyword category", "from", from, "error", err)
		} else if intent.Category != "" {
			category = intent.Category
		}
	}
	return e.finalize(ctx, from, state, category, body, result.HelpfulInfo)
}

// finalize persists the request and only then clears the conversation.
// If persistence fails the state is kept so the driver can resend.
func (e *Engine) finalize(ctx context.Context, from string, state *models.ConversationState, category models.RequestCategory, body, helpfulInfo string) (string, error) {
	profile := state.Profile
	if profile == nil {
		profile = &models.Profile{FirstName: "Unknown"}
	}
	req := &models.DriverRequest{
		RowID:     e.newID(),
		CreatedAt: time.Now(),
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Phone:     from,
		Station:   profile.Station,
		Category:  category,
		Priority:  models.PriorityFor(category),
		Body:      body,
		Status:    models.InitialStatusFor(category),
	}
	if err := e.requests.SaveRequest(ctx, req); err != nil {
		slog.Error("Engine failed to persist request, keeping conversation", "from", from, "error", err)
		return "⚠️ Sorry, I could not file your request just now. Please send it again in a moment.",
			fmt.Errorf("failed to persist request for %s: %w", from, err)
	}
	if err := e.flows.Delete(ctx, from); err != nil {
		// The request is filed; a stale flow only costs the driver one
		// confusing reply before the TTL clears it.
		slog.Error("Engine failed to clear conversation after filing", "from", from, "error", err)
	}
	slog.Info("Engine filed request", "from", from, "rowID", req.RowID, "category", category, "priority", req.Priority)

	lang := i18n.Detect(body)
	reply := i18n.Acknowledgment(lang, profile.FirstName, req.RowID, category)
	if helpfulInfo != "" {
		reply += "\n\nℹ️ " + helpfulInfo
	}
	return reply, nil
}

func (e *Engine) handleSatisfactionRating(ctx context.Context, from, body string, state *models.ConversationState) (string, error) {
	level, ok := models.SatisfactionLevels[strings.TrimSpace(body)]
	if !ok {
		return "Please rate us with 1, 2 or 3:\n1 - 😊 Very Satisfied\n2 - 😐 Satisfied\n3 - 😞 Not Satisfied", nil
	}
	feedback := level.Emoji + " " + level.Label
	if err := e.requests.SetLatestFeedback(ctx, from, feedback); err != nil {
		slog.Error("Engine failed to record feedback", "from", from, "error", err)
	}
	if err := e.flows.Delete(ctx, from); err != nil {
		slog.Error("Engine failed to clear rating conversation", "from", from, "error", err)
	}
	slog.Info("Engine recorded satisfaction rating", "from", from, "rating", level.Label)
	return "🙏 Thank you for your feedback! Message us any time you need help.", nil
}

// statusSummary lists the driver's most recent requests.
func (e *Engine) statusSummary(ctx context.Context, from string) (string, error) {
	requests, err := e.requests.RequestsByPhone(ctx, from, statusHistoryLimit)
	if err != nil {
		return "", fmt.Errorf("failed to load request history for %s: %w", from, err)
	}
	if len(requests) == 0 {
		return "You have no requests on file yet. Send us a message describing what you need and we will file one.", nil
	}
	var b strings.Builder
	b.WriteString("📋 Your recent requests:\n")
	for _, r := range requests {
		fmt.Fprintf(&b, "%s %s | %s | %s\n", statusEmoji(r.Status), r.RowID, r.Category, statusLabel(r.Status))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func statusEmoji(status models.RequestStatus) string {
	switch status {
	case models.StatusDone, models.StatusNotified:
		return "✅"
	case models.StatusUrgent:
		return "🚨"
	default:
		return "⏳"
	}
}

func statusLabel(status models.RequestStatus) string {
	switch status {
	case models.StatusReview:
		return "in review"
	case models.StatusUrgent:
		return "urgent, being handled"
	case models.StatusDone, models.StatusNotified:
		return "completed"
	default:
		return string(status)
	}
}

// parseProfile reads "First Last STATION" from a single message. The
// station may appear after several name tokens (double last names) and
// anything after it is ignored.
func parseProfile(body string) (models.Profile, error) {
	tokens := strings.Fields(body)
	if len(tokens) < 3 {
		return models.Profile{}, fmt.Errorf("expected first name, last name and station: %w", models.ErrUnknownStation)
	}
	for i := 2; i < len(tokens); i++ {
		if station := models.CanonicalStation(tokens[i]); station != "" {
			return models.Profile{
				FirstName: tokens[0],
				LastName:  strings.Join(tokens[1:i], " "),
				Station:   station,
			}, nil
		}
	}
	return models.Profile{}, models.ErrUnknownStation
}

// stationFromReply accepts the numeric menu reply or a literal station name.
func stationFromReply(body string) string {
	switch strings.TrimSpace(body) {
	case "1":
		return models.Stations[1]
	case "2":
		return models.Stations[0]
	}
	return models.CanonicalStation(strings.TrimSpace(body))
}

func categoryForType(t models.RequestType) models.RequestCategory {
	switch t {
	case models.RequestTypeIBANChange:
		return models.CategorySalary
	case models.RequestTypeScanner, models.RequestTypeEquipment:
		return models.CategoryEquipment
	case models.RequestTypeVacation:
		return models.CategoryVacation
	default:
		return models.CategoryGeneral
	}
}

func categoryMenu() string {
	return "How can we help you today? Reply with a number:\n" +
		"1 - 💰 Salary\n" +
		"2 - 👥 HR\n" +
		"3 - 🚨 Accident/Damage\n" +
		"4 - 📦 Equipment\n" +
		"5 - 📝 Report\n" +
		"6 - 🏖️ Vacation/Sick Leave\n" +
		"7 - 📋 Request Status"
}
