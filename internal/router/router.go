// Package router turns free driver text into a support category. A
// remote classifier does the heavy lifting when configured; a keyword
// scorer answers when the classifier is absent, errors, or is unsure.
package router

import (
	"context"
	"log/slog"

	"github.com/treelogistics/driverdesk/internal/models"
)

// ConfidenceThreshold is the minimum classifier confidence accepted
// before falling back to the keyword rules.
const ConfidenceThreshold = 0.6

// Classifier is a remote intent classifier, typically the GenAI client.
type Classifier interface {
	ClassifyIntent(ctx context.Context, text string) (models.Intent, error)
}

// Router classifies driver messages. The zero value is not usable; use New.
type Router struct {
	classifier Classifier
}

// Option configures a Router.
type Option func(*Router)

// WithClassifier attaches a remote classifier. Without one the router
// is purely rule-based.
func WithClassifier(c Classifier) Option {
	return func(r *Router) { r.classifier = c }
}

// New creates a Router.
func New(opts ...Option) *Router {
	r := &Router{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify returns the best category for text. It never returns an
// error for classification problems; the rule-based fallback absorbs
// classifier failures. When neither the model nor the rules reach the
// confidence threshold the returned intent has an empty Category, which
// callers treat as "ask the driver instead of guessing".
func (r *Router) Classify(ctx context.Context, text string) (models.Intent, error) {
	if r.classifier != nil {
		intent, err := r.classifier.ClassifyIntent(ctx, text)
		switch {
		case err != nil:
			slog.Warn("Router classifier failed, using keyword rules", "error", err)
		case intent.Confidence >= ConfidenceThreshold && intent.Category != "":
			slog.Debug("Router classified via model", "category", intent.Category, "confidence", intent.Confidence)
			return intent, nil
		default:
			slog.Debug("Router classifier below confidence threshold", "category", intent.Category, "confidence", intent.Confidence)
		}
	}
	intent := ruleBasedIntent(text)
	if intent.Confidence < ConfidenceThreshold {
		slog.Debug("Router rules below confidence threshold", "confidence", intent.Confidence)
		intent.Category = ""
		return intent, nil
	}
	slog.Debug("Router classified via rules", "category", intent.Category, "confidence", intent.Confidence)
	return intent, nil
}
