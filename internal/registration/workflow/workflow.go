// Package workflow holds the registration lifecycle rules. It is pure
// state logic with no I/O; the service layer applies its verdicts to
// persisted records.
package workflow

import (
	"fmt"

	dErrors "admission/pkg/domain-errors"

	"admission/internal/registration/checklist"
	"admission/internal/registration/models"
)

// DecisionStatuses are the statuses an administrator may move a
// registration into once it has left Draft.
var DecisionStatuses = []models.Status{
	models.StatusUnderReview,
	models.StatusApproved,
	models.StatusRejected,
	models.StatusWaitlisted,
}

// Rules is the transition graph for administrator decisions. Draft is
// never a decision source or target; leaving Draft happens only through
// Submit.
type Rules struct {
	allowed map[models.Status]map[models.Status]bool
}

// DefaultRules permits moving between any post-Draft statuses, so a
// decision can be revisited (an approved registration can be sent back
// to review, a waitlisted one promoted, and so on).
func DefaultRules() *Rules {
	sources := append([]models.Status{models.StatusSubmitted}, DecisionStatuses...)
	allowed := make(map[models.Status]map[models.Status]bool, len(sources))
	for _, from := range sources {
		allowed[from] = make(map[models.Status]bool, len(DecisionStatuses))
		for _, to := range DecisionStatuses {
			allowed[from][to] = true
		}
	}
	return &Rules{allowed: allowed}
}

// NewRules builds a graph from explicit edges. Useful for deployments
// that want decisions to be final.
func NewRules(edges map[models.Status][]models.Status) *Rules {
	allowed := make(map[models.Status]map[models.Status]bool, len(edges))
	for from, targets := range edges {
		allowed[from] = make(map[models.Status]bool, len(targets))
		for _, to := range targets {
			allowed[from][to] = true
		}
	}
	return &Rules{allowed: allowed}
}

// CanDecide reports whether a decision transition is permitted.
func (r *Rules) CanDecide(from, to models.Status) bool {
	return r.allowed[from][to]
}

// Decide validates an administrator decision against the graph. The
// target must be a decision status regardless of the graph contents.
func (r *Rules) Decide(current, target models.Status) error {
	if !isDecisionStatus(target) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%q is not a valid decision status", target))
	}
	if !r.CanDecide(current, target) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("cannot move registration from %q to %q", current, target))
	}
	return nil
}

// Submit checks the Draft-to-Submitted gate: the registration must be a
// Draft with every required document uploaded. Section completeness is
// not part of the gate; it is enforced by request validation on the
// section endpoints. On an incomplete checklist the error carries the
// missing document types.
func Submit(reg *models.Registration) error {
	if reg.Status != models.StatusDraft {
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("registration %s has already been submitted", reg.Number))
	}
	if missing := checklist.Missing(reg.Documents); len(missing) > 0 {
		return dErrors.NewIncompleteDocuments(checklist.Keys(missing))
	}
	return nil
}

// EnsureDraft is the shared precondition for every section edit:
// applicant-provided data is frozen once the registration leaves Draft.
func EnsureDraft(reg *models.Registration) error {
	if reg.Status != models.StatusDraft {
		return dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("registration %s can no longer be edited in status %q", reg.Number, reg.Status))
	}
	return nil
}

func isDecisionStatus(s models.Status) bool {
	for _, d := range DecisionStatuses {
		if s == d {
			return true
		}
	}
	return false
}
