package tracker

import (
	"context"
	"time"

	"cdr.dev/slog/v3"

	"github.com/runnerr0/mostviewed/internal/storage"
)

// SkipReason explains why a view was not recorded.
type SkipReason string

const (
	SkipNotFound            SkipReason = "not-found-sentinel"
	SkipCrawler             SkipReason = "crawler"
	SkipRoleNotCounted      SkipReason = "role-not-counted"
	SkipExcludedIP          SkipReason = "excluded-ip"
	SkipExcludedSubject     SkipReason = "excluded-subject"
	SkipExcludedBranch      SkipReason = "excluded-branch"
	SkipUncountableCategory SkipReason = "uncountable-category"
)

// Decision is the outcome of RecordView. Skips are not errors.
type Decision struct {
	Recorded bool
	Reason   SkipReason
}

// Accepted is the decision for a view that was appended to the log.
var Accepted = Decision{Recorded: true}

// Skip returns a decision that drops the view for reason.
func Skip(reason SkipReason) Decision {
	return Decision{Reason: reason}
}

func (d Decision) String() string {
	if d.Recorded {
		return "recorded"
	}
	return "skipped (" + string(d.Reason) + ")"
}

// CandidateView is a view the host wants counted.
type CandidateView struct {
	SubjectID   int64
	CategoryID  int64
	RequesterIP string
	UserAgent   string
	// RequestedAt is informational; the stored time always comes from the
	// tracker's clock.
	RequestedAt time.Time
}

// RecordView runs view through the exclusion pipeline and appends it to the
// log when nothing exempts it. Nothing is written on a skip. The host is
// responsible for not calling this twice for the same render.
func (t *Tracker) RecordView(ctx context.Context, view CandidateView, policy ExclusionPolicy, roles RoleSet, autoCounting bool) (Decision, error) {
	const op = "record view"
	if view.SubjectID <= 0 {
		return Decision{}, invalidArgument(op, "subject id must be positive, got %d", view.SubjectID)
	}
	if view.CategoryID < 0 {
		return Decision{}, invalidArgument(op, "category id must not be negative, got %d", view.CategoryID)
	}

	logger := t.logger.With(
		slog.F("subject_id", view.SubjectID),
		slog.F("category_id", view.CategoryID),
	)

	decision := t.evaluate(ctx, view, policy, roles, autoCounting)
	if !decision.Recorded {
		t.metrics.ViewsSkipped.WithLabelValues(string(decision.Reason)).Inc()
		logger.Debug(ctx, "view skipped", slog.F("reason", decision.Reason))
		return decision, nil
	}

	event := &storage.ViewEvent{
		SubjectID:  view.SubjectID,
		CategoryID: view.CategoryID,
		OccurredAt: t.clock.Now(),
	}
	if err := t.store.AddView(ctx, event); err != nil {
		return Decision{}, &Error{Kind: KindStorageWrite, Op: op, Err: err}
	}

	t.metrics.ViewsRecorded.Inc()
	logger.Debug(ctx, "view recorded",
		slog.F("ip", view.RequesterIP),
		slog.F("user_agent", view.UserAgent),
	)
	return Accepted, nil
}

// evaluate applies the exclusion steps in order and stops at the first one
// that exempts the view.
func (t *Tracker) evaluate(ctx context.Context, view CandidateView, policy ExclusionPolicy, roles RoleSet, autoCounting bool) Decision {
	if view.SubjectID == t.notFoundID {
		return Skip(SkipNotFound)
	}

	if policy.ExcludeCrawlers && policy.Crawlers.Match(view.UserAgent) {
		return Skip(SkipCrawler)
	}

	if !roles.Has(policy.Guest()) && !roles.Intersects(policy.CountedRoles) {
		return Skip(SkipRoleNotCounted)
	}

	if view.RequesterIP != "" && policy.ExcludedIPs.Contains(view.RequesterIP) {
		return Skip(SkipExcludedIP)
	}

	if policy.ExcludedSubjects.Has(view.SubjectID) {
		return Skip(SkipExcludedSubject)
	}

	if t.inExcludedBranch(ctx, view.SubjectID, policy.ExcludedBranches) {
		return Skip(SkipExcludedBranch)
	}

	if autoCounting && len(policy.CountableCategories) > 0 && !policy.CountableCategories.Has(view.CategoryID) {
		return Skip(SkipUncountableCategory)
	}

	return Accepted
}

func (t *Tracker) inExcludedBranch(ctx context.Context, subjectID int64, roots IDSet) bool {
	if len(roots) == 0 {
		return false
	}
	if roots.Has(subjectID) {
		return true
	}
	for _, ancestor := range t.hierarchy.AncestorsOf(ctx, subjectID) {
		if roots.Has(ancestor) {
			return true
		}
	}
	return false
}
