package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dreamers/incubation-portal/internal/metrics"
	"github.com/dreamers/incubation-portal/internal/model"
	"github.com/dreamers/incubation-portal/internal/queue"
	"github.com/dreamers/incubation-portal/internal/repository"
)

// ReviewStore runs application/token transactions.  *repository.ApplicationRepo
// satisfies it.
type ReviewStore interface {
	WithReviewTx(ctx context.Context, fn func(repository.ReviewTx) error) error
}

// StatusNotifier is told about review decisions after they commit.
type StatusNotifier interface {
	StatusChanged(ctx context.Context, ev queue.StatusChangedEvent) error
}

// Resolution is the outcome of a successful approval-link click or
// dashboard decision.
type Resolution struct {
	ApplicationID string                  `json:"application_id"`
	Action        model.ApprovalAction    `json:"action"`
	Status        model.ApplicationStatus `json:"status"`
	DecidedAt     time.Time               `json:"decided_at"`
	Application   model.ApplicantSummary  `json:"application"`
}

// ApprovalResolver drives the approval-token state machine: a token is
// active until it is consumed by a resolution or its deadline passes.
type ApprovalResolver struct {
	store    ReviewStore
	notifier StatusNotifier
	ttl      time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
	newToken func() string
}

// NewApprovalResolver returns a resolver issuing tokens valid for ttl.
func NewApprovalResolver(store ReviewStore, notifier StatusNotifier, ttl time.Duration, log logrus.FieldLogger) *ApprovalResolver {
	return &ApprovalResolver{
		store:    store,
		notifier: notifier,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

func updateFailed(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUpdateFailed, err)
}

// Resolve consumes token and applies its action.  The status change and
// the consumption of every token of the application commit together; an
// expired token leaves storage untouched.
func (r *ApprovalResolver) Resolve(ctx context.Context, token string) (Resolution, error) {
	if token == "" {
		metrics.RecordResolution("invalid_or_used")
		return Resolution{}, ErrInvalidOrUsed
	}
	now := r.now().UTC()
	var res Resolution
	err := r.store.WithReviewTx(ctx, func(tx repository.ReviewTx) error {
		tk, err := tx.LockActiveToken(ctx, token)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrUsed
		}
		if err != nil {
			return updateFailed("lock token", err)
		}
		if tk.Expired(now) {
			return ErrTokenExpired
		}
		to := tk.Action.TargetStatus()
		if err := tx.TransitionApplication(ctx, tk.ApplicationID, to, now, nil); err != nil {
			if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidOrUsed
			}
			return updateFailed("transition application", err)
		}
		if _, err := tx.ConsumeTokens(ctx, tk.ApplicationID); err != nil {
			return updateFailed("consume tokens", err)
		}
		summary, err := tx.ApplicantSummary(ctx, tk.ApplicationID)
		if err != nil {
			return updateFailed("load applicant", err)
		}
		res = Resolution{ApplicationID: tk.ApplicationID, Action: tk.Action, Status: to, DecidedAt: now, Application: summary}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidOrUsed) && !errors.Is(err, ErrTokenExpired) && !errors.Is(err, ErrUpdateFailed) {
			err = updateFailed("commit", err)
		}
		metrics.RecordResolution(resolutionOutcome(err))
		if errors.Is(err, ErrUpdateFailed) {
			r.log.WithError(err).Error("approval resolve failed")
		} else {
			r.log.WithError(err).Info("approval link refused")
		}
		return Resolution{}, err
	}

	metrics.RecordResolution(string(res.Status))
	r.log.WithFields(logrus.Fields{"application_id": res.ApplicationID, "status": res.Status}).Info("application resolved via link")
	r.notify(ctx, res, "link")
	return res, nil
}

// Decide applies a dashboard decision.  It shares Resolve's pending guard
// and invalidates any outstanding approval links.
func (r *ApprovalResolver) Decide(ctx context.Context, appID string, to model.ApplicationStatus, notes *string) (Resolution, error) {
	if !to.Terminal() {
		return Resolution{}, invalid("status", "status must be approved or rejected")
	}
	now := r.now().UTC()
	var res Resolution
	err := r.store.WithReviewTx(ctx, func(tx repository.ReviewTx) error {
		if err := tx.TransitionApplication(ctx, appID, to, now, notes); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return ErrApplicationNotFound
			case errors.Is(err, repository.ErrConflict):
				return ErrAlreadyReviewed
			}
			return updateFailed("transition application", err)
		}
		if _, err := tx.ConsumeTokens(ctx, appID); err != nil {
			return updateFailed("consume tokens", err)
		}
		summary, err := tx.ApplicantSummary(ctx, appID)
		if err != nil {
			return updateFailed("load applicant", err)
		}
		action := model.ActionReject
		if to == model.StatusApproved {
			action = model.ActionApprove
		}
		res = Resolution{ApplicationID: appID, Action: action, Status: to, DecidedAt: now, Application: summary}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrApplicationNotFound) && !errors.Is(err, ErrAlreadyReviewed) && !errors.Is(err, ErrUpdateFailed) {
			err = updateFailed("commit", err)
		}
		return Resolution{}, err
	}
	r.log.WithFields(logrus.Fields{"application_id": appID, "status": to}).Info("application decided from dashboard")
	r.notify(ctx, res, "dashboard")
	return res, nil
}

// IssuePair creates a fresh approve/reject pair for a pending application.
// Earlier links for the application stop working.
func (r *ApprovalResolver) IssuePair(ctx context.Context, appID string) (model.ApprovalPair, error) {
	var pair model.ApprovalPair
	err := r.store.WithReviewTx(ctx, func(tx repository.ReviewTx) error {
		status, err := tx.LockApplication(ctx, appID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrApplicationNotFound
		}
		if err != nil {
			return storeErr("lock application", err)
		}
		if status != model.StatusPending {
			return ErrAlreadyReviewed
		}
		if _, err := tx.ConsumeTokens(ctx, appID); err != nil {
			return storeErr("consume tokens", err)
		}
		var tokens []model.ApprovalToken
		pair, tokens = r.NewPair(appID)
		if err := tx.InsertTokens(ctx, tokens); err != nil {
			return storeErr("insert tokens", err)
		}
		return nil
	})
	if err != nil {
		return model.ApprovalPair{}, err
	}
	return pair, nil
}

// TTL is how long issued links stay valid.
func (r *ApprovalResolver) TTL() time.Duration { return r.ttl }

// NewPair builds an unsaved approve/reject pair expiring ttl from now.
func (r *ApprovalResolver) NewPair(appID string) (model.ApprovalPair, []model.ApprovalToken) {
	now := r.now().UTC()
	exp := now.Add(r.ttl)
	approve := model.ApprovalToken{ID: uuid.NewString(), ApplicationID: appID, Token: r.newToken(), Action: model.ActionApprove, ExpiresAt: exp, CreatedAt: now}
	reject := model.ApprovalToken{ID: uuid.NewString(), ApplicationID: appID, Token: r.newToken(), Action: model.ActionReject, ExpiresAt: exp, CreatedAt: now}
	pair := model.ApprovalPair{ApplicationID: appID, ApproveToken: approve.Token, RejectToken: reject.Token, ExpiresAt: exp}
	return pair, []model.ApprovalToken{approve, reject}
}

// notify publishes the decision.  The decision is already committed, so a
// failure is only logged.
func (r *ApprovalResolver) notify(ctx context.Context, res Resolution, via string) {
	if r.notifier == nil {
		return
	}
	ev := queue.StatusChangedEvent{
		ApplicationID:    res.ApplicationID,
		FounderName:      res.Application.FounderName,
		StartupName:      res.Application.StartupName,
		Email:            res.Application.Email,
		IncubationCentre: res.Application.IncubationCentre,
		Status:           string(res.Status),
		Via:              via,
		ChangedAt:        res.DecidedAt,
	}
	if err := r.notifier.StatusChanged(ctx, ev); err != nil {
		metrics.RecordNotificationFailure("status_changed")
		r.log.WithError(err).WithField("application_id", res.ApplicationID).Warn("status notification not published")
	}
}

func resolutionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidOrUsed):
		return "invalid_or_used"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	default:
		return "update_failed"
	}
}
