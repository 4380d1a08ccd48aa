package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dreamers/incubation-portal/internal/metrics"
	"github.com/dreamers/incubation-portal/internal/model"
	"github.com/dreamers/incubation-portal/internal/queue"
	"github.com/dreamers/incubation-portal/internal/repository"
)

// MinIdeaLength is the shortest accepted startup idea description.  It
// matches the min tag on IdeaDescription.
const MinIdeaLength = 50

// ApplicationInput is the wizard payload.
type ApplicationInput struct {
	FounderName      string   `json:"founder_name" validate:"required"`
	StartupName      string   `json:"startup_name" validate:"required"`
	Email            string   `json:"email" validate:"required,email"`
	Phone            string   `json:"phone" validate:"required"`
	CompanyType      string   `json:"company_type" validate:"required"`
	TeamSize         string   `json:"team_size" validate:"required"`
	Source           string   `json:"source" validate:"required"`
	CouponCode       string   `json:"coupon_code" validate:"required"`
	IncubationCentre string   `json:"incubation_centre" validate:"required"`
	Website          string   `json:"website"`
	IdeaDescription  string   `json:"idea_description" validate:"min=50"`
	Expectations     []string `json:"expectations" validate:"min=1"`
	Challenges       string   `json:"challenges"`
}

var applicationMessages = map[string]string{
	"required":             "Please fill in all required fields",
	"email.email":          "Please enter a valid email address",
	"idea_description.min": "Please provide a detailed description of your startup idea (minimum 50 characters)",
	"expectations.min":     "Please select at least one expectation from Dreamers",
}

// CouponGate answers whether an email redeemed a coupon code.
type CouponGate interface {
	HasUsageByCode(ctx context.Context, code, email string) (bool, error)
}

// CentreDirectory resolves centres by name.
type CentreDirectory interface {
	GetByName(ctx context.Context, name string) (model.IncubationCentre, error)
}

// ApplicationReader serves read-only application queries.
type ApplicationReader interface {
	GetByID(ctx context.Context, id string) (model.Application, error)
	List(ctx context.Context, status model.ApplicationStatus) ([]model.Application, error)
	CountByStatus(ctx context.Context) (model.StatusCounts, error)
}

// SubmissionNotifier is told about new applications after they commit.
type SubmissionNotifier interface {
	ApplicationSubmitted(ctx context.Context, ev queue.ApplicationSubmittedEvent) error
}

// StatusView is what applicants see when polling.
type StatusView struct {
	ID         string                  `json:"id"`
	Status     model.ApplicationStatus `json:"status"`
	CreatedAt  time.Time               `json:"created_at"`
	ApprovedAt *time.Time              `json:"approved_at,omitempty"`
	RejectedAt *time.Time              `json:"rejected_at,omitempty"`
}

// ApplicationService accepts wizard submissions and serves application
// queries.
type ApplicationService struct {
	reviews  ReviewStore
	apps     ApplicationReader
	coupons  CouponGate
	centres  CentreDirectory
	pairs    *ApprovalResolver
	notifier SubmissionNotifier
	log      logrus.FieldLogger
	now      func() time.Time
	newID    func() string
}

// NewApplicationService wires the intake service.  pairs issues the
// approval tokens stored with each application.
func NewApplicationService(reviews ReviewStore, apps ApplicationReader, coupons CouponGate, centres CentreDirectory,
	pairs *ApprovalResolver, notifier SubmissionNotifier, log logrus.FieldLogger) *ApplicationService {
	return &ApplicationService{
		reviews:  reviews,
		apps:     apps,
		coupons:  coupons,
		centres:  centres,
		pairs:    pairs,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (in *ApplicationInput) normalize() {
	trim := func(p *string) { *p = strings.TrimSpace(*p) }
	for _, p := range []*string{&in.FounderName, &in.StartupName, &in.Phone, &in.CompanyType,
		&in.TeamSize, &in.Source, &in.IncubationCentre, &in.IdeaDescription} {
		trim(p)
	}
	in.Email = NormalizeEmail(in.Email)
	in.CouponCode = NormalizeCode(in.CouponCode)

	exp := in.Expectations[:0:0]
	for _, e := range in.Expectations {
		if e = strings.TrimSpace(e); e != "" {
			exp = append(exp, e)
		}
	}
	in.Expectations = exp
}

// Validate checks the wizard fields.  It returns the first failing field.
// Call it on normalized input.
func (in ApplicationInput) Validate() error {
	return ValidateStruct(in, applicationMessages)
}

// Submit validates in, checks the coupon redemption and centre, and stores
// the application together with its approval pair.
func (s *ApplicationService) Submit(ctx context.Context, in ApplicationInput) (model.Application, model.ApprovalPair, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return model.Application{}, model.ApprovalPair{}, err
	}

	redeemed, err := s.coupons.HasUsageByCode(ctx, in.CouponCode, in.Email)
	if err != nil {
		return model.Application{}, model.ApprovalPair{}, storeErr("check coupon usage", err)
	}
	if !redeemed {
		return model.Application{}, model.ApprovalPair{}, ErrCouponNotRedeemed
	}

	centre, err := s.centres.GetByName(ctx, in.IncubationCentre)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Application{}, model.ApprovalPair{}, ErrUnknownCentre
	}
	if err != nil {
		return model.Application{}, model.ApprovalPair{}, storeErr("find centre", err)
	}

	app := model.Application{
		ID:               s.newID(),
		FounderName:      in.FounderName,
		StartupName:      in.StartupName,
		Email:            in.Email,
		Phone:            in.Phone,
		CompanyType:      in.CompanyType,
		TeamSize:         in.TeamSize,
		Source:           in.Source,
		CouponCode:       in.CouponCode,
		IncubationCentre: centre.Name,
		Website:          optional(in.Website),
		IdeaDescription:  in.IdeaDescription,
		Expectations:     in.Expectations,
		Challenges:       optional(in.Challenges),
		Status:           model.StatusPending,
		CreatedAt:        s.now().UTC(),
	}
	pair, tokens := s.pairs.NewPair(app.ID)

	err = s.reviews.WithReviewTx(ctx, func(tx repository.ReviewTx) error {
		if err := tx.InsertApplication(ctx, app); err != nil {
			return storeErr("insert application", err)
		}
		if err := tx.InsertTokens(ctx, tokens); err != nil {
			return storeErr("insert tokens", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrStore) {
			err = storeErr("commit", err)
		}
		s.log.WithError(err).Error("application submit failed")
		return model.Application{}, model.ApprovalPair{}, err
	}

	s.log.WithFields(logrus.Fields{"application_id": app.ID, "centre": centre.Name}).Info("application submitted")
	s.notifySubmitted(ctx, app, centre, pair)
	return app, pair, nil
}

func (s *ApplicationService) notifySubmitted(ctx context.Context, app model.Application, centre model.IncubationCentre, pair model.ApprovalPair) {
	if s.notifier == nil {
		return
	}
	website := ""
	if app.Website != nil {
		website = *app.Website
	}
	ev := queue.ApplicationSubmittedEvent{
		ApplicationID:    app.ID,
		FounderName:      app.FounderName,
		StartupName:      app.StartupName,
		Email:            app.Email,
		Phone:            app.Phone,
		CompanyType:      app.CompanyType,
		TeamSize:         app.TeamSize,
		Website:          website,
		IncubationCentre: centre.Name,
		CentreAdminEmail: centre.AdminEmail,
		IdeaDescription:  app.IdeaDescription,
		Expectations:     app.Expectations,
		ApproveToken:     pair.ApproveToken,
		RejectToken:      pair.RejectToken,
		ExpiresAt:        pair.ExpiresAt,
		SubmittedAt:      app.CreatedAt,
	}
	if err := s.notifier.ApplicationSubmitted(ctx, ev); err != nil {
		metrics.RecordNotificationFailure("application_submitted")
		s.log.WithError(err).WithField("application_id", app.ID).Warn("submission notification not published")
	}
}

// ResendApproval issues a fresh approval pair for a pending application and
// republishes the admin email.  Earlier links stop working.
func (s *ApplicationService) ResendApproval(ctx context.Context, id string) (model.ApprovalPair, error) {
	app, err := s.apps.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ApprovalPair{}, ErrApplicationNotFound
	}
	if err != nil {
		return model.ApprovalPair{}, storeErr("get application", err)
	}
	centre, err := s.centres.GetByName(ctx, app.IncubationCentre)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ApprovalPair{}, ErrUnknownCentre
	}
	if err != nil {
		return model.ApprovalPair{}, storeErr("find centre", err)
	}
	pair, err := s.pairs.IssuePair(ctx, id)
	if err != nil {
		return model.ApprovalPair{}, err
	}
	s.log.WithField("application_id", id).Info("approval links reissued")
	s.notifySubmitted(ctx, app, centre, pair)
	return pair, nil
}

// Status returns the review state of application id.
func (s *ApplicationService) Status(ctx context.Context, id string) (StatusView, error) {
	a, err := s.apps.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return StatusView{}, ErrApplicationNotFound
	}
	if err != nil {
		return StatusView{}, storeErr("get application", err)
	}
	return StatusView{ID: a.ID, Status: a.Status, CreatedAt: a.CreatedAt, ApprovedAt: a.ApprovedAt, RejectedAt: a.RejectedAt}, nil
}

// List returns the dashboard tab for status ("" or "all" for every
// application) together with the per-status counts.
func (s *ApplicationService) List(ctx context.Context, status string) ([]model.Application, model.StatusCounts, error) {
	filter := model.ApplicationStatus(strings.ToLower(strings.TrimSpace(status)))
	if filter == "all" {
		filter = ""
	}
	if filter != "" && !filter.Valid() {
		return nil, model.StatusCounts{}, invalid("status", "status must be one of all, pending, approved, rejected")
	}
	items, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, model.StatusCounts{}, storeErr("list applications", err)
	}
	counts, err := s.apps.CountByStatus(ctx)
	if err != nil {
		return nil, model.StatusCounts{}, storeErr("count applications", err)
	}
	return items, counts, nil
}
