package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamers/incubation-portal/internal/model"
)

type intakeFixture struct {
	svc      *ApplicationService
	reviews  *fakeReviewStore
	coupons  *fakeCouponStore
	notifier *fakeNotifier
}

func newIntake(t *testing.T) intakeFixture {
	t.Helper()
	reviews := newFakeReviewStore()
	coupons := newFakeCouponStore(coupon("c1", "DREAM", 10))
	coupons.usages = append(coupons.usages, model.CouponUsage{ID: "u1", CouponCodeID: "c1", UsedByEmail: "asha@rocket.io"})
	n := &fakeNotifier{}
	centres := fakeCentres{"North Hub": {ID: "n1", Name: "North Hub", AdminEmail: "admin@north.test"}}

	resolver := newResolver(reviews, n)
	svc := NewApplicationService(reviews, &fakeAppReader{store: reviews}, coupons, centres, resolver, n, quietLogger())
	svc.now = fixedClock(resolveNow)
	ids := 0
	svc.newID = func() string { ids++; return "app-" + string(rune('0'+ids)) }
	return intakeFixture{svc: svc, reviews: reviews, coupons: coupons, notifier: n}
}

func validInput() ApplicationInput {
	return ApplicationInput{
		FounderName:      "Asha",
		StartupName:      "Rocket",
		Email:            " Asha@Rocket.io ",
		Phone:            "+1 555 0100",
		CompanyType:      "Private Limited",
		TeamSize:         "2-5",
		Source:           "Friend",
		CouponCode:       "dream",
		IncubationCentre: "North Hub",
		IdeaDescription:  strings.Repeat("A reusable launch platform. ", 3),
		Expectations:     []string{"Mentorship", " ", "Funding"},
		Website:          "https://rocket.io",
	}
}

func TestSubmitStoresApplicationWithPair(t *testing.T) {
	f := newIntake(t)

	app, pair, err := f.svc.Submit(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "app-1", app.ID)
	assert.Equal(t, "asha@rocket.io", app.Email)
	assert.Equal(t, "DREAM", app.CouponCode)
	assert.Equal(t, model.StatusPending, app.Status)
	assert.Equal(t, []string{"Mentorship", "Funding"}, app.Expectations)
	require.NotNil(t, app.Website)
	assert.Nil(t, app.Challenges)

	assert.Equal(t, model.StatusPending, f.reviews.app("app-1").Status)
	toks := f.reviews.tokensFor("app-1")
	require.Len(t, toks, 2)
	assert.Equal(t, model.ActionApprove, toks[0].Action)
	assert.Equal(t, model.ActionReject, toks[1].Action)
	assert.Equal(t, resolveNow.Add(weekTTL), pair.ExpiresAt)

	require.Len(t, f.notifier.submitted, 1)
	ev := f.notifier.submitted[0]
	assert.Equal(t, "admin@north.test", ev.CentreAdminEmail)
	assert.Equal(t, pair.ApproveToken, ev.ApproveToken)
	assert.Equal(t, pair.RejectToken, ev.RejectToken)
	assert.Equal(t, "https://rocket.io", ev.Website)
}

func TestSubmitValidation(t *testing.T) {
	cases := []struct {
		name  string
		mod   func(*ApplicationInput)
		field string
	}{
		{"missing founder", func(in *ApplicationInput) { in.FounderName = "  " }, "founder_name"},
		{"missing centre", func(in *ApplicationInput) { in.IncubationCentre = "" }, "incubation_centre"},
		{"bad email", func(in *ApplicationInput) { in.Email = "asha@rocket" }, "email"},
		{"short idea", func(in *ApplicationInput) { in.IdeaDescription = strings.Repeat("x", MinIdeaLength-1) }, "idea_description"},
		{"no expectations", func(in *ApplicationInput) { in.Expectations = []string{"", " "} }, "expectations"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newIntake(t)
			in := validInput()
			tc.mod(&in)

			_, _, err := f.svc.Submit(context.Background(), in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.Equal(t, 0, f.reviews.calls, "nothing stored")
		})
	}
}

func TestSubmitIdeaLengthBoundary(t *testing.T) {
	f := newIntake(t)
	in := validInput()
	in.IdeaDescription = strings.Repeat("é", MinIdeaLength)
	_, _, err := f.svc.Submit(context.Background(), in)
	assert.NoError(t, err)
}

func TestSubmitRequiresRedeemedCoupon(t *testing.T) {
	f := newIntake(t)
	in := validInput()
	in.Email = "someone@else.io"

	_, _, err := f.svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrCouponNotRedeemed)
	assert.Empty(t, f.notifier.submitted)
}

func TestSubmitUnknownCentre(t *testing.T) {
	f := newIntake(t)
	in := validInput()
	in.IncubationCentre = "Atlantis"

	_, _, err := f.svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrUnknownCentre)
}

func TestSubmitStoreFailureRollsBack(t *testing.T) {
	f := newIntake(t)
	f.reviews.insertErr = errors.New("disk full")

	_, _, err := f.svc.Submit(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrStore)
	assert.Empty(t, f.reviews.tokensFor("app-1"))
	assert.Empty(t, f.notifier.submitted)
}

func TestSubmitNotificationFailureStillSucceeds(t *testing.T) {
	f := newIntake(t)
	f.notifier.err = errors.New("broker down")

	app, _, err := f.svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, f.reviews.app(app.ID).Status)
}

func TestStatusPolling(t *testing.T) {
	f := newIntake(t)
	ctx := context.Background()
	app, pair, err := f.svc.Submit(ctx, validInput())
	require.NoError(t, err)

	st, err := f.svc.Status(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, st.Status)

	_, err = f.svc.pairs.Resolve(ctx, pair.ApproveToken)
	require.NoError(t, err)

	st, err = f.svc.Status(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, st.Status)
	require.NotNil(t, st.ApprovedAt)
	assert.Equal(t, resolveNow, st.ApprovedAt.UTC())

	_, err = f.svc.Status(ctx, "nope")
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestListWithCounts(t *testing.T) {
	f := newIntake(t)
	ctx := context.Background()
	f.reviews.addPending("p1", resolveNow)
	f.reviews.addPending("p2", resolveNow.Add(time.Minute))
	_, err := f.svc.pairs.Decide(ctx, "p2", model.StatusRejected, nil)
	require.NoError(t, err)

	items, counts, err := f.svc.List(ctx, "all")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, model.StatusCounts{All: 2, Pending: 1, Rejected: 1}, counts)

	items, _, err = f.svc.List(ctx, "Rejected")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ID)

	_, _, err = f.svc.List(ctx, "archived")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestResendApproval(t *testing.T) {
	f := newIntake(t)
	ctx := context.Background()
	app, first, err := f.svc.Submit(ctx, validInput())
	require.NoError(t, err)

	second, err := f.svc.ResendApproval(ctx, app.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ApproveToken, second.ApproveToken)
	require.Len(t, f.notifier.submitted, 2)
	assert.Equal(t, second.RejectToken, f.notifier.submitted[1].RejectToken)

	_, err = f.svc.pairs.Resolve(ctx, first.ApproveToken)
	assert.ErrorIs(t, err, ErrInvalidOrUsed)

	_, err = f.svc.ResendApproval(ctx, "missing")
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}
