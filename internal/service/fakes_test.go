package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamers/incubation-portal/internal/model"
	"github.com/dreamers/incubation-portal/internal/queue"
	"github.com/dreamers/incubation-portal/internal/repository"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// fakeCouponStore keeps coupons and usages in memory.  txMu is held for the
// whole of WithTx, standing in for the coupon row lock.
type fakeCouponStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	coupons map[string]model.CouponCode
	usages  []model.CouponUsage

	findErr   error
	insertErr error
}

func newFakeCouponStore(coupons ...model.CouponCode) *fakeCouponStore {
	f := &fakeCouponStore{coupons: map[string]model.CouponCode{}}
	for _, c := range coupons {
		f.coupons[c.ID] = c
	}
	return f
}

func (f *fakeCouponStore) FindByCode(_ context.Context, code string) (model.CouponCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return model.CouponCode{}, f.findErr
	}
	for _, c := range f.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return model.CouponCode{}, repository.ErrNotFound
}

func (f *fakeCouponStore) CountUsages(_ context.Context, couponID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countLocked(couponID, nil), nil
}

func (f *fakeCouponStore) countLocked(couponID string, extra []model.CouponUsage) int {
	n := 0
	for _, u := range append(append([]model.CouponUsage{}, f.usages...), extra...) {
		if u.CouponCodeID == couponID {
			n++
		}
	}
	return n
}

func (f *fakeCouponStore) HasUsageByCode(_ context.Context, code, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.usages {
		if f.coupons[u.CouponCodeID].Code == code && u.UsedByEmail == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCouponStore) WithTx(_ context.Context, fn func(repository.CouponTx) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	tx := &fakeCouponTx{f: f}
	if err := fn(tx); err != nil {
		return err
	}
	f.mu.Lock()
	f.usages = append(f.usages, tx.staged...)
	f.mu.Unlock()
	return nil
}

func (f *fakeCouponStore) usageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.usages)
}

type fakeCouponTx struct {
	f      *fakeCouponStore
	staged []model.CouponUsage
}

func (t *fakeCouponTx) LockCoupon(_ context.Context, id string) (model.CouponCode, error) {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	c, ok := t.f.coupons[id]
	if !ok {
		return model.CouponCode{}, repository.ErrNotFound
	}
	return c, nil
}

func (t *fakeCouponTx) HasUsage(_ context.Context, id, email string) (bool, error) {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	for _, u := range append(append([]model.CouponUsage{}, t.f.usages...), t.staged...) {
		if u.CouponCodeID == id && u.UsedByEmail == email {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeCouponTx) CountUsages(_ context.Context, id string) (int, error) {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	return t.f.countLocked(id, t.staged), nil
}

func (t *fakeCouponTx) InsertUsage(_ context.Context, u model.CouponUsage) error {
	if t.f.insertErr != nil {
		return t.f.insertErr
	}
	t.staged = append(t.staged, u)
	return nil
}

// appRow is the fake's view of one application.
type appRow struct {
	app    model.Application
	notes  *string
	tokens []string
}

// fakeReviewStore runs each transaction against a copy of its state and
// swaps the copy in on success.
type fakeReviewStore struct {
	mu     sync.Mutex
	apps   map[string]appRow
	tokens map[string]model.ApprovalToken

	transitionErr error
	commitErr     error
	insertErr     error
	calls         int
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{apps: map[string]appRow{}, tokens: map[string]model.ApprovalToken{}}
}

func (f *fakeReviewStore) addPending(id string, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[id] = appRow{app: model.Application{
		ID: id, FounderName: "Founder " + id, StartupName: "Startup " + id,
		Email: id + "@founder.test", IncubationCentre: "North Hub",
		Status: model.StatusPending, CreatedAt: now,
	}}
}

func (f *fakeReviewStore) addToken(tk model.ApprovalToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[tk.Token] = tk
}

func (f *fakeReviewStore) app(id string) model.Application {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apps[id].app
}

func (f *fakeReviewStore) notes(id string) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apps[id].notes
}

func (f *fakeReviewStore) token(tok string) model.ApprovalToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[tok]
}

func (f *fakeReviewStore) tokensFor(appID string) []model.ApprovalToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ApprovalToken
	for _, tk := range f.tokens {
		if tk.ApplicationID == appID {
			out = append(out, tk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

func (f *fakeReviewStore) WithReviewTx(_ context.Context, fn func(repository.ReviewTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	tx := &fakeReviewTx{f: f, apps: map[string]appRow{}, tokens: map[string]model.ApprovalToken{}}
	for k, v := range f.apps {
		tx.apps[k] = v
	}
	for k, v := range f.tokens {
		tx.tokens[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	if f.commitErr != nil {
		return f.commitErr
	}
	f.apps, f.tokens = tx.apps, tx.tokens
	return nil
}

type fakeReviewTx struct {
	f      *fakeReviewStore
	apps   map[string]appRow
	tokens map[string]model.ApprovalToken
}

func (t *fakeReviewTx) InsertApplication(_ context.Context, a model.Application) error {
	if t.f.insertErr != nil {
		return t.f.insertErr
	}
	if _, ok := t.apps[a.ID]; ok {
		return repository.ErrDuplicate
	}
	t.apps[a.ID] = appRow{app: a}
	return nil
}

func (t *fakeReviewTx) InsertTokens(_ context.Context, tokens []model.ApprovalToken) error {
	for _, tk := range tokens {
		if _, ok := t.tokens[tk.Token]; ok {
			return repository.ErrDuplicate
		}
		t.tokens[tk.Token] = tk
	}
	return nil
}

func (t *fakeReviewTx) LockActiveToken(_ context.Context, token string) (model.ApprovalToken, error) {
	tk, ok := t.tokens[token]
	if !ok || tk.Used {
		return model.ApprovalToken{}, repository.ErrNotFound
	}
	return tk, nil
}

func (t *fakeReviewTx) TransitionApplication(_ context.Context, appID string, to model.ApplicationStatus, at time.Time, notes *string) error {
	if t.f.transitionErr != nil {
		return t.f.transitionErr
	}
	row, ok := t.apps[appID]
	if !ok {
		return repository.ErrNotFound
	}
	if row.app.Status != model.StatusPending {
		return repository.ErrConflict
	}
	row.app.Status = to
	stamp := at
	if to == model.StatusApproved {
		row.app.ApprovedAt = &stamp
	} else {
		row.app.RejectedAt = &stamp
	}
	if notes != nil {
		row.notes = notes
	}
	t.apps[appID] = row
	return nil
}

func (t *fakeReviewTx) ConsumeTokens(_ context.Context, appID string) (int64, error) {
	var n int64
	for k, tk := range t.tokens {
		if tk.ApplicationID == appID && !tk.Used {
			tk.Used = true
			t.tokens[k] = tk
			n++
		}
	}
	return n, nil
}

func (t *fakeReviewTx) ApplicantSummary(_ context.Context, appID string) (model.ApplicantSummary, error) {
	row, ok := t.apps[appID]
	if !ok {
		return model.ApplicantSummary{}, repository.ErrNotFound
	}
	a := row.app
	return model.ApplicantSummary{ID: a.ID, FounderName: a.FounderName, StartupName: a.StartupName,
		IncubationCentre: a.IncubationCentre, Email: a.Email}, nil
}

func (t *fakeReviewTx) LockApplication(_ context.Context, appID string) (model.ApplicationStatus, error) {
	row, ok := t.apps[appID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return row.app.Status, nil
}

// fakeNotifier records events and optionally fails.
type fakeNotifier struct {
	mu        sync.Mutex
	err       error
	submitted []queue.ApplicationSubmittedEvent
	changed   []queue.StatusChangedEvent
}

func (n *fakeNotifier) ApplicationSubmitted(_ context.Context, ev queue.ApplicationSubmittedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, ev)
	return n.err
}

func (n *fakeNotifier) StatusChanged(_ context.Context, ev queue.StatusChangedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, ev)
	return n.err
}

// fakeAppReader serves reads from a fakeReviewStore.
type fakeAppReader struct {
	store *fakeReviewStore
	err   error
}

func (r *fakeAppReader) GetByID(_ context.Context, id string) (model.Application, error) {
	if r.err != nil {
		return model.Application{}, r.err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.apps[id]
	if !ok {
		return model.Application{}, repository.ErrNotFound
	}
	return row.app, nil
}

func (r *fakeAppReader) List(_ context.Context, status model.ApplicationStatus) ([]model.Application, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []model.Application{}
	for _, row := range r.store.apps {
		if status == "" || row.app.Status == status {
			out = append(out, row.app)
		}
	}
	return out, nil
}

func (r *fakeAppReader) CountByStatus(_ context.Context) (model.StatusCounts, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var c model.StatusCounts
	for _, row := range r.store.apps {
		c.All++
		switch row.app.Status {
		case model.StatusPending:
			c.Pending++
		case model.StatusApproved:
			c.Approved++
		case model.StatusRejected:
			c.Rejected++
		}
	}
	return c, nil
}

type fakeCentres map[string]model.IncubationCentre

func (f fakeCentres) GetByName(_ context.Context, name string) (model.IncubationCentre, error) {
	c, ok := f[name]
	if !ok {
		return model.IncubationCentre{}, repository.ErrNotFound
	}
	return c, nil
}
