package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dreamers/incubation-portal/internal/model"
)

const applicationColumns = `id, founder_name, startup_name, email, phone, company_type, team_size,
	source, coupon_code, incubation_centre, website, idea_description, expectations,
	challenges, admin_notes, status, created_at, approved_at, rejected_at`

// ReviewTx groups the application and approval-token writes that must be
// atomic: submitting an application with its token pair, and moving an
// application out of pending while consuming its tokens.
type ReviewTx interface {
	InsertApplication(ctx context.Context, a model.Application) error
	InsertTokens(ctx context.Context, tokens []model.ApprovalToken) error
	LockActiveToken(ctx context.Context, token string) (model.ApprovalToken, error)
	TransitionApplication(ctx context.Context, appID string, to model.ApplicationStatus, at time.Time, notes *string) error
	ConsumeTokens(ctx context.Context, appID string) (int64, error)
	ApplicantSummary(ctx context.Context, appID string) (model.ApplicantSummary, error)
	LockApplication(ctx context.Context, appID string) (model.ApplicationStatus, error)
}

// ApplicationRepo provides data access to applications and, through
// ReviewTx, to their approval tokens.
type ApplicationRepo struct {
	db *sql.DB
}

// NewApplicationRepo returns an ApplicationRepo bound to db.
func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

func scanApplication(row rowScanner) (model.Application, error) {
	var (
		a                      model.Application
		website, challenges    sql.NullString
		notes                  sql.NullString
		expectations           []byte
		status                 string
		approvedAt, rejectedAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.FounderName, &a.StartupName, &a.Email, &a.Phone, &a.CompanyType,
		&a.TeamSize, &a.Source, &a.CouponCode, &a.IncubationCentre, &website, &a.IdeaDescription,
		&expectations, &challenges, &notes, &status, &a.CreatedAt, &approvedAt, &rejectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Application{}, ErrNotFound
	}
	if err != nil {
		return model.Application{}, err
	}
	if len(expectations) > 0 {
		if err := json.Unmarshal(expectations, &a.Expectations); err != nil {
			return model.Application{}, fmt.Errorf("decode expectations: %w", err)
		}
	}
	if a.Expectations == nil {
		a.Expectations = []string{}
	}
	a.Status = model.ApplicationStatus(status)
	a.Website = nullStringPtr(website)
	a.Challenges = nullStringPtr(challenges)
	a.AdminNotes = nullStringPtr(notes)
	a.ApprovedAt = nullTimePtr(approvedAt)
	a.RejectedAt = nullTimePtr(rejectedAt)
	return a, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// GetByID returns the full application record.
func (r *ApplicationRepo) GetByID(ctx context.Context, id string) (model.Application, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE id = ? LIMIT 1", id)
	return scanApplication(row)
}

// Status returns just the review status, used by applicant polling.
func (r *ApplicationRepo) Status(ctx context.Context, id string) (model.ApplicationStatus, error) {
	var s string
	err := r.db.QueryRowContext(ctx, "SELECT status FROM applications WHERE id = ?", id).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return model.ApplicationStatus(s), err
}

// List returns applications newest first.  An empty status lists all.
func (r *ApplicationRepo) List(ctx context.Context, status model.ApplicationStatus) ([]model.Application, error) {
	q := "SELECT " + applicationColumns + " FROM applications"
	var args []any
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, string(status))
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByStatus returns the per-tab totals for the dashboard.
func (r *ApplicationRepo) CountByStatus(ctx context.Context) (model.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM applications GROUP BY status")
	if err != nil {
		return model.StatusCounts{}, err
	}
	defer rows.Close()

	var c model.StatusCounts
	for rows.Next() {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return model.StatusCounts{}, err
		}
		switch model.ApplicationStatus(s) {
		case model.StatusPending:
			c.Pending = n
		case model.StatusApproved:
			c.Approved = n
		case model.StatusRejected:
			c.Rejected = n
		}
		c.All += n
	}
	return c, rows.Err()
}

// WithReviewTx runs fn in a read-committed transaction exposing ReviewTx.
func (r *ApplicationRepo) WithReviewTx(ctx context.Context, fn func(ReviewTx) error) error {
	return withTx(ctx, r.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
		return fn(&reviewTx{tx: tx})
	})
}

type reviewTx struct {
	tx *sql.Tx
}

func (t *reviewTx) InsertApplication(ctx context.Context, a model.Application) error {
	exp := a.Expectations
	if exp == nil {
		exp = []string{}
	}
	expJSON, err := json.Marshal(exp)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO applications (id, founder_name, startup_name, email, phone, company_type,
			team_size, source, coupon_code, incubation_centre, website, idea_description,
			expectations, challenges, status, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.FounderName, a.StartupName, a.Email, a.Phone, a.CompanyType, a.TeamSize,
		a.Source, a.CouponCode, a.IncubationCentre, a.Website, a.IdeaDescription,
		string(expJSON), a.Challenges, string(a.Status), a.CreatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// InsertTokens inserts all tokens with a single multi-row statement.
func (t *reviewTx) InsertTokens(ctx context.Context, tokens []model.ApprovalToken) error {
	if len(tokens) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO approval_tokens (id, application_id, token, action, used, expires_at, created_at) VALUES ")
	args := make([]any, 0, len(tokens)*7)
	for i, tk := range tokens {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?,?,?,?)")
		args = append(args, tk.ID, tk.ApplicationID, tk.Token, string(tk.Action), tk.Used, tk.ExpiresAt, tk.CreatedAt)
	}
	_, err := t.tx.ExecContext(ctx, sb.String(), args...)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// LockActiveToken locks the unused token row matching token.  A token that
// does not exist or was already used yields ErrNotFound.
func (t *reviewTx) LockActiveToken(ctx context.Context, token string) (model.ApprovalToken, error) {
	var (
		tk     model.ApprovalToken
		action string
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, application_id, token, action, used, expires_at, created_at
		   FROM approval_tokens WHERE token = ? AND used = 0 FOR UPDATE`, token).
		Scan(&tk.ID, &tk.ApplicationID, &tk.Token, &action, &tk.Used, &tk.ExpiresAt, &tk.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ApprovalToken{}, ErrNotFound
	}
	if err != nil {
		return model.ApprovalToken{}, err
	}
	tk.Action = model.ApprovalAction(action)
	return tk, nil
}

// TransitionApplication moves a pending application to a terminal status and
// stamps the matching decision time.  Notes, when non-nil, replace the admin
// notes.  ErrNotFound means no such application; ErrConflict means it has
// already left pending.
func (t *reviewTx) TransitionApplication(ctx context.Context, appID string, to model.ApplicationStatus, at time.Time, notes *string) error {
	var stampCol string
	switch to {
	case model.StatusApproved:
		stampCol = "approved_at"
	case model.StatusRejected:
		stampCol = "rejected_at"
	default:
		return fmt.Errorf("transition to %q: %w", to, ErrConflict)
	}
	res, err := t.tx.ExecContext(ctx,
		"UPDATE applications SET status = ?, "+stampCol+" = ?, admin_notes = COALESCE(?, admin_notes) WHERE id = ? AND status = 'pending'",
		string(to), at, notes, appID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM applications WHERE id = ?", appID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// ConsumeTokens marks every unused token of the application as used and
// returns how many rows changed.
func (t *reviewTx) ConsumeTokens(ctx context.Context, appID string) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE approval_tokens SET used = 1 WHERE application_id = ? AND used = 0", appID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *reviewTx) ApplicantSummary(ctx context.Context, appID string) (model.ApplicantSummary, error) {
	var s model.ApplicantSummary
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, founder_name, startup_name, incubation_centre, email FROM applications WHERE id = ?", appID).
		Scan(&s.ID, &s.FounderName, &s.StartupName, &s.IncubationCentre, &s.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ApplicantSummary{}, ErrNotFound
	}
	return s, err
}

// LockApplication locks the application row and returns its status.
func (t *reviewTx) LockApplication(ctx context.Context, appID string) (model.ApplicationStatus, error) {
	var s string
	err := t.tx.QueryRowContext(ctx, "SELECT status FROM applications WHERE id = ? FOR UPDATE", appID).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return model.ApplicationStatus(s), err
}
