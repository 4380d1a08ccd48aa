package handler

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dreamers/incubation-portal/internal/model"
	"github.com/dreamers/incubation-portal/internal/service"
)

//go:embed templates/approval.html
var pageFS embed.FS

var approvalPage = template.Must(template.ParseFS(pageFS, "templates/approval.html"))

// ApprovalHandler resolves the approve/reject links emailed to centre admins.
type ApprovalHandler struct {
	Resolver *service.ApprovalResolver
}

func NewApprovalHandler(r *service.ApprovalResolver) *ApprovalHandler {
	return &ApprovalHandler{Resolver: r}
}

type approvalResp struct {
	Status      string                  `json:"status"`
	Error       string                  `json:"error,omitempty"`
	Message     string                  `json:"message"`
	Action      model.ApprovalAction    `json:"action,omitempty"`
	Application *model.ApplicantSummary `json:"application,omitempty"`
}

type pageData struct {
	Title       string
	Message     string
	Success     bool
	Approved    bool
	Application model.ApplicantSummary
}

// pageTitles are the headings of the refusal pages.
var pageTitles = map[string]string{
	"invalid_or_used": "Invalid or Expired Link",
	"token_expired":   "Link Expired",
	"update_failed":   "Error Processing Request",
}

// Resolve handles GET /approval?token=.  Browsers get an HTML page, API
// clients get JSON.
func (h *ApprovalHandler) Resolve(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Resolver.Resolve(ctx, token)
	if err != nil {
		k := classify(err)
		if k.status >= http.StatusInternalServerError {
			logError(c, err)
		}
		if k.kind == "token_expired" {
			k.message = fmt.Sprintf("This approval link has expired (valid for %s).", validFor(h.Resolver.TTL()))
		}
		if wantsHTML(c) {
			title, ok := pageTitles[k.kind]
			if !ok {
				title = "Internal Server Error"
			}
			return renderPage(c, k.status, pageData{Title: title, Message: k.message})
		}
		return c.JSON(k.status, approvalResp{Status: "error", Error: k.kind, Message: k.message})
	}

	approved := res.Status == model.StatusApproved
	word := "rejected"
	if approved {
		word = "approved"
	}
	msg := "The application has been successfully " + word + "."
	if wantsHTML(c) {
		return renderPage(c, http.StatusOK, pageData{
			Title:       "Application " + strings.ToUpper(word),
			Message:     msg,
			Success:     true,
			Approved:    approved,
			Application: res.Application,
		})
	}
	return c.JSON(http.StatusOK, approvalResp{
		Status:      "success",
		Message:     msg,
		Action:      res.Action,
		Application: &res.Application,
	})
}

// validFor renders a link lifetime in whole days or hours when it divides
// evenly.
func validFor(ttl time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case ttl >= 24*time.Hour && ttl%(24*time.Hour) == 0:
		return plural(int64(ttl/(24*time.Hour)), "day")
	case ttl >= time.Hour && ttl%time.Hour == 0:
		return plural(int64(ttl/time.Hour), "hour")
	default:
		return ttl.String()
	}
}

func wantsHTML(c echo.Context) bool {
	if strings.EqualFold(c.QueryParam("format"), "html") {
		return true
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

func renderPage(c echo.Context, status int, d pageData) error {
	var buf bytes.Buffer
	if err := approvalPage.Execute(&buf, d); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}
