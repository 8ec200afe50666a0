package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"

	"visitagent/internal/auth"
	"visitagent/internal/models"

	"go.uber.org/zap"
)

// Client is the typed client for the CRM backend. Every response uses the
// `{meta:{code,status,message}, data}` envelope; business-rule blocks arrive
// as meta.code 400 even inside an HTTP 200.
type Client struct {
	base    string
	session *auth.Session
	client  *http.Client
	logr    *zap.Logger
}

func NewClient(baseURL string, session *auth.Session, timeout time.Duration, logr *zap.Logger) *Client {
	return &Client{
		base:    baseURL,
		session: session,
		client:  &http.Client{Timeout: timeout},
		logr:    logr,
	}
}

// SearchOutlets runs the ad-hoc outlet search.
func (c *Client) SearchOutlets(ctx context.Context, search string, perPage int) ([]models.VisitTarget, error) {
	q := url.Values{}
	q.Set("search", search)
	q.Set("per_page", fmt.Sprintf("%d", perPage))

	env, err := c.get(ctx, "/outlet?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var rows []models.OutletRow
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("decode outlet rows: %w", err)
	}

	targets := make([]models.VisitTarget, 0, len(rows))
	for _, r := range rows {
		targets = append(targets, models.VisitTarget{
			ID:               r.ID,
			Code:             r.Code,
			Name:             r.Name,
			District:         r.District,
			CoordinateString: r.Location,
			RadiusMeters:     r.Radius,
		})
	}
	return targets, nil
}

// PlanVisits returns the visits planned for one calendar date, in server
// order. The client never resorts the list.
func (c *Client) PlanVisits(ctx context.Context, date time.Time) ([]models.VisitTarget, error) {
	q := url.Values{}
	q.Set("filters[date]", date.Format("2006-01-02"))

	env, err := c.get(ctx, "/planvisit?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var rows []models.PlanVisitRow
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("decode plan visit rows: %w", err)
	}

	targets := make([]models.VisitTarget, 0, len(rows))
	for _, r := range rows {
		t := models.VisitTarget{
			ID:               r.Outlet.ID,
			Code:             r.Outlet.Code,
			Name:             r.Outlet.Name,
			District:         r.Outlet.District,
			CoordinateString: r.Outlet.Location,
			RadiusMeters:     r.Outlet.Radius,
			ScheduledVisitID: r.ID,
		}
		if d, err := time.Parse("2006-01-02", r.VisitDate); err == nil {
			t.ScheduledDate = &d
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// VisitCheck is the check-in pre-flight. A meta.code 400 means a business
// block (already checked in, etc.) and the server message must reach the
// user verbatim.
func (c *Client) VisitCheck(ctx context.Context, outletCode string) error {
	q := url.Values{}
	q.Set("outlet_code", outletCode)
	_, err := c.get(ctx, "/visit/check?"+q.Encode())
	return err
}

// CheckIn submits the multipart check-in. The photo field name follows the
// backend contract: checkin-<epochMillis>.jpg.
func (c *Client) CheckIn(ctx context.Context, in models.CheckIn) (*models.Visit, error) {
	if c.session.Expired(time.Now()) {
		return nil, models.ErrSessionExpired
	}

	fields := map[string]string{
		"outlet_id":        in.OutletID,
		"checkin_location": in.Location,
		"type":             string(in.Type),
	}
	if in.PlanVisitID != "" {
		fields["plan_visit_id"] = in.PlanVisitID
	}

	env, err := c.multipart(ctx, http.MethodPost, "/visit", fields, "checkin_photo", in.PhotoName, in.PhotoPath)
	if err != nil {
		return nil, err
	}
	return decodeVisit(env)
}

// CheckOut submits the multipart check-out for an open visit.
func (c *Client) CheckOut(ctx context.Context, out models.CheckOut) (*models.Visit, error) {
	if c.session.Expired(time.Now()) {
		return nil, models.ErrSessionExpired
	}

	fields := map[string]string{
		"checkout_location": out.Location,
		"report":            out.Report,
		"transaction":       string(out.Transaction),
	}

	env, err := c.multipart(ctx, http.MethodPut, "/visit/"+url.PathEscape(out.VisitID), fields, "checkout_photo", out.PhotoName, out.PhotoPath)
	if err != nil {
		return nil, err
	}
	return decodeVisit(env)
}

func decodeVisit(env *models.Envelope) (*models.Visit, error) {
	var v models.Visit
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("decode visit: %w", err)
		}
	}
	return &v, nil
}

func (c *Client) get(ctx context.Context, path string) (*models.Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// multipart streams the photo file plus form fields and sends the request.
func (c *Client) multipart(ctx context.Context, method, path string, fields map[string]string, photoField, photoName, photoPath string) (*models.Envelope, error) {
	f, err := os.Open(photoPath)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := w.CreateFormFile(photoField, photoName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req)
}

// do sends the request and folds transport and envelope failures into the
// workflow error taxonomy.
func (c *Client) do(req *http.Request) (*models.Envelope, error) {
	req.Header.Set("Authorization", "Bearer "+c.session.Bearer())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts, DNS, refused connections: all user-visible as a
		// connectivity problem, never retried silently.
		return nil, &models.NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.NetworkError{Cause: err}
	}

	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Meta.Code == 0 {
		if resp.StatusCode >= 400 {
			return nil, &models.ServerError{Code: resp.StatusCode}
		}
		return nil, fmt.Errorf("malformed response envelope: %w", err)
	}

	if !env.Meta.OK() {
		c.logr.Warn("backend rejected request",
			zap.String("path", req.URL.Path),
			zap.Int("code", env.Meta.Code),
			zap.String("message", env.Meta.Message))
		return nil, &models.ServerError{Code: env.Meta.Code, Message: env.Meta.Message}
	}

	return &env, nil
}
