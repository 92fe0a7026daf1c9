package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/relaycrm/sync-api/internal/config"
)

type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	maxRetries   int
	httpClient   *http.Client
}

func NewClient(cfg config.PartnerConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		maxRetries:   cfg.MaxRetries,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (TokenGrant, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenGrant{}, errors.Wrap(err, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenGrant{}, errors.Wrap(err, "token request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		// 400/401 with invalid_grant means the refresh token is revoked,
		// not a transient outage.
		if (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized) &&
			strings.Contains(string(body), "invalid_grant") {
			return TokenGrant{}, &InvalidGrantError{Body: string(body)}
		}
		return TokenGrant{}, c.apiError(resp, body)
	}

	var grant TokenGrant
	if err := json.Unmarshal(body, &grant); err != nil {
		return TokenGrant{}, errors.Wrap(err, "failed to decode token response")
	}
	return grant, nil
}

func (c *Client) GetObject(ctx context.Context, token, objectType, id string, properties []string) (*Object, error) {
	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s/%s?properties=%s",
		c.baseURL, url.PathEscape(objectType), url.PathEscape(id), url.QueryEscape(strings.Join(properties, ",")))

	var obj wireObject
	if err := c.doJSON(ctx, http.MethodGet, endpoint, token, nil, &obj); err != nil {
		return nil, err
	}
	return obj.toObject(), nil
}

func (c *Client) SearchObjects(ctx context.Context, token, objectType, property, value string, properties []string) (*Object, error) {
	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s/search", c.baseURL, url.PathEscape(objectType))
	payload := map[string]interface{}{
		"filterGroups": []map[string]interface{}{
			{"filters": []map[string]string{
				{"propertyName": property, "operator": "EQ", "value": value},
			}},
		},
		"properties": properties,
		"limit":      1,
	}

	var result struct {
		Results []wireObject `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, token, payload, &result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, nil
	}
	return result.Results[0].toObject(), nil
}

func (c *Client) CreateObject(ctx context.Context, token, objectType string, properties map[string]string) (*Object, error) {
	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s", c.baseURL, url.PathEscape(objectType))
	payload := map[string]interface{}{"properties": properties}

	var obj wireObject
	if err := c.doJSON(ctx, http.MethodPost, endpoint, token, payload, &obj); err != nil {
		return nil, err
	}
	return obj.toObject(), nil
}

func (c *Client) UpdateObject(ctx context.Context, token, objectType, id string, properties map[string]string) error {
	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s/%s", c.baseURL, url.PathEscape(objectType), url.PathEscape(id))
	payload := map[string]interface{}{"properties": properties}
	return c.doJSON(ctx, http.MethodPatch, endpoint, token, payload, nil)
}

func (c *Client) Associate(ctx context.Context, token, fromType, fromID, toType, toID string) error {
	endpoint := fmt.Sprintf("%s/crm/v4/objects/%s/%s/associations/default/%s/%s",
		c.baseURL, url.PathEscape(fromType), url.PathEscape(fromID), url.PathEscape(toType), url.PathEscape(toID))
	return c.doJSON(ctx, http.MethodPut, endpoint, token, nil, nil)
}

func (c *Client) ListProperties(ctx context.Context, token, objectType string) ([]PropertyDef, error) {
	endpoint := fmt.Sprintf("%s/crm/v3/properties/%s", c.baseURL, url.PathEscape(objectType))
	var result struct {
		Results []PropertyDef `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, token, nil, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

func (c *Client) CreateProperty(ctx context.Context, token, objectType string, def PropertyDef) error {
	endpoint := fmt.Sprintf("%s/crm/v3/properties/%s", c.baseURL, url.PathEscape(objectType))
	return c.doJSON(ctx, http.MethodPost, endpoint, token, def, nil)
}

func (c *Client) ListFormSubmissions(ctx context.Context, token, formID string, after time.Time) ([]FormSubmission, error) {
	endpoint := fmt.Sprintf("%s/form-integrations/v1/submissions/forms/%s", c.baseURL, url.PathEscape(formID))
	if !after.IsZero() {
		endpoint += "?submittedAfter=" + strconv.FormatInt(after.UnixMilli(), 10)
	}
	var result struct {
		Results []wireSubmission `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, token, nil, &result); err != nil {
		return nil, err
	}
	return toSubmissions(result.Results), nil
}

// ListFormSubmissionsLegacy hits the older submissions endpoint; callers fall
// back to it when the primary shape fails.
func (c *Client) ListFormSubmissionsLegacy(ctx context.Context, token, formID string, after time.Time) ([]FormSubmission, error) {
	endpoint := fmt.Sprintf("%s/forms/v2/submissions/%s", c.baseURL, url.PathEscape(formID))
	if !after.IsZero() {
		endpoint += "?after=" + strconv.FormatInt(after.UnixMilli(), 10)
	}
	var result struct {
		Submissions []wireSubmission `json:"submissions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, token, nil, &result); err != nil {
		return nil, err
	}
	return toSubmissions(result.Submissions), nil
}

// doJSON performs one authorized call, retrying partner-side failures. Rate
// limits are not retried here; the Retry-After hint is surfaced so the job
// can be rescheduled instead of hammering the API.
func (c *Client) doJSON(ctx context.Context, method, endpoint, token string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request payload")
		}
	}

	var lastErr error
	attempts := c.maxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return errors.Wrap(err, "failed to build request")
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = errors.Wrapf(err, "%s %s failed", method, endpoint)
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return errors.Wrapf(err, "failed to decode response from %s", endpoint)
			}
			return nil
		}

		apiErr := c.apiError(resp, respBody)
		if resp.StatusCode >= 500 {
			lastErr = apiErr
			continue
		}
		return apiErr
	}
	return lastErr
}

func (c *Client) apiError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return apiErr
}

type wireObject struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (w wireObject) toObject() *Object {
	props := w.Properties
	if props == nil {
		props = map[string]string{}
	}
	return &Object{ID: w.ID, Properties: props, ModifiedAt: w.UpdatedAt}
}

type wireSubmission struct {
	ID          string            `json:"id"`
	SubmittedAt int64             `json:"submittedAt"` // epoch millis
	Values      map[string]string `json:"values"`
}

func toSubmissions(wire []wireSubmission) []FormSubmission {
	subs := make([]FormSubmission, 0, len(wire))
	for _, s := range wire {
		values := s.Values
		if values == nil {
			values = map[string]string{}
		}
		subs = append(subs, FormSubmission{
			ID:          s.ID,
			SubmittedAt: time.UnixMilli(s.SubmittedAt),
			Values:      values,
		})
	}
	return subs
}
