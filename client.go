/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	localBackend    = "http://127.0.0.1:8000"
	maxResponseSize = 16 << 20
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type tokenSource interface {
	Token() string
}

// Client talks JSON to the remote Taboo API. It never retries.
type Client struct {
	base   string
	http   *http.Client
	tokens tokenSource
}

func newClient(base string, tokens tokenSource, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimSuffix(base, "/"),
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
	}
}

// resolveBackendURL applies the localhost fallback, which is only allowed
// when the client itself runs on a local host.
func resolveBackendURL(configured, host string) (string, error) {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		if isLocalHost(host) {
			return localBackend, nil
		}
		return "", validationError("missing backend URL: set --backend-url or TABOOSTAFF_BACKEND_URL")
	}

	u, err := url.Parse(configured)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", validationError(fmt.Sprintf("invalid backend URL %q", configured))
	}

	return strings.TrimSuffix(u.String(), "/"), nil
}

func isLocalHost(host string) bool {
	if host == "" || strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

func (c *Client) do(ctx context.Context, method, path string, body any, authed bool, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fetchError(0, genericFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fetchError(0, "Server unavailable.", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fetchError(resp.StatusCode, genericFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := responseMessage(data)
		if resp.StatusCode == http.StatusUnauthorized {
			return authError(msg)
		}
		return fetchError(resp.StatusCode, msg, nil)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return parseError(path, errors.New("empty body"))
		}
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return parseError(path, err)
	}

	if err := validatePayload(out); err != nil {
		return parseError(path, err)
	}

	return nil
}

// validatePayload checks decoded structs, including each element of a
// decoded slice of structs.
func validatePayload(out any) error {
	v := reflect.Indirect(reflect.ValueOf(out))
	switch v.Kind() {
	case reflect.Struct:
		return validate.Struct(v.Addr().Interface())
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			el := reflect.Indirect(v.Index(i))
			if el.Kind() != reflect.Struct {
				continue
			}
			if err := validate.Struct(el.Addr().Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}

// responseMessage picks detail, then message, then the raw text, then the
// generic fallback.
func responseMessage(data []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}

	if err := json.Unmarshal(data, &body); err != nil {
		if text := strings.TrimSpace(string(data)); text != "" {
			return text
		}
		return genericFailure
	}

	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil && s != "" {
			return s
		}

		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(body.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	if body.Message != "" {
		return body.Message
	}

	return genericFailure
}

func (c *Client) Login(ctx context.Context, password string) (*LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"password": password}, false, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) StaffPassword(ctx context.Context) (string, error) {
	var res struct {
		Password string `json:"password"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/get-staff-password", nil, true, &res); err != nil {
		return "", err
	}
	return res.Password, nil
}

func (c *Client) ChangeStaffPassword(ctx context.Context, newPassword string) error {
	return c.do(ctx, http.MethodPost, "/auth/change-staff-password", map[string]string{"new_password": newPassword}, true, nil)
}

func (c *Client) RequestAdminReset(ctx context.Context) (string, error) {
	var res messageResponse
	err := c.do(ctx, http.MethodPost, "/auth/request-admin-reset", nil, true, &res)
	if err != nil && !errors.Is(err, ErrParse) {
		return "", err
	}
	return res.Message, nil
}

// ResetAdminPassword is deliberately sent without the bearer token; the
// emailed reset token is the credential.
func (c *Client) ResetAdminPassword(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "new_password": newPassword}
	return c.do(ctx, http.MethodPost, "/auth/reset-admin-password", body, false, nil)
}

func (c *Client) snapshot(ctx context.Context, method, path string, body any) (*Snapshot, error) {
	var snap Snapshot
	if err := c.do(ctx, method, path, body, true, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) DeckState(ctx context.Context) (*Snapshot, error) {
	return c.snapshot(ctx, http.MethodGet, "/library/decks-state", nil)
}

func (c *Client) RefreshFromSource(ctx context.Context) (*Snapshot, error) {
	return c.snapshot(ctx, http.MethodPost, "/library/decks/refresh-from-source", nil)
}

func (c *Client) ImportDeck(ctx context.Context, req ImportRequest) (*Snapshot, error) {
	return c.snapshot(ctx, http.MethodPost, "/library/decks/from-url", req)
}

func (c *Client) CreateCategory(ctx context.Context, name string) (*Snapshot, error) {
	return c.snapshot(ctx, http.MethodPost, "/library/categories", map[string]string{"name": name})
}

func (c *Client) DeleteCategory(ctx context.Context, name string) (*Snapshot, error) {
	return c.snapshot(ctx, http.MethodDelete, "/library/categories/"+url.PathEscape(name), nil)
}

func (c *Client) MoveDeck(ctx context.Context, id ID, category string) (*Snapshot, error) {
	path := "/library/decks/" + url.PathEscape(id.String()) + "/category"
	return c.snapshot(ctx, http.MethodPatch, path, map[string]string{"category": category})
}

func (c *Client) DeleteDeck(ctx context.Context, id ID) (*Snapshot, error) {
	return c.snapshot(ctx, http.MethodDelete, "/library/decks/"+url.PathEscape(id.String()), nil)
}

func (c *Client) ImportWorkbook(ctx context.Context, sheetURL string) (*WorkbookImport, error) {
	var res WorkbookImport
	err := c.do(ctx, http.MethodPost, "/admin/workbooks/add", map[string]string{"sheet_url": sheetURL}, true, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Workbooks(ctx context.Context) ([]Workbook, error) {
	var list []Workbook
	if err := c.do(ctx, http.MethodGet, "/admin/workbooks/list", nil, true, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Workbook{}
	}
	return list, nil
}

// ReloadWorkbook's reply carries nothing the client installs; the message
// is passed through for display.
func (c *Client) ReloadWorkbook(ctx context.Context, id ID) (string, error) {
	var res messageResponse
	err := c.do(ctx, http.MethodPost, "/admin/workbooks/"+url.PathEscape(id.String())+"/reload", nil, true, &res)
	if err != nil && !errors.Is(err, ErrParse) {
		return "", err
	}
	return res.Message, nil
}

func (c *Client) DeleteWorkbook(ctx context.Context, id ID) (string, error) {
	var res messageResponse
	err := c.do(ctx, http.MethodDelete, "/admin/workbooks/"+url.PathEscape(id.String()), nil, true, &res)
	if err != nil && !errors.Is(err, ErrParse) {
		return "", err
	}
	return res.Message, nil
}

// describeValidation turns the first failed rule into a message for the
// initiating view.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Field() + "." + fe.Tag() {
	case "URL.required":
		return "A deck URL is required."
	case "URL.url":
		return fmt.Sprintf("%q is not a valid URL.", fe.Value())
	case "TabooWordsPerCard.gte":
		return "taboo_words_per_card must be at least 1."
	}

	return fmt.Sprintf("%s failed the %q rule.", fe.Field(), fe.Tag())
}
