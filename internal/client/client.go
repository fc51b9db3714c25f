// Package client is typed client of customers http api.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/umalmyha/customer-records/internal/model"
)

const defaultTimeout = 10 * time.Second

// APIError is non-successful response of customers api
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("customers api responded with %d - %s", e.StatusCode, e.Message)
}

// Client calls customers api, implements listing.Source
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes Client
type Option func(*Client)

// WithHTTPClient replaces default http client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New builds Client for api served at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPage fetches page of customers following after cursor, nil cursor requests the first page
func (c *Client) ListPage(ctx context.Context, size int, after *model.Cursor) (*model.Page, error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(size))
	if after != nil {
		q.Set("after", after.String())
	}

	var page model.Page
	if err := c.do(ctx, http.MethodGet, "/api/customers?"+q.Encode(), nil, "", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Search fetches customers whose name starts with term
func (c *Client) Search(ctx context.Context, term string) ([]*model.Customer, error) {
	q := url.Values{}
	q.Set("term", term)

	var customers []*model.Customer
	if err := c.do(ctx, http.MethodGet, "/api/customers/search?"+q.Encode(), nil, "", &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// Get fetches customer by id, returns nil customer if it doesn't exist
func (c *Client) Get(ctx context.Context, id string) (*model.Customer, error) {
	var customer model.Customer
	if err := c.do(ctx, http.MethodGet, "/api/customers/"+url.PathEscape(id), nil, "", &customer); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// Create creates customer from form
func (c *Client) Create(ctx context.Context, form *model.CustomerForm) (*model.Customer, error) {
	body, ctype, err := encodeForm(form)
	if err != nil {
		return nil, err
	}

	var customer model.Customer
	if err := c.do(ctx, http.MethodPost, "/api/customers", body, ctype, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// Update updates customer with provided id from form
func (c *Client) Update(ctx context.Context, id string, form *model.CustomerForm) (*model.Customer, error) {
	body, ctype, err := encodeForm(form)
	if err != nil {
		return nil, err
	}

	var customer model.Customer
	if err := c.do(ctx, http.MethodPut, "/api/customers/"+url.PathEscape(id), body, ctype, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// DeleteByID deletes customer, missing customer is not an error
func (c *Client) DeleteByID(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/customers/"+url.PathEscape(id), nil, "", nil)
}

// Statistics fetches customers statistics
func (c *Client) Statistics(ctx context.Context) (*model.Statistics, error) {
	var stats model.Statistics
	if err := c.do(ctx, http.MethodGet, "/api/statistics", nil, "", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, ctype string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request - %w", err)
	}

	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request - %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return apiError(res)
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response - %w", err)
	}
	return nil
}

func apiError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64*1024))

	var payload struct {
		Message string `json:"message"`
	}

	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		msg = payload.Message
	}
	return &APIError{StatusCode: res.StatusCode, Message: msg}
}

func encodeForm(form *model.CustomerForm) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"name", form.Name},
		{"email", form.Email},
		{"phone", form.Phone},
		{"street", form.Address.Street},
		{"city", form.Address.City},
		{"state", form.Address.State},
		{"zipCode", form.Address.ZipCode},
		{"country", form.Address.Country},
	}

	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s - %w", f[0], err)
		}
	}

	switch form.Photo.Action() {
	case model.PhotoReplace:
		part, err := w.CreateFormFile("photo", form.Photo.Filename())
		if err != nil {
			return nil, "", fmt.Errorf("failed to create photo part - %w", err)
		}

		if _, err := part.Write(form.Photo.Content()); err != nil {
			return nil, "", fmt.Errorf("failed to write photo - %w", err)
		}
	case model.PhotoClear:
		if err := w.WriteField("removePhoto", "true"); err != nil {
			return nil, "", fmt.Errorf("failed to write form field removePhoto - %w", err)
		}
	case model.PhotoKeep:
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form - %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
