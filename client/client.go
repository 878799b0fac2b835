// Package client is a typed HTTP client for the registrar API.
//
// Reads of slowly changing data (academic configuration, student details & identities) go through a
// shared stale-while-revalidate cache keyed by request path. Mutations made through the client drop
// the cached paths they affect, using the same dependency map as the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/cache"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/student"
)

const actorHeader = "X-Actor"

type Options struct {
	BaseURL    string
	Actor      string // sent as X-Actor, feeds the audit log
	HTTPClient *http.Client
	Logger     core.Logger
	Clock      cache.Clock
	TTL        time.Duration // of cached reads; default 5m
	// StaleFraction of TTL after which a cached read is refreshed in the background; default 0.8
	StaleFraction float64
	// RefreshWorkers & RefreshQueueSize size the background refresher; defaults 2 & 32
	RefreshWorkers   int
	RefreshQueueSize int
}

// APIError is any error response the client cannot map to a core error.
type APIError struct {
	Status  int
	Message string
}

func (err *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", err.Status, err.Message)
}

type Client struct {
	baseURL     string
	actor       string
	http        *http.Client
	logger      core.Logger
	registry    *cache.Registry
	refresher   *cache.Refresher
	invalidator *cache.Invalidator
	search      Latest

	faculties     *cache.Revalidating[[]academic.Faculty]
	departments   *cache.Revalidating[[]academic.Department]
	academicYears *cache.Revalidating[[]academic.AcademicYear]
	details       *cache.Revalidating[student.Detail]
	documents     *cache.Revalidating[[]document.Document]
	identities    *cache.Revalidating[[]student.Identity]
}

func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: time.Minute}
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	if opts.Clock == nil {
		opts.Clock = cache.SystemClock
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.StaleFraction <= 0 {
		opts.StaleFraction = 0.8
	}
	if opts.RefreshWorkers <= 0 {
		opts.RefreshWorkers = 2
	}
	if opts.RefreshQueueSize <= 0 {
		opts.RefreshQueueSize = 32
	}

	c := &Client{
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		actor:    opts.Actor,
		http:     opts.HTTPClient,
		logger:   opts.Logger,
		registry: cache.NewRegistry(opts.Clock),
	}
	c.refresher = cache.NewRefresher(opts.RefreshWorkers, opts.RefreshQueueSize, func(key string, err error) {
		c.logger.Warn(fmt.Sprintf("client: refreshing %s failed", key), err)
	})
	c.invalidator = cache.NewInvalidator(pathTarget{c.registry}, cache.DefaultDependencies(), c.logger)

	ttl, stale := opts.TTL, opts.StaleFraction
	c.faculties = cache.NewRevalidating[[]academic.Faculty](c.registry, cache.Faculties, ttl, stale, c.refresher)
	c.departments = cache.NewRevalidating[[]academic.Department](c.registry, cache.Departments, ttl, stale, c.refresher)
	c.academicYears = cache.NewRevalidating[[]academic.AcademicYear](c.registry, cache.AcademicYears, ttl, stale, c.refresher)
	c.details = cache.NewRevalidating[student.Detail](c.registry, cache.StudentDetail, ttl, stale, c.refresher)
	c.documents = cache.NewRevalidating[[]document.Document](c.registry, cache.Documents, ttl, stale, c.refresher)
	// identities change with every student mutation, like student lists
	c.identities = cache.NewRevalidating[[]student.Identity](c.registry, cache.Students, ttl, stale, c.refresher)
	return c
}

// Close stops background refreshes.
func (c *Client) Close() {
	c.refresher.Stop()
}

// Cache exposes the client side cache, mostly for inspection.
func (c *Client) Cache() *cache.Registry {
	return c.registry
}

// Mutated drops the cached reads depending on entity. Mutations made through the client call it already.
func (c *Client) Mutated(entity cache.Entity, keys ...string) {
	c.invalidator.Mutated(entity, keys...)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if c.actor != "" {
		req.Header.Set(actorHeader, c.actor)
	}
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, in interface{}) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send sends req and returns the response status and body.
func (c *Client) send(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "reading response")
	}
	return resp.StatusCode, data, nil
}

// do sends req and decodes a response whose status is one of ok into out (if not nil).
func (c *Client) do(req *http.Request, out interface{}, ok ...int) (int, error) {
	code, data, err := c.send(req)
	if err != nil {
		return code, err
	}
	for _, okCode := range ok {
		if code == okCode {
			return code, decode(data, out)
		}
	}
	return code, decodeError(code, data)
}

func decode(data []byte, out interface{}) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "decoding response")
}

// decodeError maps an error response back to the core error it came from.
func decodeError(status int, data []byte) error {
	var body map[string]interface{}
	_ = json.Unmarshal(data, &body)

	msg, _ := body["error"].(string)
	if msg == "" && body == nil {
		msg = strings.TrimSpace(string(data))
	}

	switch status {
	case http.StatusNotFound:
		if msg == "" {
			msg = http.StatusText(status)
		}
		return core.NewNotFoundError(msg)
	case http.StatusConflict:
		return core.NewConflictError(msg)
	case http.StatusBadRequest:
		if msg != "" {
			return core.NewValidationError(errors.New(msg))
		}
		fields := make([]core.FieldError, 0, len(body))
		for field, v := range body {
			fields = append(fields, core.FieldError{Field: field, Error: fmt.Sprint(v)})
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return core.NewValidationError(nil, fields...)
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
