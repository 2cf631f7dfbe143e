// Package datastore executes FHIR search queries against a FHIR server and
// collects the ids of the patients the matching resources belong to.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
	"github.com/alexanderkiel/flare/pkg/patientset"
)

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeFHIR = "application/fhir+json"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	// PageCount is the page size requested with _count.
	PageCount int
	// MaxConcurrentPageFetches limits the page requests in flight over all
	// queries of the client.
	MaxConcurrentPageFetches int64
	MaxRetries               uint64
	RetryInitialInterval     time.Duration
	RequestTimeout           time.Duration
	User                     string
	Password                 string
}

// Client runs searches against one FHIR server. It is safe for concurrent
// use.
type Client struct {
	http   *resty.Client
	opts   Options
	pages  *semaphore.Weighted
	tracer trace.Tracer
	logger zerolog.Logger
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.PageCount <= 0 {
		opts.PageCount = 1000
	}
	if opts.MaxConcurrentPageFetches <= 0 {
		opts.MaxConcurrentPageFetches = 4
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = 500 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", contentTypeFHIR)
	if opts.RequestTimeout > 0 {
		client.SetTimeout(opts.RequestTimeout)
	}
	if opts.User != "" {
		client.SetBasicAuth(opts.User, opts.Password)
	}

	return &Client{
		http:   client,
		opts:   opts,
		pages:  semaphore.NewWeighted(opts.MaxConcurrentPageFetches),
		tracer: otel.Tracer("github.com/alexanderkiel/flare/internal/platform/datastore"),
		logger: logger.With().Str("component", "datastore").Logger(),
	}
}

// Execute runs the query, follows all next links and returns the ids of the
// patients the matching resources belong to.
func (c *Client) Execute(ctx context.Context, q fhir.Query) (*patientset.Set, error) {
	ctx, span := c.tracer.Start(ctx, "datastore.Execute", trace.WithAttributes(
		attribute.String("fhir.resource_type", q.ResourceType),
		attribute.String("fhir.query", q.String()),
	))
	defer span.End()

	start := time.Now()
	ids := patientset.New()
	pages := 0

	bundle, err := c.fetchPage(ctx, q, pages, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", contentTypeForm).
			SetBody(c.searchBody(q)).
			Post("/" + q.ResourceType + "/_search")
	})
	seen := make(map[string]struct{})
	for err == nil {
		pages++
		c.collect(bundle, ids)
		next, ok := bundle.NextLink()
		if !ok {
			break
		}
		if _, dup := seen[next]; dup {
			err = &QueryExecutionError{Query: q, Err: fmt.Errorf("%w: %s", ErrPageCycle, next)}
			break
		}
		seen[next] = struct{}{}
		bundle, err = c.fetchPage(ctx, q, pages, func(r *resty.Request) (*resty.Response, error) {
			return r.Get(next)
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("fhir.pages", pages), attribute.Int("fhir.patients", ids.Len()))
	c.logger.Debug().
		Str("query", q.String()).
		Int("pages", pages).
		Int("patients", ids.Len()).
		Dur("duration", time.Since(start)).
		Msg("query executed")
	return ids, nil
}

// searchBody appends the transport parameters to the query parameters. The
// order of the query parameters is kept.
func (c *Client) searchBody(q fhir.Query) string {
	elements := "subject,patient"
	if q.ResourceType == fhir.ResourcePatient {
		elements = "id"
	}
	return q.Params.
		Append(fhir.ParamElements, elements).
		Append(fhir.ParamCount, strconv.Itoa(c.opts.PageCount)).
		Encode()
}

func (c *Client) collect(bundle *fhir.Bundle, ids *patientset.Set) {
	for _, raw := range bundle.Matches() {
		var r fhir.Resource
		if err := json.Unmarshal(raw, &r); err != nil {
			c.logger.Warn().Err(err).Msg("skip undecodable resource")
			continue
		}
		id, ok := r.PatientID()
		if !ok {
			c.logger.Warn().Str("resource_type", r.ResourceType).Str("id", r.ID).Msg("skip resource without patient reference")
			continue
		}
		ids.Add(id)
	}
}

// fetchPage sends one page request, retrying server and network errors with
// exponential backoff. Client errors fail immediately.
func (c *Client) fetchPage(ctx context.Context, q fhir.Query, page int, send func(*resty.Request) (*resty.Response, error)) (*fhir.Bundle, error) {
	ctx, span := c.tracer.Start(ctx, "datastore.FetchPage", trace.WithAttributes(attribute.Int("fhir.page", page)))
	defer span.End()

	var bundle *fhir.Bundle
	attempt := 0
	op := func() error {
		attempt++
		b, err := c.fetchOnce(ctx, q, send)
		if err != nil {
			var qe *QueryExecutionError
			if ctx.Err() != nil || (errors.As(err, &qe) && !qe.Temporary()) {
				return backoff.Permanent(err)
			}
			return err
		}
		bundle = b
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.RetryInitialInterval
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.opts.MaxRetries), ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("retry page fetch")
		})
	span.SetAttributes(attribute.Int("fhir.attempts", attempt))
	if err != nil {
		var qe *QueryExecutionError
		if !errors.As(err, &qe) {
			err = &QueryExecutionError{Query: q, Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return bundle, nil
}

func (c *Client) fetchOnce(ctx context.Context, q fhir.Query, send func(*resty.Request) (*resty.Response, error)) (*fhir.Bundle, error) {
	if err := c.pages.Acquire(ctx, 1); err != nil {
		return nil, &QueryExecutionError{Query: q, Err: err}
	}
	defer c.pages.Release(1)

	resp, err := send(c.http.R().SetContext(ctx))
	if err != nil {
		return nil, &QueryExecutionError{Query: q, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &QueryExecutionError{
			Query:       q,
			StatusCode:  resp.StatusCode(),
			Diagnostics: diagnostics(resp.Body()),
		}
	}

	var bundle fhir.Bundle
	if err := json.Unmarshal(resp.Body(), &bundle); err != nil {
		return nil, &QueryExecutionError{Query: q, StatusCode: resp.StatusCode(), Err: fmt.Errorf("decode bundle: %w", err)}
	}
	if bundle.ResourceType != "Bundle" {
		return nil, &QueryExecutionError{Query: q, StatusCode: resp.StatusCode(),
			Err: fmt.Errorf("expected a Bundle but got %q", bundle.ResourceType)}
	}
	for _, outcome := range bundle.Outcomes() {
		if outcome.HasErrors() {
			return nil, &QueryExecutionError{Query: q, StatusCode: resp.StatusCode(), Diagnostics: outcome.Diagnostics()}
		}
		c.logger.Warn().Str("query", q.String()).Str("diagnostics", outcome.Diagnostics()).Msg("search outcome")
	}
	return &bundle, nil
}

func diagnostics(body []byte) string {
	var outcome fhir.OperationOutcome
	if err := json.Unmarshal(body, &outcome); err != nil || outcome.ResourceType != "OperationOutcome" {
		return ""
	}
	return outcome.Diagnostics()
}
