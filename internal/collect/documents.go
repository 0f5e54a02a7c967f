package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/segmentio/encoding/json"
	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/EOSync/internal/config"
	"github.com/TobiSchelling/EOSync/internal/record"
)

// MaxPerPage is the largest page size the documents API accepts.
const MaxPerPage = 1000

// Doer abstracts https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client queries the documents search endpoint for executive orders.
type Client struct {
	doer      Doer
	cfg       config.Registry
	userAgent string
	fields    []string
	log       logrus.FieldLogger
}

// NewClient creates a documents API client. fields lists upstream fields
// to request explicitly; nil keeps the API's default field set.
func NewClient(doer Doer, cfg config.Registry, userAgent string, fields []string, log logrus.FieldLogger) *Client {
	return &Client{doer: doer, cfg: cfg, userAgent: userAgent, fields: fields, log: log}
}

// Query builds the search parameters for orders published on or after since.
func (c *Client) Query(since string) url.Values {
	perPage := c.cfg.PerPage
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	params := url.Values{
		"per_page":                                 {strconv.Itoa(perPage)},
		"order":                                    {c.cfg.Order},
		"conditions[publication_date][gte]":        {since},
		"conditions[type][]":                       {c.cfg.Type},
		"conditions[presidential_document_type][]": {c.cfg.PresidentialDocumentType},
		"conditions[president][]":                  {c.cfg.President},
	}
	for _, f := range c.fields {
		params.Add("fields[]", f)
	}
	return params
}

// FetchOrders performs one search request. Failures are logged and reported
// through the error while still returning an empty batch, so callers can
// carry on as if nothing was published.
func (c *Client) FetchOrders(ctx context.Context, since string) ([]record.Record, error) {
	link := c.cfg.DocumentsURL + "?" + c.Query(since).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		c.log.Errorf("Error building documents request: %v", err)
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		c.log.Errorf("Error fetching data: %v", err)
		return nil, fmt.Errorf("fetching documents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Errorf("Error fetching data: %d", resp.StatusCode)
		return nil, fmt.Errorf("fetching documents: HTTP %d", resp.StatusCode)
	}

	var body struct {
		Count   int             `json:"count"`
		Results []record.Record `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.log.Errorf("Error decoding documents response: %v", err)
		return nil, fmt.Errorf("decoding documents: %w", err)
	}

	c.log.WithField("count", body.Count).Debugf("Fetched %d documents published on or after %s", len(body.Results), since)
	if body.Count > len(body.Results) {
		c.log.Warnf("%d documents match but only %d fit in one page", body.Count, len(body.Results))
	}
	return body.Results, nil
}
