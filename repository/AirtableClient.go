package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ballunia/models"

	"github.com/mehanizm/airtable"
	"go.uber.org/zap"
)

type SortField struct {
	Field     string
	Direction string
}

type ListParams struct {
	Formula    string
	MaxRecords int
	Fields     []string
	Sort       []SortField
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.Formula != "" {
		v.Set("filterByFormula", p.Formula)
	}
	if p.MaxRecords > 0 {
		v.Set("maxRecords", strconv.Itoa(p.MaxRecords))
	}
	for _, f := range p.Fields {
		v.Add("fields[]", f)
	}
	for i, s := range p.Sort {
		v.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		dir := s.Direction
		if dir == "" {
			dir = "asc"
		}
		v.Set(fmt.Sprintf("sort[%d][direction]", i), dir)
	}
	return v
}

// AirtableConfig locates one base and tunes how hard it is hit.
type AirtableConfig struct {
	BaseURL string
	Token   string
	BaseID  string
	Timeout time.Duration
	// RateLimit is requests per second across the client. Zero keeps the
	// library default of 4, under Airtable's limit of 5 per base.
	RateLimit int
	// RetryWait is the first pause after a 429; it doubles per retry.
	RetryWait time.Duration
}

const (
	maxRateRetries   = 3
	defaultRetryWait = time.Second
)

// AirtableClient reads records from a single Airtable base.
type AirtableClient struct {
	at        *airtable.Client
	token     string
	baseID    string
	retryWait time.Duration
	log       *zap.Logger
}

func NewAirtableClient(cfg AirtableConfig, log *zap.Logger) (*AirtableClient, error) {
	at := airtable.NewClient(cfg.Token)
	if err := at.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")); err != nil {
		return nil, fmt.Errorf("airtable base url %q: %w", cfg.BaseURL, err)
	}
	at.SetCustomClient(&http.Client{Timeout: cfg.Timeout})
	if cfg.RateLimit > 0 {
		at.SetRateLimit(cfg.RateLimit)
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = defaultRetryWait
	}
	return &AirtableClient{
		at:        at,
		token:     cfg.Token,
		baseID:    cfg.BaseID,
		retryWait: wait,
		log:       log,
	}, nil
}

func (c *AirtableClient) Configured() bool {
	return c.token != "" && c.baseID != ""
}

// FirstPage returns a single page of records.
func (c *AirtableClient) FirstPage(ctx context.Context, table string, p ListParams) ([]models.AirtableRecord, error) {
	page, err := c.list(ctx, table, p.values())
	if err != nil {
		return nil, err
	}
	return page.Records, nil
}

// List follows offsets until every page of the table has been read.
func (c *AirtableClient) List(ctx context.Context, table string, p ListParams) ([]models.AirtableRecord, error) {
	var records []models.AirtableRecord
	v := p.values()
	for {
		page, err := c.list(ctx, table, v)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		v.Set("offset", page.Offset)
	}
}

// Find fetches one record by id.
func (c *AirtableClient) Find(ctx context.Context, table, id string) (models.AirtableRecord, error) {
	if !c.Configured() {
		return models.AirtableRecord{}, models.ErrMissingCredentials
	}
	var rec *airtable.Record
	err := c.retry(ctx, table, func() (err error) {
		rec, err = c.table(table).GetRecordContext(ctx, url.PathEscape(id))
		return
	})
	if err != nil {
		return models.AirtableRecord{}, err
	}
	return toRecord(rec), nil
}

func (c *AirtableClient) list(ctx context.Context, table string, v url.Values) (models.AirtableList, error) {
	if !c.Configured() {
		return models.AirtableList{}, models.ErrMissingCredentials
	}
	var page *airtable.Records
	err := c.retry(ctx, table, func() (err error) {
		page, err = c.table(table).GetRecordsWithParamsContext(ctx, v)
		return
	})
	if err != nil {
		return models.AirtableList{}, err
	}
	out := models.AirtableList{
		Records: make([]models.AirtableRecord, 0, len(page.Records)),
		Offset:  page.Offset,
	}
	for _, r := range page.Records {
		out.Records = append(out.Records, toRecord(r))
	}
	return out, nil
}

func (c *AirtableClient) table(name string) *airtable.Table {
	return c.at.GetTable(url.PathEscape(c.baseID), url.PathEscape(name))
}

// retry runs call, backing off while Airtable answers 429, and maps the
// final error onto the models sentinels.
func (c *AirtableClient) retry(ctx context.Context, table string, call func() error) error {
	wait := c.retryWait
	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		var status *airtable.HTTPClientError
		if !errors.As(err, &status) || status.StatusCode != http.StatusTooManyRequests || attempt == maxRateRetries {
			return c.mapError(table, err)
		}
		c.log.Warn("airtable rate limited, backing off",
			zap.String("table", table),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func (c *AirtableClient) mapError(table string, err error) error {
	var status *airtable.HTTPClientError
	if errors.As(err, &status) {
		c.log.Warn("airtable error status", zap.String("table", table), zap.Int("status", status.StatusCode))
		return &models.UpstreamStatusError{Status: status.StatusCode, Body: responseBody(status)}
	}
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	if errors.As(err, &syntax) || errors.As(err, &typ) {
		return fmt.Errorf("%w: %v", models.ErrMalformedUpstream, err)
	}
	c.log.Warn("airtable unreachable", zap.String("table", table), zap.Error(err))
	return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
}

// responseBody recovers the raw reply the library folds into its message.
func responseBody(e *airtable.HTTPClientError) string {
	if e.Err == nil {
		return ""
	}
	msg := e.Err.Error()
	if i := strings.LastIndex(msg, "\n\nBody: "); i >= 0 {
		return strings.TrimSpace(msg[i+len("\n\nBody: "):])
	}
	return msg
}

func toRecord(r *airtable.Record) models.AirtableRecord {
	return models.AirtableRecord{Id: r.ID, CreatedTime: r.CreatedTime, Fields: r.Fields}
}

// QuoteFormulaString renders s as a double-quoted formula string literal.
func QuoteFormulaString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// QuoteFormulaSingle renders s as a single-quoted formula string literal.
func QuoteFormulaSingle(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return `'` + r.Replace(s) + `'`
}

// Field helpers. Airtable omits empty fields entirely, so every accessor
// tolerates a missing key.

func stringField(f map[string]any, name string) (string, bool) {
	s, ok := f[name].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func optionalString(f map[string]any, name string) *string {
	if s, ok := stringField(f, name); ok {
		return &s
	}
	return nil
}

func numberField(f map[string]any, name string) float64 {
	switch v := f[name].(type) {
	case float64:
		return v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return n
		}
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

func intField(f map[string]any, name string) int {
	return int(numberField(f, name))
}

func boolField(f map[string]any, name string) bool {
	b, _ := f[name].(bool)
	return b
}

func stringSliceField(f map[string]any, name string) []string {
	raw, ok := f[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func attachmentsField(f map[string]any, name string) ([]models.AirtableAttachment, error) {
	raw, ok := f[name]
	if !ok || raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var atts []models.AirtableAttachment
	if err := json.Unmarshal(b, &atts); err != nil {
		return nil, errors.Join(models.ErrMalformedUpstream, err)
	}
	return atts, nil
}
