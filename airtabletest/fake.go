// Package airtabletest runs an in-process Airtable REST API for tests.
package airtabletest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"ballunia/models"
)

const (
	Token  = "pat-test"
	BaseID = "appTEST"
)

var (
	equalsClause = regexp.MustCompile(`\{([^}]+)\}\s*=\s*(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'|(TRUE\(\)))`)
	recordClause = regexp.MustCompile(`RECORD_ID\(\)\s*=\s*'((?:[^'\\]|\\.)*)'`)
)

// Server serves the tables it holds. Formulas are understood only as far as
// the repository needs: {Field}="v", {Field}='v' and {Field}=TRUE() clauses
// must all hold, and OR(RECORD_ID()='id',...) selects by id. Any other clause
// matches every record.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	tables   map[string][]models.AirtableRecord
	status   map[string]int
	throttle map[string]int
	requests []*http.Request

	// PageSize splits list replies into pages linked by offset. Zero means one page.
	PageSize int
}

func NewServer() *Server {
	s := &Server{
		tables:   map[string][]models.AirtableRecord{},
		status:   map[string]int{},
		throttle: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// APIURL is the API root to hand to the client, e.g. http://127.0.0.1:1234/v0.
func (s *Server) APIURL() string {
	return s.Server.URL + "/v0"
}

func (s *Server) Add(table string, records ...models.AirtableRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], records...)
}

// Fail makes every request to table answer with status.
func (s *Server) Fail(table string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[table] = status
}

// Throttle makes the next n requests to table answer 429, the way Airtable
// does once a base goes past its request rate.
func (s *Server) Throttle(table string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttle[table] = n
}

// Requests returns the requests received so far.
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

func Record(id string, fields map[string]any) models.AirtableRecord {
	return models.AirtableRecord{Id: id, Fields: fields}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Clone(r.Context()))
	s.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+Token {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "AUTHENTICATION_REQUIRED"})
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v0/"), "/")
	if len(parts) < 2 || parts[0] != BaseID {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
		return
	}
	table := parts[1]

	s.mu.Lock()
	status := s.status[table]
	throttled := s.throttle[table] > 0
	if throttled {
		s.throttle[table]--
	}
	records := append([]models.AirtableRecord(nil), s.tables[table]...)
	s.mu.Unlock()

	if throttled {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"errors": []map[string]any{{"error": "RATE_LIMIT_REACHED"}}})
		return
	}
	if status != 0 {
		writeJSON(w, status, map[string]any{"error": map[string]any{"type": "TABLE_ERROR", "table": table}})
		return
	}

	if len(parts) == 3 {
		for _, rec := range records {
			if rec.Id == parts[2] {
				writeJSON(w, http.StatusOK, rec)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
		return
	}

	q := r.URL.Query()
	matched := filter(records, q.Get("filterByFormula"))
	if n, err := strconv.Atoi(q.Get("maxRecords")); err == nil && n < len(matched) {
		matched = matched[:n]
	}

	start, _ := strconv.Atoi(q.Get("offset"))
	page := models.AirtableList{Records: matched[min(start, len(matched)):]}
	if s.PageSize > 0 && len(page.Records) > s.PageSize {
		page.Records = page.Records[:s.PageSize]
		page.Offset = strconv.Itoa(start + s.PageSize)
	}
	if page.Records == nil {
		page.Records = []models.AirtableRecord{}
	}
	writeJSON(w, http.StatusOK, page)
}

func filter(records []models.AirtableRecord, formula string) []models.AirtableRecord {
	if formula == "" {
		return records
	}
	var out []models.AirtableRecord

	if ids := recordClause.FindAllStringSubmatch(formula, -1); len(ids) > 0 {
		want := map[string]bool{}
		for _, m := range ids {
			want[unescape(m[1])] = true
		}
		for _, rec := range records {
			if want[rec.Id] {
				out = append(out, rec)
			}
		}
		return out
	}

	clauses := equalsClause.FindAllStringSubmatch(formula, -1)
	for _, rec := range records {
		ok := true
		for _, c := range clauses {
			v := rec.Fields[c[1]]
			switch {
			case c[4] != "":
				ok = ok && v == true
			case strings.HasPrefix(strings.TrimSpace(c[0][strings.Index(c[0], "=")+1:]), `"`):
				ok = ok && fmt.Sprint(v) == unescape(c[2])
			default:
				ok = ok && fmt.Sprint(v) == unescape(c[3])
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

var escaped = regexp.MustCompile(`\\(.)`)

func unescape(s string) string {
	return escaped.ReplaceAllString(s, "$1")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
