// Package leanixtest runs an in-memory EA repository that speaks the token,
// GraphQL and suggestions endpoints used by the leanix client.
package leanixtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/graphql-go/graphql"
)

const (
	tokenPath       = "/services/mtm/v1/oauth2/token"
	graphqlPath     = "/services/pathfinder/v1/graphql"
	suggestionsPath = "/services/pathfinder/v1/suggestions"

	statusActive   = "ACTIVE"
	statusArchived = "ARCHIVED"
)

// Record is a fact sheet held by the fake.
type Record struct {
	ID        string
	Type      string
	Name      string
	Category  string
	Status    string
	Rev       int
	Fields    map[string]string
	Relations map[string][]string

	Documents     []Document
	Subscriptions []Subscription
}

// Document is a link attached to a record.
type Document struct {
	ID           string
	Name         string
	Description  string
	URL          string
	Origin       string
	DocumentType string
}

// Subscription is a user subscribed to a record.
type Subscription struct {
	ID        string
	Type      string
	Email     string
	FirstName string
	LastName  string
	RoleIDs   []string
}

// Server is the fake repository. All methods are safe for concurrent use.
type Server struct {
	apiToken string
	schema   graphql.Schema
	http     *httptest.Server

	mu          sync.Mutex
	records     map[string]*Record
	order       []string
	tokens      map[string]bool
	seq         int
	tokenCalls  int
	calls       map[string]int
	failStatus  int
	failLeft    int
	rejectPaths []string
}

// New starts a fake accepting apiToken and closes it when the test ends.
func New(t testing.TB, apiToken string) *Server {
	t.Helper()

	s := &Server{
		apiToken: apiToken,
		records:  make(map[string]*Record),
		tokens:   make(map[string]bool),
		calls:    make(map[string]int),
	}
	schema, err := s.buildSchema()
	if err != nil {
		t.Fatalf("leanixtest: build schema: %v", err)
	}
	s.schema = schema

	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, s.handleToken)
	mux.HandleFunc(graphqlPath, s.authorized(s.handleGraphQL))
	mux.HandleFunc(suggestionsPath, s.authorized(s.handleSuggestions))
	s.http = httptest.NewServer(mux)
	t.Cleanup(s.http.Close)
	return s
}

// URL is the base URL to configure the client with.
func (s *Server) URL() string { return s.http.URL }

// Seed stores an active record and returns its ID.
func (s *Server) Seed(recordType, name, category string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(recordType, name, category).ID
}

// Link adds a relation edge without going through the API.
func (s *Server) Link(parentID, relation, childID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[parentID]; ok {
		rec.Relations[relation] = append(rec.Relations[relation], childID)
	}
}

// Record returns a copy of the record with id.
func (s *Server) Record(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Records returns copies of all records in creation order.
func (s *Server) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].clone())
	}
	return out
}

// FindByName returns the first active record named name (case-insensitive).
func (s *Server) FindByName(name string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Status != statusArchived && strings.EqualFold(rec.Name, name) {
			return rec.clone(), true
		}
	}
	return Record{}, false
}

// RevokeTokens invalidates every issued bearer token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]bool)
}

// TokenRequests counts successful token grants.
func (s *Server) TokenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCalls
}

// Calls counts executions of a root GraphQL field, e.g. "createFactSheet".
func (s *Server) Calls(field string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[field]
}

// FailNext answers the next n API requests with status.
func (s *Server) FailNext(status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus, s.failLeft = status, n
}

// RejectPatchPath makes updateFactSheet fail for patches whose path starts
// with prefix.
func (s *Server) RejectPatchPath(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectPaths = append(s.rejectPaths, prefix)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if r.Method != http.MethodPost || !ok || user != "apitoken" || pass != s.apiToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	s.mu.Lock()
	s.seq++
	s.tokenCalls++
	token := fmt.Sprintf("token-%d", s.seq)
	s.tokens[token] = true
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		s.mu.Lock()
		valid := s.tokens[token]
		fail := 0
		if s.failLeft > 0 {
			s.failLeft--
			fail = s.failStatus
		}
		s.mu.Unlock()

		if !valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		if fail != 0 {
			writeJSON(w, fail, map[string]string{"error": http.StatusText(fail)})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	result := graphql.Do(graphql.Params{
		Schema:         s.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		Context:        r.Context(),
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))

	s.mu.Lock()
	groups := make(map[string][]map[string]any)
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Status == statusArchived || !strings.Contains(strings.ToLower(rec.Name), q) {
			continue
		}
		reasons := []map[string]any{{"field": "displayName", "value": rec.Name}}
		if ext := externalID(rec.Fields["externalId"]); ext != "" {
			reasons = append(reasons, map[string]any{"field": "externalId", "value": ext})
		}
		groups[rec.Type] = append(groups[rec.Type], map[string]any{
			"objectId":    rec.ID,
			"displayName": rec.Name,
			"type":        rec.Type,
			"category":    rec.Category,
			"reasons":     reasons,
		})
	}
	s.mu.Unlock()

	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Strings(types)
	data := make([]map[string]any, 0, len(types))
	for _, t := range types {
		data = append(data, map[string]any{"type": t, "suggestions": groups[t]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "OK", "data": data})
}

// externalID reads the externalId key of a patched JSON value.
func externalID(raw string) string {
	if raw == "" {
		return ""
	}
	var v struct {
		ExternalID string `json:"externalId"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return ""
	}
	return v.ExternalID
}

// create must be called with mu held.
func (s *Server) create(recordType, name, category string) *Record {
	s.seq++
	rec := &Record{
		ID:        fmt.Sprintf("fs-%04d", s.seq),
		Type:      recordType,
		Name:      name,
		Category:  category,
		Status:    statusActive,
		Fields:    make(map[string]string),
		Relations: make(map[string][]string),
	}
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return rec
}

func (r *Record) clone() Record {
	c := *r
	c.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		c.Fields[k] = v
	}
	c.Relations = make(map[string][]string, len(r.Relations))
	for k, v := range r.Relations {
		c.Relations[k] = append([]string(nil), v...)
	}
	c.Documents = append([]Document(nil), r.Documents...)
	c.Subscriptions = make([]Subscription, len(r.Subscriptions))
	for i, sub := range r.Subscriptions {
		sub.RoleIDs = append([]string(nil), sub.RoleIDs...)
		c.Subscriptions[i] = sub
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
