package fakes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Request is one request received by FakeTPM.
type Request struct {
	Method string
	Path   string // API path after /index.php/, as sent (escaped)
	Header http.Header
	Body   []byte
}

// JSON decodes the request body into a generic document.
func (r Request) JSON() map[string]interface{} {
	var doc map[string]interface{}
	_ = json.Unmarshal(r.Body, &doc)
	return doc
}

// FakeTPM is an in-memory Team Password Manager served over TLS.
//
// Example usage:
//
//	tpmFake := fakes.NewFakeTPM(t)
//	tpmFake.AddProject(map[string]interface{}{"name": "infra"})
//	id := tpmFake.AddPassword(map[string]interface{}{"name": "db", "password": "s3cret"})
//
//	cfg := tpm.Config{Host: tpmFake.Host(), Basic: &tpm.BasicAuth{...}}
type FakeTPM struct {
	Server *httptest.Server

	// PageSize splits search results into pages linked with rel="next".
	// Zero disables paging.
	PageSize int

	// EndlessPaging makes every search page link to another one.
	EndlessPaging bool

	// Searches maps an exact query to the ids it returns, in order. Queries
	// not listed match entries whose name contains the query.
	Searches map[string][]int

	// Generated is consumed by generate_password; "generated-N" afterwards.
	Generated []string

	// StatusOverrides forces a status for "METHOD path" (path without
	// /index.php/ prefix, unescaped).
	StatusOverrides map[string]int

	mu            sync.Mutex
	passwords     map[int]map[string]interface{}
	projects      map[int]map[string]interface{}
	requests      []Request
	nextID        int
	generateCount int
	basicUser     string
	basicPass     string
	hmacPublic    string
	hmacPrivate   string
	projectSearch map[string][]int
}

var (
	idPath     = regexp.MustCompile(`^api/v4/(passwords|projects)/(\d+)\.json$`)
	searchPath = regexp.MustCompile(`^api/v4/(passwords|projects)/search/(.*?)(?:/page/(\d+))?\.json$`)
)

// NewFakeTPM starts a fake server that is closed when the test ends.
func NewFakeTPM(t testing.TB) *FakeTPM {
	t.Helper()

	f := &FakeTPM{
		Searches:        make(map[string][]int),
		StatusOverrides: make(map[string]int),
		passwords:       make(map[int]map[string]interface{}),
		projects:        make(map[int]map[string]interface{}),
		projectSearch:   make(map[string][]int),
		nextID:          1,
	}
	f.Server = httptest.NewTLSServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// Host returns host:port of the server, suitable for tpm.Config.Host.
func (f *FakeTPM) Host() string {
	return strings.TrimPrefix(f.Server.URL, "https://")
}

// RequireBasic rejects requests without these Basic credentials.
func (f *FakeTPM) RequireBasic(user, pass string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.basicUser, f.basicPass = user, pass
}

// RequireHMAC rejects requests whose HMAC headers do not verify.
func (f *FakeTPM) RequireHMAC(public, private string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hmacPublic, f.hmacPrivate = public, private
}

// SetProjectSearch maps a project query to ids.
func (f *FakeTPM) SetProjectSearch(query string, ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projectSearch[query] = ids
}

// AddPassword stores a password document and returns its id.
func (f *FakeTPM) AddPassword(doc map[string]interface{}) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store(f.passwords, doc)
}

// AddProject stores a project document and returns its id.
func (f *FakeTPM) AddProject(doc map[string]interface{}) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store(f.projects, doc)
}

// Password returns a copy of a stored password document.
func (f *FakeTPM) Password(id int) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyDoc(f.passwords[id])
}

// Project returns a copy of a stored project document.
func (f *FakeTPM) Project(id int) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyDoc(f.projects[id])
}

// Requests returns the requests received so far.
func (f *FakeTPM) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// RequestsFor returns requests with the given method and API path prefix.
func (f *FakeTPM) RequestsFor(method, pathPrefix string) []Request {
	var out []Request
	for _, r := range f.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeTPM) store(into map[int]map[string]interface{}, doc map[string]interface{}) int {
	d := copyDoc(doc)
	id := f.nextID
	if v, ok := d["id"].(int); ok && v > 0 {
		id = v
	}
	if id >= f.nextID {
		f.nextID = id + 1
	}
	d["id"] = id
	into[id] = d
	return id
}

func (f *FakeTPM) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	escaped := strings.TrimPrefix(r.URL.EscapedPath(), "/index.php/")
	if r.URL.RawQuery != "" {
		escaped += "?" + r.URL.RawQuery
	}
	path := strings.TrimPrefix(r.URL.Path, "/index.php/")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, Request{
		Method: r.Method,
		Path:   escaped,
		Header: r.Header.Clone(),
		Body:   body,
	})

	if !f.authorized(r, escaped, body) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":true,"type":"Unauthorized"}`))
		return
	}

	if status, ok := f.StatusOverrides[r.Method+" "+path]; ok {
		w.WriteHeader(status)
		return
	}

	switch {
	case r.Method == http.MethodGet && path == "api/v4/generate_password.json":
		f.generate(w)
	case r.Method == http.MethodGet && searchPath.MatchString(path):
		m := searchPath.FindStringSubmatch(path)
		page := 1
		if m[3] != "" {
			page, _ = strconv.Atoi(m[3])
		}
		f.search(w, m[1], m[2], page)
	case idPath.MatchString(path):
		m := idPath.FindStringSubmatch(path)
		id, _ := strconv.Atoi(m[2])
		f.byID(w, r.Method, m[1], id, body)
	case r.Method == http.MethodPost && path == "api/v4/passwords.json":
		f.createPassword(w, body)
	case r.Method == http.MethodPost && path == "api/v4/projects.json":
		f.createProject(w, body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *FakeTPM) authorized(r *http.Request, path string, body []byte) bool {
	if f.basicUser != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != f.basicUser || pass != f.basicPass {
			return false
		}
	}
	if f.hmacPrivate != "" {
		if r.Header.Get("X-Public-Key") != f.hmacPublic {
			return false
		}
		mac := hmac.New(sha256.New, []byte(f.hmacPrivate))
		mac.Write([]byte(path + r.Header.Get("X-Request-Timestamp")))
		mac.Write(body)
		if r.Header.Get("X-Request-Hash") != hex.EncodeToString(mac.Sum(nil)) {
			return false
		}
	}
	return true
}

func (f *FakeTPM) generate(w http.ResponseWriter) {
	f.generateCount++
	value := fmt.Sprintf("generated-%d", f.generateCount)
	if len(f.Generated) > 0 {
		value, f.Generated = f.Generated[0], f.Generated[1:]
	}
	writeJSON(w, http.StatusOK, map[string]string{"password": value})
}

func (f *FakeTPM) search(w http.ResponseWriter, kind, query string, page int) {
	store, searches := f.passwords, f.Searches
	if kind == "projects" {
		store, searches = f.projects, f.projectSearch
	}

	var ids []int
	if listed, ok := searches[query]; ok {
		ids = listed
	} else {
		for id, doc := range store {
			name, _ := doc["name"].(string)
			if strings.Contains(strings.ToLower(name), strings.ToLower(query)) {
				ids = append(ids, id)
			}
		}
		sort.Ints(ids)
	}

	results := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		doc, ok := store[id]
		if !ok {
			continue
		}
		if kind == "passwords" {
			// Search results only carry a summary.
			results = append(results, map[string]interface{}{
				"id":      doc["id"],
				"name":    doc["name"],
				"project": doc["project"],
			})
		} else {
			results = append(results, copyDoc(doc))
		}
	}

	if f.PageSize > 0 {
		start := (page - 1) * f.PageSize
		end := start + f.PageSize
		if start > len(results) {
			start = len(results)
		}
		if end > len(results) {
			end = len(results)
		}
		hasNext := end < len(results) || f.EndlessPaging
		results = results[start:end]
		if hasNext {
			next := fmt.Sprintf("%s/index.php/api/v4/%s/search/%s/page/%d.json",
				f.Server.URL, kind, escapeSegment(query), page+1)
			w.Header().Add("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
		}
	}

	writeJSON(w, http.StatusOK, results)
}

func (f *FakeTPM) byID(w http.ResponseWriter, method, kind string, id int, body []byte) {
	store := f.passwords
	if kind == "projects" {
		store = f.projects
	}
	doc, ok := store[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, doc)
	case http.MethodPut:
		var update map[string]interface{}
		if err := json.Unmarshal(body, &update); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for k, v := range update {
			if n, isCustom := customDataIndex(k); isCustom {
				doc[fmt.Sprintf("custom_field%d", n)] = customField(n, v)
				continue
			}
			doc[k] = v
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		delete(store, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *FakeTPM) createPassword(w http.ResponseWriter, body []byte) {
	var in map[string]interface{}
	if err := json.Unmarshal(body, &in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	projectID, _ := in["project_id"].(float64)
	project, ok := f.projects[int(projectID)]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid project"})
		return
	}

	doc := map[string]interface{}{
		"project":       map[string]interface{}{"id": project["id"], "name": project["name"]},
		"archived":      false,
		"locked":        false,
		"expiry_status": 0,
		"created_on":    "2026-01-01 00:00:00",
		"updated_on":    "2026-01-01 00:00:00",
	}
	for k, v := range in {
		if k == "project_id" {
			continue
		}
		if n, isCustom := customDataIndex(k); isCustom {
			doc[fmt.Sprintf("custom_field%d", n)] = customField(n, v)
			continue
		}
		doc[k] = v
	}
	id := f.store(f.passwords, doc)
	writeJSON(w, http.StatusCreated, map[string]int{"id": id})
}

func (f *FakeTPM) createProject(w http.ResponseWriter, body []byte) {
	var in map[string]interface{}
	if err := json.Unmarshal(body, &in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	in["archived"] = false
	in["created_on"] = "2026-01-01 00:00:00"
	in["updated_on"] = "2026-01-01 00:00:00"
	id := f.store(f.projects, in)
	writeJSON(w, http.StatusCreated, map[string]int{"id": id})
}

func customDataIndex(key string) (int, bool) {
	if !strings.HasPrefix(key, "custom_data") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(key, "custom_data"))
	return n, err == nil
}

func customField(n int, data interface{}) interface{} {
	if data == nil || data == "" {
		return nil
	}
	return map[string]interface{}{
		"type":  "Text",
		"label": fmt.Sprintf("Custom %d", n),
		"data":  data,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func copyDoc(doc map[string]interface{}) map[string]interface{} {
	if doc == nil {
		return nil
	}
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// escapeSegment mirrors the client's query escaping for generated links.
func escapeSegment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '_' || c == '.' || c == '~' || c == '/' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}
