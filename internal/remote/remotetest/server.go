// Package remotetest provides an in-memory stand-in for the GitHub contents
// API with the same optimistic-concurrency rules.
package remotetest

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

type file struct {
	sha     string
	content []byte
}

// Write records one PUT request as received. SHA is nil when the field was absent.
type Write struct {
	Path    string
	Message string
	Branch  string
	SHA     *string
	Content []byte
	Status  int
}

type Server struct {
	*httptest.Server

	Owner string
	Repo  string
	Token string

	mu        sync.Mutex
	files     map[string]file
	writes    []Write
	reads     int
	failWrite int
}

func NewServer(owner, repo, token string) *Server {
	s := &Server{Owner: owner, Repo: repo, Token: token, files: map[string]file{}}

	mux := http.NewServeMux()
	prefix := fmt.Sprintf("/repos/%s/%s/contents/", owner, repo)
	mux.HandleFunc("GET "+prefix+"{path...}", s.handleGet)
	mux.HandleFunc("PUT "+prefix+"{path...}", s.handlePut)

	s.Server = httptest.NewServer(mux)
	return s
}

// Seed stores content at path and returns its SHA.
func (s *Server) Seed(path string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sha := blobSHA(content)
	s.files[path] = file{sha: sha, content: content}
	return sha
}

func (s *Server) File(path string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[path]
	return f.content, f.sha, ok
}

func (s *Server) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

func (s *Server) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// FailWrites makes every following PUT answer with status.
func (s *Server) FailWrites(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite = status
}

func (s *Server) authorized(r *http.Request) bool {
	return s.Token == "" || r.Header.Get("Authorization") == "Bearer "+s.Token
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}

	s.mu.Lock()
	s.reads++
	f, ok := s.files[r.PathValue("path")]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"path":     r.PathValue("path"),
		"sha":      f.sha,
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString(f.content),
	})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	path := r.PathValue("path")
	wr := Write{Path: path}
	wr.Message, _ = body["message"].(string)
	wr.Branch, _ = body["branch"].(string)
	if sha, ok := body["sha"].(string); ok {
		wr.SHA = &sha
	}
	encoded, _ := body["content"].(string)
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		wr.Status = http.StatusUnprocessableEntity
		s.record(wr)
		writeJSON(w, wr.Status, map[string]string{"message": "content is not valid Base64"})
		return
	}
	wr.Content = content

	s.mu.Lock()
	defer s.mu.Unlock()

	status, msg := s.apply(path, wr.SHA, content)
	wr.Status = status
	s.writes = append(s.writes, wr)

	if status != http.StatusOK && status != http.StatusCreated {
		writeJSON(w, status, map[string]string{"message": msg})
		return
	}
	writeJSON(w, status, map[string]any{"content": map[string]string{"path": path, "sha": s.files[path].sha}})
}

// apply must be called with mu held.
func (s *Server) apply(path string, sha *string, content []byte) (int, string) {
	if s.failWrite != 0 {
		return s.failWrite, "forced failure"
	}

	current, exists := s.files[path]
	switch {
	case exists && sha == nil:
		return http.StatusUnprocessableEntity, `Invalid request. "sha" wasn't supplied.`
	case exists && *sha != current.sha:
		return http.StatusConflict, fmt.Sprintf("%s does not match %s", path, *sha)
	case !exists && sha != nil:
		return http.StatusUnprocessableEntity, `"sha" supplied for a file that does not exist`
	}

	s.files[path] = file{sha: blobSHA(content), content: content}
	if exists {
		return http.StatusOK, ""
	}
	return http.StatusCreated, ""
}

func (s *Server) record(wr Write) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, wr)
}

func blobSHA(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
