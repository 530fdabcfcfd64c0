// Package remote persists news collections to a GitHub repository through the
// REST contents API, guarding every update with the file's current blob SHA.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/0x0BSoD/newsSync/internal/model"
)

const DefaultBaseURL = "https://api.github.com"

// ErrConflict is matched by a StatusError whose code means the presented SHA
// did not match the file's current one.
var ErrConflict = errors.New("remote write conflict")

type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrConflict && (e.Code == http.StatusConflict || e.Code == http.StatusUnprocessableEntity)
}

type Options struct {
	BaseURL string
	Owner   string
	Repo    string
	Branch  string
	Token   string
	Client  *http.Client
}

type Store struct {
	client  *http.Client
	baseURL string
	owner   string
	repo    string
	branch  string
	token   string
}

func New(opts Options) *Store {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Store{
		client:  opts.Client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		owner:   opts.Owner,
		repo:    opts.Repo,
		branch:  opts.Branch,
		token:   opts.Token,
	}
}

type contentsResponse struct {
	SHA string `json:"sha"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

// Commit replaces the file at path with payload encoded as JSON. It reads the
// current SHA first and makes exactly one write attempt.
func (s *Store) Commit(ctx context.Context, path string, payload any) error {
	file, err := s.Read(ctx, path)
	if err != nil {
		return err
	}

	content, err := Encode(payload)
	if err != nil {
		return err
	}

	return s.Write(ctx, file, content, "Update "+path)
}

// Read returns the file handle for path on the configured branch. Any non-200
// response means the file does not exist yet and yields a handle without SHA.
func (s *Store) Read(ctx context.Context, path string) (model.RemoteFile, error) {
	file := model.RemoteFile{Path: path, Branch: s.branch}

	endpoint := s.contentsURL(path) + "?ref=" + url.QueryEscape(s.branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return file, fmt.Errorf("read %s: %w", path, err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return file, fmt.Errorf("read %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info("remote file not found, creating", "path", path, "status", resp.StatusCode)
		return file, nil
	}

	var body contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return file, fmt.Errorf("decode contents of %s: %w", path, err)
	}
	file.SHA = body.SHA

	return file, nil
}

// Write puts base64 content at file.Path. The SHA is sent only when the file
// exists; a stale or missing SHA surfaces as ErrConflict.
func (s *Store) Write(ctx context.Context, file model.RemoteFile, content, message string) error {
	branch := file.Branch
	if branch == "" {
		branch = s.branch
	}

	body, err := json.Marshal(putRequest{
		Message: message,
		Content: content,
		Branch:  branch,
		SHA:     file.SHA,
	})
	if err != nil {
		return fmt.Errorf("marshal commit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.contentsURL(file.Path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("write %s: %w", file.Path, err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("write %s: %w", file.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		slog.Info("remote file updated", "path", file.Path, "status", resp.StatusCode)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{Op: "write " + file.Path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

// Encode serializes payload as two-space indented JSON and base64-encodes it
// for transport.
func Encode(payload any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	return base64.StdEncoding.EncodeToString(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func (s *Store) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", s.baseURL, s.owner, s.repo, strings.TrimLeft(path, "/"))
}

func (s *Store) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}
