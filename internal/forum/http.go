package forum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"forumsync/internal/importer"
)

// pluginPrefix is where the forum-side sync plugin mounts its routes for
// tag lookups and custom data, which the core write API does not expose.
const pluginPrefix = "/api/v3/plugins/forumsync"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// APIError is a non-2xx response from the forum.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), msg)
}

// retryable reports whether the request may succeed if sent again. A POST
// that reached the server may have been applied, so only a rate limit
// rejection is retried for it.
func (e *APIError) retryable(method string) bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= 500 && method != http.MethodPost
}

// HTTPOptions configure an HTTPForum.
type HTTPOptions struct {
	BaseURL string
	Token   string

	// UserID is sent as _uid so a master token can post as that user.
	UserID int

	Timeout time.Duration

	// MaxRetries is the number of extra attempts for network errors, 429
	// and 5xx responses. POST requests create posts and topics and are
	// retried only on 429 or when the connection could not be opened.
	// Zero fails on the first error.
	MaxRetries   int
	RetryBackoff time.Duration

	Client *http.Client
}

// HTTPForum talks to the forum's REST API with a bearer token.
type HTTPForum struct {
	base    *url.URL
	token   string
	userID  int
	client  *http.Client
	retries int
	backoff time.Duration
}

// NewHTTPForum creates a client for the forum at opts.BaseURL.
func NewHTTPForum(opts HTTPOptions) (*HTTPForum, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("forum url is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("forum api token is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing forum url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("forum url must be http or https: %s", opts.BaseURL)
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	return &HTTPForum{
		base:    base,
		token:   opts.Token,
		userID:  opts.UserID,
		client:  client,
		retries: max(opts.MaxRetries, 0),
		backoff: backoff,
	}, nil
}

// envelope is the forum's standard response wrapper.
type envelope struct {
	Status struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Response json.RawMessage `json:"response"`
}

// Ping verifies the forum is reachable and the token is accepted.
func (f *HTTPForum) Ping(ctx context.Context) error {
	return f.do(ctx, http.MethodGet, "/api/v3/ping", nil, nil, nil)
}

type categoryNode struct {
	CID       int            `json:"cid"`
	Name      string         `json:"name"`
	ParentCID int            `json:"parentCid"`
	Children  []categoryNode `json:"children"`
}

// ListCategories reads the category tree and returns the children of parentID.
func (f *HTTPForum) ListCategories(ctx context.Context, parentID int) ([]importer.Category, error) {
	var tree struct {
		Categories []categoryNode `json:"categories"`
	}
	if err := f.doRaw(ctx, http.MethodGet, "/api/categories", nil, nil, &tree); err != nil {
		return nil, err
	}

	var out []importer.Category
	var walk func(nodes []categoryNode)
	walk = func(nodes []categoryNode) {
		for _, n := range nodes {
			if n.ParentCID == parentID {
				out = append(out, importer.Category{ID: n.CID, Name: n.Name, ParentID: n.ParentCID})
			}
			walk(n.Children)
		}
	}
	walk(tree.Categories)
	return out, nil
}

// CreateCategory creates a category under parentID.
func (f *HTTPForum) CreateCategory(ctx context.Context, name string, parentID int) (int, error) {
	body := map[string]any{"name": name, "parentCid": parentID}
	var resp struct {
		CID int `json:"cid"`
	}
	if err := f.do(ctx, http.MethodPost, "/api/v3/categories", nil, body, &resp); err != nil {
		return 0, err
	}
	if resp.CID == 0 {
		return 0, fmt.Errorf("forum returned no category id for %q", name)
	}
	return resp.CID, nil
}

type topicPayload struct {
	TID        int            `json:"tid"`
	Slug       string         `json:"slug"`
	MainPID    int            `json:"mainPid"`
	Tags       []string       `json:"tags"`
	CustomData map[string]any `json:"customData"`
	PostCount  int            `json:"postcount"`
}

// FindTopicByTag asks the sync plugin for the topic in categoryID with tag.
func (f *HTTPForum) FindTopicByTag(ctx context.Context, tag string, categoryID int) (*importer.RemoteTopic, error) {
	q := url.Values{}
	q.Set("tag", tag)
	q.Set("cid", strconv.Itoa(categoryID))

	var resp struct {
		Topic *topicPayload `json:"topic"`
	}
	err := f.do(ctx, http.MethodGet, pluginPrefix+"/topics", q, nil, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resp.Topic == nil || resp.Topic.TID == 0 {
		return nil, nil
	}
	return &importer.RemoteTopic{
		ID:         resp.Topic.TID,
		Slug:       trimSlugID(resp.Topic.Slug),
		MainPostID: resp.Topic.MainPID,
		Tags:       resp.Topic.Tags,
		CustomData: resp.Topic.CustomData,
		PostCount:  resp.Topic.PostCount,
	}, nil
}

// CreateTopic creates a topic with its main post, tags and custom data.
func (f *HTTPForum) CreateTopic(ctx context.Context, t importer.NewTopic) (*importer.CreatedTopic, error) {
	body := map[string]any{
		"cid":        t.CategoryID,
		"title":      t.Title,
		"content":    t.Content,
		"tags":       t.Tags,
		"customData": t.CustomData,
	}
	f.setUID(body, t.AuthorID)

	var resp topicPayload
	if err := f.do(ctx, http.MethodPost, "/api/v3/topics", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.TID == 0 {
		return nil, fmt.Errorf("forum returned no topic id for %q", t.Title)
	}
	return &importer.CreatedTopic{ID: resp.TID, Slug: trimSlugID(resp.Slug), MainPostID: resp.MainPID}, nil
}

// UpdatePost replaces a post's content.
func (f *HTTPForum) UpdatePost(ctx context.Context, postID int, content string) error {
	body := map[string]any{"content": content}
	f.setUID(body, 0)
	return f.do(ctx, http.MethodPut, "/api/v3/posts/"+strconv.Itoa(postID), nil, body, nil)
}

// UpdateTopicMetadata replaces a topic's custom data through the sync plugin.
func (f *HTTPForum) UpdateTopicMetadata(ctx context.Context, topicID int, customData map[string]any) error {
	body := map[string]any{"customData": customData}
	return f.do(ctx, http.MethodPut, pluginPrefix+"/topics/"+strconv.Itoa(topicID)+"/custom-data", nil, body, nil)
}

// CreateReply posts a reply to a topic.
func (f *HTTPForum) CreateReply(ctx context.Context, r importer.NewReply) (int, error) {
	body := map[string]any{"content": r.Content}
	f.setUID(body, r.AuthorID)

	var resp struct {
		PID int `json:"pid"`
	}
	if err := f.do(ctx, http.MethodPost, "/api/v3/topics/"+strconv.Itoa(r.TopicID), nil, body, &resp); err != nil {
		return 0, err
	}
	if resp.PID == 0 {
		return 0, fmt.Errorf("forum returned no post id for reply to topic %d", r.TopicID)
	}
	return resp.PID, nil
}

func (f *HTTPForum) setUID(body map[string]any, authorID int) {
	uid := authorID
	if uid == 0 {
		uid = f.userID
	}
	if uid != 0 {
		body["_uid"] = uid
	}
}

// do sends a request to the write API and decodes the "response" field of
// the envelope into out.
func (f *HTTPForum) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var env envelope
	if err := f.doRaw(ctx, method, path, query, body, &env); err != nil {
		return err
	}
	if out == nil || len(env.Response) == 0 || string(env.Response) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}

// doRaw sends a request, retrying transient failures, and decodes the whole
// body into out.
func (f *HTTPForum) doRaw(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encoding request: %w", method, path, err)
		}
	}

	backoff := f.backoff
	for attempt := 0; ; attempt++ {
		err := f.once(ctx, method, path, query, payload, out)
		if err == nil {
			return nil
		}
		if attempt >= f.retries || !isRetryable(method, err) || ctx.Err() != nil {
			return err
		}

		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s %s: context canceled during backoff: %w", method, path, ctx.Err())
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (f *HTTPForum) once(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	u := *f.base
	u.Path = f.base.Path + path
	u.RawPath = ""
	u.RawQuery = query.Encode()

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("%s %s: building request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &transportError{method: method, path: path, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
		var env envelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Message = env.Status.Message
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}

// transportError is a request that got no HTTP response.
type transportError struct {
	method string
	path   string
	err    error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.method, e.path, e.err)
}

func (e *transportError) Unwrap() error { return e.err }

func isRetryable(method string, err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable(method)
	}
	var tErr *transportError
	if !errors.As(err, &tErr) {
		return false
	}
	if method != http.MethodPost {
		return true
	}
	var opErr *net.OpError
	return errors.As(tErr.err, &opErr) && opErr.Op == "dial"
}

// trimSlugID strips the "<tid>/" prefix the forum puts on topic slugs.
func trimSlugID(slug string) string {
	if prefix, rest, ok := strings.Cut(slug, "/"); ok {
		if _, err := strconv.Atoi(prefix); err == nil {
			return rest
		}
	}
	return slug
}

// Compile-time check that HTTPForum implements importer.Forum
var _ importer.Forum = (*HTTPForum)(nil)
