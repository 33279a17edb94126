package testutil

import (
	"context"
	"sync"

	"forumsync/internal/forum"
	"forumsync/internal/importer"
)

// Forum method names as counted by RecordingForum.
const (
	MethodListCategories      = "ListCategories"
	MethodCreateCategory      = "CreateCategory"
	MethodFindTopicByTag      = "FindTopicByTag"
	MethodCreateTopic         = "CreateTopic"
	MethodUpdatePost          = "UpdatePost"
	MethodUpdateTopicMetadata = "UpdateTopicMetadata"
	MethodCreateReply         = "CreateReply"
)

var writeMethods = []string{
	MethodCreateCategory,
	MethodCreateTopic,
	MethodUpdatePost,
	MethodUpdateTopicMetadata,
	MethodCreateReply,
}

// Call is one recorded forum call.
type Call struct {
	Method string
	Args   []any
}

// RecordingForum wraps a MemoryForum, records every call, and can be told to
// fail specific methods. Safe for concurrent use.
type RecordingForum struct {
	*forum.MemoryForum

	mu       sync.Mutex
	calls    []Call
	failures map[string]error
	failAt   map[string]failure
}

// failure fails a single upcoming call.
type failure struct {
	call int
	err  error
}

// NewRecordingForum creates a RecordingForum over an empty MemoryForum.
func NewRecordingForum() *RecordingForum {
	return &RecordingForum{
		MemoryForum: forum.NewMemoryForum(),
		failures:    make(map[string]error),
		failAt:      make(map[string]failure),
	}
}

// FailOn makes every later call to method return err. A nil err clears it.
func (f *RecordingForum) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, method)
		return
	}
	f.failures[method] = err
}

// FailOnCall makes only the nth call to method from now on return err,
// without reaching the underlying forum.
func (f *RecordingForum) FailOnCall(method string, nth int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt[method] = failure{call: f.countLocked(method) + nth, err: err}
}

// Calls returns the recorded calls in order.
func (f *RecordingForum) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many times method was called.
func (f *RecordingForum) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countLocked(method)
}

func (f *RecordingForum) countLocked(method string) int {
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Writes returns how many mutating calls were made.
func (f *RecordingForum) Writes() int {
	n := 0
	for _, m := range writeMethods {
		n += f.Count(m)
	}
	return n
}

// Reset forgets recorded calls and pending FailOnCall failures. Failures set
// with FailOn are kept.
func (f *RecordingForum) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	clear(f.failAt)
}

func (f *RecordingForum) record(method string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Args: args})
	if fl, ok := f.failAt[method]; ok && fl.call == f.countLocked(method) {
		delete(f.failAt, method)
		return fl.err
	}
	return f.failures[method]
}

func (f *RecordingForum) ListCategories(ctx context.Context, parentID int) ([]importer.Category, error) {
	if err := f.record(MethodListCategories, parentID); err != nil {
		return nil, err
	}
	return f.MemoryForum.ListCategories(ctx, parentID)
}

func (f *RecordingForum) CreateCategory(ctx context.Context, name string, parentID int) (int, error) {
	if err := f.record(MethodCreateCategory, name, parentID); err != nil {
		return 0, err
	}
	return f.MemoryForum.CreateCategory(ctx, name, parentID)
}

func (f *RecordingForum) FindTopicByTag(ctx context.Context, tag string, categoryID int) (*importer.RemoteTopic, error) {
	if err := f.record(MethodFindTopicByTag, tag, categoryID); err != nil {
		return nil, err
	}
	return f.MemoryForum.FindTopicByTag(ctx, tag, categoryID)
}

func (f *RecordingForum) CreateTopic(ctx context.Context, t importer.NewTopic) (*importer.CreatedTopic, error) {
	if err := f.record(MethodCreateTopic, t); err != nil {
		return nil, err
	}
	return f.MemoryForum.CreateTopic(ctx, t)
}

func (f *RecordingForum) UpdatePost(ctx context.Context, postID int, content string) error {
	if err := f.record(MethodUpdatePost, postID, content); err != nil {
		return err
	}
	return f.MemoryForum.UpdatePost(ctx, postID, content)
}

func (f *RecordingForum) UpdateTopicMetadata(ctx context.Context, topicID int, customData map[string]any) error {
	if err := f.record(MethodUpdateTopicMetadata, topicID, customData); err != nil {
		return err
	}
	return f.MemoryForum.UpdateTopicMetadata(ctx, topicID, customData)
}

func (f *RecordingForum) CreateReply(ctx context.Context, r importer.NewReply) (int, error) {
	if err := f.record(MethodCreateReply, r); err != nil {
		return 0, err
	}
	return f.MemoryForum.CreateReply(ctx, r)
}

// Compile-time check that RecordingForum implements importer.Forum
var _ importer.Forum = (*RecordingForum)(nil)
