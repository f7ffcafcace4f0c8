package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrSuperseded is returned to a Show call whose navigation was replaced
// before its fetch completed.
var ErrSuperseded = errors.New("navigation superseded")

// View is what is currently displayed.
type View struct {
	TopicID string
	Content Content
	Err     error
	Loading bool
}

// Viewer serializes content loads per learner. Each Show starts a new
// generation and cancels the previous in-flight fetch.
type Viewer struct {
	fetcher Fetcher

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	current View
}

// NewViewer creates a viewer over fetcher.
func NewViewer(fetcher Fetcher) *Viewer {
	return &Viewer{fetcher: fetcher}
}

// Show fetches topicID and makes it current. If another Show starts before
// this one finishes, this call returns ErrSuperseded and leaves the newer
// view untouched.
func (v *Viewer) Show(ctx context.Context, topicID string) (View, error) {
	return v.Start(ctx, topicID)()
}

// Start begins a new generation for topicID and cancels the previous
// in-flight fetch. The returned func performs the fetch; it may run on
// another goroutine, and generations are ordered by Start, not by when the
// fetch runs.
func (v *Viewer) Start(ctx context.Context, topicID string) func() (View, error) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	if v.cancel != nil {
		v.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.current = View{TopicID: topicID, Loading: true}
	v.mu.Unlock()

	return func() (View, error) {
		c, err := v.fetcher.Fetch(fetchCtx, topicID)

		v.mu.Lock()
		defer v.mu.Unlock()
		cancel()
		if gen != v.gen {
			return View{}, ErrSuperseded
		}
		v.cancel = nil
		v.current = View{TopicID: topicID, Content: c, Err: err}
		return v.current, err
	}
}

// Current returns the displayed view.
func (v *Viewer) Current() View {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// DirFetcher serves {root}/{topicID}.md from disk.
type DirFetcher struct {
	root string
}

// NewDirFetcher creates a filesystem content fetcher.
func NewDirFetcher(root string) *DirFetcher {
	return &DirFetcher{root: root}
}

func (f *DirFetcher) Fetch(ctx context.Context, topicID string) (Content, error) {
	if err := ctx.Err(); err != nil {
		return Content{}, err
	}
	if topicID == "" || strings.ContainsAny(topicID, `/\`) || strings.Contains(topicID, "..") {
		return Content{}, fmt.Errorf("%w: invalid topic id %q", ErrContentNotFound, topicID)
	}

	body, err := os.ReadFile(filepath.Join(f.root, topicID+".md"))
	if err != nil {
		return Content{}, fmt.Errorf("%w: %v", ErrContentNotFound, err)
	}
	if LooksLikeErrorPage("", body) {
		return Content{}, fmt.Errorf("%w: %s is an HTML page", ErrContentNotFound, topicID)
	}
	return Content{TopicID: topicID, Body: string(body), ContentType: "text/markdown"}, nil
}
