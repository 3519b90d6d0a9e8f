package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"repoEventsCache/internal/model"
	"repoEventsCache/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubArchive struct {
	mu          sync.Mutex
	saved       []string
	invalidated int
}

func (a *stubArchive) Save(e *model.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, e.ID)
	return nil
}

func (a *stubArchive) InvalidateSnapshot() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invalidated++
}

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func eventsJSON(t *testing.T, prefix string, n int) string {
	t.Helper()
	events := make([]model.Event, n)
	for i := range events {
		events[i].ID = fmt.Sprintf("%s%d", prefix, i)
		events[i].Type = "WatchEvent"
	}
	data, err := json.Marshal(events)
	require.NoError(t, err)
	return string(data)
}

func TestClientFetch(t *testing.T) {
	t.Run("decodes a valid feed", func(t *testing.T) {
		srv := feedServer(t, 200, eventsJSON(t, "e", 3))
		c := NewClient(srv.URL)

		events, err := c.Fetch(context.Background())
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, "e0", events[0].ID)
	})

	t.Run("404 is an error", func(t *testing.T) {
		srv := feedServer(t, 404, `{"message":"Not Found"}`)
		c := NewClient(srv.URL)

		_, err := c.Fetch(context.Background())
		assert.Error(t, err)
	})

	t.Run("non-array body is an error", func(t *testing.T) {
		srv := feedServer(t, 200, `{"message":"rate limited"}`)
		c := NewClient(srv.URL)

		_, err := c.Fetch(context.Background())
		assert.Error(t, err)
	})

	t.Run("malformed records are skipped", func(t *testing.T) {
		srv := feedServer(t, 200, `[{"id":"good"}, "nope", {"id":"also-good"}]`)
		c := NewClient(srv.URL)

		events, err := c.Fetch(context.Background())
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "good", events[0].ID)
		assert.Equal(t, "also-good", events[1].ID)
	})
}

func newTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.json")
	s := store.New(path)
	s.Load()
	return s, path
}

func TestRefresher(t *testing.T) {
	t.Run("successful cycle merges, archives and invalidates", func(t *testing.T) {
		srv := feedServer(t, 200, eventsJSON(t, "e", 3))
		s, _ := newTestStore(t)
		a := &stubArchive{}
		r := NewRefresher(NewClient(srv.URL), s, a)

		n := r.Refresh(context.Background())

		assert.Equal(t, 3, n)
		assert.Len(t, s.Events(), 3)
		assert.Equal(t, []string{"e0", "e1", "e2"}, a.saved)
		assert.Equal(t, 1, a.invalidated)
	})

	t.Run("404 leaves memory and file untouched", func(t *testing.T) {
		srv := feedServer(t, 404, `{"message":"Not Found"}`)
		s, path := newTestStore(t)
		s.Merge([]model.Event{{ID: "existing"}})
		a := &stubArchive{}
		r := NewRefresher(NewClient(srv.URL), s, a)

		n := r.Refresh(context.Background())

		assert.Equal(t, 1, n)
		require.Len(t, s.Events(), 1)
		assert.Equal(t, "existing", s.Events()[0].ID)
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
		assert.Empty(t, a.saved)
		assert.Zero(t, a.invalidated)
	})

	t.Run("garbage body is a no-op", func(t *testing.T) {
		srv := feedServer(t, 200, `<!doctype html>`)
		s, _ := newTestStore(t)
		a := &stubArchive{}
		r := NewRefresher(NewClient(srv.URL), s, a)

		n := r.Refresh(context.Background())
		assert.Zero(t, n)
		assert.Empty(t, s.Events())
	})
}

type blockingFetcher struct {
	calls   atomic.Int32
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context) ([]model.Event, error) {
	f.calls.Add(1)
	f.once.Do(func() { close(f.entered) })
	<-f.release
	return []model.Event{{ID: "only"}}, nil
}

func TestRefresherSingleFlight(t *testing.T) {
	s, _ := newTestStore(t)
	f := &blockingFetcher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := NewRefresher(f, s, &stubArchive{})

	var wg sync.WaitGroup
	first := make(chan int, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first <- r.Refresh(context.Background())
	}()
	<-f.entered // the flight is now in progress

	results := make([]int, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Refresh(context.Background())
		}(i)
	}

	// give the waiters time to park on the in-flight cycle, then finish it
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 1, <-first)
	for _, n := range results {
		assert.Equal(t, 1, n)
	}
}
