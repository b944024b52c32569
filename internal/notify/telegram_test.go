package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/model"
	"gigalert/discovery-service/internal/notify"
)

func TestFormatListing(t *testing.T) {
	text := notify.FormatListing("https://www.99freelas.com.br/", model.Listing{
		Title: "Need a logo & <banner>",
		Link:  "/project/need-a-logo-1",
	})

	assert.Contains(t, text, "Need a logo &amp; &lt;banner&gt;")
	assert.Contains(t, text, "https://www.99freelas.com.br/project/need-a-logo-1")
	assert.Contains(t, text, "➖")
}

func TestAbsoluteLink(t *testing.T) {
	assert.Equal(t, "https://src.test/p/1", notify.AbsoluteLink("https://src.test", "/p/1"))
	assert.Equal(t, "https://src.test/p/1", notify.AbsoluteLink("https://src.test/", "p/1"))
	assert.Equal(t, "https://other.test/p/1", notify.AbsoluteLink("https://src.test", "https://other.test/p/1"))
}

func TestDispatcher_NotifyListing(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	d := notify.NewDispatcher(srv.URL, "https://src.test", time.Second, 100, logger.NewNop())
	err := d.NotifyListing(context.Background(), "123:abc", "42", model.Listing{Title: "Need a logo", Link: "/p/1"})
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "42", gotBody["chat_id"])
	assert.Equal(t, "HTML", gotBody["parse_mode"])
	assert.Contains(t, gotBody["text"], "Need a logo")
	assert.Contains(t, gotBody["text"], "https://src.test/p/1")
}

func TestDispatcher_RejectedMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	d := notify.NewDispatcher(srv.URL, "https://src.test", time.Second, 100, logger.NewNop())
	err := d.Send(context.Background(), "t", "42", "hello")

	require.Error(t, err)
	assert.ErrorIs(t, err, notify.ErrSendFailed)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestDispatcher_OKFalseIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	d := notify.NewDispatcher(srv.URL, "https://src.test", time.Second, 100, logger.NewNop())
	assert.ErrorIs(t, d.Send(context.Background(), "t", "42", "hello"), notify.ErrSendFailed)
}

func TestDispatcher_TimeoutIsFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d := notify.NewDispatcher(srv.URL, "https://src.test", 50*time.Millisecond, 100, logger.NewNop())
	err := d.Send(context.Background(), "secret-token", "42", "hello")

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestDispatcher_QueuedSendsOutlastTimeout(t *testing.T) {
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	// 12 sends at 20/s queue for ~550ms, well past the 100ms send timeout.
	const sends = 12
	d := notify.NewDispatcher(srv.URL, "https://src.test", 100*time.Millisecond, 20, logger.NewNop())

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range sends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Send(context.Background(), "t", "42", "hello"); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, int32(sends), delivered.Load())
}

func TestDispatcher_ThrottleHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	d := notify.NewDispatcher(srv.URL, "https://src.test", time.Second, 0.1, logger.NewNop())
	require.NoError(t, d.Send(context.Background(), "t", "42", "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Send(ctx, "t", "42", "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send throttle")
}
