package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	meCalls atomic.Int32
	liked   []string
	tweets  []tweet
	status  int
	header  http.Header
}

func (f *fakePlatform) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		f.meCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"id": "42", "username": "alice"}})
	})
	mux.HandleFunc("/2/users/42/liked_tweets", func(w http.ResponseWriter, r *http.Request) {
		if f.status != 0 {
			for k, v := range f.header {
				w.Header()[k] = v
			}
			w.WriteHeader(f.status)
			return
		}
		assert.Equal(t, "id", r.URL.Query().Get("tweet.fields"))
		data := make([]map[string]string, 0, len(f.liked))
		for _, id := range f.liked {
			data = append(data, map[string]string{"id": id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	mux.HandleFunc("/2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "referenced_tweets", r.URL.Query().Get("tweet.fields"))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": f.tweets})
	})
	return mux
}

func newTestVerifier(t *testing.T, f *fakePlatform) *TwitterVerifier {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewTwitterVerifier(Options{BaseURL: srv.URL, Timeout: time.Second, IdentityTTL: time.Minute})
}

var good = Credential{AccessToken: "good-token", UserID: "u1"}

func TestVerifyLike(t *testing.T) {
	f := &fakePlatform{liked: []string{"100", "200"}}
	v := newTestVerifier(t, f)

	res, err := v.Verify(context.Background(), good, Like, "200")
	require.NoError(t, err)
	require.True(t, res.Confirmed)
	require.Equal(t, "42", res.PlatformUserID)
	require.Equal(t, 2, res.Scanned)

	res, err = v.Verify(context.Background(), good, Like, "300")
	require.NoError(t, err)
	require.False(t, res.Confirmed)
}

func TestVerifyRepostAndReply(t *testing.T) {
	f := &fakePlatform{tweets: []tweet{
		{ID: "1", ReferencedTweets: []referencedTweet{{Type: referencedRetweet, ID: "500"}}},
		{ID: "2", ReferencedTweets: []referencedTweet{{Type: referencedReply, ID: "600"}}},
	}}
	v := newTestVerifier(t, f)

	res, err := v.Verify(context.Background(), good, Repost, "500")
	require.NoError(t, err)
	require.True(t, res.Confirmed)

	// a reply to 500 does not count as a repost of 600
	res, err = v.Verify(context.Background(), good, Repost, "600")
	require.NoError(t, err)
	require.False(t, res.Confirmed)

	res, err = v.Verify(context.Background(), good, Reply, "600")
	require.NoError(t, err)
	require.True(t, res.Confirmed)
}

func TestVerifyUnauthorized(t *testing.T) {
	v := newTestVerifier(t, &fakePlatform{})

	_, err := v.Verify(context.Background(), Credential{AccessToken: "expired"}, Like, "1")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(context.Background(), Credential{}, Like, "1")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyPlatformRateLimit(t *testing.T) {
	reset := time.Now().Add(90 * time.Second).Unix()
	f := &fakePlatform{
		status: http.StatusTooManyRequests,
		header: http.Header{"X-Rate-Limit-Reset": []string{strconv.FormatInt(reset, 10)}},
	}
	v := newTestVerifier(t, f)

	_, err := v.Verify(context.Background(), good, Like, "1")
	require.ErrorIs(t, err, ErrRateLimited)

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	require.Greater(t, rl.RetryAfter, time.Minute)
}

func TestVerifyServerErrorIsTransient(t *testing.T) {
	v := newTestVerifier(t, &fakePlatform{status: http.StatusBadGateway})

	_, err := v.Verify(context.Background(), good, Like, "1")
	require.ErrorIs(t, err, ErrTransient)
}

func TestVerifyUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	v := NewTwitterVerifier(Options{BaseURL: srv.URL, Timeout: time.Second})

	_, err := v.Verify(context.Background(), good, Like, "1")
	require.ErrorIs(t, err, ErrTransient)
}

func TestVerifyLocalLimiter(t *testing.T) {
	f := &fakePlatform{liked: []string{"1"}}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	v := NewTwitterVerifier(Options{BaseURL: srv.URL, RateLimit: 0.01, Burst: 1})

	_, err := v.Verify(context.Background(), good, Like, "1")
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), good, Like, "1")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestIdentityLookedUpOnce(t *testing.T) {
	f := &fakePlatform{liked: []string{"1"}}
	v := newTestVerifier(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Verify(context.Background(), good, Like, "1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), f.meCalls.Load())
}

func TestIdentityCacheExpires(t *testing.T) {
	c := newIdentityCache(time.Minute, time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "42", nil
	}

	_, err := c.resolve(context.Background(), "tok", fetch)
	require.NoError(t, err)
	_, err = c.resolve(context.Background(), "tok", fetch)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	now = now.Add(2 * time.Minute)
	_, err = c.resolve(context.Background(), "tok", fetch)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestVerifyTimeoutIsTransient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	v := NewTwitterVerifier(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := v.Verify(context.Background(), good, Like, "1")
	require.ErrorIs(t, err, ErrTransient)
	require.Less(t, time.Since(start), time.Second)
}

func TestLikeScanIsCappedAtOnePage(t *testing.T) {
	for _, size := range []int{0, 100, 500} {
		pages := make(chan string, 1)
		mux := http.NewServeMux()
		mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"id": "42"}})
		})
		mux.HandleFunc("/2/users/42/liked_tweets", func(w http.ResponseWriter, r *http.Request) {
			pages <- r.URL.Query().Get("max_results")
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{{"id": "7"}}})
		})
		srv := httptest.NewServer(mux)
		v := NewTwitterVerifier(Options{BaseURL: srv.URL, PageSize: size})

		res, err := v.Verify(context.Background(), good, Like, "1")
		srv.Close()
		require.NoError(t, err)
		require.False(t, res.Confirmed)
		require.Equal(t, "100", <-pages, "page size %d", size)
	}
}

func TestIdentityLookupSurvivesCallerCancel(t *testing.T) {
	c := newIdentityCache(time.Minute, time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "42", nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.resolve(first, "tok", fetch)
		firstErr <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		id, err := c.resolve(context.Background(), "tok", fetch)
		assert.NoError(t, err)
		second <- id
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, ErrTransient)

	close(release)
	require.Equal(t, "42", <-second)
	require.Equal(t, int32(1), calls.Load())
}
