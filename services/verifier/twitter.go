package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.twitter.com"
	DefaultTimeout  = 10 * time.Second
	DefaultPageSize = 100

	referencedRetweet = "retweeted"
	referencedReply   = "replied_to"
)

type Options struct {
	BaseURL     string
	Timeout     time.Duration
	PageSize    int
	RateLimit   float64
	Burst       int
	IdentityTTL time.Duration
	Transport   http.RoundTripper
}

// TwitterVerifier checks actions against the X/Twitter v2 API using the
// user's delegated bearer token. Only the most recent page of likes or
// tweets is scanned.
type TwitterVerifier struct {
	baseURL    string
	timeout    time.Duration
	pageSize   int
	limiter    *rate.Limiter
	transport  http.RoundTripper
	identities *identityCache
	now        func() time.Time
}

func NewTwitterVerifier(opts Options) *TwitterVerifier {
	v := &TwitterVerifier{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		timeout:   opts.Timeout,
		pageSize:  opts.PageSize,
		transport: opts.Transport,
		now:       time.Now,
	}
	if v.baseURL == "" {
		v.baseURL = DefaultBaseURL
	}
	if v.timeout <= 0 {
		v.timeout = DefaultTimeout
	}
	if v.pageSize <= 0 || v.pageSize > DefaultPageSize {
		v.pageSize = DefaultPageSize
	}
	if v.transport == nil {
		v.transport = http.DefaultTransport
	}
	v.identities = newIdentityCache(opts.IdentityTTL, v.timeout)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		v.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return v
}

func (v *TwitterVerifier) Verify(ctx context.Context, cred Credential, kind ActionKind, postID string) (Result, error) {
	res := Result{Kind: kind, PostID: postID}

	if cred.AccessToken == "" {
		return res, ErrUnauthorized
	}
	if !kind.Valid() {
		return res, fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}
	if v.limiter != nil && !v.limiter.Allow() {
		return res, &RateLimitError{RetryAfter: time.Duration(float64(time.Second) / float64(v.limiter.Limit()))}
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	client := v.client(ctx, cred.AccessToken)

	userID, err := v.identities.resolve(ctx, cred.AccessToken, func(ctx context.Context) (string, error) {
		return v.me(ctx, client)
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			v.identities.invalidate(cred.AccessToken)
		}
		return res, err
	}
	res.PlatformUserID = userID

	switch kind {
	case Like:
		res.Confirmed, res.Scanned, err = v.liked(ctx, client, userID, postID)
	case Repost:
		res.Confirmed, res.Scanned, err = v.referenced(ctx, client, userID, postID, referencedRetweet)
	case Reply:
		res.Confirmed, res.Scanned, err = v.referenced(ctx, client, userID, postID, referencedReply)
	}
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			v.identities.invalidate(cred.AccessToken)
		}
		return res, err
	}

	zap.L().Debug("verifier.checked",
		zap.String("kind", string(kind)),
		zap.String("post_id", postID),
		zap.String("platform_user_id", userID),
		zap.Int("scanned", res.Scanned),
		zap.Bool("confirmed", res.Confirmed),
	)

	return res, nil
}

func (v *TwitterVerifier) client(ctx context.Context, token string) *http.Client {
	base := &http.Client{Transport: v.transport}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

type userResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type referencedTweet struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type tweet struct {
	ID               string            `json:"id"`
	ReferencedTweets []referencedTweet `json:"referenced_tweets"`
}

type tweetsResponse struct {
	Data []tweet `json:"data"`
}

func (v *TwitterVerifier) me(ctx context.Context, client *http.Client) (string, error) {
	var out userResponse
	if err := v.get(ctx, client, "/2/users/me", nil, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", errors.New("platform returned empty user id")
	}
	return out.Data.ID, nil
}

func (v *TwitterVerifier) liked(ctx context.Context, client *http.Client, userID, postID string) (bool, int, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(v.pageSize))
	q.Set("tweet.fields", "id")

	var out tweetsResponse
	if err := v.get(ctx, client, "/2/users/"+url.PathEscape(userID)+"/liked_tweets", q, &out); err != nil {
		return false, 0, err
	}
	for _, t := range out.Data {
		if t.ID == postID {
			return true, len(out.Data), nil
		}
	}
	return false, len(out.Data), nil
}

func (v *TwitterVerifier) referenced(ctx context.Context, client *http.Client, userID, postID, refType string) (bool, int, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(v.pageSize))
	q.Set("tweet.fields", "referenced_tweets")

	var out tweetsResponse
	if err := v.get(ctx, client, "/2/users/"+url.PathEscape(userID)+"/tweets", q, &out); err != nil {
		return false, 0, err
	}
	for _, t := range out.Data {
		for _, ref := range t.ReferencedTweets {
			if ref.Type == refType && ref.ID == postID {
				return true, len(out.Data), nil
			}
		}
	}
	return false, len(out.Data), nil
}

func (v *TwitterVerifier) get(ctx context.Context, client *http.Client, path string, q url.Values, out any) error {
	target := v.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: v.retryAfter(resp.Header)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return fmt.Errorf("decode platform response: %w", err)
	}
	return nil
}

// retryAfter reads x-rate-limit-reset (unix seconds), falling back to Retry-After.
func (v *TwitterVerifier) retryAfter(h http.Header) time.Duration {
	if reset, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64); err == nil {
		if d := time.Unix(reset, 0).Sub(v.now()); d > 0 {
			return d
		}
		return 0
	}
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
