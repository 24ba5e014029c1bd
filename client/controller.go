// Package client guards calls to the outfit API: one request at a time, a cool-down
// between attempts, cancellation on teardown and user-facing error messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"outfitapi/models"
)

// DefaultCoolDown is the minimum gap between two generation attempts.
const DefaultCoolDown = 3000 * time.Millisecond

var (
	// ErrInFlight means another call is still running; callers drop it silently.
	ErrInFlight = errors.New("a request is already in flight")
	// ErrCancelled means Cancel or Close aborted the call; it is not reported to users.
	ErrCancelled = errors.New("request cancelled")
)

// CoolDownError rejects a call made too soon after the previous attempt.
type CoolDownError struct {
	Remaining time.Duration
}

func (e *CoolDownError) Error() string {
	return fmt.Sprintf("Please wait %s before generating again", seconds(ceilSeconds(e.Remaining)))
}

// APIError is a failed API call. Error returns the user-facing message.
type APIError struct {
	Status      int
	Code        string
	ServerError string
	RetryAfter  int
	Message     string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsCancelled reports whether err comes from a cancelled call.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsSilent reports errors that should not be shown to the user.
func IsSilent(err error) bool {
	return errors.Is(err, ErrInFlight) || IsCancelled(err)
}

// Doer sends HTTP requests; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Controller. Zero values pick the defaults.
type Options struct {
	BaseURL    string
	HTTPClient Doer
	// CoolDown defaults to DefaultCoolDown.
	CoolDown time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller serializes calls to the outfit API for one UI session.
type Controller struct {
	baseURL  string
	http     Doer
	coolDown time.Duration
	now      func() time.Time

	mu          sync.Mutex
	lastAttempt time.Time
	inFlight    bool
	cancel      context.CancelCauseFunc

	imagesMu       sync.Mutex
	images         map[string][]models.OutfitImage
	fetchingImages bool
}

// New returns a Controller with no attempt recorded yet.
func New(opts Options) *Controller {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.CoolDown <= 0 {
		opts.CoolDown = DefaultCoolDown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     opts.HTTPClient,
		coolDown: opts.CoolDown,
		now:      opts.Now,
		images:   make(map[string][]models.OutfitImage),
	}
}

type generateRequest struct {
	UserItems   []models.UserItem        `json:"userItems"`
	Preferences models.OutfitPreferences `json:"preferences"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Generate posts one generation request. It returns ErrInFlight while another call is
// running and a *CoolDownError inside the cool-down window; neither touches the network.
func (c *Controller) Generate(ctx context.Context, userItems []models.UserItem, preferences models.OutfitPreferences) (*models.GenerationResult, error) {
	ctx, release, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var result models.GenerationResult
	if err := c.post(ctx, "/generate-outfit", generateRequest{UserItems: userItems, Preferences: preferences}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Controller) begin(ctx context.Context) (context.Context, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return nil, nil, ErrInFlight
	}
	now := c.now()
	if !c.lastAttempt.IsZero() {
		if elapsed := now.Sub(c.lastAttempt); elapsed < c.coolDown {
			return nil, nil, &CoolDownError{Remaining: c.coolDown - elapsed}
		}
	}

	c.lastAttempt = now
	c.inFlight = true
	ctx, cancel := context.WithCancelCause(ctx)
	c.cancel = cancel

	release := func() {
		cancel(nil)
		c.mu.Lock()
		c.inFlight = false
		c.cancel = nil
		c.mu.Unlock()
	}
	return ctx, release, nil
}

// InFlight reports whether a generation request is outstanding.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Cancel aborts the in-flight request, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel(ErrCancelled)
	}
}

// Close cancels any in-flight request and forgets the session state.
func (c *Controller) Close() {
	c.Cancel()
	c.mu.Lock()
	c.lastAttempt = time.Time{}
	c.mu.Unlock()

	c.imagesMu.Lock()
	c.images = make(map[string][]models.OutfitImage)
	c.imagesMu.Unlock()
}

type searchImagesRequest struct {
	Variation models.OutfitVariation `json:"variation"`
	Count     int                    `json:"count"`
}

type searchImagesResponse struct {
	Images []models.OutfitImage `json:"images"`
}

// SearchImages fetches images for a variation once per session; repeated calls for the
// same name and item types are served from memory.
func (c *Controller) SearchImages(ctx context.Context, variation models.OutfitVariation, count int) ([]models.OutfitImage, error) {
	key := variation.CacheKey()

	c.imagesMu.Lock()
	if images, ok := c.images[key]; ok {
		c.imagesMu.Unlock()
		return images, nil
	}
	if c.fetchingImages {
		c.imagesMu.Unlock()
		return nil, ErrInFlight
	}
	c.fetchingImages = true
	c.imagesMu.Unlock()

	defer func() {
		c.imagesMu.Lock()
		c.fetchingImages = false
		c.imagesMu.Unlock()
	}()

	var out searchImagesResponse
	if err := c.post(ctx, "/search-outfit-images", searchImagesRequest{Variation: variation, Count: count}, &out); err != nil {
		return nil, err
	}
	if out.Images == nil {
		out.Images = []models.OutfitImage{}
	}

	c.imagesMu.Lock()
	c.images[key] = out.Images
	c.imagesMu.Unlock()
	return out.Images, nil
}

func (c *Controller) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return ctxErr
		}
		return &APIError{Code: CodeNetwork, ServerError: err.Error(), Message: MessageFor(0, CodeNetwork, "", 0)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return ctxErr
		}
		return &APIError{Status: resp.StatusCode, Code: CodeNetwork, ServerError: err.Error(), Message: MessageFor(0, CodeNetwork, "", 0)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Status: resp.StatusCode, Code: CodeInvalidResponse, ServerError: err.Error(), Message: MessageFor(resp.StatusCode, CodeInvalidResponse, "", 0)}
	}
	return nil
}

// contextError classifies a finished ctx. Only Cancel and Close yield ErrCancelled;
// an expired caller deadline is a network failure the user should see.
func contextError(ctx context.Context) error {
	cause := context.Cause(ctx)
	switch {
	case cause == nil:
		return nil
	case errors.Is(cause, ErrCancelled):
		return ErrCancelled
	case errors.Is(cause, context.DeadlineExceeded):
		return &APIError{Code: CodeNetwork, ServerError: cause.Error(), Message: MessageFor(0, CodeNetwork, "", 0)}
	default:
		return cause
	}
}

func apiError(resp *http.Response, data []byte) *APIError {
	retryAfter, _ := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
	if retryAfter < 0 {
		retryAfter = 0
	}
	var body errorResponse
	// a non-JSON body falls back to the status-keyed message
	_ = json.Unmarshal(data, &body)
	return &APIError{
		Status:      resp.StatusCode,
		Code:        body.Code,
		ServerError: body.Error,
		RetryAfter:  retryAfter,
		Message:     MessageFor(resp.StatusCode, body.Code, body.Error, retryAfter),
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
