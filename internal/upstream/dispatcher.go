package upstream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"gemini-adapter-go/internal/config"
	apperrors "gemini-adapter-go/internal/errors"
	"gemini-adapter-go/internal/keypool"
	log "github.com/sirupsen/logrus"
)

// Dispatcher drives the attempt loop: lease a credential, call upstream,
// classify the outcome, and either return, fail over, or give up. A
// credential is never retried within one request.
type Dispatcher struct {
	pool        *keypool.Pool
	client      *Client
	maxAttempts int
	perAttempt  time.Duration
	overall     time.Duration
}

func NewDispatcher(pool *keypool.Pool, client *Client, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		pool:        pool,
		client:      client,
		maxAttempts: cfg.Upstream.MaxAttempts,
		perAttempt:  cfg.PerAttemptTimeout(),
		overall:     cfg.OverallDeadline(),
	}
}

// Execute runs a non-stream request to completion and returns the
// upstream response body.
func (d *Dispatcher) Execute(ctx context.Context, model string, payload []byte) ([]byte, *apperrors.APIError) {
	ctx, cancel := context.WithTimeout(ctx, d.overall)
	defer cancel()

	var body []byte
	apiErr := d.run(ctx, model, payload, func(attemptCtx context.Context, lease keypool.Lease) (int, []byte, error) {
		resp, err := d.client.Generate(attemptCtx, model, payload, lease.Secret)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return resp.StatusCode, nil, readErr
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body = b
		}
		return resp.StatusCode, b, nil
	})
	if apiErr != nil {
		return nil, apiErr
	}
	return body, nil
}

// StreamResult is a committed streaming response. The caller owns Body
// and must close it.
type StreamResult struct {
	Body         io.ReadCloser
	CredentialID string
}

// bufferedBody keeps the peeked bytes readable while closing the
// underlying response body.
type bufferedBody struct {
	r *bufio.Reader
	c io.Closer
}

func (b *bufferedBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *bufferedBody) Close() error               { return b.c.Close() }

// ExecuteStream runs the attempt loop until an attempt yields a 2xx
// response, at which point the stream is committed: the raw body is
// handed to the caller and no further failover happens. Cancel releases
// the overall deadline and must be called once the stream is drained.
func (d *Dispatcher) ExecuteStream(ctx context.Context, model string, payload []byte) (*StreamResult, context.CancelFunc, *apperrors.APIError) {
	ctx, cancel := context.WithTimeout(ctx, d.overall)

	var result *StreamResult
	apiErr := d.run(ctx, model, payload, func(attemptCtx context.Context, lease keypool.Lease) (int, []byte, error) {
		// The stream must outlive the attempt context; only the overall
		// deadline bounds it. attemptCtx gates header arrival via the
		// transport's ResponseHeaderTimeout plus dial/TLS budgets.
		resp, err := d.client.Stream(ctx, model, payload, lease.Secret)
		if err != nil {
			return 0, nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			// A 2xx alone does not commit: the body must yield at least
			// one byte first, so a connection dropped right after the
			// headers fails over instead of surfacing in-band.
			br := bufio.NewReaderSize(resp.Body, 32*1024)
			if _, peekErr := br.Peek(1); peekErr != nil {
				resp.Body.Close()
				return 0, nil, peekErr
			}
			result = &StreamResult{Body: &bufferedBody{r: br, c: resp.Body}, CredentialID: lease.ID}
			return resp.StatusCode, nil, nil
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, b, nil
	})
	if apiErr != nil {
		cancel()
		return nil, nil, apiErr
	}
	return result, cancel, nil
}

type attemptFunc func(ctx context.Context, lease keypool.Lease) (status int, body []byte, err error)

func (d *Dispatcher) run(ctx context.Context, model string, payload []byte, attempt attemptFunc) *apperrors.APIError {
	tried := make(map[string]struct{})
	var lastErr *apperrors.APIError

	for i := 0; i < d.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return d.deadlineError(err, lastErr)
		}

		lease, err := d.pool.Lease(tried)
		if err != nil {
			var noCred *keypool.ErrNoHealthyCredential
			if errors.As(err, &noCred) {
				if i > 0 {
					// Credentials existed but every one failed this request.
					return d.exhausted(lastErr)
				}
				return noCredentialError(noCred)
			}
			return apperrors.NewKind(apperrors.KindTransientUpstream, http.StatusBadGateway, err.Error())
		}
		tried[lease.ID] = struct{}{}

		attemptCtx, cancelAttempt := context.WithTimeout(ctx, d.perAttempt)
		status, body, attemptErr := attempt(attemptCtx, lease)
		cancelAttempt()

		kind := apperrors.Classify(status, body, attemptErr)
		if kind == apperrors.KindOK {
			if attemptErr != nil {
				// Caller cancelled mid-attempt; not a credential failure.
				return apperrors.NewKind(apperrors.KindTransientUpstream, 499, "client closed request")
			}
			d.pool.ReportSuccess(lease.ID)
			return nil
		}

		apiErr := apperrors.MapUpstream(status, body, attemptErr)
		log.WithFields(log.Fields{
			"credential": lease.ID,
			"model":      model,
			"attempt":    i + 1,
			"kind":       kind.String(),
			"status":     status,
		}).Warn("upstream attempt failed")

		if !kind.Retryable() {
			// Terminal outcome: the request itself is at fault, the
			// credential is fine.
			return apiErr
		}

		d.pool.ReportFailure(lease.ID, kind)
		lastErr = apiErr
	}
	return d.exhausted(lastErr)
}

func (d *Dispatcher) deadlineError(ctxErr error, lastErr *apperrors.APIError) *apperrors.APIError {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		msg := "Upstream deadline exceeded"
		if lastErr != nil {
			msg = msg + "; last error: " + lastErr.Message
		}
		return apperrors.NewKind(apperrors.KindTransientUpstream, http.StatusGatewayTimeout, msg)
	}
	return apperrors.NewKind(apperrors.KindTransientUpstream, 499, "client closed request")
}

func (d *Dispatcher) exhausted(lastErr *apperrors.APIError) *apperrors.APIError {
	msg := "All upstream attempts failed"
	if lastErr != nil {
		msg = msg + "; last error: " + lastErr.Message
	}
	e := apperrors.NewKind(apperrors.KindTransientUpstream, http.StatusBadGateway, msg)
	e.Code = "upstream_exhausted"
	return e
}

func noCredentialError(noCred *keypool.ErrNoHealthyCredential) *apperrors.APIError {
	e := apperrors.NewKind(apperrors.KindQuotaExceeded, http.StatusTooManyRequests,
		"No healthy upstream credential available")
	e.Code = "no_healthy_credential"
	if noCred.RetryAfter > 0 {
		e = e.WithDetails(map[string]interface{}{
			"retry_after_sec": int(noCred.RetryAfter.Seconds() + 0.5),
		})
	}
	return e
}

// RetryAfterSeconds extracts the retry hint recorded by the dispatcher,
// or zero when none is present.
func RetryAfterSeconds(e *apperrors.APIError) int {
	if e == nil || e.Details == nil {
		return 0
	}
	if v, ok := e.Details["retry_after_sec"].(int); ok {
		return v
	}
	return 0
}
