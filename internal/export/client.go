package export

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	insecurecreds "google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"github.com/agentlens/agentlens/internal/wire"
)

// Required transport headers. Missing or invalid values yield HTTP 401 from
// the backend.
const (
	HeaderAPIKey  = "X-Api-Key"
	HeaderProject = "X-Project-Id"
	HeaderStream  = "X-Stream-Id"

	contentTypeProtobuf = "application/x-protobuf"
)

// ClientConfig configures the delivery client. It is immutable after
// construction and shared by every in-flight delivery.
type ClientConfig struct {
	Endpoint          string
	Insecure          bool
	Protocol          string // "http" (default) or "grpc"
	Headers           map[string]string
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	RequestTimeout    time.Duration
}

// Deliverer ships one encoded batch. Implemented by Client; the batcher
// depends on this interface so tests can substitute a fake.
type Deliverer interface {
	Deliver(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) error
}

// Client performs authenticated delivery with retry and result
// classification. Each delivery attempt is independent and all-or-nothing
// per batch; no partial-batch delivery is attempted.
type Client struct {
	cfg     ClientConfig
	url     string
	hc      *http.Client
	grpc    coltracepb.TraceServiceClient
	conn    *grpc.ClientConn
	log     *zap.Logger
	onRetry func()
}

// NewClient builds a delivery client for the configured protocol.
func NewClient(cfg ClientConfig, log *zap.Logger, onRetry func()) (*Client, error) {
	c := &Client{
		cfg:     cfg,
		log:     log,
		onRetry: onRetry,
	}
	if c.onRetry == nil {
		c.onRetry = func() {}
	}

	if cfg.Protocol == "grpc" {
		host, insecure, err := processEndpoint(cfg.Endpoint, cfg.Insecure)
		if err != nil {
			return nil, err
		}
		creds := credentials.NewTLS(&tls.Config{})
		if insecure {
			creds = insecurecreds.NewCredentials()
		}
		conn, err := grpc.NewClient(host, grpc.WithTransportCredentials(creds))
		if err != nil {
			return nil, err
		}
		c.conn = conn
		c.grpc = coltracepb.NewTraceServiceClient(conn)
		return c, nil
	}

	u, err := traceURL(cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, err
	}
	c.url = u
	c.hc = &http.Client{Timeout: cfg.RequestTimeout}
	return c, nil
}

// Close releases the gRPC connection, if any.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Deliver ships one batch, retrying transient failures with exponential
// backoff up to the configured maximum attempt count. Fatal classifications
// (auth, media type, schema) return immediately without retry; exhausted
// transient retries return a DeliveryError carrying the attempt count.
func (c *Client) Deliver(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) error {
	var attempt func() error
	if c.grpc != nil {
		attempt = func() error { return c.exportGRPC(ctx, req) }
	} else {
		payload, err := wire.Marshal(req)
		if err != nil {
			return err
		}
		attempt = func() error { return c.post(ctx, payload) }
	}

	b := backoff.NewExponentialBackOff()
	if c.cfg.InitialBackoff > 0 {
		b.InitialInterval = c.cfg.InitialBackoff
	}
	if c.cfg.MaxBackoff > 0 {
		b.MaxInterval = c.cfg.MaxBackoff
	}
	if c.cfg.BackoffMultiplier > 1 {
		b.Multiplier = c.cfg.BackoffMultiplier
	}

	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		return struct{}{}, attempt()
	}
	notify := func(err error, wait time.Duration) {
		c.onRetry()
		c.log.Debug("delivery attempt failed, backing off",
			zap.Error(err),
			zap.Duration("wait", wait),
			zap.Int("attempt", attempts),
		)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries+1)),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return nil
	}
	if isFatal(err) {
		return err
	}
	return &DeliveryError{Attempts: attempts, Err: err}
}

// post performs one HTTP delivery attempt and classifies the response.
// Only the status code determines the outcome; success bodies are
// discarded unread so an unparseable body can never be mistaken for a
// failure.
func (c *Client) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", contentTypeProtobuf)
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		// Network-level failure: timeout, connection reset. Transient.
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backoff.Permanent(&AuthError{StatusCode: resp.StatusCode})
	case resp.StatusCode == http.StatusUnsupportedMediaType:
		return backoff.Permanent(&MediaTypeError{})
	case resp.StatusCode == http.StatusUnprocessableEntity:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return backoff.Permanent(&SchemaError{Body: string(body)})
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs := retryAfterSeconds(resp); secs > 0 {
			return backoff.RetryAfter(secs)
		}
		return &statusError{code: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &statusError{code: resp.StatusCode}
	default:
		return backoff.Permanent(&statusError{code: resp.StatusCode})
	}
}

// exportGRPC performs one gRPC delivery attempt, mapping status codes onto
// the same classification the HTTP path uses.
func (c *Client) exportGRPC(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) error {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}
	ctx = metadata.NewOutgoingContext(ctx, metadata.New(c.cfg.Headers))

	_, err := c.grpc.Export(ctx, req)
	if err == nil {
		return nil
	}

	st, ok := grpcstatus.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case grpccodes.Unauthenticated:
		return backoff.Permanent(&AuthError{StatusCode: http.StatusUnauthorized})
	case grpccodes.PermissionDenied:
		return backoff.Permanent(&AuthError{StatusCode: http.StatusForbidden})
	case grpccodes.InvalidArgument:
		return backoff.Permanent(&SchemaError{Body: st.Message()})
	case grpccodes.ResourceExhausted, grpccodes.Unavailable,
		grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.Internal:
		return err
	default:
		return backoff.Permanent(err)
	}
}

// isFatal reports whether err is a terminal classification that should
// surface as-is rather than be wrapped as a retry-exhaustion failure.
func isFatal(err error) bool {
	var (
		authErr   *AuthError
		mediaErr  *MediaTypeError
		schemaErr *SchemaError
	)
	return errors.As(err, &authErr) || errors.As(err, &mediaErr) || errors.As(err, &schemaErr)
}

func retryAfterSeconds(resp *http.Response) int {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}
