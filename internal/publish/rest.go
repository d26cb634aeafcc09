package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tyeth/tank-sensor/internal/log"
)

// errFeedMissing marks a 404 from the data endpoint: the feed does not exist
// yet and can be created.
var errFeedMissing = errors.New("feed not found")

// RESTOptions configures the HTTP transport.
type RESTOptions struct {
	BaseURL   string // e.g. https://io.adafruit.com/api/v2
	Username  string
	Key       string
	Feed      string
	ErrorFeed string
}

// RESTPublisher publishes to the Adafruit IO HTTP API. Useful where MQTT
// ports are blocked.
type RESTPublisher struct {
	opts   RESTOptions
	client *http.Client
}

// NewRESTPublisher builds the HTTP transport. No connection is made until
// the first publish.
func NewRESTPublisher(o RESTOptions) *RESTPublisher {
	return &RESTPublisher{
		opts:   o,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish sends the fill value to the data feed, creating the feed on first
// contact if the service has never seen it.
func (p *RESTPublisher) Publish(ctx context.Context, r Report) error {
	return p.send(ctx, p.opts.Feed, FormatValue(r))
}

// PublishError sends a fault description to the error feed.
func (p *RESTPublisher) PublishError(ctx context.Context, msg string) error {
	if p.opts.ErrorFeed == "" {
		return nil
	}
	return p.send(ctx, p.opts.ErrorFeed, clip(msg, 250))
}

// Close releases idle connections.
func (p *RESTPublisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *RESTPublisher) send(ctx context.Context, feed, value string) error {
	err := p.postData(ctx, feed, value)
	if errors.Is(err, errFeedMissing) {
		log.Infof("feed %s not found, creating it", feed)
		if cerr := p.createFeed(ctx, feed); cerr != nil {
			return cerr
		}
		err = p.postData(ctx, feed, value)
	}
	return err
}

func (p *RESTPublisher) postData(ctx context.Context, feed, value string) error {
	u := fmt.Sprintf("%s/%s/feeds/%s/data", p.base(), p.opts.Username, feed)
	body, err := json.Marshal(map[string]string{"value": value})
	if err != nil {
		return fmt.Errorf("marshal data point: %w", err)
	}

	resp, respBody, err := p.post(ctx, u, body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", errFeedMissing, feed)
	default:
		return statusError(resp.StatusCode, respBody)
	}
}

func (p *RESTPublisher) createFeed(ctx context.Context, feed string) error {
	u := fmt.Sprintf("%s/%s/feeds", p.base(), p.opts.Username)
	body, err := json.Marshal(map[string]string{"name": feed, "key": feed})
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}

	resp, respBody, err := p.post(ctx, u, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		log.Infof("created feed %s", feed)
		return nil
	}
	return statusError(resp.StatusCode, respBody)
}

// post runs one JSON POST and returns the response with its body already
// read and closed.
func (p *RESTPublisher) post(ctx context.Context, u string, body []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: build request: %v", ErrRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-AIO-Key", p.opts.Key)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}
	return resp, respBody, nil
}

func (p *RESTPublisher) base() string {
	return strings.TrimRight(p.opts.BaseURL, "/")
}

func statusError(code int, body []byte) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrAuth, code, body)
	case code >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrNetwork, code, body)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, code, body)
	}
}
