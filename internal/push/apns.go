// Package push notifies wallets that a customer's card changed.
package push

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sideshow/apns2"
	"golang.org/x/net/http2"

	"github.com/spec-kit/wallet-pass-service/internal/config"
)

// ErrPushTimeout is returned when APNs does not answer within the request timeout.
var ErrPushTimeout = errors.New("apns push timed out")

// APNsError is a non-200 answer from APNs.
type APNsError struct {
	Status int
	Reason string
}

func (e *APNsError) Error() string {
	return fmt.Sprintf("apns status %d: %s", e.Status, e.Reason)
}

// Unregistered reports whether the device token is no longer valid.
func (e *APNsError) Unregistered() bool {
	return e.Status == http.StatusGone
}

// APNsClient sends empty background pushes with the signer certificate as
// TLS client identity.
type APNsClient struct {
	host    string
	topic   string
	timeout time.Duration
	rootCAs *x509.CertPool
}

// NewAPNsClient builds a client for cfg.APNsHost.
func NewAPNsClient(cfg config.PushConfig) *APNsClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	host := strings.TrimRight(cfg.APNsHost, "/")
	if host == "" {
		host = apns2.HostProduction
	}
	return &APNsClient{
		host:    host,
		topic:   cfg.Topic,
		timeout: timeout,
	}
}

// WithRootCAs overrides the system roots used to verify the APNs host.
func (c *APNsClient) WithRootCAs(pool *x509.CertPool) *APNsClient {
	c.rootCAs = pool
	return c
}

func (c *APNsClient) newClient(cert tls.Certificate) *apns2.Client {
	client := apns2.NewClient(cert)
	client.Host = c.host
	client.HTTPClient = &http.Client{
		Transport: &http2.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				RootCAs:      c.rootCAs,
				MinVersion:   tls.VersionTLS12,
			},
		},
	}
	return client
}

// Push delivers one update notification. Each call opens its own connection
// and closes it before returning.
func (c *APNsClient) Push(ctx context.Context, cert tls.Certificate, pushToken string) error {
	client := c.newClient(cert)
	defer client.HTTPClient.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: pushToken,
		Topic:       c.topic,
		PushType:    apns2.PushTypeBackground,
		Priority:    apns2.PriorityLow,
		Payload:     []byte("{}"),
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrPushTimeout
		}
		return fmt.Errorf("apns request: %w", err)
	}
	if res.Sent() {
		return nil
	}
	return &APNsError{Status: res.StatusCode, Reason: res.Reason}
}
