package push

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/wallet-pass-service/internal/certs"
	"github.com/spec-kit/wallet-pass-service/internal/config"
	"github.com/spec-kit/wallet-pass-service/internal/testutil"
)

type seenRequest struct {
	proto      int
	path       string
	topic      string
	pushType   string
	priority   string
	body       string
	clientCert string
}

func newAPNsServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *x509.CertPool, chan seenRequest) {
	t.Helper()
	seen := make(chan seenRequest, 16)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := seenRequest{
			proto:    r.ProtoMajor,
			path:     r.URL.Path,
			topic:    r.Header.Get("apns-topic"),
			pushType: r.Header.Get("apns-push-type"),
			priority: r.Header.Get("apns-priority"),
			body:     string(body),
		}
		if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
			req.clientCert = r.TLS.PeerCertificates[0].Subject.CommonName
		}
		seen <- req
		handler(w, r)
	}))
	srv.EnableHTTP2 = true
	srv.TLS = &tls.Config{ClientAuth: tls.RequireAnyClientCert}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return srv, pool, seen
}

func fixtureCert(t *testing.T) tls.Certificate {
	t.Helper()
	bundle, err := certs.NewMaterializer(nil).Load(testutil.NewSigningFixture(t).Secrets())
	require.NoError(t, err)
	return bundle.TLSCertificate()
}

func TestAPNsPushSendsBackgroundNotification(t *testing.T) {
	srv, pool, seen := newAPNsServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	client := NewAPNsClient(config.PushConfig{APNsHost: srv.URL, Topic: "pass.com.example.test", RequestTimeout: 2 * time.Second}).WithRootCAs(pool)

	require.NoError(t, client.Push(context.Background(), fixtureCert(t), "abc123"))

	req := <-seen
	assert.Equal(t, 2, req.proto)
	assert.Equal(t, "/3/device/abc123", req.path)
	assert.Equal(t, "pass.com.example.test", req.topic)
	assert.Equal(t, "background", req.pushType)
	assert.Equal(t, "5", req.priority)
	assert.Equal(t, "{}", req.body)
	assert.Equal(t, "Pass Type ID: pass.com.example.test", req.clientCert)
}

func TestAPNsPushReportsReason(t *testing.T) {
	srv, pool, _ := newAPNsServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
		_ = json.NewEncoder(w).Encode(map[string]string{"reason": "Unregistered"})
	})
	client := NewAPNsClient(config.PushConfig{APNsHost: srv.URL, Topic: "t", RequestTimeout: 2 * time.Second}).WithRootCAs(pool)

	err := client.Push(context.Background(), fixtureCert(t), "gone")
	var apnsErr *APNsError
	require.ErrorAs(t, err, &apnsErr)
	assert.Equal(t, http.StatusGone, apnsErr.Status)
	assert.Equal(t, "Unregistered", apnsErr.Reason)
	assert.True(t, apnsErr.Unregistered())
}

func TestAPNsPushTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv, pool, _ := newAPNsServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	client := NewAPNsClient(config.PushConfig{APNsHost: srv.URL, Topic: "t", RequestTimeout: 100 * time.Millisecond}).WithRootCAs(pool)

	err := client.Push(context.Background(), fixtureCert(t), "slow")
	assert.ErrorIs(t, err, ErrPushTimeout)
}

func TestAPNsPushBadTokenIsNotUnregistered(t *testing.T) {
	srv, pool, _ := newAPNsServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"reason": "BadDeviceToken"})
	})
	client := NewAPNsClient(config.PushConfig{APNsHost: srv.URL + "/", Topic: "t", RequestTimeout: 2 * time.Second}).WithRootCAs(pool)

	err := client.Push(context.Background(), fixtureCert(t), "bad")
	var apnsErr *APNsError
	require.ErrorAs(t, err, &apnsErr)
	assert.Equal(t, "BadDeviceToken", apnsErr.Reason)
	assert.False(t, apnsErr.Unregistered())
}
