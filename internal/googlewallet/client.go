package googlewallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Client talks to the Wallet Objects REST API.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient authenticates every request with tokens from src.
func NewClient(baseURL string, src oauth2.TokenSource, timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: src, Base: http.DefaultTransport},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// PatchObject applies patch to the generic object id.
func (c *Client) PatchObject(ctx context.Context, objectID string, patch ObjectPatch) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	endpoint := c.baseURL + "/walletobjects/v1/genericObject/" + url.PathEscape(objectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("patch object: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("patch object: status %d: %s", resp.StatusCode, string(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
