package daxko

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the fixed partner API host for the bulk-data drive.
	DefaultBaseURL = "https://api.partners.daxko.com/api/v1/bulk-data/drive"

	// ListPageSize is the fixed page size for file listings. Results
	// truncated at this size are not followed up with further pages.
	ListPageSize = 100
)

// ClientConfig carries the client-credentials grant parameters and an
// optional BaseURL override (used by tests; production keeps the fixed host).
type ClientConfig struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
	Scope        string
	BaseURL      string
}

// Client is a thin wrapper over the partner bulk-data API: one method per
// endpoint, one attempt per call, no retries.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	baseURL    string
	log        zerolog.Logger
}

func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		// No timeout configured; network calls rely on transport defaults.
		httpClient: &http.Client{},
		cfg:        cfg,
		baseURL:    baseURL,
		log:        log,
	}
}

// Authenticate exchanges the client credentials for a bearer token. The token
// is opaque, held in memory only, and reused for every subsequent call in the
// run. A 200 response with no access_token field yields an empty token and a
// nil error; the caller decides whether that is fatal.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	payload := map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"scope":         c.cfg.Scope,
		"grant_type":    "client_credentials",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode auth payload: %w", err)
	}

	c.log.Info().Msg("Attempting authentication...")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		c.log.Error().Str("response", string(respBody)).Msg("Authentication failed")
		return "", fmt.Errorf("authentication failed: %s", string(respBody))
	}

	var token tokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}

	c.log.Info().Msg("Authentication successful.")
	return token.AccessToken, nil
}

// ListFiles fetches one page of file metadata under prefix, filtered
// server-side to entries after startAfterFile. Records come back in server
// order. A non-200 response is returned as an error so callers can tell a
// failed listing apart from an empty one.
func (c *Client) ListFiles(ctx context.Context, token, prefix, startAfterFile string) ([]FileRecord, error) {
	c.log.Info().
		Str("prefix", prefix).
		Str("startAfterFile", startAfterFile).
		Msg("Listing files in prefix")

	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(ListPageSize))
	params.Set("prefix", prefix)
	params.Set("startAfterFile", startAfterFile)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.log.Error().Str("response", string(respBody)).Msg("Failed to list files")
		return nil, fmt.Errorf("failed to list files: %s", string(respBody))
	}

	var listing listFilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing response: %w", err)
	}

	if len(listing.Results) == 0 {
		c.log.Info().Msg("No files found.")
		return nil, nil
	}

	c.log.Info().
		Int("count", len(listing.Results)).
		Str("prefix", prefix).
		Msg("Found files in prefix")
	for _, f := range listing.Results {
		c.log.Info().
			Str("file", f.Name).
			Str("lastModified", f.LastModifiedAtUtc).
			Msg("Listed file")
	}

	return listing.Results, nil
}

// GenerateDownloadURL exchanges a logical file name for a time-limited signed
// download URL.
func (c *Client) GenerateDownloadURL(ctx context.Context, token, fileName string) (string, error) {
	c.log.Info().Str("file", fileName).Msg("Generating download URL")

	params := url.Values{}
	params.Set("fileName", fileName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/download?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download URL request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download URL request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.log.Error().
			Str("file", fileName).
			Str("response", string(respBody)).
			Msg("Failed to generate download URL")
		return "", fmt.Errorf("failed to generate download URL for %s: %s", fileName, string(respBody))
	}

	var out downloadURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode download URL response: %w", err)
	}

	return out.DownloadURL, nil
}
