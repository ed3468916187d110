// Package directory implements the client for the server directory API.
// The directory lists the available VPN servers and issues per-server,
// per-protocol configuration templates. The server list is cached on
// disk so a directory outage does not blank the server picker.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ecarrera/vpn-core/common"
	"github.com/ecarrera/vpn-core/vpn"
)

var log = common.Category("directory")

// ErrDirectoryUnavailable indicates the directory could not be reached
// and no cached server list exists.
var ErrDirectoryUnavailable = errors.New("server directory unavailable")

// ErrServerNotFound indicates the directory does not know the server.
var ErrServerNotFound = errors.New("server not found")

// ServerSummary is one entry of the directory's server list.
type ServerSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	CountryCode string   `json:"country_code"`
	Protocols   []string `json:"protocols"`
}

// SupportsProtocol reports whether the server offers the protocol. The
// directory advertises protocols by their registration tags.
func (s ServerSummary) SupportsProtocol(kind vpn.ProtocolKind) bool {
	return common.StringInSlice(kind.Tag(), s.Protocols)
}

// Client talks to the server directory. The zero BaseURL is invalid;
// use NewClient. HTTPClient and CachePath may be overridden before the
// first call.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	CachePath  string
}

// NewClient creates a directory client with the default timeout and the
// default on-disk cache location.
func NewClient(baseURL string) (*Client, error) {
	dataDir, err := common.GetDataDir()
	if err != nil {
		return nil, err
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: common.DirectoryTimeout},
		CachePath:  filepath.Join(dataDir, common.ServerCacheFileName),
	}, nil
}

// Servers fetches the server list. A fresh list refreshes the disk
// cache; when the directory is unreachable the cached list is served
// instead.
func (c *Client) Servers(ctx context.Context) ([]ServerSummary, error) {
	servers, err := c.fetchServers(ctx)
	if err != nil {
		log.Warn("directory fetch failed, trying cache: %v", err)
		cached, cacheErr := c.cachedServers()
		if cacheErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		return cached, nil
	}

	if err := c.writeCache(servers); err != nil {
		log.Warn("could not refresh server cache: %v", err)
	}
	return servers, nil
}

func (c *Client) fetchServers(ctx context.Context) ([]ServerSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/servers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned %s", resp.Status)
	}

	var servers []ServerSummary
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&servers); err != nil {
		return nil, fmt.Errorf("malformed server list: %w", err)
	}
	return servers, nil
}

func (c *Client) cachedServers() ([]ServerSummary, error) {
	data, err := os.ReadFile(c.CachePath)
	if err != nil {
		return nil, err
	}
	var servers []ServerSummary
	if err := json.Unmarshal(data, &servers); err != nil {
		return nil, err
	}
	log.Info("serving %d servers from cache", len(servers))
	return servers, nil
}

func (c *Client) writeCache(servers []ServerSummary) error {
	data, err := json.MarshalIndent(servers, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.CachePath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.CachePath, data, 0o600)
}

// ServerConfiguration fetches the configuration template for a server
// and protocol. The returned record carries the server-issued template
// and session credentials; the password must be handed to the credential
// store on connect, never persisted.
func (c *Client) ServerConfiguration(ctx context.Context, id string, kind vpn.ProtocolKind) (*vpn.ServerConfiguration, error) {
	endpoint := fmt.Sprintf("%s/v1/servers/%s/config?protocol=%s",
		c.BaseURL, url.PathEscape(id), url.QueryEscape(kind.Tag()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, id)
	default:
		return nil, fmt.Errorf("directory returned %s", resp.Status)
	}

	var cfg vpn.ServerConfiguration
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("malformed server configuration: %w", err)
	}
	if cfg.ID == "" {
		cfg.ID = id
	}
	if cfg.Template == "" {
		return nil, fmt.Errorf("%w: configuration for %s has no template", common.ErrInvalidConfiguration, id)
	}
	return &cfg, nil
}
