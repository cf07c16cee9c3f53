package meta

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

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/config"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

const defaultAPIVersion = "v19.0"

var (
	errAccessTokenRequired = errors.New("meta access token is required")
	errLoggerRequired      = errors.New("meta logger is required")
)

// Client wraps the Graph API adinterest search used by the miner.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	logger      *logger.Logger
}

// Interest is a single targeting interest returned by the Graph API.
type Interest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	AudienceSize int64    `json:"audience_size_lower_bound"`
	Path         []string `json:"path"`
	Topic        string   `json:"topic,omitempty"`
}

type searchEnvelope struct {
	Data  []Interest `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewClient validates the credentials and builds the Graph API wrapper.
func NewClient(ctx context.Context, cfg config.MetaConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     "https://graph.facebook.com/" + version,
		accessToken: token,
		logger:      logg,
	}

	logg.Info(ctx, "meta graph client initialized")
	return c, nil
}

// SearchInterests queries the adinterest type for the given term.
func (c *Client) SearchInterests(ctx context.Context, query string, limit int) ([]Interest, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	params := url.Values{}
	params.Set("type", "adinterest")
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("access_token", c.accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building graph request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "graph request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading graph response")
	}

	var envelope searchEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding graph response")
	}
	if resp.StatusCode >= 400 || envelope.Error != nil {
		message := "graph search rejected"
		if envelope.Error != nil && envelope.Error.Message != "" {
			message = envelope.Error.Message
		}
		c.logger.Warn(c.logger.WithField(ctx, "graph_status", resp.StatusCode), "graph search failed")
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("meta: %s", message))
	}

	return envelope.Data, nil
}
