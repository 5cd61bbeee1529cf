package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
)

// HTTPStore implements Store over the backend's JSON API.
type HTTPStore struct {
	client  *http.Client
	log     logging.Logger
	baseURL string

	mu    sync.RWMutex
	token string
}

func NewHTTPStore(baseURL string, log logging.Logger) *HTTPStore {
	return &HTTPStore{
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SetToken installs the bearer token used on subsequent requests.
func (h *HTTPStore) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// Token returns the currently installed bearer token.
func (h *HTTPStore) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *HTTPStore) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token := h.Token(); token != "" {
		req.Header.Set(common.AuthHeaderName, common.BearerPrefix+token)
	}

	h.log.Debug(ctx, "sending request", "method", method, "url", req.URL.String())

	resp, err := h.client.Do(req)
	if err != nil {
		// Transport-level failures (connection refused, DNS, timeouts)
		// are retryable: flag them as transient for the reconciler.
		return nil, fmt.Errorf("%w: %v", common.ErrTransient, err)
	}
	return resp, nil
}

// parseResponse folds the status code into the shared error taxonomy and
// decodes the body into result when given.
func (h *HTTPStore) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := serverMessage(body, resp.StatusCode)
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: %s", common.ErrTransient, msg)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %s", common.ErrUnauthorized, msg)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", common.ErrNotFound, msg)
		default:
			return fmt.Errorf("%w: %s", common.ErrRemoteRejected, msg)
		}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func serverMessage(body []byte, status int) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return fmt.Sprintf("server status %d", status)
}

// CreateRecord uploads one record and returns the server-assigned id.
func (h *HTTPStore) CreateRecord(ctx context.Context, r models.Record) (string, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/records", r)
	if err != nil {
		return "", err
	}

	var createResp struct {
		ID string `json:"id"`
	}
	if err := h.parseResponse(resp, &createResp); err != nil {
		return "", err
	}
	return createResp.ID, nil
}

// QueryRecords returns the newest visible records matching the filter.
func (h *HTTPStore) QueryRecords(ctx context.Context, f Filter) ([]models.Record, error) {
	path := "/api/v1/records?church_id=" + f.ChurchID
	if f.PageSize > 0 {
		path += "&limit=" + strconv.Itoa(f.PageSize)
	}

	resp, err := h.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var queryResp struct {
		Records []models.Record `json:"records"`
	}
	if err := h.parseResponse(resp, &queryResp); err != nil {
		return nil, err
	}
	return queryResp.Records, nil
}

// AddEngagement books an engagement against a remote record.
func (h *HTTPStore) AddEngagement(ctx context.Context, remoteRecordID string, e models.Engagement) (string, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/records/"+remoteRecordID+"/engagements", e)
	if err != nil {
		return "", err
	}

	var engResp struct {
		ID string `json:"id"`
	}
	if err := h.parseResponse(resp, &engResp); err != nil {
		return "", err
	}
	return engResp.ID, nil
}

// Ping reports server reachability.
func (h *HTTPStore) Ping(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

// Login exchanges credentials for a session and installs its token.
func (h *HTTPStore) Login(ctx context.Context, email, password string) (*Session, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", body)
	if err != nil {
		return nil, err
	}

	var s Session
	if err := h.parseResponse(resp, &s); err != nil {
		return nil, err
	}
	h.SetToken(s.Token)
	return &s, nil
}

// Register creates an account, logs it in, and installs the session token.
func (h *HTTPStore) Register(ctx context.Context, email, password, name, churchID string) (*Session, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		ChurchID string `json:"church_id"`
	}{Email: email, Password: password, Name: name, ChurchID: churchID}

	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", body)
	if err != nil {
		return nil, err
	}

	var s Session
	if err := h.parseResponse(resp, &s); err != nil {
		return nil, err
	}
	h.SetToken(s.Token)
	return &s, nil
}
