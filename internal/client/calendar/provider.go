// Package calendar mirrors registered events into external calendars.
// Google and Outlook are driven over their REST APIs; Apple has no API, so
// events are exported as an ICS file the member imports manually. The
// Coordinator keeps per-provider sync state in the local store.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/common"
)

// Credentials carries the caller-supplied provider authorization. Obtaining
// and refreshing tokens is the caller's concern.
type Credentials struct {
	AccessToken string
}

// ResultStatus classifies the outcome of one provider operation.
type ResultStatus string

const (
	StatusOK     ResultStatus = "ok"
	StatusFailed ResultStatus = "failed"

	// StatusUnsupported marks operations the provider cannot perform at
	// all, such as deleting an exported Apple calendar file. It is an
	// expected outcome, not a failure.
	StatusUnsupported ResultStatus = "unsupported"
)

// SyncResult reports one provider operation for per-provider display.
type SyncResult struct {
	Provider   models.CalendarProvider
	Status     ResultStatus
	ExternalID string
	Err        error
}

// API is one calendar backend. Create returns the provider-assigned event
// id that later updates and deletes address.
type API interface {
	CreateEvent(ctx context.Context, creds Credentials, event models.Event) (string, error)
	UpdateEvent(ctx context.Context, creds Credentials, event models.Event, externalID string) error
	DeleteEvent(ctx context.Context, creds Credentials, externalID string) error
}

// doJSON performs one authorized JSON round trip against a provider API and
// folds the status code into the shared error taxonomy.
func doJSON(ctx context.Context, client *http.Client, method, url, token string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.AuthHeaderName, common.BearerPrefix+token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: provider status %d", common.ErrTransient, resp.StatusCode)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: provider status %d", common.ErrUnauthorized, resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: provider status %d", common.ErrNotFound, resp.StatusCode)
		default:
			return fmt.Errorf("%w: provider status %d", common.ErrRemoteRejected, resp.StatusCode)
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse provider response: %w", err)
		}
	}
	return nil
}
