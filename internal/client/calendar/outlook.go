package calendar

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
)

const outlookBaseURL = "https://graph.microsoft.com/v1.0"

// OutlookAPI drives the Microsoft Graph events API on the signed-in
// member's default calendar.
type OutlookAPI struct {
	client  *http.Client
	baseURL string
}

func NewOutlookAPI() *OutlookAPI {
	return NewOutlookAPIWithBase(outlookBaseURL)
}

func NewOutlookAPIWithBase(baseURL string) *OutlookAPI {
	return &OutlookAPI{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphEvent struct {
	Subject  string         `json:"subject"`
	Body     *graphBody     `json:"body,omitempty"`
	Start    graphDateTime  `json:"start"`
	End      graphDateTime  `json:"end"`
	Location *graphLocation `json:"location,omitempty"`
}

// Graph wants a zone-less local timestamp plus an explicit zone name;
// everything is normalized to UTC before formatting.
const graphTimeLayout = "2006-01-02T15:04:05"

func toGraphEvent(event models.Event) graphEvent {
	ge := graphEvent{
		Subject: event.Title,
		Start:   graphDateTime{DateTime: event.StartsAt.UTC().Format(graphTimeLayout), TimeZone: "UTC"},
		End:     graphDateTime{DateTime: event.EndsAt.UTC().Format(graphTimeLayout), TimeZone: "UTC"},
	}
	if event.Description != "" {
		ge.Body = &graphBody{ContentType: "text", Content: event.Description}
	}
	if event.Location != "" {
		ge.Location = &graphLocation{DisplayName: event.Location}
	}
	return ge
}

func (o *OutlookAPI) CreateEvent(ctx context.Context, creds Credentials, event models.Event) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := doJSON(ctx, o.client, http.MethodPost,
		o.baseURL+"/me/events",
		creds.AccessToken, toGraphEvent(event), &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (o *OutlookAPI) UpdateEvent(ctx context.Context, creds Credentials, event models.Event, externalID string) error {
	return doJSON(ctx, o.client, http.MethodPatch,
		o.baseURL+"/me/events/"+url.PathEscape(externalID),
		creds.AccessToken, toGraphEvent(event), nil)
}

func (o *OutlookAPI) DeleteEvent(ctx context.Context, creds Credentials, externalID string) error {
	return doJSON(ctx, o.client, http.MethodDelete,
		o.baseURL+"/me/events/"+url.PathEscape(externalID),
		creds.AccessToken, nil, nil)
}
