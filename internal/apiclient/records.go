package apiclient

import (
	"context"
	"io"
	"mime"
	"net/url"

	"github.com/matthewbaird/casedesk/internal/types"
)

func recordPath(kind types.RecordKind, id string) string {
	p := "/" + kind.Collection()
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// ListRecords returns one page of cases or sources.
func (c *Client) ListRecords(ctx context.Context, kind types.RecordKind, p ListParams) (types.Page[types.Record], error) {
	var out types.Page[types.Record]
	err := c.do(ctx, "GET", recordPath(kind, ""), p.values(), nil, &out)
	return out, err
}

// GetRecord fetches one case or source.
func (c *Client) GetRecord(ctx context.Context, kind types.RecordKind, id string) (types.Record, error) {
	var out types.Record
	err := c.do(ctx, "GET", recordPath(kind, id), nil, nil, &out)
	return out, err
}

// CreateRecord submits a new record.
func (c *Client) CreateRecord(ctx context.Context, kind types.RecordKind, req types.RecordRequest) (types.Record, error) {
	var out types.Record
	err := c.do(ctx, "POST", recordPath(kind, ""), nil, req, &out)
	return out, err
}

// UpdateRecord replaces the base fields and custom field values of id.
func (c *Client) UpdateRecord(ctx context.Context, kind types.RecordKind, id string, req types.RecordRequest) (types.Record, error) {
	var out types.Record
	err := c.do(ctx, "PUT", recordPath(kind, id), nil, req, &out)
	return out, err
}

// DeleteRecord removes id.
func (c *Client) DeleteRecord(ctx context.Context, kind types.RecordKind, id string) error {
	return c.do(ctx, "DELETE", recordPath(kind, id), nil, nil, nil)
}

// SetStatus moves id to status. The API decides whether the transition is
// allowed.
func (c *Client) SetStatus(ctx context.Context, kind types.RecordKind, id string, status types.Status) (types.Record, error) {
	var out types.Record
	body := map[string]types.Status{"status": status}
	err := c.do(ctx, "PATCH", recordPath(kind, id)+"/status", nil, body, &out)
	return out, err
}

// Assign sets the user responsible for id. An empty userID unassigns.
func (c *Client) Assign(ctx context.Context, kind types.RecordKind, id, userID string) (types.Record, error) {
	var out types.Record
	body := map[string]string{"assignedUserId": userID}
	err := c.do(ctx, "PATCH", recordPath(kind, id)+"/assign", nil, body, &out)
	return out, err
}

// Export is a raw export download. The caller closes Body.
type Export struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
}

// Export streams the API's export of kind. query is forwarded as is.
func (c *Client) Export(ctx context.Context, kind types.RecordKind, query url.Values) (*Export, error) {
	req, err := c.newRequest(ctx, "GET", recordPath(kind, "")+"/export", query, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return &Export{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    filename(resp.Header.Get("Content-Disposition")),
	}, nil
}

func filename(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
