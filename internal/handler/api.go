// Package handler implements the dashboard's HTTP surface: JSON endpoints
// proxied to the external API and server-rendered template forms.
package handler

import (
	"context"
	"net/url"

	"github.com/matthewbaird/casedesk/internal/apiclient"
	"github.com/matthewbaird/casedesk/internal/types"
)

// TemplateAPI is the part of the API client the template endpoints use.
type TemplateAPI interface {
	ListTemplates(ctx context.Context, p apiclient.ListParams) (types.Page[types.Template], error)
	GetTemplate(ctx context.Context, id string) (types.Template, error)
	CreateTemplate(ctx context.Context, tpl types.Template) (types.Template, error)
	UpdateTemplate(ctx context.Context, id string, tpl types.Template) (types.Template, error)
}

// RecordAPI is the part of the API client the case and source endpoints
// use.
type RecordAPI interface {
	GetTemplate(ctx context.Context, id string) (types.Template, error)
	ListRecords(ctx context.Context, kind types.RecordKind, p apiclient.ListParams) (types.Page[types.Record], error)
	GetRecord(ctx context.Context, kind types.RecordKind, id string) (types.Record, error)
	CreateRecord(ctx context.Context, kind types.RecordKind, req types.RecordRequest) (types.Record, error)
	UpdateRecord(ctx context.Context, kind types.RecordKind, id string, req types.RecordRequest) (types.Record, error)
	DeleteRecord(ctx context.Context, kind types.RecordKind, id string) error
	SetStatus(ctx context.Context, kind types.RecordKind, id string, status types.Status) (types.Record, error)
	Assign(ctx context.Context, kind types.RecordKind, id, userID string) (types.Record, error)
	Export(ctx context.Context, kind types.RecordKind, query url.Values) (*apiclient.Export, error)
}

// AuthAPI exchanges credentials for a token.
type AuthAPI interface {
	Login(ctx context.Context, cred apiclient.Credentials) (apiclient.Session, error)
}

var (
	_ TemplateAPI = (*apiclient.Client)(nil)
	_ RecordAPI   = (*apiclient.Client)(nil)
	_ AuthAPI     = (*apiclient.Client)(nil)
)
