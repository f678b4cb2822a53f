package apiclient

import (
	"context"
	"net/url"

	"github.com/matthewbaird/casedesk/internal/types"
)

// ListTemplates returns one page of templates.
func (c *Client) ListTemplates(ctx context.Context, p ListParams) (types.Page[types.Template], error) {
	var out types.Page[types.Template]
	err := c.do(ctx, "GET", "/templates", p.values(), nil, &out)
	return out, err
}

// GetTemplate fetches one template.
func (c *Client) GetTemplate(ctx context.Context, id string) (types.Template, error) {
	var out types.Template
	err := c.do(ctx, "GET", "/templates/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// CreateTemplate stores a new template and returns it as saved.
func (c *Client) CreateTemplate(ctx context.Context, tpl types.Template) (types.Template, error) {
	var out types.Template
	err := c.do(ctx, "POST", "/templates", nil, tpl, &out)
	return out, err
}

// UpdateTemplate replaces template id. Existing records keep their
// snapshot.
func (c *Client) UpdateTemplate(ctx context.Context, id string, tpl types.Template) (types.Template, error) {
	var out types.Template
	err := c.do(ctx, "PUT", "/templates/"+url.PathEscape(id), nil, tpl, &out)
	return out, err
}
