package api

import (
	"context"
	"net/http"

	"github.com/fjod/shopsphere/internal/domain"
)

func (c *Client) ActiveCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	var out []domain.Campaign
	err := c.do(ctx, request{method: http.MethodGet, path: "/campaigns/active"}, &out)
	return out, err
}

func (c *Client) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	var out []domain.Campaign
	err := c.do(ctx, request{method: http.MethodGet, path: "/campaigns"}, &out)
	return out, err
}

func (c *Client) GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error) {
	var out domain.Campaign
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/campaigns/%d", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CampaignProducts(ctx context.Context, id int64) ([]domain.CampaignProduct, error) {
	var out []domain.CampaignProduct
	err := c.do(ctx, request{method: http.MethodGet, path: pathf("/campaigns/%d/products", id)}, &out)
	return out, err
}

func (c *Client) CreateCampaign(ctx context.Context, req domain.CreateCampaignRequest) (*domain.Campaign, error) {
	var out domain.Campaign
	if err := c.do(ctx, request{method: http.MethodPost, path: "/campaigns", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCampaign(ctx context.Context, id int64, req domain.CreateCampaignRequest) (*domain.Campaign, error) {
	var out domain.Campaign
	if err := c.do(ctx, request{method: http.MethodPut, path: pathf("/campaigns/%d", id), body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCampaign(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: pathf("/campaigns/%d", id)}, nil)
}

func (c *Client) CampaignReport(ctx context.Context, id int64) (*domain.CampaignReport, error) {
	var out domain.CampaignReport
	if err := c.do(ctx, request{method: http.MethodGet, path: pathf("/campaigns/%d/report", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
