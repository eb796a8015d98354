// Package client talks to the blog service's article API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/RobertMJr/my-blog/internal/store"
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Err        string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Err != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

type Client struct {
	rest *resty.Client
}

func New(baseURL string) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{rest: rest}
}

// GetArticle returns nil, nil when the service has no article by that name.
func (c *Client) GetArticle(ctx context.Context, name string) (*store.Article, error) {
	return c.call(ctx, http.MethodGet, "/api/articles/{name}", name, nil)
}

func (c *Client) Upvote(ctx context.Context, name string) (*store.Article, error) {
	return c.call(ctx, http.MethodPost, "/api/articles/{name}/upvote", name, nil)
}

func (c *Client) AddComment(ctx context.Context, name string, comment store.Comment) (*store.Article, error) {
	return c.call(ctx, http.MethodPost, "/api/articles/{name}/add-comment", name, comment)
}

func (c *Client) call(ctx context.Context, method, path, name string, body interface{}) (*store.Article, error) {
	var article *store.Article
	apiErr := &APIError{}

	req := c.rest.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetResult(&article).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return nil, apiErr
	}
	return article, nil
}
