// Package anthropic wraps the Anthropic Messages API behind a small seam
// so the agent loop can be driven by a fake in tests
package anthropic

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	perr "nitpick/internal/platform/errors"
)

// ModelClient is the surface the agent loop depends on
type ModelClient interface {
	CreateMessage(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error)
}

// Client is the production ModelClient over the official SDK
type Client struct {
	api sdk.Client
}

// New builds a Client authenticated with apiKey
func New(apiKey string) *Client {
	return &Client{api: sdk.NewClient(option.WithAPIKey(apiKey))}
}

// CreateMessage calls the Messages API; transport failures map to upstream
// errors so the worker lets the queue redeliver the job
func (c *Client) CreateMessage(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error) {
	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUpstream, "model call failed")
	}
	return msg, nil
}
