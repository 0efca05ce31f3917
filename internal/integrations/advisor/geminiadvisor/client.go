package geminiadvisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/gaexpress/shipline/internal/integrations/advisor"
	"github.com/pkg/errors"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

type Client struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if model == "" {
		model = defaultModel
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "gemini client")
	}
	return &Client{client: c, model: model}, nil
}

func (c *Client) Advise(ctx context.Context, req advisor.AdviceRequest) (string, error) {
	origin := req.Origin
	if origin == "" {
		origin = advisor.DefaultOrigin
	}

	prompt := fmt.Sprintf(`You are an expert in global shipping regulations for precious minerals.

Provide compliance information for the shipment details below, considering the origin and destination countries. Include required documentation, restrictions, and handling requirements.

Mineral Type: %s
Quantity: %s
Origin: %s
Destination: %s
`, req.MineralType, req.Quantity, origin, req.Destination)

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.2)},
	)
	if err != nil {
		return "", errors.Wrap(advisor.ErrUnavailable, err.Error())
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.Wrap(advisor.ErrUnavailable, "empty response")
	}
	return text, nil
}
