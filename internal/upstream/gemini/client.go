package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ocrtranslate/internal/modelclient"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type Option func(*Client)

// Client holds one SDK client for the lifetime of the process.
type Client struct {
	sdk      *genai.Client
	observer modelclient.ObserverFunc
}

func WithObserver(observer modelclient.ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// New dials the Gemini API. endpoint is optional; the SDK default is used when
// it is empty.
func New(ctx context.Context, apiKey, endpoint string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}
	sdk, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	c := &Client{sdk: sdk}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.sdk.Close()
}

func (c *Client) Generate(ctx context.Context, req modelclient.Request) (string, error) {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe("generate_content", statusCode, time.Since(started)) }()

	model := c.sdk.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))

	resp, err := model.GenerateContent(ctx, buildParts(req)...)
	if err != nil {
		statusCode = statusOf(err)
		// A candidate stopped for safety or recitation carries no text. A
		// blocked prompt has no candidate and stays an error.
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) && blocked.Candidate != nil {
			return "", nil
		}
		return "", err
	}
	statusCode = http.StatusOK
	return responseText(resp), nil
}

func (c *Client) CheckModel(ctx context.Context, model string) error {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe("model_info", statusCode, time.Since(started)) }()

	if _, err := c.sdk.GenerativeModel(model).Info(ctx); err != nil {
		statusCode = statusOf(err)
		return err
	}
	statusCode = http.StatusOK
	return nil
}

func (c *Client) observe(endpoint string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, duration)
	}
}

// statusOf reports the HTTP status behind an SDK error, or 0 when the call
// never got a response.
func statusOf(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return http.StatusOK
	}
	return 0
}

// buildParts puts the image, when present, ahead of the instruction.
func buildParts(req modelclient.Request) []genai.Part {
	parts := make([]genai.Part, 0, 2)
	if req.Image != nil {
		parts = append(parts, genai.Blob{MIMEType: req.Image.MIMEType, Data: req.Image.Data})
	}
	return append(parts, genai.Text(req.Prompt))
}

// responseText concatenates the text parts of the first candidate. A response
// with no candidates or no parts yields "".
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
