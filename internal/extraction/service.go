package extraction

import (
	"context"
	"strings"
	"time"

	"ocrtranslate/internal/modelclient"
)

const Instruction = "Extract all visible text from this image exactly as it appears, without summarizing, interpreting, or translating."

// Temperature for extraction calls.
const Temperature = 0.2

type Service struct {
	client  modelclient.Backend
	model   string
	timeout time.Duration
}

func New(client modelclient.Backend, model string, timeout time.Duration) *Service {
	return &Service{
		client:  client,
		model:   strings.TrimSpace(model),
		timeout: timeout,
	}
}

// Extract returns the trimmed text the model read from img. An empty
// completion is returned as "" with a nil error.
func (s *Service) Extract(ctx context.Context, img modelclient.Image) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.client.Generate(ctx, modelclient.Request{
		Model:       s.model,
		Prompt:      Instruction,
		Image:       &img,
		Temperature: Temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
