package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ocrtranslate/internal/modelclient"
)

// TargetLanguage is fixed at build time.
const TargetLanguage = "German"

const Temperature = 0.3

const instructionTemplate = "Translate this text to %s; output only the translation, no other text."

// Prompt builds the translation instruction followed by the text to translate.
func Prompt(text, targetLanguage string) string {
	return fmt.Sprintf(instructionTemplate, targetLanguage) + "\n\n" + text
}

type Service struct {
	client         modelclient.Backend
	model          string
	targetLanguage string
	timeout        time.Duration
}

func New(client modelclient.Backend, model string, timeout time.Duration) *Service {
	return &Service{
		client:         client,
		model:          strings.TrimSpace(model),
		targetLanguage: TargetLanguage,
		timeout:        timeout,
	}
}

func (s *Service) TargetLanguage() string {
	return s.targetLanguage
}

// Translate returns the trimmed translation of text. Blank input is returned
// as "" without calling the model.
func (s *Service) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	translated, err := s.client.Generate(ctx, modelclient.Request{
		Model:       s.model,
		Prompt:      Prompt(text, s.targetLanguage),
		Temperature: Temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(translated), nil
}
