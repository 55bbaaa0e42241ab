package pipeline

import (
	"context"
	"time"

	"ocrtranslate/internal/failure"
	"ocrtranslate/internal/imagedecode"
	"ocrtranslate/internal/modelclient"
)

type Decoder interface {
	Decode(data []byte, fileName string) (imagedecode.Image, error)
}

type Extractor interface {
	Extract(ctx context.Context, img modelclient.Image) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

type Service struct {
	decoder    Decoder
	extractor  Extractor
	translator Translator
}

type ProcessInput struct {
	Image    []byte
	FileName string
}

type Timings struct {
	Decode      time.Duration
	Extraction  time.Duration
	Translation time.Duration
	Total       time.Duration
}

type ProcessResult struct {
	EnglishText        string
	TranslatedText     string
	TranslationSkipped bool
	Format             string
	Timings            Timings
}

func New(decoder Decoder, extractor Extractor, translator Translator) *Service {
	return &Service{
		decoder:    decoder,
		extractor:  extractor,
		translator: translator,
	}
}

// Process runs decode, extraction and translation in order. Translation is
// skipped when extraction yields no text. Every returned error is a
// *failure.Error tagged with the failing stage.
func (s *Service) Process(ctx context.Context, in ProcessInput) (ProcessResult, error) {
	started := time.Now()
	var result ProcessResult

	decodeStarted := time.Now()
	img, err := s.decoder.Decode(in.Image, in.FileName)
	result.Timings.Decode = time.Since(decodeStarted)
	if err != nil {
		if failure.KindOf(err) == failure.KindInternal {
			err = failure.New(failure.KindDecode, failure.StageDecode, err)
		}
		return ProcessResult{}, err
	}
	result.Format = img.Format

	extractionStarted := time.Now()
	englishText, err := s.extractor.Extract(ctx, img.Payload())
	result.Timings.Extraction = time.Since(extractionStarted)
	if err != nil {
		return ProcessResult{}, failure.New(failure.KindProvider, failure.StageExtraction, err)
	}
	result.EnglishText = englishText

	if englishText == "" {
		result.TranslationSkipped = true
		result.Timings.Total = time.Since(started)
		return result, nil
	}

	translationStarted := time.Now()
	translatedText, err := s.translator.Translate(ctx, englishText)
	result.Timings.Translation = time.Since(translationStarted)
	if err != nil {
		return ProcessResult{}, failure.New(failure.KindProvider, failure.StageTranslation, err)
	}
	result.TranslatedText = translatedText
	result.Timings.Total = time.Since(started)
	return result, nil
}
