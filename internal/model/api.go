package model

// GenericErrorMessage is the only failure message returned by /ocr-translate.
const GenericErrorMessage = "An internal server error occurred."

const WelcomeMessage = "Welcome to the OCR and Translation API!"

type ErrorResponse struct {
	Error string `json:"error"`
}

type WelcomeResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type ReadyResponse struct {
	OK       bool   `json:"ok"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

type OCRTranslateResponse struct {
	EnglishText    string `json:"english_text"`
	TranslatedText string `json:"translated_text"`
}
