// Package modelclient defines the provider-neutral request shape shared by the
// upstream backends and the extraction and translation stages.
package modelclient

import (
	"context"
	"encoding/base64"
	"time"
)

// Image is an image payload ready to be attached to a provider request.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL encodes the image as a MIME-typed data URI.
func (img Image) DataURL() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Request is a single-turn generation request. Image is optional.
type Request struct {
	Model       string
	Prompt      string
	Image       *Image
	Temperature float64
}

// Backend performs one blocking call to a hosted model. Generate returns the
// text of the first candidate, or "" when the provider produced no content.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
	CheckModel(ctx context.Context, model string) error
}

// ObserverFunc is notified after every upstream call.
type ObserverFunc func(endpoint string, status int, duration time.Duration)
