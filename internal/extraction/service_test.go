package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"ocrtranslate/internal/modelclient"
)

type fakeBackend struct {
	text     string
	err      error
	request  modelclient.Request
	deadline bool
}

func (f *fakeBackend) Generate(ctx context.Context, req modelclient.Request) (string, error) {
	f.request = req
	_, f.deadline = ctx.Deadline()
	return f.text, f.err
}

func (f *fakeBackend) CheckModel(context.Context, string) error { return nil }

func TestExtractSendsFixedInstructionWithImage(t *testing.T) {
	backend := &fakeBackend{text: "\n  STOP\nNo parking \n"}
	svc := New(backend, " gemini-2.0-flash ", 5*time.Second)

	text, err := svc.Extract(context.Background(), modelclient.Image{Data: []byte("img"), MIMEType: "image/png"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "STOP\nNo parking" {
		t.Fatalf("unexpected text: %q", text)
	}
	req := backend.request
	if req.Model != "gemini-2.0-flash" {
		t.Fatalf("unexpected model: %q", req.Model)
	}
	if req.Prompt != Instruction {
		t.Fatalf("unexpected prompt: %q", req.Prompt)
	}
	if req.Temperature != 0.2 {
		t.Fatalf("unexpected temperature: %v", req.Temperature)
	}
	if req.Image == nil || req.Image.MIMEType != "image/png" || string(req.Image.Data) != "img" {
		t.Fatalf("unexpected image: %+v", req.Image)
	}
	if !backend.deadline {
		t.Fatal("expected stage timeout to be applied")
	}
}

func TestExtractEmptyCompletionIsNotAnError(t *testing.T) {
	svc := New(&fakeBackend{text: "   "}, "m", 0)

	text, err := svc.Extract(context.Background(), modelclient.Image{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestExtractPropagatesProviderError(t *testing.T) {
	boom := errors.New("connection reset")
	svc := New(&fakeBackend{err: boom}, "m", time.Second)

	if _, err := svc.Extract(context.Background(), modelclient.Image{}); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
