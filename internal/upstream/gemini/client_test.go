package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ocrtranslate/internal/extraction"
	"ocrtranslate/internal/modelclient"
	"ocrtranslate/internal/translation"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

func TestResponseTextJoinsTextPartsOfFirstCandidate(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{
				genai.Text("Hello "),
				genai.Blob{MIMEType: "image/png", Data: []byte{1}},
				genai.Text("world"),
			}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
		},
	}
	if got := responseText(resp); got != "Hello world" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestResponseTextEmptyResponses(t *testing.T) {
	cases := map[string]*genai.GenerateContentResponse{
		"nil":           nil,
		"no candidates": {},
		"nil content":   {Candidates: []*genai.Candidate{{}}},
		"no parts":      {Candidates: []*genai.Candidate{{Content: &genai.Content{}}}},
	}
	for name, resp := range cases {
		if got := responseText(resp); got != "" {
			t.Fatalf("%s: expected empty text, got %q", name, got)
		}
	}
}

func TestBuildPartsAttachesImageBlob(t *testing.T) {
	parts := buildParts(modelclient.Request{
		Prompt: "extract",
		Image:  &modelclient.Image{Data: []byte("jpg"), MIMEType: "image/jpeg"},
	})
	if len(parts) != 2 {
		t.Fatalf("unexpected part count: %d", len(parts))
	}
	blob, ok := parts[0].(genai.Blob)
	if !ok || blob.MIMEType != "image/jpeg" || string(blob.Data) != "jpg" {
		t.Fatalf("unexpected image part: %#v", parts[0])
	}
	if text, ok := parts[1].(genai.Text); !ok || string(text) != "extract" {
		t.Fatalf("unexpected text part: %#v", parts[1])
	}
}

func TestBuildPartsTextOnly(t *testing.T) {
	parts := buildParts(modelclient.Request{Prompt: "translate"})
	if len(parts) != 1 {
		t.Fatalf("unexpected part count: %d", len(parts))
	}
}

func TestNewRejectsEmptyKey(t *testing.T) {
	if _, err := New(context.Background(), "  ", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

type generateCall struct {
	Path string
	Body struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MIMEType string `json:"mimeType"`
					Data     []byte `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"contents"`
		GenerationConfig struct {
			Temperature *float64 `json:"temperature"`
		} `json:"generationConfig"`
	}
}

type observed struct {
	endpoint string
	status   int
}

// newTestClient points the SDK at a local server answering every
// generateContent call with reply.
func newTestClient(t *testing.T, status int, reply string) (*Client, *[]generateCall, *[]observed) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []generateCall
		seen  []observed
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ":generateContent") {
			var call generateCall
			call.Path = r.URL.Path
			if err := json.NewDecoder(r.Body).Decode(&call.Body); err != nil {
				t.Errorf("decode request: %v", err)
			}
			mu.Lock()
			calls = append(calls, call)
			mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(ts.Close)

	c, err := New(context.Background(), "test-key", ts.URL, WithObserver(func(endpoint string, status int, _ time.Duration) {
		mu.Lock()
		seen = append(seen, observed{endpoint: endpoint, status: status})
		mu.Unlock()
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, &calls, &seen
}

func TestGenerateSendsImageBlobAndTemperature(t *testing.T) {
	c, calls, seen := newTestClient(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"STOP"}]},"finishReason":"STOP","index":0}]}`)

	text, err := c.Generate(context.Background(), modelclient.Request{
		Model:       "gemini-test",
		Prompt:      "extract",
		Temperature: 0.2,
		Image:       &modelclient.Image{Data: []byte("png"), MIMEType: "image/png"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "STOP" {
		t.Fatalf("unexpected text: %q", text)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one call, got %d", len(*calls))
	}
	call := (*calls)[0]
	if !strings.Contains(call.Path, "models/gemini-test:generateContent") {
		t.Fatalf("unexpected path: %s", call.Path)
	}
	if got := call.Body.GenerationConfig.Temperature; got == nil || *got != 0.2 {
		t.Fatalf("unexpected temperature: %v", got)
	}
	if len(call.Body.Contents) != 1 || len(call.Body.Contents[0].Parts) != 2 {
		t.Fatalf("unexpected contents: %+v", call.Body.Contents)
	}
	parts := call.Body.Contents[0].Parts
	if parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/png" || string(parts[0].InlineData.Data) != "png" {
		t.Fatalf("unexpected image part: %+v", parts[0])
	}
	if parts[1].Text != "extract" {
		t.Fatalf("unexpected text part: %+v", parts[1])
	}
	if len(*seen) != 1 || (*seen)[0] != (observed{endpoint: "generate_content", status: http.StatusOK}) {
		t.Fatalf("unexpected observations: %+v", *seen)
	}
}

func TestStageTemperaturesReachTheWire(t *testing.T) {
	c, calls, _ := newTestClient(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello"}]},"finishReason":"STOP","index":0}]}`)

	if _, err := extraction.New(c, "gemini-test", time.Second).Extract(context.Background(), modelclient.Image{Data: []byte("jpg"), MIMEType: "image/jpeg"}); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if _, err := translation.New(c, "gemini-test", time.Second).Translate(context.Background(), "Hello"); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	if len(*calls) != 2 {
		t.Fatalf("expected two calls, got %d", len(*calls))
	}
	want := []float64{extraction.Temperature, translation.Temperature}
	for i, call := range *calls {
		if got := call.Body.GenerationConfig.Temperature; got == nil || *got != want[i] {
			t.Fatalf("call %d: unexpected temperature %v, want %v", i, got, want[i])
		}
	}
	if parts := (*calls)[1].Body.Contents[0].Parts; len(parts) != 1 || parts[0].InlineData != nil {
		t.Fatalf("translation call should carry text only: %+v", parts)
	}
}

func TestGenerateEmptyCompletions(t *testing.T) {
	cases := map[string]string{
		"no candidates":    `{"candidates":[]}`,
		"no content":       `{"candidates":[{"finishReason":"STOP","index":0}]}`,
		"safety blocked":   `{"candidates":[{"finishReason":"SAFETY","index":0}]}`,
		"recitation block": `{"candidates":[{"finishReason":"RECITATION","index":0}]}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			c, _, seen := newTestClient(t, http.StatusOK, reply)
			text, err := c.Generate(context.Background(), modelclient.Request{Model: "gemini-test", Prompt: "extract"})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if text != "" {
				t.Fatalf("expected empty text, got %q", text)
			}
			if len(*seen) != 1 || (*seen)[0].status != http.StatusOK {
				t.Fatalf("unexpected observations: %+v", *seen)
			}
		})
	}
}

func TestGenerateBlockedPromptIsAnError(t *testing.T) {
	c, _, _ := newTestClient(t, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	_, err := c.Generate(context.Background(), modelclient.Request{Model: "gemini-test", Prompt: "extract"})
	var blocked *genai.BlockedError
	if !errors.As(err, &blocked) || blocked.PromptFeedback == nil {
		t.Fatalf("expected prompt block error, got %v", err)
	}
}

func TestGenerateRecordsProviderStatus(t *testing.T) {
	c, _, seen := newTestClient(t, http.StatusForbidden,
		`{"error":{"code":403,"message":"permission denied","status":"PERMISSION_DENIED"}}`)

	_, err := c.Generate(context.Background(), modelclient.Request{Model: "gemini-test", Prompt: "extract"})
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusForbidden {
		t.Fatalf("expected googleapi 403 error, got %v", err)
	}
	if len(*seen) != 1 || (*seen)[0] != (observed{endpoint: "generate_content", status: http.StatusForbidden}) {
		t.Fatalf("unexpected observations: %+v", *seen)
	}
}

func TestCheckModel(t *testing.T) {
	c, _, seen := newTestClient(t, http.StatusOK, `{"name":"models/gemini-test","inputTokenLimit":1024}`)
	if err := c.CheckModel(context.Background(), "gemini-test"); err != nil {
		t.Fatalf("CheckModel() error = %v", err)
	}

	missing, _, missingSeen := newTestClient(t, http.StatusNotFound,
		`{"error":{"code":404,"message":"model not found","status":"NOT_FOUND"}}`)
	if err := missing.CheckModel(context.Background(), "gemini-missing"); err == nil {
		t.Fatal("expected error for unknown model")
	}

	if len(*seen) != 1 || (*seen)[0] != (observed{endpoint: "model_info", status: http.StatusOK}) {
		t.Fatalf("unexpected observations: %+v", *seen)
	}
	if len(*missingSeen) != 1 || (*missingSeen)[0].status != http.StatusNotFound {
		t.Fatalf("unexpected observations: %+v", *missingSeen)
	}
}
