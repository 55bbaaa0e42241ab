package modelclient

import "testing"

func TestDataURL(t *testing.T) {
	img := Image{Data: []byte("hi"), MIMEType: "image/webp"}
	if got := img.DataURL(); got != "data:image/webp;base64,aGk=" {
		t.Fatalf("unexpected data url: %q", got)
	}
}
