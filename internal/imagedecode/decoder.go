package imagedecode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"ocrtranslate/internal/failure"
	"ocrtranslate/internal/modelclient"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMIMEType is used when the decoded format has no known MIME type.
const DefaultMIMEType = "image/jpeg"

var ErrEmptyImage = errors.New("image is empty")

var mimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
}

type Image struct {
	Data     []byte
	Format   string
	MIMEType string
	Width    int
	Height   int
	Resized  bool
}

// Payload returns the image in the shape the upstream backends accept.
func (img Image) Payload() modelclient.Image {
	return modelclient.Image{Data: img.Data, MIMEType: img.MIMEType}
}

type Decoder struct {
	maxDimension int
}

// New returns a Decoder. When maxDimension is positive, images with a side
// longer than maxDimension are scaled down to fit.
func New(maxDimension int) *Decoder {
	if maxDimension < 0 {
		maxDimension = 0
	}
	return &Decoder{maxDimension: maxDimension}
}

func (d *Decoder) Decode(data []byte, fileName string) (Image, error) {
	if len(data) == 0 {
		return Image{}, failure.New(failure.KindDecode, failure.StageDecode, ErrEmptyImage)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, failure.New(failure.KindDecode, failure.StageDecode, fmt.Errorf("read image header: %w", err))
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, failure.New(failure.KindDecode, failure.StageDecode, fmt.Errorf("decode %s image: %w", format, err))
	}

	bounds := img.Bounds()
	out := Image{
		Data:     data,
		Format:   format,
		MIMEType: mimeTypeFor(format, fileName),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}
	if d.maxDimension == 0 || (out.Width <= d.maxDimension && out.Height <= d.maxDimension) {
		return out, nil
	}

	resized := imaging.Fit(img, d.maxDimension, d.maxDimension, imaging.Lanczos)
	encodeFormat, err := imaging.FormatFromExtension(format)
	if err != nil {
		encodeFormat = imaging.PNG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, encodeFormat); err != nil {
		return Image{}, failure.New(failure.KindDecode, failure.StageDecode, fmt.Errorf("encode resized image: %w", err))
	}

	rb := resized.Bounds()
	out.Data = buf.Bytes()
	out.Format = strings.ToLower(encodeFormat.String())
	out.MIMEType = mimeTypeFor(out.Format, fileName)
	out.Width = rb.Dx()
	out.Height = rb.Dy()
	out.Resized = true
	return out, nil
}

// mimeTypeFor maps a decoder format name to a MIME type, trying the upload's
// file extension next and DefaultMIMEType last.
func mimeTypeFor(format, fileName string) string {
	if mt, ok := mimeTypes[strings.ToLower(format)]; ok {
		return mt
	}
	if f, err := imaging.FormatFromFilename(fileName); err == nil {
		if mt, ok := mimeTypes[strings.ToLower(f.String())]; ok {
			return mt
		}
	}
	return DefaultMIMEType
}
