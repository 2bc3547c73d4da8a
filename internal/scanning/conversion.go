package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	"golang.org/x/image/draw"
)

// maxImageEdge bounds the longer edge of images sent to the model. Phone
// photos are routinely 4000px+ and the model does not need that.
const maxImageEdge = 1200

// jpegQuality is the re-encode quality used when downscaling.
const jpegQuality = 80

// prepareImage normalizes an uploaded receipt for the transcriber: PDFs are
// rendered to PNG, HEIC is decoded, and oversized images are downscaled and
// re-encoded as JPEG. Downscaling failure degrades to pass-through of the
// decoded original rather than blocking the scan.
func prepareImage(imageData []byte, contentType string) ([]byte, string, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg" // default
	}

	if mimeType == "application/pdf" {
		pngData, err := pdfToImage(imageData)
		if err != nil {
			return nil, "", fmt.Errorf("converting PDF to image: %w", err)
		}
		imageData, mimeType = pngData, "image/png"
	} else if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		pngData, err := heicToPNG(imageData)
		if err != nil {
			return nil, "", fmt.Errorf("converting HEIC/HEIF to image: %w", err)
		}
		imageData, mimeType = pngData, "image/png"
	}

	if scaled, ok := downscale(imageData); ok {
		return scaled, "image/jpeg", nil
	}
	return imageData, mimeType, nil
}

// downscale re-encodes an image whose longer edge exceeds maxImageEdge.
// Returns false when the image is already within bounds or cannot be
// processed, in which case the caller keeps the original bytes.
func downscale(imageData []byte) ([]byte, bool) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, false
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longEdge := w
	if h > longEdge {
		longEdge = h
	}
	if longEdge <= maxImageEdge {
		return nil, false
	}

	scale := float64(maxImageEdge) / float64(longEdge)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// pdfToImage renders the first page of a PDF as PNG. Most receipts are a
// single page.
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// heicToPNG decodes a HEIC/HEIF image (common on iPhones, unsupported by the
// standard image package) and re-encodes it as PNG.
func heicToPNG(imageData []byte) ([]byte, error) {
	img, err := heic.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks the ftyp box brands HEIC containers start with.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// imageFormat maps a MIME type to the bare format suffix the genai SDK
// expects (e.g. "png", not "image/png").
func imageFormat(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpeg"
	}
}
