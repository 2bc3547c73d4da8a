package scanning

import (
	"bytes"
	"image"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// encodePNG builds a PNG of the given dimensions for conversion tests
func encodePNG(w, h int) []byte {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("prepareImage", func() {
	var (
		imageData   []byte
		contentType string
		prepared    []byte
		mimeType    string
		err         error
	)

	JustBeforeEach(func() {
		prepared, mimeType, err = prepareImage(imageData, contentType)
	})

	When("the image is within the edge bound", func() {
		BeforeEach(func() {
			imageData = encodePNG(800, 600)
			contentType = "image/png"
		})

		It("passes the bytes through unchanged", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(prepared).To(Equal(imageData))
			Expect(mimeType).To(Equal("image/png"))
		})
	})

	When("the longer edge exceeds the bound", func() {
		BeforeEach(func() {
			imageData = encodePNG(2400, 1800)
			contentType = "image/png"
		})

		It("downscales and re-encodes as JPEG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(mimeType).To(Equal("image/jpeg"))

			img, format, decodeErr := image.Decode(bytes.NewReader(prepared))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("jpeg"))
			Expect(img.Bounds().Dx()).To(Equal(maxImageEdge))
			Expect(img.Bounds().Dy()).To(Equal(900))
		})
	})

	When("the content type is empty", func() {
		BeforeEach(func() {
			imageData = encodePNG(10, 10)
			contentType = ""
		})

		It("defaults to JPEG and still succeeds", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(prepared).To(Equal(imageData))
		})
	})

	When("the data is not a decodable image", func() {
		BeforeEach(func() {
			imageData = []byte("definitely not an image")
			contentType = "image/jpeg"
		})

		It("degrades to pass-through", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(prepared).To(Equal(imageData))
		})
	})
})

var _ = Describe("isHEICFormat", func() {
	It("detects the heic ftyp brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		data = append(data, make([]byte, 8)...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("rejects short buffers", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
	})

	It("rejects PNG data", func() {
		Expect(isHEICFormat(encodePNG(4, 4))).To(BeFalse())
	})
})

var _ = Describe("imageFormat", func() {
	It("maps MIME types to genai format suffixes", func() {
		Expect(imageFormat("image/png")).To(Equal("png"))
		Expect(imageFormat("image/jpeg")).To(Equal("jpeg"))
		Expect(imageFormat("image/webp")).To(Equal("webp"))
		Expect(imageFormat("")).To(Equal("jpeg"))
	})
})
