package scanning

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"
)

// mockTranscriber is a canned Transcriber implementation
type mockTranscriber struct {
	text    string
	err     error
	gotData []byte
	gotMime string
}

func (m *mockTranscriber) Transcribe(ctx context.Context, imageData []byte, contentType string) (string, error) {
	m.gotData = imageData
	m.gotMime = contentType
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

// mockStructurer is a canned Structurer implementation. When json is set it
// runs the real parser so schema validation stays in the loop.
type mockStructurer struct {
	json    string
	err     error
	gotText string
}

func (m *mockStructurer) Structure(ctx context.Context, rawText string) (*StructuredReceipt, error) {
	m.gotText = rawText
	if m.err != nil {
		return nil, m.err
	}
	return parseStructuredReceipt(m.json)
}

// tinyPNG is a 1x1 PNG, small enough to skip the downscale path
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

var _ = Describe("Pipeline", func() {
	var (
		transcriber *mockTranscriber
		structurer  *mockStructurer
		pipeline    *Pipeline
		imageData   []byte
		contentType string
		receipt     *StructuredReceipt
		err         error
	)

	BeforeEach(func() {
		transcriber = &mockTranscriber{text: "MILK 3.20\nTOTAL 3.20"}
		structurer = &mockStructurer{
			json: `{"storeName": "Store", "total": 3.20, "items": [{"name": "Milk", "totalItemPrice": 3.20}]}`,
		}
		imageData = tinyPNG
		contentType = "image/png"
	})

	JustBeforeEach(func() {
		pipeline = NewPipeline(transcriber, structurer)
		receipt, err = pipeline.Scan(context.Background(), imageData, contentType)
	})

	When("both stages succeed", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return a non-empty item list", func() {
			Expect(receipt.Items).NotTo(BeEmpty())
		})

		It("should feed stage 1 output into stage 2", func() {
			Expect(structurer.gotText).To(Equal("MILK 3.20\nTOTAL 3.20"))
		})

		It("should mark the totals as reconciled", func() {
			Expect(receipt.TotalsReconciled).To(BeTrue())
		})
	})

	When("no image is provided", func() {
		BeforeEach(func() {
			imageData = nil
		})

		It("fails before any model call", func() {
			Expect(err).To(MatchError(ErrNoImage))
			Expect(transcriber.gotData).To(BeNil())
		})
	})

	When("the transcriber reports a 503", func() {
		BeforeEach(func() {
			transcriber.err = errors.New("rpc error: code 503, the model is overloaded")
		})

		It("classifies the failure as service unavailable", func() {
			var unavailable *ServiceUnavailableError
			Expect(errors.As(err, &unavailable)).To(BeTrue())
			Expect(unavailable.Stage).To(Equal(StageTranscribe))
		})

		It("does not invoke stage 2", func() {
			Expect(structurer.gotText).To(BeEmpty())
		})
	})

	When("the transcriber fails with a structured 503", func() {
		BeforeEach(func() {
			transcriber.err = &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "backend error"}
		})

		It("classifies the failure as service unavailable", func() {
			var unavailable *ServiceUnavailableError
			Expect(errors.As(err, &unavailable)).To(BeTrue())
		})
	})

	When("the transcriber fails with a structured 400", func() {
		BeforeEach(func() {
			transcriber.err = &googleapi.Error{Code: http.StatusBadRequest, Message: "invalid image"}
		})

		It("classifies the failure as an extraction error", func() {
			var extraction *ExtractionError
			Expect(errors.As(err, &extraction)).To(BeTrue())
			Expect(extraction.Stage).To(Equal(StageTranscribe))
		})
	})

	When("the transcriber returns empty text", func() {
		BeforeEach(func() {
			transcriber.text = "   "
		})

		It("fails without invoking stage 2", func() {
			var extraction *ExtractionError
			Expect(errors.As(err, &extraction)).To(BeTrue())
			Expect(extraction.Stage).To(Equal(StageTranscribe))
			Expect(structurer.gotText).To(BeEmpty())
		})
	})

	When("the structurer output is missing the total field", func() {
		BeforeEach(func() {
			structurer.json = `{"storeName": "Store", "items": [{"name": "Milk", "totalItemPrice": 3.20}]}`
		})

		It("fails as an extraction error naming stage 2", func() {
			var extraction *ExtractionError
			Expect(errors.As(err, &extraction)).To(BeTrue())
			Expect(extraction.Stage).To(Equal(StageStructure))
		})

		It("does not return a partial receipt", func() {
			Expect(receipt).To(BeNil())
		})
	})

	When("the structurer reports being unavailable", func() {
		BeforeEach(func() {
			structurer.err = errors.New("service unavailable")
		})

		It("classifies the failure as service unavailable at stage 2", func() {
			var unavailable *ServiceUnavailableError
			Expect(errors.As(err, &unavailable)).To(BeTrue())
			Expect(unavailable.Stage).To(Equal(StageStructure))
		})
	})

	When("the receipt contains a bundled plate", func() {
		BeforeEach(func() {
			transcriber.text = "1 Plate $9.10\nCHOW MEIN\nBROCCOLI BEEF\nTOTAL $9.10"
			structurer.json = `{
				"storeName": "Panda Express",
				"total": 9.10,
				"items": [
					{"name": "Plate - Chow Mein, Broccoli Beef", "quantity": 1, "unitPrice": 9.10, "totalItemPrice": 9.10, "brand": "", "category": "Dining"}
				]
			}`
		})

		It("returns exactly one item for the bundle", func() {
			Expect(receipt.Items).To(HaveLen(1))
			Expect(receipt.Items[0].Name).To(ContainSubstring("Plate"))
			Expect(receipt.Items[0].TotalItemPrice).To(Equal(9.10))
		})

		It("does not emit zero-priced entries for the components", func() {
			for _, item := range receipt.Items {
				Expect(item.TotalItemPrice).NotTo(BeZero())
			}
		})
	})

	When("the receipt contains a standalone priced item with no quantity", func() {
		BeforeEach(func() {
			transcriber.text = "SODA $2.00\nTOTAL $2.00"
			structurer.json = `{"storeName": "Kiosk", "total": 2.00, "items": [{"name": "SODA", "unitPrice": 2.00, "totalItemPrice": 2.00}]}`
		})

		It("defaults the quantity to 1 and keeps the unit price", func() {
			Expect(receipt.Items).To(HaveLen(1))
			Expect(receipt.Items[0].Name).To(Equal("SODA"))
			Expect(receipt.Items[0].UnitPrice).To(Equal(2.00))
			Expect(receipt.Items[0].Quantity).To(Equal(1.0))
		})
	})

	When("the model's own arithmetic is off", func() {
		BeforeEach(func() {
			structurer.json = `{"storeName": "Store", "total": 20.00, "items": [{"name": "Milk", "totalItemPrice": 3.20}]}`
		})

		It("flags the mismatch without rejecting the receipt", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.TotalsReconciled).To(BeFalse())
		})
	})
})
