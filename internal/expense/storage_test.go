package expense

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			savedPath string
			err       error
		)

		JustBeforeEach(func() {
			savedPath, err = storage.Save("receipt.jpg", []byte("image bytes"))
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the filename", func() {
				Expect(savedPath).To(Equal("receipt.jpg"))
			})

			It("should write the file to disk", func() {
				Expect(filepath.Join(tmpDir, "receipt.jpg")).To(BeAnExistingFile())
			})
		})

		When("the filename would escape the image directory", func() {
			It("rejects the key", func() {
				_, err := storage.Save("../outside.jpg", []byte("image bytes"))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid storage key"))
			})
		})
	})

	Describe("Get", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, saveErr := storage.Save("receipt.jpg", []byte("image bytes"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("returns the stored bytes", func() {
				data, err := storage.Get("receipt.jpg")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("image bytes"))
			})
		})

		When("the file does not exist", func() {
			It("returns the error", func() {
				_, err := storage.Get("missing.jpg")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("reading image"))
			})
		})
	})

	Describe("Delete", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, saveErr := storage.Save("receipt.jpg", []byte("image bytes"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("removes it from disk", func() {
				Expect(storage.Delete("receipt.jpg")).To(Succeed())
				Expect(filepath.Join(tmpDir, "receipt.jpg")).NotTo(BeAnExistingFile())
			})
		})

		When("the file does not exist", func() {
			It("returns the error", func() {
				err := storage.Delete("missing.jpg")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("deleting image"))
			})
		})
	})

	Describe("NewLocalStorage", func() {
		It("creates a missing base directory", func() {
			path := filepath.Join(GinkgoT().TempDir(), "receipts")
			_, err := NewLocalStorage(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeADirectory())
		})
	})
})
