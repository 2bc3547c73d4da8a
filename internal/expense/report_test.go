package expense

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

var _ = Describe("Reports", func() {
	var (
		db      *mockDB
		service *Service
	)

	BeforeEach(func() {
		db = newMockDB()
		service = NewServiceWithDeps(db, newMockScanner(), newMockStorage(), &mockModel{}, &mockIDGenerator{prefix: "id"}, &mockTimeSource{now: time.Now()})

		march := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		db.expenses["a"] = &Expense{ID: "a", Name: "Milk", Category: "Groceries", TotalPrice: 320, Date: march}
		db.expenses["b"] = &Expense{ID: "b", Name: "Eggs", Category: "Groceries", TotalPrice: 499, Date: march}
		db.expenses["c"] = &Expense{ID: "c", Name: "Soap", Category: "Household", TotalPrice: 250, Date: march}
		db.expenses["d"] = &Expense{ID: "d", Name: "Rent", Category: "Housing", TotalPrice: 120000, Date: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	})

	Describe("CategoryReport", func() {
		It("sums each category for the month, largest first", func() {
			report, err := service.CategoryReport("2026-03")
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(Equal([]CategoryTotal{
				{Category: "Groceries", Total: 819},
				{Category: "Household", Total: 250},
			}))
		})

		It("excludes other months", func() {
			report, err := service.CategoryReport("2026-02")
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(HaveLen(1))
			Expect(report[0].Category).To(Equal("Housing"))
		})

		It("rejects malformed months", func() {
			_, err := service.CategoryReport("March 2026")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("MonthlyReport", func() {
		It("returns all twelve months with totals", func() {
			report, err := service.MonthlyReport(2026)
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(HaveLen(12))
			Expect(report[1]).To(Equal(MonthTotal{Month: "2026-02", Total: 120000}))
			Expect(report[2]).To(Equal(MonthTotal{Month: "2026-03", Total: 1069}))
			Expect(report[0].Total).To(BeZero())
		})

		It("rejects nonsense years", func() {
			_, err := service.MonthlyReport(-5)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ExportMonthXLSX", func() {
		It("produces a workbook with one row per expense plus a totals row", func() {
			data, err := service.ExportMonthXLSX("2026-03")
			Expect(err).NotTo(HaveOccurred())

			f, err := excelize.OpenReader(bytes.NewReader(data))
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()

			rows, err := f.GetRows("Expenses")
			Expect(err).NotTo(HaveOccurred())
			// header + 3 expenses + totals
			Expect(rows).To(HaveLen(5))
			Expect(rows[0][0]).To(Equal("Date"))
			Expect(rows[4][0]).To(Equal("Total"))
		})

		It("rejects malformed months", func() {
			_, err := service.ExportMonthXLSX("2026/03")
			Expect(err).To(HaveOccurred())
		})
	})
})
