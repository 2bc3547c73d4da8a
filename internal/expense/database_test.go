package expense

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveExpense", func() {
		var (
			expense *Expense
			err     error
		)

		BeforeEach(func() {
			expense = &Expense{
				ID:         "test-id",
				Name:       "Milk",
				Quantity:   1,
				UnitPrice:  320,
				TotalPrice: 320,
				Category:   "Groceries",
				StoreName:  "Trader Joe's",
				Date:       time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
				CreatedAt:  time.Now(),
				UpdatedAt:  time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveExpense(expense)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the expense to the database", func() {
				saved, getErr := db.GetExpense("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Name).To(Equal("Milk"))
				Expect(saved.TotalPrice).To(Equal(320))
			})
		})

		When("saving twice with the same ID", func() {
			It("overwrites the previous record", func() {
				expense.Name = "Whole Milk"
				Expect(db.SaveExpense(expense)).To(Succeed())
				saved, getErr := db.GetExpense("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Name).To(Equal("Whole Milk"))
			})
		})
	})

	Describe("GetExpense", func() {
		When("the expense does not exist", func() {
			It("returns the error", func() {
				_, err := db.GetExpense("missing")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not found"))
			})
		})
	})

	Describe("ListExpenses", func() {
		When("the database is empty", func() {
			It("returns an empty slice, not nil", func() {
				expenses, err := db.ListExpenses()
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).NotTo(BeNil())
				Expect(expenses).To(BeEmpty())
			})
		})

		When("expenses exist", func() {
			BeforeEach(func() {
				Expect(db.SaveExpense(&Expense{ID: "a", Name: "Milk"})).To(Succeed())
				Expect(db.SaveExpense(&Expense{ID: "b", Name: "Eggs"})).To(Succeed())
			})

			It("returns all of them", func() {
				expenses, err := db.ListExpenses()
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(HaveLen(2))
			})
		})
	})

	Describe("DeleteExpense", func() {
		BeforeEach(func() {
			Expect(db.SaveExpense(&Expense{ID: "a", Name: "Milk"})).To(Succeed())
		})

		It("removes the expense", func() {
			Expect(db.DeleteExpense("a")).To(Succeed())
			_, err := db.GetExpense("a")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("category cache", func() {
		It("misses on unknown names", func() {
			_, found, err := db.GetCategory("milk")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("returns stored mappings", func() {
			Expect(db.PutCategory("milk", "Groceries")).To(Succeed())
			category, found, err := db.GetCategory("milk")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(category).To(Equal("Groceries"))
		})

		It("lets the last write win", func() {
			Expect(db.PutCategory("milk", "Groceries")).To(Succeed())
			Expect(db.PutCategory("milk", "Dairy")).To(Succeed())
			category, _, _ := db.GetCategory("milk")
			Expect(category).To(Equal("Dairy"))
		})
	})

	Describe("persistence across reopen", func() {
		It("keeps data after closing and reopening", func() {
			Expect(db.SaveExpense(&Expense{ID: "a", Name: "Milk"})).To(Succeed())
			Expect(db.Close()).To(Succeed())

			reopened, err := NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			saved, err := reopened.GetExpense("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Name).To(Equal("Milk"))
			db = nil
		})
	})
})
