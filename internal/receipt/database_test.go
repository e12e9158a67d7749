package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-bot/internal/extraction"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	newScan := func(id string, createdAt time.Time) *Scan {
		return &Scan{
			ID:        id,
			UserID:    "42",
			Category:  extraction.CategoryPaytm,
			Title:     "Paytm Receipt Summary",
			Targeted:  true,
			Fields:    []extraction.Field{{Key: extraction.KeyAmount, Value: "₹250.00"}},
			Residuals: []string{},
			Lines:     []string{"₹250.00"},
			Report:    "Paytm Receipt Summary",
			Filename:  id + "_receipt.jpg",
			CreatedAt: createdAt,
		}
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveScan", func() {
		var (
			scan *Scan
			err  error
		)

		BeforeEach(func() {
			scan = newScan("scan-1", time.Date(2024, 5, 12, 10, 30, 0, 0, time.UTC))
		})

		JustBeforeEach(func() {
			err = db.SaveScan(scan)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("round-trips the extracted fields", func() {
			saved, getErr := db.GetScan("scan-1")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(saved.Category).To(Equal(extraction.CategoryPaytm))
			Expect(saved.Fields).To(Equal(scan.Fields))
			Expect(saved.Lines).To(Equal([]string{"₹250.00"}))
			Expect(saved.CreatedAt.Equal(scan.CreatedAt)).To(BeTrue())
		})

		When("the scan already exists", func() {
			BeforeEach(func() {
				Expect(db.SaveScan(newScan("scan-1", time.Now()))).To(Succeed())
				scan.Title = "Updated"
			})

			It("overwrites it", func() {
				saved, getErr := db.GetScan("scan-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Title).To(Equal("Updated"))
			})
		})
	})

	Describe("GetScan", func() {
		When("the scan does not exist", func() {
			It("returns ErrScanNotFound", func() {
				_, err := db.GetScan("nonexistent")
				Expect(err).To(MatchError(ErrScanNotFound))
				Expect(err.Error()).To(ContainSubstring("nonexistent"))
			})
		})
	})

	Describe("ListScans", func() {
		var (
			scans []*Scan
			err   error
		)

		JustBeforeEach(func() {
			scans, err = db.ListScans()
		})

		When("the database is empty", func() {
			It("returns an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(scans).NotTo(BeNil())
				Expect(scans).To(BeEmpty())
			})
		})

		When("scans exist", func() {
			BeforeEach(func() {
				base := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)
				Expect(db.SaveScan(newScan("a", base))).To(Succeed())
				Expect(db.SaveScan(newScan("b", base.Add(2*time.Hour)))).To(Succeed())
				Expect(db.SaveScan(newScan("c", base.Add(time.Hour)))).To(Succeed())
			})

			It("returns them newest first", func() {
				Expect(err).NotTo(HaveOccurred())
				ids := make([]string, 0, len(scans))
				for _, s := range scans {
					ids = append(ids, s.ID)
				}
				Expect(ids).To(Equal([]string{"b", "c", "a"}))
			})
		})
	})

	Describe("DeleteScan", func() {
		When("the scan exists", func() {
			BeforeEach(func() {
				Expect(db.SaveScan(newScan("scan-1", time.Now()))).To(Succeed())
			})

			It("removes it", func() {
				Expect(db.DeleteScan("scan-1")).To(Succeed())
				_, err := db.GetScan("scan-1")
				Expect(err).To(MatchError(ErrScanNotFound))
			})
		})

		When("the scan does not exist", func() {
			It("returns ErrScanNotFound", func() {
				Expect(db.DeleteScan("nonexistent")).To(MatchError(ErrScanNotFound))
			})
		})
	})

	Describe("reopening", func() {
		It("keeps previously saved scans", func() {
			Expect(db.SaveScan(newScan("scan-1", time.Now()))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			saved, err := db.GetScan("scan-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.UserID).To(Equal("42"))
		})
	})
})
