package expense

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pennywise-app/pennywise/internal/scanning"
)

// Scanner runs the receipt extraction pipeline.
type Scanner interface {
	Scan(ctx context.Context, imageData []byte, contentType string) (*scanning.StructuredReceipt, error)
}

// IDGenerator generates unique IDs for expenses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles expense operations
type Service struct {
	db          DB
	scanner     Scanner
	storage     Storage
	model       scanning.TextModel
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner Scanner, storage Storage, model scanning.TextModel) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		model:       model,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner Scanner, storage Storage, model scanning.TextModel, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		model:       model,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length. Phone-generated filenames run long.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")
	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// dollarsToCents converts a model-reported dollar amount to integer cents.
func dollarsToCents(amount float64) int {
	return int(math.Round(amount * 100))
}

// CreateExpense stores a manually entered expense.
func (s *Service) CreateExpense(expense *Expense) (*Expense, error) {
	if strings.TrimSpace(expense.Name) == "" {
		return nil, fmt.Errorf("expense name is required")
	}

	now := s.timeSource.Now()
	expense.ID = s.idGenerator.Generate()
	expense.Name = strings.TrimSpace(expense.Name)
	if expense.Quantity <= 0 {
		expense.Quantity = 1
	}
	if strings.TrimSpace(expense.Category) == "" {
		expense.Category = scanning.DefaultCategory
	}
	if expense.TotalPrice == 0 && expense.UnitPrice != 0 {
		expense.TotalPrice = int(math.Round(float64(expense.UnitPrice) * expense.Quantity))
	}
	if expense.Date.IsZero() {
		expense.Date = now
	}
	expense.CreatedAt = now
	expense.UpdatedAt = now

	if err := s.db.SaveExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}

	s.learnCategory(expense.Name, expense.Category)
	return expense, nil
}

// GetExpense retrieves an expense by ID
func (s *Service) GetExpense(id string) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	return expense, nil
}

// ListExpenses returns expenses, optionally filtered by month (YYYY-MM) and
// category, newest first.
func (s *Service) ListExpenses(month, category string) ([]*Expense, error) {
	expenses, err := s.db.ListExpenses()
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}

	filtered := make([]*Expense, 0, len(expenses))
	for _, e := range expenses {
		if month != "" && e.Month() != month {
			continue
		}
		if category != "" && !strings.EqualFold(e.Category, category) {
			continue
		}
		filtered = append(filtered, e)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Date.After(filtered[j].Date)
	})
	return filtered, nil
}

// UpdateExpense applies changes to an existing expense
func (s *Service) UpdateExpense(id string, update *Expense) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense for update: %w", err)
	}

	if strings.TrimSpace(update.Name) != "" {
		expense.Name = strings.TrimSpace(update.Name)
	}
	if update.Quantity > 0 {
		expense.Quantity = update.Quantity
	}
	if update.UnitPrice != 0 {
		expense.UnitPrice = update.UnitPrice
	}
	if update.TotalPrice != 0 {
		expense.TotalPrice = update.TotalPrice
	}
	if update.Brand != "" {
		expense.Brand = update.Brand
	}
	if strings.TrimSpace(update.Category) != "" {
		expense.Category = strings.TrimSpace(update.Category)
	}
	if update.StoreName != "" {
		expense.StoreName = update.StoreName
	}
	if !update.Date.IsZero() {
		expense.Date = update.Date
	}
	expense.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}

	s.learnCategory(expense.Name, expense.Category)
	return expense, nil
}

// DeleteExpense removes an expense. The stored receipt image is removed only
// when no other expense references it.
func (s *Service) DeleteExpense(id string) error {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return fmt.Errorf("getting expense for deletion: %w", err)
	}

	if err := s.db.DeleteExpense(id); err != nil {
		return fmt.Errorf("deleting expense from database: %w", err)
	}

	if expense.ReceiptFile != "" && !s.receiptFileInUse(expense.ReceiptFile) {
		if err := s.storage.Delete(expense.ReceiptFile); err != nil {
			slog.Warn("Failed to delete receipt file", "filename", expense.ReceiptFile, "error", err)
		}
	}
	return nil
}

func (s *Service) receiptFileInUse(path string) bool {
	expenses, err := s.db.ListExpenses()
	if err != nil {
		return true // keep the file when in doubt
	}
	for _, e := range expenses {
		if e.ReceiptFile == path {
			return true
		}
	}
	return false
}

// ScanReceipt runs a receipt image through the extraction pipeline and
// returns the structured result for user confirmation. Nothing is persisted.
func (s *Service) ScanReceipt(ctx context.Context, data []byte, contentType string) (*scanning.StructuredReceipt, error) {
	return s.scanner.Scan(ctx, data, contentType)
}

// ImportReceipt persists a confirmed scan: the original image is stored once
// and each line item becomes an independent expense record.
func (s *Service) ImportReceipt(filename string, imageData []byte, contentType string, receipt *scanning.StructuredReceipt) ([]*Expense, error) {
	if receipt == nil || len(receipt.Items) == 0 {
		return nil, fmt.Errorf("receipt has no line items")
	}

	now := s.timeSource.Now()

	var savedPath string
	if len(imageData) > 0 {
		var err error
		savedPath, err = s.storage.Save(fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(filename)), imageData)
		if err != nil {
			return nil, fmt.Errorf("saving receipt image: %w", err)
		}
	}

	expenses := make([]*Expense, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		expense := &Expense{
			ID:          s.idGenerator.Generate(),
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   dollarsToCents(item.UnitPrice),
			TotalPrice:  dollarsToCents(item.TotalItemPrice),
			Brand:       item.Brand,
			Category:    item.Category,
			StoreName:   receipt.StoreName,
			Date:        now,
			ReceiptFile: savedPath,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.db.SaveExpense(expense); err != nil {
			// Roll back what this import created so a failed confirm
			// leaves no partial records behind.
			for _, created := range expenses {
				s.db.DeleteExpense(created.ID)
			}
			if savedPath != "" {
				s.storage.Delete(savedPath)
			}
			return nil, fmt.Errorf("saving expense for %q: %w", item.Name, err)
		}
		s.learnCategory(item.Name, item.Category)
		expenses = append(expenses, expense)
	}

	return expenses, nil
}

// GetReceiptImage retrieves the stored image an expense was imported from
func (s *Service) GetReceiptImage(id string) ([]byte, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	if expense.ReceiptFile == "" {
		return nil, fmt.Errorf("expense has no receipt image")
	}

	data, err := s.storage.Get(expense.ReceiptFile)
	if err != nil {
		return nil, fmt.Errorf("getting receipt image: %w", err)
	}
	return data, nil
}

// SuggestCategory returns a category for an item name, preferring the local
// cache (keyed by lowercase name, last write wins) and falling back to the
// hosted model. Model results are cached for next time.
func (s *Service) SuggestCategory(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("item name is required")
	}

	key := strings.ToLower(name)
	if category, ok, err := s.db.GetCategory(key); err == nil && ok {
		return category, nil
	}

	if s.model == nil {
		return scanning.DefaultCategory, nil
	}

	answer, err := s.model.Complete(ctx, scanning.CategorySuggestionPrompt(name))
	if err != nil {
		return "", fmt.Errorf("suggesting category: %w", err)
	}

	category := firstLine(answer)
	if category == "" {
		category = scanning.DefaultCategory
	}
	s.learnCategory(name, category)
	return category, nil
}

// learnCategory updates the name to category cache. Uncategorized entries are
// not worth remembering.
func (s *Service) learnCategory(name, category string) {
	if category == "" || category == scanning.DefaultCategory {
		return
	}
	if err := s.db.PutCategory(strings.ToLower(strings.TrimSpace(name)), category); err != nil {
		slog.Warn("Failed to cache category", "name", name, "error", err)
	}
}

// firstLine returns the first non-empty trimmed line of a model answer.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
