package shopping

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pennywise-app/pennywise/internal/scanning"
)

// maxSuggestions bounds a single suggestion call.
const maxSuggestions = 8

// IDGenerator generates unique IDs for shopping list items
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

// Service handles shopping list operations
type Service struct {
	db          DB
	model       scanning.TextModel
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, model scanning.TextModel) *Service {
	return &Service{
		db:          db,
		model:       model,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, model scanning.TextModel, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		model:       model,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// AddItem adds an item to the shopping list
func (s *Service) AddItem(name string, quantity float64) (*Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("item name is required")
	}
	if quantity <= 0 {
		quantity = 1
	}

	now := s.timeSource.Now()
	item := &Item{
		ID:        s.idGenerator.Generate(),
		Name:      name,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.SaveItem(item); err != nil {
		return nil, fmt.Errorf("saving item: %w", err)
	}
	return item, nil
}

// ListItems returns the shopping list, unchecked first, then oldest first.
func (s *Service) ListItems() ([]*Item, error) {
	items, err := s.db.ListItems()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Checked != items[j].Checked {
			return !items[i].Checked
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// ToggleItem flips an item's checked state
func (s *Service) ToggleItem(id string) (*Item, error) {
	item, err := s.db.GetItem(id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	item.Checked = !item.Checked
	item.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveItem(item); err != nil {
		return nil, fmt.Errorf("saving item: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item from the list
func (s *Service) DeleteItem(id string) error {
	if _, err := s.db.GetItem(id); err != nil {
		return fmt.Errorf("getting item for deletion: %w", err)
	}
	if err := s.db.DeleteItem(id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// ClearChecked removes every checked item
func (s *Service) ClearChecked() error {
	items, err := s.db.ListItems()
	if err != nil {
		return fmt.Errorf("listing items: %w", err)
	}
	for _, item := range items {
		if !item.Checked {
			continue
		}
		if err := s.db.DeleteItem(item.ID); err != nil {
			return fmt.Errorf("deleting item %s: %w", item.ID, err)
		}
	}
	return nil
}

// Suggest asks the hosted model for shopping list suggestions based on the
// user's recent purchases. Items already on the list are filtered out.
func (s *Service) Suggest(ctx context.Context, recentPurchases []string) ([]string, error) {
	if s.model == nil {
		return []string{}, nil
	}

	answer, err := s.model.Complete(ctx, scanning.ShoppingSuggestionPrompt(recentPurchases, maxSuggestions))
	if err != nil {
		return nil, fmt.Errorf("suggesting items: %w", err)
	}

	existing := make(map[string]bool)
	items, err := s.db.ListItems()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	for _, item := range items {
		existing[strings.ToLower(item.Name)] = true
	}

	suggestions := make([]string, 0, maxSuggestions)
	seen := make(map[string]bool)
	for _, line := range strings.Split(answer, "\n") {
		name := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if existing[key] || seen[key] {
			continue
		}
		seen[key] = true
		suggestions = append(suggestions, name)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions, nil
}
