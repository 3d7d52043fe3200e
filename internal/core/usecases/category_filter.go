package usecases

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
)

// CategoryFilter owns the set of disabled categories.
type CategoryFilter struct {
	themes     []domain.Theme
	categories []domain.Category
	known      map[string]struct{}

	mu       sync.Mutex
	disabled map[string]struct{}
}

// NewCategoryFilter creates a filter with every category enabled.
func NewCategoryFilter(themes []domain.Theme, categories []domain.Category) *CategoryFilter {
	known := make(map[string]struct{})
	for _, c := range categories {
		known[c.ID] = struct{}{}
	}
	for _, th := range themes {
		for _, id := range th.CategoryIDs {
			known[id] = struct{}{}
		}
	}
	return &CategoryFilter{
		themes:     themes,
		categories: categories,
		known:      known,
		disabled:   make(map[string]struct{}),
	}
}

// ToggleCategory flips a single category.
func (f *CategoryFilter) ToggleCategory(id string) error {
	if _, ok := f.known[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, off := f.disabled[id]; off {
		delete(f.disabled, id)
	} else {
		f.disabled[id] = struct{}{}
	}
	return nil
}

// ToggleTheme disables every category of the theme when all of them are
// enabled, otherwise enables all of them.
func (f *CategoryFilter) ToggleTheme(themeID string) error {
	var theme *domain.Theme
	for i := range f.themes {
		if f.themes[i].ID == themeID {
			theme = &f.themes[i]
			break
		}
	}
	if theme == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTheme, themeID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	allEnabled := true
	for _, id := range theme.CategoryIDs {
		if _, off := f.disabled[id]; off {
			allEnabled = false
			break
		}
	}
	for _, id := range theme.CategoryIDs {
		if allEnabled {
			f.disabled[id] = struct{}{}
		} else {
			delete(f.disabled, id)
		}
	}
	return nil
}

// DisabledSet returns a copy of the disabled set.
func (f *CategoryFilter) DisabledSet() map[string]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{}, len(f.disabled))
	for id := range f.disabled {
		out[id] = struct{}{}
	}
	return out
}

// Disabled returns the disabled category ids, sorted.
func (f *CategoryFilter) Disabled() []string {
	return sortedKeys(f.DisabledSet())
}

// Active returns the derived active category ids, sorted.
func (f *CategoryFilter) Active() []string {
	return sortedKeys(ActiveCategories(f.themes, f.categories, f.DisabledSet()))
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
