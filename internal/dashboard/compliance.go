package dashboard

import (
	"sort"
	"strings"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/resource"
)

// CategoryAll matches every category
const CategoryAll = "all"

// Compliance is the prohibited items page
type Compliance struct {
	page
	items *resource.Resource[[]models.ComplianceItem]
}

type ComplianceView struct {
	Items      []models.ComplianceItem `json:"items"`
	Categories []string                `json:"categories"`
	Loading    bool                    `json:"loading"`
}

func NewCompliance(deps Deps) *Compliance {
	c := &Compliance{}

	c.items = resource.New("prohibited_items", []models.ComplianceItem{}, deps.API.Compliance.ProhibitedItems, deps.Notifier, deps.Logger).
		WithLabel("prohibited items")

	c.track(deps.Registry, c.items)
	return c
}

func (c *Compliance) View(search, category string) ComplianceView {
	snap := c.items.Snapshot()

	return ComplianceView{
		Items:      FilterItems(snap.Data, search, category),
		Categories: categories(snap.Data),
		Loading:    snap.Loading,
	}
}

// Filter applies the search and category filters to the loaded items
func (c *Compliance) Filter(search, category string) []models.ComplianceItem {
	return FilterItems(c.items.Data(), search, category)
}

// Categories lists the distinct categories of the loaded items
func (c *Compliance) Categories() []string {
	return categories(c.items.Data())
}

// FilterItems keeps items whose name or description contains search, case
// insensitively, and whose category matches. An empty category or "all"
// matches any category.
func FilterItems(items []models.ComplianceItem, search, category string) []models.ComplianceItem {
	search = strings.ToLower(strings.TrimSpace(search))
	category = strings.TrimSpace(category)
	anyCategory := category == "" || strings.EqualFold(category, CategoryAll)

	out := make([]models.ComplianceItem, 0, len(items))
	for _, item := range items {
		if !anyCategory && !strings.EqualFold(item.Category, category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Name), search) &&
			!strings.Contains(strings.ToLower(item.Description), search) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func categories(items []models.ComplianceItem) []string {
	seen := make(map[string]bool)
	var out []string

	for _, item := range items {
		if item.Category == "" || seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		out = append(out, item.Category)
	}

	sort.Strings(out)
	return out
}
