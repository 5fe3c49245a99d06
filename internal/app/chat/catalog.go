package chat

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// DefaultRooms is the room catalog used when none is configured.
var DefaultRooms = []string{"General", "Sports", "Tech", "Music", "Gaming"}

// Catalog is the fixed, enumerated set of joinable room names.
// A room in the catalog is a valid join target whether or not anyone occupies it.
type Catalog struct {
	names []string
	set   map[string]struct{}
}

// NewCatalog builds a Catalog, trimming names and dropping duplicates while keeping order.
func NewCatalog(names []string) (*Catalog, error) {
	trimmed := lo.Uniq(lo.Map(names, func(name string, _ int) string {
		return strings.TrimSpace(name)
	}))

	if lo.Contains(trimmed, "") {
		return nil, fmt.Errorf("room catalog contains an empty room name")
	}
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("room catalog is empty")
	}

	return &Catalog{
		names: trimmed,
		set:   lo.SliceToMap(trimmed, func(name string) (string, struct{}) { return name, struct{}{} }),
	}, nil
}

// Names returns a copy of the room names in catalog order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Contains reports whether name is a catalog room. Matching is case-sensitive.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.set[name]
	return ok
}
