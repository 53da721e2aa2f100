package domain

import (
	"fmt"
	"strings"
)

// WarehouseGroup is a branch: its shop-front warehouse, optionally preceded
// by a dedicated storage warehouse.
type WarehouseGroup struct {
	Name       string   `json:"name" mapstructure:"name"`
	Warehouses []string `json:"warehouses" mapstructure:"warehouses"`
}

// Shop is the shop-front warehouse, always the last entry.
func (g WarehouseGroup) Shop() string {
	if len(g.Warehouses) == 0 {
		return ""
	}
	return g.Warehouses[len(g.Warehouses)-1]
}

// Storage is the dedicated storage warehouse, empty when the group has none.
func (g WarehouseGroup) Storage() string {
	if len(g.Warehouses) < 2 {
		return ""
	}
	return g.Warehouses[0]
}

// Contains reports whether the warehouse belongs to the group.
func (g WarehouseGroup) Contains(warehouse string) bool {
	for _, w := range g.Warehouses {
		if w == warehouse {
			return true
		}
	}
	return false
}

// BranchName is the display name embedded in the shop warehouse label
// ("1610010100 - Pixel - Branch 1" -> "Pixel"). Labels without a
// " - " separator are used whole.
func (g WarehouseGroup) BranchName() string {
	parts := strings.Split(g.Shop(), " - ")
	if len(parts) >= 2 {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(parts[0])
}

// Registry is the injected warehouse topology: one central storage that
// supplies every branch group.
type Registry struct {
	CentralStorage string           `json:"central_storage" mapstructure:"central_storage"`
	Groups         []WarehouseGroup `json:"groups" mapstructure:"groups"`
}

// Validate checks the registry is usable by the recommendation stage.
func (r Registry) Validate() error {
	if strings.TrimSpace(r.CentralStorage) == "" {
		return fmt.Errorf("registry: central storage must be set")
	}
	if len(r.Groups) == 0 {
		return fmt.Errorf("registry: at least one branch group is required")
	}

	names := make(map[string]struct{}, len(r.Groups))
	owner := make(map[string]string)
	for i, g := range r.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("registry: group %d has no name", i)
		}
		if _, dup := names[g.Name]; dup {
			return fmt.Errorf("registry: duplicate group name %q", g.Name)
		}
		names[g.Name] = struct{}{}

		if len(g.Warehouses) < 1 || len(g.Warehouses) > 2 {
			return fmt.Errorf("registry: group %q must list 1 or 2 warehouses, got %d", g.Name, len(g.Warehouses))
		}
		for _, w := range g.Warehouses {
			if w == r.CentralStorage {
				return fmt.Errorf("registry: group %q includes the central storage %q", g.Name, w)
			}
			if prev, taken := owner[w]; taken {
				return fmt.Errorf("registry: warehouse %q is in both %q and %q", w, prev, g.Name)
			}
			owner[w] = g.Name
		}
	}
	return nil
}

// Group looks a branch group up by name.
func (r Registry) Group(name string) (WarehouseGroup, bool) {
	for _, g := range r.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return WarehouseGroup{}, false
}

// BranchWarehouses is every warehouse that belongs to some branch group.
func (r Registry) BranchWarehouses() []string {
	var out []string
	for _, g := range r.Groups {
		out = append(out, g.Warehouses...)
	}
	return out
}
