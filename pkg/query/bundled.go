package query

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/boutdepapier/dynamicfilters/pkg/filter"
)

// BundledComponent is a reusable filter that is not reducible to a single
// field predicate. Apply returns the narrowed query, or nil to leave it
// unchanged.
type BundledComponent interface {
	filter.BundledDescriptor
	Apply(ctx context.Context, tx *gorm.DB, value string) (*gorm.DB, error)
}

// BundledRegistry maps stored "module.Class" identities to components.
type BundledRegistry struct {
	mutex      sync.RWMutex
	components map[string]BundledComponent
}

func NewBundledRegistry() *BundledRegistry {
	return &BundledRegistry{
		components: make(map[string]BundledComponent),
	}
}

func identity(module, class string) string {
	return module + "." + class
}

func (r *BundledRegistry) Register(module, class string, component BundledComponent) error {
	if module == "" || class == "" {
		return fmt.Errorf("bundled component requires module and class")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := identity(module, class)
	if _, exists := r.components[key]; exists {
		return fmt.Errorf("bundled component '%s' already registered", key)
	}
	r.components[key] = component
	return nil
}

// Resolve returns the component registered under (module, class).
func (r *BundledRegistry) Resolve(module, class string) (BundledComponent, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	component, ok := r.components[identity(module, class)]
	if !ok {
		return nil, fmt.Errorf("bundled component '%s' is not registered", identity(module, class))
	}
	return component, nil
}

// Describe implements filter.BundledCatalog.
func (r *BundledRegistry) Describe(module, class string) (filter.BundledDescriptor, bool) {
	component, err := r.Resolve(module, class)
	if err != nil {
		return nil, false
	}
	return component, true
}

// Identities returns the registered identities in name order.
func (r *BundledRegistry) Identities() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	identities := make([]string, 0, len(r.components))
	for key := range r.components {
		identities = append(identities, key)
	}
	sort.Strings(identities)
	return identities
}
