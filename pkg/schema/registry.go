package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	ferrors "github.com/boutdepapier/dynamicfilters/pkg/errors"
)

// PathSeparator joins the segments of a field path traversing a relation.
const PathSeparator = "__"

// Registry maps (namespace, type name) to entity descriptors. It is populated
// at process start and read concurrently afterwards.
type Registry struct {
	mutex    sync.RWMutex
	entities map[string]*EntityType
}

// ResolvedField is the result of resolving a field path.
type ResolvedField struct {
	Field
	Path string
	// Owner is the entity type declaring Field.
	Owner *EntityType
	// Relation is the traversed relation field of the root entity, nil for
	// direct fields.
	Relation *Field
}

type registryFile struct {
	Entities []EntityType `yaml:"entities"`
}

func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*EntityType),
	}
}

// Register adds an entity type. Duplicate entity keys and duplicate field
// names are rejected.
func (r *Registry) Register(entity EntityType) error {
	if entity.Namespace == "" || entity.Name == "" {
		return fmt.Errorf("entity type requires namespace and name")
	}
	if err := entity.buildIndex(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := entity.Key()
	if _, exists := r.entities[key]; exists {
		return fmt.Errorf("entity type '%s' already registered", entity.String())
	}
	r.entities[key] = &entity
	return nil
}

// Load registers every entity declared in a YAML document.
func (r *Registry) Load(data []byte) error {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse entity registry: %w", err)
	}
	for _, entity := range file.Entities {
		if err := r.Register(entity); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile registers every entity declared in the YAML file at path.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read entity registry %s: %w", path, err)
	}
	return r.Load(data)
}

// Lookup returns the entity type registered under (namespace, name). Names
// are matched case-insensitively.
func (r *Registry) Lookup(namespace, name string) (*EntityType, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	entity, ok := r.entities[entityKey(namespace, name)]
	if !ok {
		return nil, ferrors.ErrUnknownEntity(namespace + "." + name)
	}
	return entity, nil
}

// Entities returns all registered entity types sorted by key.
func (r *Registry) Entities() []*EntityType {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	entities := make([]*EntityType, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Key() < entities[j].Key()
	})
	return entities
}

// FieldsOf returns the ordered fields of the entity type.
func (r *Registry) FieldsOf(namespace, name string) ([]Field, error) {
	entity, err := r.Lookup(namespace, name)
	if err != nil {
		return nil, err
	}
	return entity.Fields, nil
}

// Related returns the target entity of a relation field declared on from.
func (r *Registry) Related(from *EntityType, field Field) (*EntityType, error) {
	if field.Related == "" {
		return nil, fmt.Errorf("field '%s' of '%s' declares no related entity", field.Name, from)
	}
	namespace, name := from.Namespace, field.Related
	if i := strings.LastIndex(field.Related, "."); i >= 0 {
		namespace, name = field.Related[:i], field.Related[i+1:]
	}
	return r.Lookup(namespace, name)
}

// ResolvePath resolves a field path against entity. A path is either a field
// name or "relation__field", traversing exactly one relation.
func (r *Registry) ResolvePath(entity *EntityType, path string) (ResolvedField, error) {
	normalized := strings.ReplaceAll(path, ".", PathSeparator)
	segments := strings.Split(normalized, PathSeparator)

	switch len(segments) {
	case 1:
		field, ok := entity.Field(segments[0])
		if !ok {
			return ResolvedField{}, ferrors.ErrUnknownField(entity.String(), path)
		}
		return ResolvedField{Field: field, Path: normalized, Owner: entity}, nil

	case 2:
		relation, ok := entity.Field(segments[0])
		if !ok || !relation.IsRelation() {
			return ResolvedField{}, ferrors.ErrUnknownField(entity.String(), path)
		}
		related, err := r.Related(entity, relation)
		if err != nil {
			return ResolvedField{}, ferrors.ErrUnknownField(entity.String(), path)
		}
		field, ok := related.Field(segments[1])
		if !ok {
			return ResolvedField{}, ferrors.ErrUnknownField(entity.String(), path)
		}
		return ResolvedField{Field: field, Path: normalized, Owner: related, Relation: &relation}, nil
	}

	return ResolvedField{}, ferrors.ErrUnknownField(entity.String(), path)
}
