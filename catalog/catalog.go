package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tx7do/go-utils/stringcase"

	"github.com/tx7do/go-crud-guard/errs"
)

// QueryDelimiter 参数名与操作符之间的分隔符，别名中不允许出现
const QueryDelimiter = "__"

var (
	pathRegexp  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)*$`)
	aliasRegexp = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)

	ErrCatalogFrozen = errors.New("catalog is frozen")
)

type entityEntry struct {
	entity  Entity
	byAlias map[string]int
	byPath  map[string]int
}

// Catalog 字段目录：实体名 -> 允许的字段映射。
// 注册在启动阶段完成，之后只读；读取路径不加锁，写入采用写时复制。
type Catalog struct {
	mu       sync.Mutex
	frozen   atomic.Bool
	entities atomic.Pointer[map[string]*entityEntry]
}

func New() *Catalog {
	c := &Catalog{}
	empty := map[string]*entityEntry{}
	c.entities.Store(&empty)
	return c
}

// Register 注册一个实体的字段映射
func (c *Catalog) Register(entity Entity) error {
	if entity.Name == "" {
		return errors.New("catalog: entity name is empty")
	}

	entry, err := buildEntry(entity)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen.Load() {
		return ErrCatalogFrozen
	}

	current := *c.entities.Load()
	if _, exists := current[entity.Name]; exists {
		return fmt.Errorf("catalog: entity %q already registered", entity.Name)
	}

	next := make(map[string]*entityEntry, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[entity.Name] = entry
	c.entities.Store(&next)

	return nil
}

// MustRegister 注册失败时 panic，用于启动代码
func (c *Catalog) MustRegister(entities ...Entity) *Catalog {
	for _, e := range entities {
		if err := c.Register(e); err != nil {
			panic(err)
		}
	}
	return c
}

// Freeze 冻结目录，此后不再接受注册
func (c *Catalog) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen.Store(true)
}

// Frozen 是否已冻结
func (c *Catalog) Frozen() bool {
	return c.frozen.Load()
}

func (c *Catalog) lookup(entity string) (*entityEntry, bool) {
	m := c.entities.Load()
	if m == nil {
		return nil, false
	}
	e, ok := (*m)[entity]
	return e, ok
}

// Entity 返回实体定义的副本
func (c *Catalog) Entity(name string) (Entity, bool) {
	e, ok := c.lookup(name)
	if !ok {
		return Entity{}, false
	}
	return e.entity.clone(), true
}

// Entities 返回已注册的实体名
func (c *Catalog) Entities() []string {
	m := *c.entities.Load()
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return names
}

// Resolve 根据客户端别名查找字段映射
func (c *Catalog) Resolve(entity, alias string) (FieldMapping, error) {
	e, ok := c.lookup(entity)
	if !ok {
		return FieldMapping{}, errs.UnknownEntity(entity)
	}
	idx, ok := e.byAlias[alias]
	if !ok {
		return FieldMapping{}, errs.UnknownField(entity, alias)
	}
	return e.entity.Fields[idx].clone(), nil
}

// ResolveSortable 查找可排序字段：依次按别名、后端路径、蛇形别名匹配
func (c *Catalog) ResolveSortable(entity, field string) (FieldMapping, error) {
	e, ok := c.lookup(entity)
	if !ok {
		return FieldMapping{}, errs.InvalidSortField(entity, field, "")
	}

	idx, found := e.byAlias[field]
	if !found {
		idx, found = e.byPath[field]
	}
	if !found {
		snake := stringcase.ToSnakeCase(field)
		if idx, found = e.byAlias[snake]; !found {
			idx, found = e.byPath[snake]
		}
	}
	if !found {
		return FieldMapping{}, errs.InvalidSortField(entity, field, "")
	}

	m := e.entity.Fields[idx]
	if !m.Sortable {
		return FieldMapping{}, errs.InvalidSortField(entity, field, "")
	}
	return m.clone(), nil
}

func buildEntry(entity Entity) (*entityEntry, error) {
	entity = entity.clone()

	entry := &entityEntry{
		entity:  entity,
		byAlias: make(map[string]int, len(entity.Fields)),
		byPath:  make(map[string]int, len(entity.Fields)),
	}

	for i, f := range entity.Fields {
		if err := validateMapping(entity.Name, f); err != nil {
			return nil, err
		}
		if _, dup := entry.byAlias[f.Alias]; dup {
			return nil, errs.DuplicateField(entity.Name, f.Alias)
		}
		entry.byAlias[f.Alias] = i
		if _, dup := entry.byPath[f.Path]; !dup {
			entry.byPath[f.Path] = i
		}
	}

	if entity.MaxParameters < 0 || entity.MaxSortFields < 0 {
		return nil, fmt.Errorf("catalog: entity %q has negative limits", entity.Name)
	}

	return entry, nil
}

func validateMapping(entity string, f FieldMapping) error {
	if f.Alias == "" {
		return fmt.Errorf("catalog: entity %q has a field with empty alias", entity)
	}
	if strings.Contains(f.Alias, QueryDelimiter) || !aliasRegexp.MatchString(f.Alias) {
		return fmt.Errorf("catalog: entity %q: invalid alias %q", entity, f.Alias)
	}
	if !pathRegexp.MatchString(f.Path) {
		return fmt.Errorf("catalog: entity %q: invalid path %q for alias %q", entity, f.Path, f.Alias)
	}
	if f.MaxOccurrences < 0 {
		return fmt.Errorf("catalog: entity %q: negative max occurrences for alias %q", entity, f.Alias)
	}
	if f.Type < TypeString || f.Type > TypeDecimal {
		return fmt.Errorf("catalog: entity %q: unknown value type for alias %q", entity, f.Alias)
	}
	for _, op := range f.Operators {
		if !op.IsValid() {
			return fmt.Errorf("catalog: entity %q: invalid operator %d for alias %q", entity, op, f.Alias)
		}
		if op.IsStringOperator() && f.Type != TypeString {
			return fmt.Errorf("catalog: entity %q: operator %s requires a string field, alias %q is %s",
				entity, op, f.Alias, f.Type)
		}
	}
	return nil
}
