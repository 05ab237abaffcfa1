// Package preferences registers typed per-user settings and resolves their
// current value for the signed-in user.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/darkden-lab/pgbrowser/internal/auth"
)

type Type string

const (
	Boolean Type = "boolean"
	Integer Type = "integer"
	Numeric Type = "numeric"
	Text    Type = "text"
	Options Type = "options"
)

var (
	ErrUnknownPreference = errors.New("unknown preference")
	ErrInvalidValue      = errors.New("invalid preference value")
	ErrAnonymous         = errors.New("preferences require a signed-in user")
	ErrNoStore           = errors.New("no preference store configured")
)

// Choice is one allowed value of an options preference.
type Choice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Preference struct {
	ID       string      `json:"id"`
	Module   string      `json:"module"`
	Category string      `json:"category"`
	Name     string      `json:"name"`
	Label    string      `json:"label"`
	Type     Type        `json:"type"`
	Default  interface{} `json:"default"`
	Min      *float64    `json:"min,omitempty"`
	Max      *float64    `json:"max,omitempty"`
	Choices  []Choice    `json:"options,omitempty"`
	Help     string      `json:"help,omitempty"`

	values ValueStore
}

// Option customises a preference at registration.
type Option func(*Preference, *Category)

func WithCategoryLabel(label string) Option {
	return func(_ *Preference, c *Category) { c.Label = label }
}

func WithRange(min, max float64) Option {
	return func(p *Preference, _ *Category) {
		p.Min = &min
		p.Max = &max
	}
}

func WithChoices(choices ...Choice) Option {
	return func(p *Preference, _ *Category) { p.Choices = choices }
}

func WithHelp(help string) Option {
	return func(p *Preference, _ *Category) { p.Help = help }
}

type Category struct {
	Name        string        `json:"name"`
	Label       string        `json:"label"`
	Preferences []*Preference `json:"preferences"`
}

// Module groups the preferences registered by one application module.
type Module struct {
	Name       string      `json:"name"`
	Categories []*Category `json:"categories"`

	registry *Registry
}

// Registry holds every registered preference in registration order.
type Registry struct {
	mu      sync.RWMutex
	modules []*Module
	values  ValueStore
}

func NewRegistry(values ValueStore) *Registry {
	return &Registry{values: values}
}

// Module returns the preference module called name, creating it on first use.
func (r *Registry) Module(name string) *Module {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.modules {
		if m.Name == name {
			return m
		}
	}
	m := &Module{Name: name, registry: r}
	r.modules = append(r.modules, m)
	return m
}

// Modules returns the registered modules in registration order.
func (r *Registry) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Module(nil), r.modules...)
}

// Lookup finds a preference by its full address.
func (r *Registry) Lookup(module, category, name string) (*Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modules {
		if m.Name != module {
			continue
		}
		for _, c := range m.Categories {
			if c.Name != category {
				continue
			}
			for _, p := range c.Preferences {
				if p.Name == name {
					return p, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: %s/%s/%s", ErrUnknownPreference, module, category, name)
}

// Register adds a preference. Registering the same category and name again
// returns the existing preference unchanged.
func (m *Module) Register(category, name, label string, typ Type, def interface{}, opts ...Option) *Preference {
	r := m.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	var cat *Category
	for _, c := range m.Categories {
		if c.Name == category {
			cat = c
			break
		}
	}
	if cat == nil {
		cat = &Category{Name: category, Label: category}
		m.Categories = append(m.Categories, cat)
	}
	for _, p := range cat.Preferences {
		if p.Name == name {
			return p
		}
	}

	p := &Preference{
		ID:       m.Name + "/" + category + "/" + name,
		Module:   m.Name,
		Category: category,
		Name:     name,
		Label:    label,
		Type:     typ,
		Default:  def,
		values:   r.values,
	}
	for _, opt := range opts {
		opt(p, cat)
	}
	cat.Preferences = append(cat.Preferences, p)
	return p
}

// Preference finds name in any category of the module, or nil.
func (m *Module) Preference(name string) *Preference {
	r := m.registry
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range m.Categories {
		for _, p := range c.Preferences {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// Get returns the current user's value, or the default when the user has
// none, is anonymous, or the stored value no longer validates.
func (p *Preference) Get(ctx context.Context) interface{} {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" || p.values == nil {
		return p.Default
	}
	raw, ok, err := p.values.Get(ctx, uid, p.ID)
	if err != nil || !ok {
		return p.Default
	}
	v, err := p.parse(raw)
	if err != nil {
		return p.Default
	}
	return v
}

func (p *Preference) Bool(ctx context.Context) bool {
	b, _ := p.Get(ctx).(bool)
	return b
}

func (p *Preference) Int(ctx context.Context) int {
	switch v := p.Get(ctx).(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (p *Preference) Float(ctx context.Context) float64 {
	switch v := p.Get(ctx).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func (p *Preference) String(ctx context.Context) string {
	return fmt.Sprint(p.Get(ctx))
}

// Set validates value and stores it for the current user.
func (p *Preference) Set(ctx context.Context, value interface{}) error {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" {
		return ErrAnonymous
	}
	if p.values == nil {
		return ErrNoStore
	}
	v, err := p.parse(fmt.Sprint(value))
	if err != nil {
		return err
	}
	return p.values.Set(ctx, uid, p.ID, p.format(v))
}

func (p *Preference) parse(raw string) (interface{}, error) {
	switch p.Type {
	case Boolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects a boolean", ErrInvalidValue, p.ID)
		}
		return b, nil
	case Integer:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects an integer", ErrInvalidValue, p.ID)
		}
		if err := p.checkRange(float64(n)); err != nil {
			return nil, err
		}
		return n, nil
	case Numeric:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %s expects a number", ErrInvalidValue, p.ID)
		}
		if err := p.checkRange(f); err != nil {
			return nil, err
		}
		return f, nil
	case Options:
		for _, c := range p.Choices {
			if c.Value == raw {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("%w: %q is not an option of %s", ErrInvalidValue, raw, p.ID)
	default:
		return raw, nil
	}
}

func (p *Preference) checkRange(f float64) error {
	if p.Min != nil && f < *p.Min {
		return fmt.Errorf("%w: %s must be at least %v", ErrInvalidValue, p.ID, *p.Min)
	}
	if p.Max != nil && f > *p.Max {
		return fmt.Errorf("%w: %s must be at most %v", ErrInvalidValue, p.ID, *p.Max)
	}
	return nil
}

func (p *Preference) format(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
