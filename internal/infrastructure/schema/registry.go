package schema

import (
	"sort"
	"strings"
	"sync"

	"github.com/garyjia/docflow/internal/application/port"
)

// Form describes one form template
type Form struct {
	Title          string   `mapstructure:"title"`
	RequiredFields []string `mapstructure:"required_fields"`
}

// Registry is an in-memory form template registry loaded from configuration
type Registry struct {
	mu    sync.RWMutex
	forms map[string]Form
}

// NewRegistry creates a registry from formID → template
func NewRegistry(forms map[string]Form) *Registry {
	r := &Registry{forms: make(map[string]Form, len(forms))}
	for id, f := range forms {
		r.Register(id, f)
	}
	return r
}

// Register adds or replaces a form template. Blank field names are dropped.
func (r *Registry) Register(formID string, f Form) {
	fields := make([]string, 0, len(f.RequiredFields))
	for _, name := range f.RequiredFields {
		if name = strings.TrimSpace(name); name != "" {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	f.RequiredFields = fields

	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[formID] = f
}

// RequiredFields returns the required field names of formID and false when the form is unknown
func (r *Registry) RequiredFields(formID string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forms[formID]
	if !ok {
		return nil, false
	}
	return append([]string(nil), f.RequiredFields...), true
}

// Title returns the display title of formID
func (r *Registry) Title(formID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forms[formID].Title
}

// Len returns the number of registered forms
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.forms)
}

var _ port.FormSchemaRegistry = (*Registry)(nil)
