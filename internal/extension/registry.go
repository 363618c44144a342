package extension

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry indexes loaded extensions by name and by the functions they
// provide.
type Registry struct {
	sync.RWMutex
	extensions map[string]*Extension // name -> extension
	byFunction map[string]*Extension // schema.function -> extension
	logger     *zap.Logger
}

// NewRegistry creates a new extension registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		extensions: make(map[string]*Extension),
		byFunction: make(map[string]*Extension),
		logger:     logger.With(zap.String("component", "extension-registry")),
	}
}

// Register adds an extension. It fails without changes when the name or
// any of its functions is taken.
func (r *Registry) Register(ext *Extension) error {
	r.Lock()
	defer r.Unlock()

	name := ext.Name()
	if _, exists := r.extensions[name]; exists {
		return &AlreadyRegisteredError{ExtensionName: name}
	}
	for _, fn := range ext.Functions() {
		if owner, ok := r.byFunction[fn]; ok {
			return &FunctionConflictError{Function: fn, Owner: owner.Name(), Other: name}
		}
	}

	r.extensions[name] = ext
	for _, fn := range ext.Functions() {
		r.byFunction[fn] = ext
	}

	r.logger.Info("Extension registered",
		zap.String("name", name),
		zap.Strings("functions", ext.Functions()),
	)

	return nil
}

// Get retrieves an extension by name.
func (r *Registry) Get(name string) (*Extension, bool) {
	r.RLock()
	defer r.RUnlock()

	ext, ok := r.extensions[name]
	return ext, ok
}

// LookupFunction finds the extension providing a qualified function.
func (r *Registry) LookupFunction(qualified string) (*Extension, bool) {
	r.RLock()
	defer r.RUnlock()

	ext, ok := r.byFunction[qualified]
	return ext, ok
}

// List returns all registered extensions sorted by name.
func (r *Registry) List() []*Extension {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Extension, 0, len(r.extensions))
	for _, ext := range r.extensions {
		result = append(result, ext)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Unregister removes an extension and its functions from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	ext, ok := r.extensions[name]
	if !ok {
		return
	}

	for _, fn := range ext.Functions() {
		delete(r.byFunction, fn)
	}
	delete(r.extensions, name)

	r.logger.Info("Extension unregistered", zap.String("name", name))
}

// Count returns the number of registered extensions.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.extensions)
}
