package migration

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrAlreadyRegistered = errors.New("migration body is already registered")

type Funcs struct {
	Up   Func
	Down Func
}

// Registry maps identifiers to compiled-in migration bodies, it is used by
// sources that read migration manifests from a folder
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Funcs
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Funcs)}
}

func (r *Registry) Register(name string, up, down Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.funcs[name]; ok {
		return errors.Wrapf(ErrAlreadyRegistered, "%s", name)
	}

	r.funcs[name] = Funcs{Up: up, Down: down}
	return nil
}

// MustRegister is meant for init functions of migration packages
func (r *Registry) MustRegister(name string, up, down Func) {
	if err := r.Register(name, up, down); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Funcs, bool) {
	if r == nil {
		return Funcs{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.funcs[name]
	return f, ok
}
