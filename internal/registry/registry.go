package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"codectx/internal/domain"
)

const stateFile = "projects.json"

// ErrNoCurrentProject is returned when an operation needs a project but
// none is selected and none was named.
var ErrNoCurrentProject = errors.New("no current project set")

type state struct {
	Projects map[string]domain.Project `json:"projects"`
	Current  string                    `json:"current,omitempty"`
}

// Registry persists named project bindings and the current-project pointer
// as a JSON state file. Every pipeline and query entry point resolves its
// project here first.
type Registry struct {
	dir string

	mu sync.Mutex
	st state
}

// Open loads (creating if needed) the registry under dir.
func Open(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry dir: %w", err)
	}

	r := &Registry{
		dir: dir,
		st:  state{Projects: make(map[string]domain.Project)},
	}

	data, err := os.ReadFile(r.path())
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	if err := json.Unmarshal(data, &r.st); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	if r.st.Projects == nil {
		r.st.Projects = make(map[string]domain.Project)
	}
	// A dangling current pointer is dropped rather than surfaced.
	if _, ok := r.st.Projects[r.st.Current]; r.st.Current != "" && !ok {
		r.st.Current = ""
	}
	return r, nil
}

func (r *Registry) path() string {
	return filepath.Join(r.dir, stateFile)
}

// save writes the state atomically via temp file and rename.
func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.st, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, stateFile+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.path())
}

// Set registers or selects a project. With a directory it creates or
// updates the binding and makes it current; without one it switches to an
// already-registered name, failing with ErrProjectNotFound otherwise and
// leaving the current pointer untouched. Rebinding a registered name to a
// different directory is rejected: remove the project first.
func (r *Registry) Set(name, dir, configPath string) (domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dir == "" {
		p, ok := r.st.Projects[name]
		if !ok {
			return domain.Project{}, fmt.Errorf("%w: %s (specify a directory to create it)", domain.ErrProjectNotFound, name)
		}
		r.st.Current = name
		return p, r.save()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return domain.Project{}, err
	}
	if existing, ok := r.st.Projects[name]; ok && existing.RootDir != abs {
		return domain.Project{}, fmt.Errorf("%w: %s is bound to %s (remove it to rebind)",
			domain.ErrProjectExists, name, existing.RootDir)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return domain.Project{}, fmt.Errorf("directory does not exist: %s", dir)
	}
	if configPath != "" {
		if configPath, err = filepath.Abs(configPath); err != nil {
			return domain.Project{}, err
		}
		if _, err := os.Stat(configPath); err != nil {
			return domain.Project{}, fmt.Errorf("config file does not exist: %s", configPath)
		}
	}

	p := domain.Project{
		Name:       name,
		RootDir:    abs,
		ConfigPath: configPath,
		IndexName:  name,
	}
	r.st.Projects[name] = p
	r.st.Current = name
	return p, r.save()
}

// Get returns a project by name.
func (r *Registry) Get(name string) (domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.st.Projects[name]
	if !ok {
		return domain.Project{}, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, name)
	}
	return p, nil
}

// Current returns the current project, or ErrNoCurrentProject.
func (r *Registry) Current() (domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.st.Current == "" {
		return domain.Project{}, ErrNoCurrentProject
	}
	return r.st.Projects[r.st.Current], nil
}

// CurrentName returns the current project name, empty when none is set.
func (r *Registry) CurrentName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.Current
}

// List returns all projects sorted by name.
func (r *Registry) List() []domain.Project {
	r.mu.Lock()
	defer r.mu.Unlock()

	projects := make([]domain.Project, 0, len(r.st.Projects))
	for _, p := range r.st.Projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects
}

// Remove deletes a project. Removing the current project clears the
// current pointer.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.st.Projects[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrProjectNotFound, name)
	}
	delete(r.st.Projects, name)
	if r.st.Current == name {
		r.st.Current = ""
	}
	return r.save()
}

// Resolve returns the named project, or the current one when name is
// empty.
func (r *Registry) Resolve(name string) (domain.Project, error) {
	if name != "" {
		return r.Get(name)
	}
	return r.Current()
}
