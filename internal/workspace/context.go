package workspace

import (
	"sync"

	"github.com/pdf360/planview/pkg/core"
)

// Context holds the project and plan a session is working on
type Context struct {
	mu      sync.RWMutex
	Project *core.Project
	Plan    *core.Plan
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		Project: &core.Project{Name: "No project open"},
		Plan:    &core.Plan{Title: "No plan open"},
	}
}

// GetProject returns the current project
func (wc *Context) GetProject() *core.Project {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return wc.Project
}

// GetPlan returns the current plan
func (wc *Context) GetPlan() *core.Plan {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return wc.Plan
}

// SetPlan sets the current project and plan
func (wc *Context) SetPlan(project *core.Project, plan *core.Plan) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.Project = project
	wc.Plan = plan
}

// Clear resets to the defaults
func (wc *Context) Clear() {
	d := NewContext()
	wc.SetPlan(d.Project, d.Plan)
}
