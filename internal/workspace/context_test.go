package workspace

import (
	"sync"
	"testing"

	"github.com/pdf360/planview/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()

	assert.Equal(t, "No project open", ctx.GetProject().Name)
	assert.Equal(t, "No plan open", ctx.GetPlan().Title)
}

func TestContext_SetAndClear(t *testing.T) {
	ctx := NewContext()
	ctx.SetPlan(&core.Project{ID: 1, Name: "Site A"}, &core.Plan{ID: 2, Title: "Ground"})

	assert.Equal(t, "Site A", ctx.GetProject().Name)
	assert.Equal(t, uint(2), ctx.GetPlan().ID)

	ctx.Clear()
	assert.Equal(t, "No project open", ctx.GetProject().Name)
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ctx.SetPlan(&core.Project{ID: uint(i)}, &core.Plan{ID: uint(i)})
		}(i)
		go func() {
			defer wg.Done()
			_ = ctx.GetProject()
			_ = ctx.GetPlan()
		}()
	}
	wg.Wait()
}
