package repository

import (
	"testing"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/stretchr/testify/require"
)

func sampleTree(t *testing.T) *domain.ProcessTree {
	t.Helper()
	node := func(id, name string) *domain.ProcessNode {
		return domain.NewProcessNode(domain.RawProcess{
			ID: "src-" + id,
			Attributes: map[string]any{
				domain.AttrID:        id,
				domain.AttrName:      id + " " + name,
				domain.AttrState:     "inEffect",
				domain.AttrDiagramID: "diag-" + id,
			},
		})
	}
	tree, err := domain.NewProcessTree("1",
		[]*domain.ProcessNode{node("1", "Manage"), node("1.1", "Plan"), node("1.2", "Run")},
		[]domain.Edge{{Parent: "1", Child: "1.1"}, {Parent: "1", Child: "1.2"}},
	)
	require.NoError(t, err)
	return tree
}
