package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/metrics"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

// ProcessSource fetches single process elements with their child IDs.
// Retries and authentication are the source's business.
type ProcessSource interface {
	Fetch(ctx context.Context, id string) (domain.RawProcess, error)
}

// Builder assembles a depth-bounded ProcessTree from a ProcessSource.
type Builder struct {
	source   ProcessSource
	maxDepth int
	metrics  *metrics.Registry
}

// NewBuilder creates a Builder. maxDepth must be positive.
func NewBuilder(source ProcessSource, maxDepth int, m *metrics.Registry) (*Builder, error) {
	if source == nil {
		return nil, errors.New("process source is required")
	}
	if maxDepth < 1 {
		return nil, fmt.Errorf("max depth must be positive, got %d", maxDepth)
	}
	return &Builder{source: source, maxDepth: maxDepth, metrics: m}, nil
}

// buildState lives for a single Build call.
type buildState struct {
	sources map[string]bool
	keys    map[string]bool
	nodes   []*domain.ProcessNode
	edges   []domain.Edge
	report  *domain.BuildReport
}

// Build walks the process model depth-first from rootID. Nodes are collected
// first and indexed into the tree afterwards. A failing root fetch or a
// cancelled context returns an error; any other failure only ends the
// affected branch and is listed in the report.
func (b *Builder) Build(ctx context.Context, rootID string) (*domain.ProcessTree, *domain.BuildReport, error) {
	if rootID == "" {
		return nil, nil, errors.New("root process id is required")
	}
	logger := logging.NewLogger(ctx)

	st := &buildState{
		sources: map[string]bool{rootID: true},
		keys:    make(map[string]bool),
		report:  &domain.BuildReport{},
	}

	raw, err := b.source.Fetch(ctx, rootID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch root process %s: %w", rootID, err)
	}
	root := domain.NewProcessNode(raw)
	b.include(st, root, "")

	if err := b.visitChildren(ctx, st, root, 1); err != nil {
		return nil, nil, err
	}

	// Caches are keyed by the requested source ID, which differs from the
	// root's tree key whenever the root carries a hierarchical id.
	tree, err := domain.NewProcessTree(rootID, st.nodes, st.edges)
	if err != nil {
		return nil, nil, err
	}

	logger.LogInfof("build_tree", "root=%s nodes=%d skipped=%d failed=%d",
		rootID, tree.Len(), st.report.Count(domain.OutcomeSkipped), st.report.Count(domain.OutcomeFailed))
	return tree, st.report, nil
}

func (b *Builder) visitChildren(ctx context.Context, st *buildState, parent *domain.ProcessNode, depth int) error {
	logger := logging.NewLogger(ctx)

	for _, id := range dedupe(parent.ChildIDs) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if st.sources[id] {
			b.record(st, domain.Skipped(id, "already visited"))
			continue
		}
		if depth >= b.maxDepth {
			b.record(st, domain.Skipped(id, fmt.Sprintf("depth %d reaches limit %d", depth, b.maxDepth)))
			continue
		}
		st.sources[id] = true

		raw, err := b.source.Fetch(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, domain.ErrProcessNotFound) {
				b.record(st, domain.Skipped(id, "not found in process source"))
				continue
			}
			logger.LogErrorf("build_tree", "fetch process=%s parent=%s error=%v", id, parent.Key(), err)
			b.record(st, domain.Failed(id, err))
			continue
		}

		node := domain.NewProcessNode(raw)
		if reason := b.exclusion(st, node); reason != "" {
			logger.LogDebugf("build_tree", "skip process=%s name=%q reason=%q", id, node.Name(), reason)
			b.record(st, domain.Skipped(node.Key(), reason))
			continue
		}

		b.include(st, node, parent.Key())
		if err := b.visitChildren(ctx, st, node, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// exclusion returns why a non-root node stays out of the tree, or "".
func (b *Builder) exclusion(st *buildState, node *domain.ProcessNode) string {
	attrs := node.Attributes
	if attrs.State == nil {
		return "missing state attribute"
	}
	if node.HierarchicalID() == "" {
		return "missing hierarchical id"
	}
	if IsPlaceholder(node.Name()) {
		return "placeholder process"
	}
	if *attrs.State != StateInEffect {
		return fmt.Sprintf("state %q is not %s", *attrs.State, StateInEffect)
	}
	if node.DotCount() >= b.maxDepth {
		return fmt.Sprintf("hierarchical id %s reaches depth limit %d", node.HierarchicalID(), b.maxDepth)
	}
	if st.keys[node.Key()] {
		return "already visited"
	}
	return ""
}

func (b *Builder) include(st *buildState, node *domain.ProcessNode, parentKey string) {
	st.keys[node.Key()] = true
	st.nodes = append(st.nodes, node)
	if parentKey != "" {
		st.edges = append(st.edges, domain.Edge{Parent: parentKey, Child: node.Key()})
	}
	b.record(st, domain.Ok(node.Key()))
}

func (b *Builder) record(st *buildState, o domain.Outcome) {
	st.report.Record(o)
	if b.metrics != nil {
		b.metrics.RecordBuildNode(o.Kind.String())
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
