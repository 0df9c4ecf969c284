package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/metrics"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

// SynchronizerConfig holds the per-job settings of a Synchronizer.
type SynchronizerConfig struct {
	MaxDepth      int
	RootDiagramID string
	RecordType    string
	Category      string
	Relationship  string
	TagID         string
	OwnerRoleID   string
	AttachLinks   bool
}

func (c *SynchronizerConfig) applyDefaults() {
	if c.RecordType == "" {
		c.RecordType = DefaultRecordType
	}
	if c.Category == "" {
		c.Category = DefaultCategory
	}
	if c.Relationship == "" {
		c.Relationship = DefaultRelationship
	}
	if c.OwnerRoleID == "" {
		c.OwnerRoleID = DefaultOwnerRoleID
	}
}

// SynchronizerDeps are the collaborators of a Synchronizer. Only Records is
// required.
type SynchronizerDeps struct {
	Records     RecordRepository
	Documents   DocumentRepository
	OwnerGroups OwnerGroupResolver
	Owners      OwnerLookup
	Links       ProcessLinks
	Metrics     *metrics.Registry
}

// Synchronizer materializes a ProcessTree into the EA repository.
type Synchronizer struct {
	cfg         SynchronizerConfig
	records     RecordRepository
	documents   DocumentRepository
	ownerGroups OwnerGroupResolver
	owners      OwnerLookup
	links       ProcessLinks
	metrics     *metrics.Registry
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(cfg SynchronizerConfig, deps SynchronizerDeps) (*Synchronizer, error) {
	if deps.Records == nil {
		return nil, errors.New("record repository is required")
	}
	if cfg.MaxDepth < 1 {
		return nil, fmt.Errorf("max depth must be positive, got %d", cfg.MaxDepth)
	}
	if cfg.RootDiagramID == "" {
		return nil, errors.New("root diagram id is required")
	}
	cfg.applyDefaults()
	return &Synchronizer{
		cfg:         cfg,
		records:     deps.Records,
		documents:   deps.Documents,
		ownerGroups: deps.OwnerGroups,
		owners:      deps.Owners,
		links:       deps.Links,
		metrics:     deps.Metrics,
	}, nil
}

// Sync walks every parentless node of tree with a fresh SyncState.
func (s *Synchronizer) Sync(ctx context.Context, tree *domain.ProcessTree) (*domain.SyncReport, error) {
	return s.SyncWithState(ctx, tree, NewSyncState())
}

// SyncWithState is Sync with caller-provided state. A record the repository
// rejects fails its node and skips the subtree below it. Any other failure
// while resolving records ends the pass with an error. Owner, patch and
// link failures are logged and reported per node.
func (s *Synchronizer) SyncWithState(ctx context.Context, tree *domain.ProcessTree, st *SyncState) (*domain.SyncReport, error) {
	if tree == nil {
		return nil, errors.New("process tree is required")
	}
	if st == nil {
		st = NewSyncState()
	}
	report := &domain.SyncReport{}
	for _, root := range tree.Roots() {
		if err := s.syncNode(ctx, st, report, root, "", 0); err != nil {
			return report, err
		}
	}
	logging.NewLogger(ctx).LogInfof("sync_tree", "root=%s created=%d reused=%d skipped=%d failed=%d archived=%d",
		tree.RootID, report.Created, report.Reused, report.Skipped, report.Failed, report.Archived)
	return report, nil
}

func (s *Synchronizer) syncNode(ctx context.Context, st *SyncState, report *domain.SyncReport, node *domain.ProcessNode, parentID string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := logging.NewLogger(ctx)
	key := node.Key()

	if depth >= s.cfg.MaxDepth {
		s.record(report, domain.Skipped(key, "depth limit"), "skipped")
		return nil
	}
	name := SanitizeName(node.Name())
	if IsPlaceholder(node.Name()) || IsPlaceholder(name) {
		logger.LogInfof("sync_node", "skip process=%s name=%q reason=placeholder", key, node.Name())
		s.record(report, domain.Skipped(key, "placeholder process"), "skipped")
		return nil
	}
	if name == "" {
		s.record(report, domain.Skipped(key, "empty name"), "skipped")
		return nil
	}
	if node.Parent() == nil && node.DiagramID() != s.cfg.RootDiagramID {
		logger.LogWarnf("sync_node", "skip process=%s reason=orphan attributes=%+v", key, node.Attributes)
		s.record(report, domain.Skipped(key, "no parent and not the root process"), "skipped")
		return nil
	}

	recordID, created, err := s.resolve(ctx, st, name, parentID)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordRejected) || ctx.Err() != nil {
			return fmt.Errorf("resolve record for process %s: %w", key, err)
		}
		logger.LogErrorf("sync_node", "process=%s name=%q subtree skipped error=%v", key, name, err)
		s.record(report, domain.Failed(key, err), "failed")
		return nil
	}
	if recordID == "" {
		logger.LogWarnf("sync_node", "skip process=%s name=%q reason=no existing record under known relationship", key, name)
		s.record(report, domain.Skipped(key, "duplicate relationship without existing record"), "skipped")
		return nil
	}
	if created {
		report.Created++
		s.recordMetric("created")
	} else {
		report.Reused++
		s.recordMetric("reused")
	}
	logger.LogInfof("sync_node", "process=%s record=%s created=%t depth=%d", key, recordID, created, depth)

	if err := s.assignOwner(ctx, st, node, recordID); err != nil {
		logger.LogWarnf("assign_owner", "process=%s record=%s error=%v", key, recordID, err)
	}

	if err := s.applyPatches(ctx, node, recordID); err != nil {
		logger.LogErrorf("patch_record", "process=%s record=%s created=%t error=%v", key, recordID, created, err)
		if created {
			if aerr := s.records.ArchiveRecord(ctx, recordID); aerr != nil {
				logger.LogErrorf("archive_record", "record=%s error=%v", recordID, aerr)
			} else {
				report.Archived++
				s.recordMetric("archived")
			}
			s.record(report, domain.Failed(key, err), "failed")
			return nil
		}
		s.record(report, domain.Failed(key, err), "failed")
	} else {
		report.Record(domain.Ok(key))
	}

	if s.cfg.AttachLinks {
		if err := s.attachLinks(ctx, node, recordID); err != nil {
			logger.LogWarnf("attach_links", "process=%s record=%s error=%v", key, recordID, err)
		}
	}

	for _, child := range node.Children() {
		if err := s.syncNode(ctx, st, report, child, recordID, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// resolve finds or creates the record of a node. Roots are matched by name;
// children are linked to parentID once per pass and searched afterwards.
func (s *Synchronizer) resolve(ctx context.Context, st *SyncState, name, parentID string) (string, bool, error) {
	if parentID == "" {
		id, err := s.findExisting(ctx, name, true)
		if err != nil || id != "" {
			return id, false, err
		}
		id, err = s.records.CreateRecord(ctx, s.cfg.RecordType, name, s.cfg.Category)
		if err != nil {
			return "", false, err
		}
		return id, true, nil
	}

	if st.markRelationship(parentID, name) {
		child, err := s.records.CreateChildRelationship(ctx, parentID, name, s.cfg.Category, s.cfg.Relationship)
		if err != nil {
			return "", false, err
		}
		return child.ID, child.Created, nil
	}

	id, err := s.findExisting(ctx, name, false)
	return id, false, err
}

// findExisting returns the first record of the configured type whose name
// matches case-insensitively. Unless exact is set, a record containing the
// name is accepted when no exact match exists.
func (s *Synchronizer) findExisting(ctx context.Context, name string, exact bool) (string, error) {
	matches, err := s.records.Search(ctx, name)
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if m.Type == s.cfg.RecordType && strings.EqualFold(m.Name, name) {
			return m.ID, nil
		}
	}
	if exact {
		return "", nil
	}
	lower := strings.ToLower(name)
	for _, m := range matches {
		if m.Type == s.cfg.RecordType && strings.Contains(strings.ToLower(m.Name), lower) {
			return m.ID, nil
		}
	}
	return "", nil
}

func (s *Synchronizer) applyPatches(ctx context.Context, node *domain.ProcessNode, recordID string) error {
	in := PatchInput{TagID: s.cfg.TagID}
	if s.links != nil && node.DiagramID() != "" {
		in.NavigatorURL = s.links.NavigatorURL(node.DiagramID())
	}
	patches, err := BuildPatches(node, in)
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		return nil
	}
	_, err = s.records.UpdateRecord(ctx, recordID, patches)
	return err
}

// attachLinks replaces the navigator and designer links of a record.
func (s *Synchronizer) attachLinks(ctx context.Context, node *domain.ProcessNode, recordID string) error {
	if s.documents == nil || s.links == nil || node.DiagramID() == "" {
		return nil
	}
	docs, err := s.documents.ListDocuments(ctx, recordID)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if d.Name != NavigatorLinkName && d.Name != DesignerLinkName {
			continue
		}
		if err := s.documents.DeleteDocument(ctx, d.ID); err != nil {
			return err
		}
	}

	designerURL := node.Attributes.GotoURL
	if designerURL == "" {
		designerURL = s.links.DesignerURL(node.DiagramID())
	}
	if err := s.documents.AddWebsiteLink(ctx, recordID, s.links.NavigatorURL(node.DiagramID()), NavigatorLinkName, NavigatorLinkDetail); err != nil {
		return err
	}
	return s.documents.AddWebsiteLink(ctx, recordID, designerURL, DesignerLinkName, DesignerLinkDetail)
}

func (s *Synchronizer) record(report *domain.SyncReport, o domain.Outcome, label string) {
	report.Record(o)
	s.recordMetric(label)
}

func (s *Synchronizer) recordMetric(label string) {
	if s.metrics != nil {
		s.metrics.RecordSyncNode(label)
	}
}
