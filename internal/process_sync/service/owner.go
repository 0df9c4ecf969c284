package service

import (
	"context"
	"fmt"

	"github.com/ea-integrations/process-sync/internal/logging"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

// ownerName returns the owner group of a node. Main processes ask the
// resolver (once per pass); other nodes only use their own attribute.
func (s *Synchronizer) ownerName(ctx context.Context, st *SyncState, node *domain.ProcessNode) string {
	if node.IsMainProcess() && s.ownerGroups != nil {
		if name, ok := st.ownerNames[node.Key()]; ok {
			return name
		}
		name, err := s.ownerGroups.ResolveOwnerGroup(ctx, node.DiagramID())
		if err != nil {
			logging.NewLogger(ctx).LogWarnf("resolve_owner", "process=%s diagram=%s error=%v", node.Key(), node.DiagramID(), err)
			name = ""
		}
		if name == "" {
			name = domain.Value(node.Attributes.OwnerGroup)
		}
		st.ownerNames[node.Key()] = name
		return name
	}
	return domain.Value(node.Attributes.OwnerGroup)
}

// assignOwner applies the owner of a node to its record. A node with an owner
// group of its own is looked up in the directory; a sub-process without one
// inherits the owner of its main process.
func (s *Synchronizer) assignOwner(ctx context.Context, st *SyncState, node *domain.ProcessNode, recordID string) error {
	logger := logging.NewLogger(ctx)

	if name := NormalizeOwnerName(s.ownerName(ctx, st, node)); name != "" {
		if s.owners == nil {
			return nil
		}
		people, err := s.owners.SearchByName(ctx, name)
		if err != nil {
			return fmt.Errorf("look up owner %q: %w", name, err)
		}
		if len(people) != 1 {
			logger.LogInfof("assign_owner", "process=%s owner=%q matches=%d, skipping", node.Key(), name, len(people))
			return nil
		}
		p := people[0]
		info := domain.OwnerInfo{
			RoleID:    s.cfg.OwnerRoleID,
			Email:     p.Email,
			FirstName: p.GivenName,
			Surname:   p.Surname,
		}
		if err := s.replaceOwner(ctx, recordID, info); err != nil {
			return err
		}
		st.gpoMap[node.Key()] = info
		logger.LogInfof("assign_owner", "process=%s owner=%s", node.Key(), p.DisplayName)
		return nil
	}

	if node.DotCount() == 0 {
		return nil
	}
	info, ok := st.InheritedOwner(node.TopLevelID())
	if !ok {
		return nil
	}
	return s.replaceOwner(ctx, recordID, info)
}

// replaceOwner removes every subscription carrying the owner role and adds
// the new owner.
func (s *Synchronizer) replaceOwner(ctx context.Context, recordID string, info domain.OwnerInfo) error {
	subs, err := s.records.ListOwners(ctx, recordID)
	if err != nil {
		return fmt.Errorf("list owners of %s: %w", recordID, err)
	}
	for _, sub := range subs {
		if !sub.HasRole(info.RoleID) {
			continue
		}
		if err := s.records.RemoveOwner(ctx, sub.ID); err != nil {
			return fmt.Errorf("remove subscription %s: %w", sub.ID, err)
		}
	}
	if err := s.records.AddOwner(ctx, recordID, info.RoleID, info.Email, info.FirstName, info.Surname); err != nil {
		return fmt.Errorf("add owner to %s: %w", recordID, err)
	}
	return nil
}
