package service

import "github.com/ea-integrations/process-sync/internal/process_sync/domain"

type relationshipKey struct {
	parentID string
	name     string
}

// SyncState is the mutable state of a single synchronization pass. It is
// created per run and never shared between runs.
type SyncState struct {
	visitedRelationships map[relationshipKey]bool
	gpoMap               map[string]domain.OwnerInfo
	ownerNames           map[string]string
}

// NewSyncState returns an empty state.
func NewSyncState() *SyncState {
	return &SyncState{
		visitedRelationships: make(map[relationshipKey]bool),
		gpoMap:               make(map[string]domain.OwnerInfo),
		ownerNames:           make(map[string]string),
	}
}

// markRelationship records the pair and reports whether it was new.
func (s *SyncState) markRelationship(parentID, name string) bool {
	k := relationshipKey{parentID: parentID, name: name}
	if s.visitedRelationships[k] {
		return false
	}
	s.visitedRelationships[k] = true
	return true
}

// RelationshipSeen reports whether (parentID, name) was linked in this pass.
func (s *SyncState) RelationshipSeen(parentID, name string) bool {
	return s.visitedRelationships[relationshipKey{parentID: parentID, name: name}]
}

// InheritedOwner returns the owner resolved for a main process.
func (s *SyncState) InheritedOwner(mainProcessID string) (domain.OwnerInfo, bool) {
	o, ok := s.gpoMap[mainProcessID]
	return o, ok
}
