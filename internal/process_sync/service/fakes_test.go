package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/stretchr/testify/mock"
)

// fakeSource serves processes from a map and counts fetches.
type fakeSource struct {
	mu        sync.Mutex
	processes map[string]domain.RawProcess
	failing   map[string]error
	fetches   map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		processes: make(map[string]domain.RawProcess),
		failing:   make(map[string]error),
		fetches:   make(map[string]int),
	}
}

// add registers an in-effect process whose source ID equals its number.
func (f *fakeSource) add(id, name string, children ...string) {
	f.addRaw(domain.RawProcess{
		ID: id,
		Attributes: map[string]any{
			domain.AttrID:      id,
			domain.AttrName:    id + " " + name,
			domain.AttrState:   StateInEffect,
			domain.AttrGotoURL: "https://tenant.symbioweb.com/tenant/Processworld/1033/BasePlugin/GoTo/Processes/treeanddiagram/diag-" + id,
		},
		ChildIDs: children,
	})
}

func (f *fakeSource) addRaw(p domain.RawProcess) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processes[p.ID] = p
}

func (f *fakeSource) Fetch(ctx context.Context, id string) (domain.RawProcess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[id]++
	if err, ok := f.failing[id]; ok {
		return domain.RawProcess{}, err
	}
	p, ok := f.processes[id]
	if !ok {
		return domain.RawProcess{}, domain.ErrProcessNotFound
	}
	return p, nil
}

type fakeRecord struct {
	ID       string
	Type     string
	Name     string
	Category string
	Archived bool
	Patches  []domain.Patch
	Children []string
}

// fakeRepository is an in-memory EA repository.
type fakeRepository struct {
	mu            sync.Mutex
	seq           int
	records       map[string]*fakeRecord
	subscriptions map[string][]domain.Subscription
	subOwners     map[string]string
	documents     map[string][]domain.Document

	createCalls  int
	childCalls   map[string]int
	searchCalls  int
	archived     []string
	failPatchFor map[string]bool
	failChildFor map[string]error
	failSearch   error
	ownerAdds    map[string][]string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		records:       make(map[string]*fakeRecord),
		subscriptions: make(map[string][]domain.Subscription),
		subOwners:     make(map[string]string),
		documents:     make(map[string][]domain.Document),
		childCalls:    make(map[string]int),
		failPatchFor:  make(map[string]bool),
		failChildFor:  make(map[string]error),
		ownerAdds:     make(map[string][]string),
	}
}

func (r *fakeRepository) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *fakeRepository) create(recordType, name, category string) *fakeRecord {
	rec := &fakeRecord{ID: r.nextID("fs"), Type: recordType, Name: name, Category: category}
	r.records[rec.ID] = rec
	r.createCalls++
	return rec
}

func (r *fakeRepository) byName(name string) *fakeRecord {
	for _, rec := range r.records {
		if !rec.Archived && strings.EqualFold(rec.Name, name) {
			return rec
		}
	}
	return nil
}

func (r *fakeRepository) Search(ctx context.Context, name string) ([]domain.RecordMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchCalls++
	if r.failSearch != nil {
		return nil, r.failSearch
	}
	var out []domain.RecordMatch
	for _, rec := range r.records {
		if rec.Archived || !strings.Contains(strings.ToLower(rec.Name), strings.ToLower(name)) {
			continue
		}
		out = append(out, domain.RecordMatch{ID: rec.ID, Type: rec.Type, Name: rec.Name, Category: rec.Category})
	}
	return out, nil
}

func (r *fakeRepository) CreateRecord(ctx context.Context, recordType, name, category string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(recordType, name, category).ID, nil
}

func (r *fakeRepository) CreateChildRelationship(ctx context.Context, parentID, name, category, relationship string) (domain.ChildRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.childCalls[parentID+"|"+name]++
	if err, ok := r.failChildFor[name]; ok {
		return domain.ChildRecord{}, err
	}
	parent, ok := r.records[parentID]
	if !ok {
		return domain.ChildRecord{}, fmt.Errorf("unknown parent %s", parentID)
	}
	created := false
	child := r.byName(name)
	if child == nil {
		child = r.create(DefaultRecordType, name, category)
		created = true
	}
	for _, id := range parent.Children {
		if id == child.ID {
			return domain.ChildRecord{ID: child.ID, Created: created}, nil
		}
	}
	parent.Children = append(parent.Children, child.ID)
	return domain.ChildRecord{ID: child.ID, Created: created}, nil
}

func (r *fakeRepository) UpdateRecord(ctx context.Context, id string, patches []domain.Patch) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return "", fmt.Errorf("unknown record %s", id)
	}
	if r.failPatchFor[rec.Name] {
		return "", errors.New("patch rejected")
	}
	rec.Patches = append([]domain.Patch(nil), patches...)
	return id, nil
}

func (r *fakeRepository) ArchiveRecord(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("unknown record %s", id)
	}
	rec.Archived = true
	r.archived = append(r.archived, id)
	return nil
}

func (r *fakeRepository) ListOwners(ctx context.Context, id string) ([]domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Subscription(nil), r.subscriptions[id]...), nil
}

func (r *fakeRepository) AddOwner(ctx context.Context, id, roleID, email, firstName, surname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := domain.Subscription{ID: r.nextID("sub"), RoleIDs: []string{roleID}}
	r.subscriptions[id] = append(r.subscriptions[id], sub)
	r.subOwners[sub.ID] = id
	r.ownerAdds[id] = append(r.ownerAdds[id], email)
	return nil
}

func (r *fakeRepository) RemoveOwner(ctx context.Context, subscriptionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	recordID := r.subOwners[subscriptionID]
	subs := r.subscriptions[recordID]
	for i, s := range subs {
		if s.ID == subscriptionID {
			r.subscriptions[recordID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	delete(r.subOwners, subscriptionID)
	return nil
}

func (r *fakeRepository) ListDocuments(ctx context.Context, id string) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Document(nil), r.documents[id]...), nil
}

func (r *fakeRepository) AddWebsiteLink(ctx context.Context, id, url, name, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[id] = append(r.documents[id], domain.Document{ID: r.nextID("doc"), Name: name, DocumentType: "website", URL: url})
	return nil
}

func (r *fakeRepository) DeleteDocument(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for recordID, docs := range r.documents {
		for i, d := range docs {
			if d.ID == documentID {
				r.documents[recordID] = append(docs[:i], docs[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

// names lists every record name the repository has stored.
func (r *fakeRepository) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rec := range r.records {
		out = append(out, rec.Name)
	}
	return out
}

type mockOwnerLookup struct {
	mock.Mock
}

func (m *mockOwnerLookup) SearchByName(ctx context.Context, name string) ([]domain.Person, error) {
	args := m.Called(ctx, name)
	people, _ := args.Get(0).([]domain.Person)
	return people, args.Error(1)
}

type mockOwnerGroups struct {
	mock.Mock
}

func (m *mockOwnerGroups) ResolveOwnerGroup(ctx context.Context, diagramID string) (string, error) {
	args := m.Called(ctx, diagramID)
	return args.String(0), args.Error(1)
}

type staticLinks struct{}

func (staticLinks) NavigatorURL(diagramID string) string {
	return "https://navigator.example/journal/" + diagramID
}

func (staticLinks) DesignerURL(diagramID string) string {
	return "https://designer.example/" + diagramID
}

// memoryCache is a TreeCache backed by a map.
type memoryCache struct {
	mu    sync.Mutex
	trees map[string][]byte
	saves int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{trees: make(map[string][]byte)}
}

func (c *memoryCache) Load(ctx context.Context, rootID string) (*domain.ProcessTree, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.trees[rootID]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	var tree domain.ProcessTree
	if err := tree.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &tree, nil
}

func (c *memoryCache) Save(ctx context.Context, tree *domain.ProcessTree) error {
	data, err := tree.MarshalJSON()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trees[tree.RootID] = data
	c.saves++
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, rootID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.trees, rootID)
	return nil
}
