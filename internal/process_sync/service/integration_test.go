package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ea-integrations/process-sync/internal/celonis"
	"github.com/ea-integrations/process-sync/internal/leanix"
	"github.com/ea-integrations/process-sync/internal/leanix/leanixtest"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/ea-integrations/process-sync/internal/process_sync/service"
	"github.com/ea-integrations/process-sync/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = retry.Policy{Attempts: 2, Initial: time.Millisecond, Max: time.Millisecond}

type modelerElement struct {
	attrs    map[string]string
	children []string
}

func gotoURL(diagramID string) string {
	return "https://acme.symbioweb.com/acme/Processworld/1033/BasePlugin/GoTo/Processes/treeanddiagram/" + diagramID
}

// newModeler serves elements in the process modeler data API format.
func newModeler(t *testing.T, elements map[string]modelerElement) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/_api/v2/data/elements/")
		el, ok := elements[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		type value struct {
			Value string `json:"value"`
		}
		type attribute struct {
			Key    string  `json:"key"`
			Values []value `json:"values"`
		}
		type child struct {
			ID         string            `json:"id"`
			Properties map[string]string `json:"properties"`
		}
		body := struct {
			ID         string      `json:"id"`
			Attributes []attribute `json:"attributes"`
			Children   []child     `json:"children"`
		}{ID: id}
		for k, v := range el.attrs {
			body.Attributes = append(body.Attributes, attribute{Key: k, Values: []value{{Value: v}}})
		}
		for _, c := range el.children {
			body.Children = append(body.Children, child{ID: c, Properties: map[string]string{"facetName": "processes"}})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type directory map[string][]domain.Person

func (d directory) SearchByName(ctx context.Context, name string) ([]domain.Person, error) {
	return d[name], nil
}

func TestBuildAndSyncAgainstRepository(t *testing.T) {
	ctx := context.Background()

	modeler := newModeler(t, map[string]modelerElement{
		"root": {
			attrs:    map[string]string{"name": "Processworld", "state1": "inEffect", "gotoUrl": gotoURL("diag-root")},
			children: []string{"el-1", "el-2"},
		},
		"el-1": {
			attrs: map[string]string{
				"name": "1 Plan", "id": "1", "state1": "inEffect", "gotoUrl": gotoURL("diag-1"),
				"description": "<p>Plan the work</p>", "majorVersion": "2", "minorVersion": "0",
			},
			children: []string{"el-11"},
		},
		"el-11": {
			attrs: map[string]string{"name": "1.1 Forecast", "id": "1.1", "state1": "inEffect", "gotoUrl": gotoURL("diag-11")},
		},
		"el-2": {
			attrs: map[string]string{"name": "Temporary Library", "id": "2", "state1": "inEffect", "gotoUrl": gotoURL("diag-2")},
		},
		"diag-1": {
			attrs: map[string]string{"customGponame": "GPO Jane Doe"},
		},
	})

	source, err := celonis.NewClient(celonis.Config{
		Tenant:                "acme",
		AuthToken:             "modeler-token",
		BaseURL:               modeler.URL,
		NavigatorCollectionID: "coll-1",
		Retry:                 fastRetry,
	}, nil)
	require.NoError(t, err)

	fake := leanixtest.New(t, "lx-token")
	repo, err := leanix.NewClient(leanix.Config{BaseURL: fake.URL(), APIToken: "lx-token", Retry: fastRetry}, nil)
	require.NoError(t, err)

	builder, err := service.NewBuilder(source, 4, nil)
	require.NoError(t, err)
	tree, buildReport, err := builder.Build(ctx, "root")
	require.NoError(t, err)
	require.True(t, buildReport.Complete())
	assert.ElementsMatch(t, []string{"root", "1", "1.1"}, tree.Keys())

	sync, err := service.NewSynchronizer(service.SynchronizerConfig{
		MaxDepth:      4,
		RootDiagramID: "diag-root",
		TagID:         "tag-1",
		AttachLinks:   true,
	}, service.SynchronizerDeps{
		Records:     repo,
		Documents:   repo,
		OwnerGroups: source,
		Owners: directory{"Jane Doe": {{
			DisplayName: "Jane Doe", Email: "jane.doe@example.com", GivenName: "Jane", Surname: "Doe",
		}}},
		Links: source,
	})
	require.NoError(t, err)

	report, err := sync.Sync(ctx, tree)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 0, report.Failed)

	root, ok := fake.FindByName("Processworld")
	require.True(t, ok)
	plan, ok := fake.FindByName("Plan")
	require.True(t, ok)
	forecast, ok := fake.FindByName("Forecast")
	require.True(t, ok)

	assert.Equal(t, []string{plan.ID}, root.Relations["relToChild"])
	assert.Equal(t, []string{forecast.ID}, plan.Relations["relToChild"])
	assert.Equal(t, "process", plan.Category)

	assert.Equal(t, "Plan the work", plan.Fields["description"])
	assert.Equal(t, "2.0", plan.Fields["Version"])
	assert.Equal(t, "1", plan.Fields["alias"])
	assert.Equal(t, "1.1", forecast.Fields["alias"])
	assert.Contains(t, plan.Fields["tags"], "tag-1")
	assert.Contains(t, forecast.Fields["externalId"], "https://navigator.symbio.cloud/acme/coll-1/journal/diag-11")

	require.Len(t, plan.Subscriptions, 1)
	assert.Equal(t, "jane.doe@example.com", plan.Subscriptions[0].Email)
	assert.Equal(t, []string{service.DefaultOwnerRoleID}, plan.Subscriptions[0].RoleIDs)
	require.Len(t, forecast.Subscriptions, 1)
	assert.Equal(t, "jane.doe@example.com", forecast.Subscriptions[0].Email)
	assert.Empty(t, root.Subscriptions)

	require.Len(t, forecast.Documents, 2)
	assert.Equal(t, service.NavigatorLinkName, forecast.Documents[0].Name)
	assert.Equal(t, service.DesignerLinkName, forecast.Documents[1].Name)
	assert.Equal(t, gotoURL("diag-11"), forecast.Documents[1].URL)

	t.Run("second pass reuses everything", func(t *testing.T) {
		creates := fake.Calls("createFactSheet")

		again, err := sync.Sync(ctx, tree)
		require.NoError(t, err)
		assert.Equal(t, 0, again.Created)
		assert.Equal(t, 3, again.Reused)
		assert.Equal(t, creates, fake.Calls("createFactSheet"))
		assert.Len(t, fake.Records(), 3)

		forecast, _ := fake.Record(forecast.ID)
		assert.Len(t, forecast.Documents, 2)
		assert.Len(t, forecast.Subscriptions, 1)
		plan, _ := fake.Record(plan.ID)
		assert.Len(t, plan.Relations["relToChild"], 1)
	})
}
