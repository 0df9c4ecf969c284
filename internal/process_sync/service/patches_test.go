package service

import (
	"encoding/json"
	"testing"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func patchByPath(patches []domain.Patch, path string) (domain.Patch, bool) {
	for _, p := range patches {
		if p.Path == path {
			return p, true
		}
	}
	return domain.Patch{}, false
}

func TestLifecyclePhases(t *testing.T) {
	t.Run("far future end date yields only active phase", func(t *testing.T) {
		phases, ok := LifecyclePhases(strPtr("2020-01-01T00:00:00"), strPtr("2099-01-01T00:00:00"))
		require.True(t, ok)
		assert.Equal(t, []LifecyclePhase{{Phase: "active", StartDate: "2020-01-01"}}, phases)
	})

	t.Run("year 9999 is far future", func(t *testing.T) {
		phases, ok := LifecyclePhases(strPtr("2020-01-01T00:00:00"), strPtr("9999-12-31T00:00:00"))
		require.True(t, ok)
		assert.Len(t, phases, 1)
	})

	t.Run("real end date adds end of life", func(t *testing.T) {
		phases, ok := LifecyclePhases(strPtr("2020-01-01T00:00:00"), strPtr("2023-06-01T00:00:00"))
		require.True(t, ok)
		assert.Equal(t, []LifecyclePhase{
			{Phase: "active", StartDate: "2020-01-01"},
			{Phase: "endOfLife", StartDate: "2023-06-01"},
		}, phases)
	})

	t.Run("missing dates", func(t *testing.T) {
		_, ok := LifecyclePhases(nil, strPtr("2023-06-01T00:00:00"))
		assert.False(t, ok)
		_, ok = LifecyclePhases(strPtr("2020-01-01"), nil)
		assert.False(t, ok)
	})
}

func TestBuildPatches(t *testing.T) {
	t.Run("all attributes", func(t *testing.T) {
		node := domain.NewProcessNode(domain.RawProcess{
			ID: "src-1",
			Attributes: map[string]any{
				domain.AttrID:           "3.1",
				domain.AttrName:         "3.1 Plan demand",
				domain.AttrDescription:  "<p>Plans <b>demand</b></p>",
				domain.AttrValidFrom:    "2020-01-01T00:00:00",
				domain.AttrValidUntil:   "2023-06-01T00:00:00",
				domain.AttrMajorVersion: float64(2),
				domain.AttrMinorVersion: float64(1),
			},
		})

		patches, err := BuildPatches(node, PatchInput{TagID: "tag-1", NavigatorURL: "https://nav/journal/d1"})
		require.NoError(t, err)

		paths := make([]string, 0, len(patches))
		for _, p := range patches {
			paths = append(paths, p.Path)
			assert.Equal(t, "replace", p.Op)
		}
		assert.Equal(t, []string{"/description", "/lifecycle", "/Version", "/tags", "/alias", "/externalId"}, paths)

		desc, _ := patchByPath(patches, "/description")
		assert.Equal(t, "Plans demand", desc.Value)

		version, _ := patchByPath(patches, "/Version")
		assert.Equal(t, "2.1", version.Value)

		tags, _ := patchByPath(patches, "/tags")
		assert.JSONEq(t, `[{"tagId":"tag-1"}]`, tags.Value)

		alias, _ := patchByPath(patches, "/alias")
		assert.Equal(t, "3.1", alias.Value)

		lc, _ := patchByPath(patches, "/lifecycle")
		assert.JSONEq(t, `{"phases":[{"phase":"active","startDate":"2020-01-01"},{"phase":"endOfLife","startDate":"2023-06-01"}]}`, lc.Value)

		ext, _ := patchByPath(patches, "/externalId")
		var ref map[string]string
		require.NoError(t, json.Unmarshal([]byte(ext.Value), &ref))
		assert.Equal(t, ExternalIDLabel, ref["externalId"])
		assert.Equal(t, "https://nav/journal/d1", ref["externalUrl"])
		assert.Equal(t, "active", ref["status"])
	})

	t.Run("absent attributes produce no patches", func(t *testing.T) {
		node := domain.NewProcessNode(domain.RawProcess{
			ID:         "src-2",
			Attributes: map[string]any{domain.AttrName: "Unnumbered"},
		})
		patches, err := BuildPatches(node, PatchInput{})
		require.NoError(t, err)
		assert.Empty(t, patches)
	})

	t.Run("version needs both parts", func(t *testing.T) {
		node := domain.NewProcessNode(domain.RawProcess{
			ID:         "src-3",
			Attributes: map[string]any{domain.AttrID: "4", domain.AttrMajorVersion: "1"},
		})
		patches, err := BuildPatches(node, PatchInput{})
		require.NoError(t, err)
		_, ok := patchByPath(patches, "/Version")
		assert.False(t, ok)
	})
}
