package service

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

type LifecyclePhase struct {
	Phase     string `json:"phase"`
	StartDate string `json:"startDate"`
}

type lifecycle struct {
	Phases []LifecyclePhase `json:"phases"`
}

type externalReference struct {
	ExternalID  string `json:"externalId"`
	ExternalURL string `json:"externalUrl"`
	Comment     string `json:"comment"`
	Status      string `json:"status"`
}

type tagRef struct {
	TagID string `json:"tagId"`
}

// PatchInput carries everything BuildPatches needs besides the node.
type PatchInput struct {
	TagID        string
	NavigatorURL string
}

// BuildPatches returns the attribute patches for a synchronized record. Only
// attributes present on the node produce a patch.
func BuildPatches(node *domain.ProcessNode, in PatchInput) ([]domain.Patch, error) {
	attrs := node.Attributes
	var patches []domain.Patch

	if attrs.Description != nil {
		patches = append(patches, replace("/description", StripMarkup(*attrs.Description)))
	}

	if phases, ok := LifecyclePhases(attrs.ValidFrom, attrs.ValidUntil); ok {
		raw, err := json.Marshal(lifecycle{Phases: phases})
		if err != nil {
			return nil, err
		}
		patches = append(patches, replace("/lifecycle", string(raw)))
	}

	if attrs.MajorVersion != nil && attrs.MinorVersion != nil {
		patches = append(patches, replace("/Version", *attrs.MajorVersion+"."+*attrs.MinorVersion))
	}

	if in.TagID != "" {
		raw, err := json.Marshal([]tagRef{{TagID: in.TagID}})
		if err != nil {
			return nil, err
		}
		patches = append(patches, replace("/tags", string(raw)))
	}

	if alias := node.HierarchicalID(); alias != "" {
		patches = append(patches, replace("/alias", alias))
	}

	if in.NavigatorURL != "" {
		raw, err := json.Marshal(externalReference{
			ExternalID:  ExternalIDLabel,
			ExternalURL: in.NavigatorURL,
			Comment:     node.SourceID,
			Status:      "active",
		})
		if err != nil {
			return nil, err
		}
		patches = append(patches, replace("/externalId", string(raw)))
	}

	return patches, nil
}

// LifecyclePhases derives the lifecycle from the validity dates. The active
// phase starts at validFrom; an endOfLife phase is added unless validUntil is
// a far-future sentinel.
func LifecyclePhases(validFrom, validUntil *string) ([]LifecyclePhase, bool) {
	if validFrom == nil || validUntil == nil {
		return nil, false
	}
	from := datePart(*validFrom)
	if from == "" {
		return nil, false
	}
	phases := []LifecyclePhase{{Phase: "active", StartDate: from}}
	until := datePart(*validUntil)
	if until != "" && !isFarFuture(until) {
		phases = append(phases, LifecyclePhase{Phase: "endOfLife", StartDate: until})
	}
	return phases, true
}

func datePart(ts string) string {
	ts = strings.TrimSpace(ts)
	if i := strings.IndexByte(ts, 'T'); i >= 0 {
		return ts[:i]
	}
	return ts
}

func isFarFuture(date string) bool {
	if len(date) < 4 {
		return false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return false
	}
	return year >= FarFutureYear
}

func replace(path, value string) domain.Patch {
	return domain.Patch{Op: "replace", Path: path, Value: value}
}
