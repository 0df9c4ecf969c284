package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Attribute keys as delivered by the process modeler.
const (
	AttrName         = "name"
	AttrID           = "id"
	AttrDescription  = "description"
	AttrState        = "state1"
	AttrCreatedOn    = "createdOn"
	AttrValidFrom    = "validFrom"
	AttrValidUntil   = "validUntil"
	AttrMajorVersion = "majorVersion"
	AttrMinorVersion = "minorVersion"
	AttrOwnerGroup   = "customGponame"
	AttrGotoURL      = "gotoUrl"
	AttrDiagramID    = "bpmnDiagramID"
)

var leadingNumberRe = regexp.MustCompile(`^\d+(\.\d+)*`)

// Attributes is the typed view of a process element. Optional fields are
// pointers so that "absent" and "present but empty" stay distinguishable;
// everything the sync does not know about is kept in Extra.
type Attributes struct {
	Name         string         `json:"name"`
	ID           string         `json:"id,omitempty"`
	Description  *string        `json:"description,omitempty"`
	State        *string        `json:"state1,omitempty"`
	CreatedOn    *string        `json:"createdOn,omitempty"`
	ValidFrom    *string        `json:"validFrom,omitempty"`
	ValidUntil   *string        `json:"validUntil,omitempty"`
	MajorVersion *string        `json:"majorVersion,omitempty"`
	MinorVersion *string        `json:"minorVersion,omitempty"`
	OwnerGroup   *string        `json:"customGponame,omitempty"`
	GotoURL      string         `json:"gotoUrl,omitempty"`
	DiagramID    string         `json:"bpmnDiagramID,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// AttributesFromMap converts the flattened key/value map of a fetched
// process into Attributes.
func AttributesFromMap(kv map[string]any) Attributes {
	a := Attributes{}
	for key, value := range kv {
		switch key {
		case AttrName:
			a.Name = stringify(value)
		case AttrID:
			a.ID = stringify(value)
		case AttrDescription:
			a.Description = optional(value)
		case AttrState:
			a.State = optional(value)
		case AttrCreatedOn:
			a.CreatedOn = optional(value)
		case AttrValidFrom:
			a.ValidFrom = optional(value)
		case AttrValidUntil:
			a.ValidUntil = optional(value)
		case AttrMajorVersion:
			a.MajorVersion = optional(value)
		case AttrMinorVersion:
			a.MinorVersion = optional(value)
		case AttrOwnerGroup:
			a.OwnerGroup = optional(value)
		case AttrGotoURL:
			a.GotoURL = stringify(value)
		case AttrDiagramID:
			a.DiagramID = stringify(value)
		default:
			if a.Extra == nil {
				a.Extra = make(map[string]any)
			}
			a.Extra[key] = value
		}
	}
	if a.DiagramID == "" && a.GotoURL != "" {
		a.DiagramID = lastPathSegment(a.GotoURL)
	}
	return a
}

// HierarchicalID returns the dotted process number. It falls back to the
// numeric prefix of the name ("3.1 Plan demand" -> "3.1").
func (a Attributes) HierarchicalID() string {
	if a.ID != "" {
		return a.ID
	}
	return leadingNumberRe.FindString(a.Name)
}

// Value returns the string value of an optional attribute, or "".
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func optional(v any) *string {
	s := stringify(v)
	return &s
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

func lastPathSegment(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}
