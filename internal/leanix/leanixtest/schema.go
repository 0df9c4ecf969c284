package leanixtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

var relationPatch = regexp.MustCompile(`^/(\w+)/new_(.+)$`)

var longType = graphql.NewScalar(graphql.ScalarConfig{
	Name: "Long",
	Serialize: func(value any) any {
		return value
	},
	ParseValue: func(value any) any {
		switch v := value.(type) {
		case float64:
			return int(v)
		case int:
			return v
		case int64:
			return int(v)
		case json.Number:
			n, _ := v.Int64()
			return int(n)
		}
		return nil
	},
	ParseLiteral: func(valueAST ast.Value) any {
		if v, ok := valueAST.(*ast.IntValue); ok {
			n, err := strconv.Atoi(v.Value)
			if err == nil {
				return n
			}
		}
		return nil
	},
})

func (s *Server) buildSchema() (graphql.Schema, error) {
	patchOp := graphql.NewEnum(graphql.EnumConfig{
		Name: "PatchOperation",
		Values: graphql.EnumValueConfigMap{
			"add":     &graphql.EnumValueConfig{Value: "add"},
			"replace": &graphql.EnumValueConfig{Value: "replace"},
			"remove":  &graphql.EnumValueConfig{Value: "remove"},
		},
	})
	subscriptionType := graphql.NewEnum(graphql.EnumConfig{
		Name: "FactSheetSubscriptionType",
		Values: graphql.EnumValueConfigMap{
			"RESPONSIBLE": &graphql.EnumValueConfig{Value: "RESPONSIBLE"},
			"ACCOUNTABLE": &graphql.EnumValueConfig{Value: "ACCOUNTABLE"},
			"OBSERVER":    &graphql.EnumValueConfig{Value: "OBSERVER"},
		},
	})

	patchInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "Patch",
		Fields: graphql.InputObjectConfigFieldMap{
			"op":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(patchOp)},
			"path":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"value": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})
	baseInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "BaseFactSheetInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"type": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})
	facetFilter := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "FacetFilterInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"facetKey": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"keys":     &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.String)},
		},
	})
	filterInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "FilterInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"facetFilters":   &graphql.InputObjectFieldConfig{Type: graphql.NewList(facetFilter)},
			"fullTextSearch": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})
	userInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UserInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"id":        &graphql.InputObjectFieldConfig{Type: graphql.ID},
			"email":     &graphql.InputObjectFieldConfig{Type: graphql.String},
			"firstName": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"lastName":  &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	role := graphql.NewObject(graphql.ObjectConfig{
		Name: "SubscriptionRole",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.ID},
			"name": &graphql.Field{Type: graphql.String},
		},
	})
	user := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":    &graphql.Field{Type: graphql.ID},
			"email": &graphql.Field{Type: graphql.String},
		},
	})
	subscription := graphql.NewObject(graphql.ObjectConfig{
		Name: "Subscription",
		Fields: graphql.Fields{
			"id":    &graphql.Field{Type: graphql.ID},
			"type":  &graphql.Field{Type: graphql.String},
			"user":  &graphql.Field{Type: user},
			"roles": &graphql.Field{Type: graphql.NewList(role)},
		},
	})
	document := graphql.NewObject(graphql.ObjectConfig{
		Name: "Document",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.ID},
			"name":         &graphql.Field{Type: graphql.String},
			"description":  &graphql.Field{Type: graphql.String},
			"url":          &graphql.Field{Type: graphql.String},
			"origin":       &graphql.Field{Type: graphql.String},
			"documentType": &graphql.Field{Type: graphql.String},
		},
	})

	subscriptions := connection("Subscription", subscription)
	documents := connection("Document", document)

	var businessContext, application *graphql.Object
	baseFields := func() graphql.Fields {
		return graphql.Fields{
			"id":            &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":          &graphql.Field{Type: graphql.String},
			"displayName":   &graphql.Field{Type: graphql.String},
			"type":          &graphql.Field{Type: graphql.String},
			"category":      &graphql.Field{Type: graphql.String},
			"status":        &graphql.Field{Type: graphql.String},
			"description":   &graphql.Field{Type: graphql.String},
			"rev":           &graphql.Field{Type: longType},
			"subscriptions": &graphql.Field{Type: subscriptions},
			"documents":     &graphql.Field{Type: documents},
		}
	}
	factSheet := graphql.NewInterface(graphql.InterfaceConfig{
		Name:   "FactSheet",
		Fields: baseFields(),
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			if v, ok := p.Value.(map[string]any); ok && v["type"] == "BusinessContext" {
				return businessContext
			}
			return application
		},
	})

	relation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Relation",
		Fields: graphql.Fields{
			"factSheet": &graphql.Field{Type: factSheet},
		},
	})
	relations := connection("Relation", relation)

	bcFields := baseFields()
	bcFields["relToChild"] = &graphql.Field{Type: relations}
	bcFields["relToParent"] = &graphql.Field{Type: relations}
	businessContext = graphql.NewObject(graphql.ObjectConfig{
		Name:       "BusinessContext",
		Interfaces: []*graphql.Interface{factSheet},
		Fields:     bcFields,
	})
	application = graphql.NewObject(graphql.ObjectConfig{
		Name:       "Application",
		Interfaces: []*graphql.Interface{factSheet},
		Fields:     baseFields(),
	})

	mutationResult := graphql.NewObject(graphql.ObjectConfig{
		Name: "FactSheetMutationResult",
		Fields: graphql.Fields{
			"factSheet": &graphql.Field{Type: factSheet},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"factSheet": &graphql.Field{
				Type:    factSheet,
				Args:    graphql.FieldConfigArgument{"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}},
				Resolve: s.resolveFactSheet,
			},
			"allFactSheets": &graphql.Field{
				Type:    connection("FactSheet", factSheet),
				Args:    graphql.FieldConfigArgument{"filter": &graphql.ArgumentConfig{Type: filterInput}},
				Resolve: s.resolveAllFactSheets,
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createFactSheet": &graphql.Field{
				Type: mutationResult,
				Args: graphql.FieldConfigArgument{
					"input":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(baseInput)},
					"patches": &graphql.ArgumentConfig{Type: graphql.NewList(patchInput)},
				},
				Resolve: s.resolveCreateFactSheet,
			},
			"updateFactSheet": &graphql.Field{
				Type: mutationResult,
				Args: graphql.FieldConfigArgument{
					"id":           &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"rev":          &graphql.ArgumentConfig{Type: longType},
					"comment":      &graphql.ArgumentConfig{Type: graphql.String},
					"patches":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(patchInput))},
					"validateOnly": &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: s.resolveUpdateFactSheet,
			},
			"createSubscription": &graphql.Field{
				Type: subscription,
				Args: graphql.FieldConfigArgument{
					"factSheetId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"user":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(userInput)},
					"type":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(subscriptionType)},
					"roleIds":     &graphql.ArgumentConfig{Type: graphql.NewList(graphql.ID)},
				},
				Resolve: s.resolveCreateSubscription,
			},
			"deleteSubscription": &graphql.Field{
				Type:    subscription,
				Args:    graphql.FieldConfigArgument{"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}},
				Resolve: s.resolveDeleteSubscription,
			},
			"createDocument": &graphql.Field{
				Type: document,
				Args: graphql.FieldConfigArgument{
					"factSheetId":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"name":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"description":  &graphql.ArgumentConfig{Type: graphql.String},
					"url":          &graphql.ArgumentConfig{Type: graphql.String},
					"origin":       &graphql.ArgumentConfig{Type: graphql.String},
					"documentType": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.resolveCreateDocument,
			},
			"deleteDocument": &graphql.Field{
				Type:    document,
				Args:    graphql.FieldConfigArgument{"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}},
				Resolve: s.resolveDeleteDocument,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
		Types:    []graphql.Type{businessContext, application},
	})
}

// connection wraps node in the edges/node shape used by every list.
func connection(name string, node graphql.Output) *graphql.Object {
	edge := graphql.NewObject(graphql.ObjectConfig{
		Name:   name + "Edge",
		Fields: graphql.Fields{"node": &graphql.Field{Type: node}},
	})
	return graphql.NewObject(graphql.ObjectConfig{
		Name:   name + "Connection",
		Fields: graphql.Fields{"edges": &graphql.Field{Type: graphql.NewList(edge)}},
	})
}

func (s *Server) count(field string) {
	s.calls[field]++
}

func (s *Server) resolveFactSheet(p graphql.ResolveParams) (any, error) {
	id, _ := p.Args["id"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("factSheet")
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return s.view(rec, true), nil
}

func (s *Server) resolveAllFactSheets(p graphql.ResolveParams) (any, error) {
	var types []string
	text := ""
	if filter, ok := p.Args["filter"].(map[string]any); ok {
		text, _ = filter["fullTextSearch"].(string)
		facets, _ := filter["facetFilters"].([]any)
		for _, f := range facets {
			facet, _ := f.(map[string]any)
			if facet["facetKey"] != "FactSheetTypes" {
				continue
			}
			keys, _ := facet["keys"].([]any)
			for _, k := range keys {
				if ks, ok := k.(string); ok {
					types = append(types, ks)
				}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("allFactSheets")
	var edges []any
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Status == statusArchived {
			continue
		}
		if len(types) > 0 && !contains(types, rec.Type) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(rec.Name), strings.ToLower(text)) {
			continue
		}
		edges = append(edges, map[string]any{"node": s.view(rec, false)})
	}
	return map[string]any{"edges": edges}, nil
}

func (s *Server) resolveCreateFactSheet(p graphql.ResolveParams) (any, error) {
	input, _ := p.Args["input"].(map[string]any)
	name, _ := input["name"].(string)
	recordType, _ := input["type"].(string)
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("createFactSheet")
	rec := s.create(recordType, name, "")
	if err := s.apply(rec, patchArgs(p.Args["patches"])); err != nil {
		return nil, err
	}
	return map[string]any{"factSheet": s.view(rec, true)}, nil
}

func (s *Server) resolveUpdateFactSheet(p graphql.ResolveParams) (any, error) {
	id, _ := p.Args["id"].(string)
	patches := patchArgs(p.Args["patches"])

	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("updateFactSheet")
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("fact sheet %s not found", id)
	}
	if rev, ok := p.Args["rev"].(int); ok && rev != rec.Rev {
		return nil, fmt.Errorf("revision conflict: expected %d got %d", rec.Rev, rev)
	}
	for _, patch := range patches {
		for _, prefix := range s.rejectPaths {
			if strings.HasPrefix(patch.path, prefix) {
				return nil, fmt.Errorf("validation failed for %s", patch.path)
			}
		}
	}
	if validateOnly, _ := p.Args["validateOnly"].(bool); validateOnly {
		return map[string]any{"factSheet": s.view(rec, true)}, nil
	}
	if err := s.apply(rec, patches); err != nil {
		return nil, err
	}
	rec.Rev++
	return map[string]any{"factSheet": s.view(rec, true)}, nil
}

func (s *Server) resolveCreateSubscription(p graphql.ResolveParams) (any, error) {
	id, _ := p.Args["factSheetId"].(string)
	user, _ := p.Args["user"].(map[string]any)
	subType, _ := p.Args["type"].(string)

	sub := Subscription{Type: subType}
	sub.Email, _ = user["email"].(string)
	sub.FirstName, _ = user["firstName"].(string)
	sub.LastName, _ = user["lastName"].(string)
	if roles, ok := p.Args["roleIds"].([]any); ok {
		for _, r := range roles {
			if rs, ok := r.(string); ok {
				sub.RoleIDs = append(sub.RoleIDs, rs)
			}
		}
	}
	if sub.Email == "" {
		return nil, errors.New("user email is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("createSubscription")
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("fact sheet %s not found", id)
	}
	s.seq++
	sub.ID = fmt.Sprintf("sub-%d", s.seq)
	rec.Subscriptions = append(rec.Subscriptions, sub)
	return subscriptionView(sub), nil
}

func (s *Server) resolveDeleteSubscription(p graphql.ResolveParams) (any, error) {
	id, _ := p.Args["id"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("deleteSubscription")
	for _, rec := range s.records {
		for i, sub := range rec.Subscriptions {
			if sub.ID == id {
				rec.Subscriptions = append(rec.Subscriptions[:i], rec.Subscriptions[i+1:]...)
				return map[string]any{"id": id}, nil
			}
		}
	}
	return nil, fmt.Errorf("subscription %s not found", id)
}

func (s *Server) resolveCreateDocument(p graphql.ResolveParams) (any, error) {
	id, _ := p.Args["factSheetId"].(string)
	doc := Document{}
	doc.Name, _ = p.Args["name"].(string)
	doc.Description, _ = p.Args["description"].(string)
	doc.URL, _ = p.Args["url"].(string)
	doc.Origin, _ = p.Args["origin"].(string)
	doc.DocumentType, _ = p.Args["documentType"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("createDocument")
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("fact sheet %s not found", id)
	}
	s.seq++
	doc.ID = fmt.Sprintf("doc-%d", s.seq)
	rec.Documents = append(rec.Documents, doc)
	return documentView(doc), nil
}

func (s *Server) resolveDeleteDocument(p graphql.ResolveParams) (any, error) {
	id, _ := p.Args["id"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("deleteDocument")
	for _, rec := range s.records {
		for i, doc := range rec.Documents {
			if doc.ID == id {
				rec.Documents = append(rec.Documents[:i], rec.Documents[i+1:]...)
				return map[string]any{"id": id}, nil
			}
		}
	}
	return nil, fmt.Errorf("document %s not found", id)
}

type patch struct {
	op    string
	path  string
	value string
}

func patchArgs(arg any) []patch {
	list, _ := arg.([]any)
	out := make([]patch, 0, len(list))
	for _, item := range list {
		m, _ := item.(map[string]any)
		var p patch
		p.op, _ = m["op"].(string)
		p.path, _ = m["path"].(string)
		p.value, _ = m["value"].(string)
		out = append(out, p)
	}
	return out
}

// apply must be called with mu held.
func (s *Server) apply(rec *Record, patches []patch) error {
	for _, p := range patches {
		if m := relationPatch.FindStringSubmatch(p.path); m != nil && p.op == "add" {
			var target struct {
				FactSheetID string `json:"factSheetId"`
			}
			if err := json.Unmarshal([]byte(p.value), &target); err != nil {
				return fmt.Errorf("invalid relation value for %s: %w", p.path, err)
			}
			if _, ok := s.records[target.FactSheetID]; !ok {
				return fmt.Errorf("relation target %s not found", target.FactSheetID)
			}
			if !contains(rec.Relations[m[1]], target.FactSheetID) {
				rec.Relations[m[1]] = append(rec.Relations[m[1]], target.FactSheetID)
			}
			continue
		}

		switch p.path {
		case "/status":
			rec.Status = p.value
		case "/category":
			rec.Category = p.value
		case "/name":
			rec.Name = p.value
		default:
			key := strings.TrimPrefix(p.path, "/")
			if p.op == "remove" {
				delete(rec.Fields, key)
			} else {
				rec.Fields[key] = p.value
			}
		}
	}
	return nil
}

// view renders rec for the executor; relations are expanded one level.
func (s *Server) view(rec *Record, withRelations bool) map[string]any {
	subs := make([]any, 0, len(rec.Subscriptions))
	for _, sub := range rec.Subscriptions {
		subs = append(subs, map[string]any{"node": subscriptionView(sub)})
	}
	docs := make([]any, 0, len(rec.Documents))
	for _, doc := range rec.Documents {
		docs = append(docs, map[string]any{"node": documentView(doc)})
	}

	v := map[string]any{
		"id":            rec.ID,
		"name":          rec.Name,
		"displayName":   rec.Name,
		"type":          rec.Type,
		"category":      rec.Category,
		"status":        rec.Status,
		"description":   rec.Fields["description"],
		"rev":           rec.Rev,
		"subscriptions": map[string]any{"edges": subs},
		"documents":     map[string]any{"edges": docs},
	}
	if withRelations {
		for name, targets := range rec.Relations {
			edges := make([]any, 0, len(targets))
			for _, id := range targets {
				if target, ok := s.records[id]; ok {
					edges = append(edges, map[string]any{"node": map[string]any{"factSheet": s.view(target, false)}})
				}
			}
			v[name] = map[string]any{"edges": edges}
		}
	}
	return v
}

func subscriptionView(sub Subscription) map[string]any {
	roles := make([]any, 0, len(sub.RoleIDs))
	for _, r := range sub.RoleIDs {
		roles = append(roles, map[string]any{"id": r, "name": r})
	}
	return map[string]any{
		"id":    sub.ID,
		"type":  sub.Type,
		"user":  map[string]any{"id": sub.Email, "email": sub.Email},
		"roles": roles,
	}
}

func documentView(doc Document) map[string]any {
	return map[string]any{
		"id":           doc.ID,
		"name":         doc.Name,
		"description":  doc.Description,
		"url":          doc.URL,
		"origin":       doc.Origin,
		"documentType": doc.DocumentType,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
