package domain

// RecordMatch is a search hit in the EA repository.
type RecordMatch struct {
	ID         string
	Type       string
	Name       string
	Category   string
	ExternalID string
}

// ChildRecord is the record resolved while linking a child to its parent.
type ChildRecord struct {
	ID      string
	Created bool
}

// Patch is a JSON-patch style change applied to a record.
type Patch struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// Subscription is an owner/role assignment on a record.
type Subscription struct {
	ID      string
	RoleIDs []string
}

// HasRole reports whether the subscription carries roleID.
func (s Subscription) HasRole(roleID string) bool {
	for _, r := range s.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}

// Person is a directory entry returned by the owner lookup.
type Person struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"mail"`
	Surname     string `json:"surname"`
	GivenName   string `json:"givenName"`
	JobTitle    string `json:"jobTitle"`
}

// OwnerInfo is what gets inherited from a main process to its descendants.
type OwnerInfo struct {
	RoleID    string
	Email     string
	FirstName string
	Surname   string
}

// Document is a resource attached to a record.
type Document struct {
	ID           string
	Name         string
	DocumentType string
	URL          string
}
