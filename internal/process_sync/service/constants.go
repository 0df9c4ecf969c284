package service

// Business rule constants of the process synchronization.
const (
	// PlaceholderName marks scratch areas of the process model that never get synchronized.
	PlaceholderName = "temporary library"

	// StateInEffect is the only process state that is built into the tree.
	StateInEffect = "inEffect"

	DefaultRecordType   = "BusinessContext"
	DefaultCategory     = "process"
	DefaultRelationship = "relToChild"

	// DefaultOwnerRoleID is the subscription role assigned to process owners.
	DefaultOwnerRoleID = "319ee7ee-96d4-4bca-a331-bc78031a30e8"

	// FarFutureYear and later end dates mean "valid until further notice".
	FarFutureYear = 2099

	ExternalIDLabel = "Open in Celonis Process Navigator"

	NavigatorLinkName   = "Open in Process Navigator"
	NavigatorLinkDetail = "Open in Celonis Process Navigator"
	DesignerLinkName    = "Open in Process Designer"
	DesignerLinkDetail  = "Open in Celonis Process Designer"
)
