package domain

// NodeType enumerates the closed set of entity types the propose-fact
// contract accepts. Ported from the taxonomy in the reference system's
// graph type registry; MedicalFacility is an addition (see SPEC_FULL.md §3).
type NodeType string

const (
	NodePerson          NodeType = "Person"
	NodeCompany         NodeType = "Company"
	NodeAddress         NodeType = "Address"
	NodeCity            NodeType = "City"
	NodeCounty          NodeType = "County"
	NodeState           NodeType = "State"
	NodeCountry         NodeType = "Country"
	NodeZipCode         NodeType = "ZipCode"
	NodeThing           NodeType = "Thing"
	NodeEvent           NodeType = "Event"
	NodeMedicalFacility NodeType = "MedicalFacility"
)

// ValidNodeTypes is the closed set used for edge validation in the
// propose-fact client.
var ValidNodeTypes = map[NodeType]bool{
	NodePerson: true, NodeCompany: true, NodeAddress: true, NodeCity: true,
	NodeCounty: true, NodeState: true, NodeCountry: true, NodeZipCode: true,
	NodeThing: true, NodeEvent: true, NodeMedicalFacility: true,
}

// ValidateNodeType reports whether s names a known node type.
func ValidateNodeType(s string) bool {
	return ValidNodeTypes[NodeType(s)]
}

// RelationshipType enumerates the closed taxonomy of relationships between
// two proposed entities.
type RelationshipType string

const (
	RelEmployment      RelationshipType = "Employment"
	RelLegalCounsel    RelationshipType = "Legal_Counsel"
	RelOpposingCounsel RelationshipType = "Opposing_Counsel"
	RelLocatedIn       RelationshipType = "Located_In"
	RelContains        RelationshipType = "Contains"
	RelLocatedAt       RelationshipType = "Located_At"
	RelLocationOf      RelationshipType = "Location_Of"
	RelIncorporatedIn  RelationshipType = "Incorporated_In"
	RelRegisteredAgent RelationshipType = "Registered_Agent"
	RelSubsidiary      RelationshipType = "Subsidiary"
	RelOwnership       RelationshipType = "Ownership"
	RelBoardMember     RelationshipType = "Board_Member"
	RelPartnership     RelationshipType = "Partnership"
	RelFamily          RelationshipType = "Family"
	RelParticipation   RelationshipType = "Participation"
	RelOrganizer       RelationshipType = "Organizer"
)

var validRelationshipTypes = map[RelationshipType]bool{
	RelEmployment: true, RelLegalCounsel: true, RelOpposingCounsel: true,
	RelLocatedIn: true, RelContains: true, RelLocatedAt: true, RelLocationOf: true,
	RelIncorporatedIn: true, RelRegisteredAgent: true, RelSubsidiary: true,
	RelOwnership: true, RelBoardMember: true, RelPartnership: true,
	RelFamily: true, RelParticipation: true, RelOrganizer: true,
}

// bidirectionalPairs maps a relationship to its inverse label, for
// relationships that are naturally expressed from either side
// (Located_In / Contains, Located_At / Location_Of).
var bidirectionalPairs = map[RelationshipType]RelationshipType{
	RelLocatedIn:  RelContains,
	RelContains:   RelLocatedIn,
	RelLocatedAt:  RelLocationOf,
	RelLocationOf: RelLocatedAt,
}

// conflictPairs names relationship pairs that can never both hold between
// the same ordered pair of entities at once.
var conflictPairs = [][2]RelationshipType{
	{RelLegalCounsel, RelOpposingCounsel},
}

// ValidateRelationshipType reports whether s names a known relationship.
func ValidateRelationshipType(s string) bool {
	return validRelationshipTypes[RelationshipType(s)]
}

// Inverse returns the bidirectional counterpart of r, if one exists.
func Inverse(r RelationshipType) (RelationshipType, bool) {
	inv, ok := bidirectionalPairs[r]
	return inv, ok
}

// Conflicts reports whether a and b are a known conflicting pair, in either
// order (e.g. Legal_Counsel vs Opposing_Counsel between the same entities).
func Conflicts(a, b RelationshipType) bool {
	for _, pair := range conflictPairs {
		if (pair[0] == a && pair[1] == b) || (pair[0] == b && pair[1] == a) {
			return true
		}
	}
	return false
}
