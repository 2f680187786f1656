package energy

// externalTypes pairs each kind (by position in kinds) with the fitness API identifier.
var externalTypes = [len(kinds)]string{
	"com.google.walking",
	"com.google.running",
	"com.google.cycling",
	"com.google.swimming",
	"com.google.yoga",
	"com.google.strength_training",
}

// ExternalType returns the fitness API identifier for kind.
func ExternalType(kind Kind) (string, bool) {
	idx, ok := kindIndex(kind)
	if !ok {
		return "", false
	}
	return externalTypes[idx], true
}

// LookupExternalActivityType resolves an identifier without applying the default.
func LookupExternalActivityType(identifier string) (Kind, bool) {
	for idx, candidate := range externalTypes {
		if candidate == identifier {
			return kinds[idx], true
		}
	}
	return "", false
}

// MapExternalActivityType resolves an identifier to a kind, using DefaultKind when the
// identifier is not recognised.
func MapExternalActivityType(identifier string) Kind {
	if kind, ok := LookupExternalActivityType(identifier); ok {
		return kind
	}
	return DefaultKind
}
