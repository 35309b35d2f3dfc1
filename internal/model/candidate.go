package model

// Candidate is a price entry retrieved for an item, together with how it
// was found. OutOfClass candidates come from the escape hatch that relaxes
// classification blocking; the flag engine penalizes them uniformly, so
// there is no separate scoring path.
type Candidate struct {
	Entry      PriceEntry
	OutOfClass bool
}
