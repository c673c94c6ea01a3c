package crdt

// Document is the replicated text capability.
type Document interface {
	// SiteID returns the author identity of operations created by this
	// replica.
	SiteID() SiteID

	// Replicate returns an independent copy that authors operations as site.
	Replicate(site SiteID) Document

	// SetTextInRange replaces the visible text between start and end and
	// returns the operations describing the edit.
	SetTextInRange(start, end Point, text string) []Operation

	// IntegrateOperations applies remote operations. Operations already seen
	// are ignored; operations with unknown dependencies are deferred until
	// the dependencies arrive.
	IntegrateOperations(ops []Operation) IntegrateResult

	// GetOperations returns the full log of integrated operations.
	GetOperations() []Operation

	// GetText returns the visible text.
	GetText() string

	// UndoOrRedoOperations toggles the visibility of the given operations
	// only, and reports how the visible text changed.
	UndoOrRedoOperations(ids []OpID) []TextUpdate
}

// Factory creates a Document authored by site and seeded with text.
type Factory func(site SiteID, text string) Document

// OperationsBySite returns the IDs of the operations of ops whose author
// satisfies match, in log order.
func OperationsBySite(ops []Operation, match func(SiteID) bool) []OpID {
	res := []OpID{}
	for _, op := range ops {
		if match(op.ID.Site) {
			res = append(res, op.ID)
		}
	}
	return res
}
