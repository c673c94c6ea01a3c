package crdt

import "fmt"

// SiteID identifies a collaborating replica.
type SiteID uint32

// GhostSite is the synthetic author of the committed baseline content. It is
// never a real peer.
const GhostSite SiteID = 1

// OpID uniquely identifies an Operation. Seq is a Lamport timestamp.
type OpID struct {
	Site SiteID `json:"site"`
	Seq  uint64 `json:"seq"`
}

// String ...
func (id OpID) String() string {
	return fmt.Sprintf("%d.%d", id.Site, id.Seq)
}

// less orders OpIDs by timestamp, then by site.
func (id OpID) less(other OpID) bool {
	if id.Seq != other.Seq {
		return id.Seq < other.Seq
	}
	return id.Site < other.Site
}

// CharID identifies one character: the insertion that created it and the
// character's offset within that insertion.
type CharID struct {
	Site   SiteID `json:"site"`
	Seq    uint64 `json:"seq"`
	Offset int    `json:"offset"`
}

// startCharID is the virtual character before the beginning of the text.
var startCharID = CharID{}

func (c CharID) opID() OpID {
	return OpID{Site: c.Site, Seq: c.Seq}
}

// OpKind ...
type OpKind string

const (
	// OpInsert inserts Text after the character After.
	OpInsert OpKind = "insert"
	// OpDelete removes the characters Targets.
	OpDelete OpKind = "delete"
)

// Operation is one unit of edit history.
type Operation struct {
	Kind    OpKind   `json:"kind"`
	ID      OpID     `json:"id"`
	After   CharID   `json:"after"`
	Text    string   `json:"text,omitempty"`
	Targets []CharID `json:"targets,omitempty"`
}

// Point is a position in a text, in rows and rune columns.
type Point struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Compare returns -1, 0 or 1 depending on whether p is before, equal to, or
// after other.
func (p Point) Compare(other Point) int {
	switch {
	case p.Row < other.Row:
		return -1
	case p.Row > other.Row:
		return 1
	case p.Column < other.Column:
		return -1
	case p.Column > other.Column:
		return 1
	}
	return 0
}

// String ...
func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row, p.Column)
}

// TextUpdate describes one changed region. Old* coordinates refer to the text
// before the change, New* coordinates to the text after it. The updates of a
// single call never overlap, so applying them in descending OldStart order
// against the old text yields the new text.
type TextUpdate struct {
	OldStart Point  `json:"oldStart"`
	OldEnd   Point  `json:"oldEnd"`
	OldText  string `json:"oldText"`
	NewStart Point  `json:"newStart"`
	NewEnd   Point  `json:"newEnd"`
	NewText  string `json:"newText"`
}

// Invert returns the update that reverts u.
func (u TextUpdate) Invert() TextUpdate {
	return TextUpdate{
		OldStart: u.NewStart,
		OldEnd:   u.NewEnd,
		OldText:  u.NewText,
		NewStart: u.OldStart,
		NewEnd:   u.OldEnd,
		NewText:  u.OldText,
	}
}

// InvertAll inverts every update of a set.
func InvertAll(updates []TextUpdate) []TextUpdate {
	res := make([]TextUpdate, len(updates))
	for i, u := range updates {
		res[i] = u.Invert()
	}
	return res
}

// IntegrateResult is returned by IntegrateOperations.
type IntegrateResult struct {
	TextUpdates []TextUpdate
	// Unresolved is the number of operations still waiting for a
	// predecessor this replica has not seen yet.
	Unresolved int
}
