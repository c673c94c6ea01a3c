package crdt

import "strings"

type element struct {
	id        CharID
	r         rune
	deletedBy []OpID
}

type opState struct {
	op        Operation
	undoCount int
}

func (s *opState) effective() bool {
	return s.undoCount%2 == 0
}

// RGADocument is the reference Document implementation.
type RGADocument struct {
	site     SiteID
	clock    uint64
	elements []*element
	ops      map[OpID]*opState
	log      []OpID
	deferred []Operation
}

// NewDocument creates a Document authored by site and seeded with text. The
// seed insertion is attributed to GhostSite with sequence number 1, so that
// replicas seeded from the same content share the same baseline operation.
func NewDocument(site SiteID, text string) Document {
	return NewRGADocument(site, text)
}

// NewRGADocument ...
func NewRGADocument(site SiteID, text string) *RGADocument {
	d := &RGADocument{
		site: site,
		ops:  make(map[OpID]*opState),
	}
	if text != "" {
		d.integrate(Operation{
			Kind:  OpInsert,
			ID:    OpID{Site: GhostSite, Seq: 1},
			After: startCharID,
			Text:  text,
		})
	}
	return d
}

// SiteID implements Document.
func (d *RGADocument) SiteID() SiteID {
	return d.site
}

// Replicate implements Document.
func (d *RGADocument) Replicate(site SiteID) Document {
	c := &RGADocument{
		site:     site,
		clock:    d.clock,
		elements: make([]*element, len(d.elements)),
		ops:      make(map[OpID]*opState, len(d.ops)),
		log:      append([]OpID(nil), d.log...),
		deferred: append([]Operation(nil), d.deferred...),
	}
	for i, e := range d.elements {
		c.elements[i] = &element{
			id:        e.id,
			r:         e.r,
			deletedBy: append([]OpID(nil), e.deletedBy...),
		}
	}
	for id, s := range d.ops {
		c.ops[id] = &opState{op: s.op, undoCount: s.undoCount}
	}
	return c
}

// GetText implements Document.
func (d *RGADocument) GetText() string {
	var b strings.Builder
	for _, e := range d.elements {
		if d.visible(e) {
			b.WriteRune(e.r)
		}
	}
	return b.String()
}

// GetOperations implements Document.
func (d *RGADocument) GetOperations() []Operation {
	res := make([]Operation, 0, len(d.log))
	for _, id := range d.log {
		res = append(res, copyOperation(d.ops[id].op))
	}
	return res
}

// SetTextInRange implements Document.
func (d *RGADocument) SetTextInRange(start, end Point, text string) []Operation {
	if end.Compare(start) < 0 {
		start, end = end, start
	}

	visible := d.visibleElements()
	current := d.GetText()
	s := OffsetOf(current, start)
	e := OffsetOf(current, end)

	ops := []Operation{}

	if e > s {
		targets := make([]CharID, 0, e-s)
		for _, el := range visible[s:e] {
			targets = append(targets, el.id)
		}
		d.clock++
		op := Operation{
			Kind:    OpDelete,
			ID:      OpID{Site: d.site, Seq: d.clock},
			Targets: targets,
		}
		d.integrate(op)
		ops = append(ops, copyOperation(op))
	}

	if text != "" {
		after := startCharID
		if s > 0 {
			after = visible[s-1].id
		}
		d.clock++
		op := Operation{
			Kind:  OpInsert,
			ID:    OpID{Site: d.site, Seq: d.clock},
			After: after,
			Text:  text,
		}
		d.integrate(op)
		ops = append(ops, op)
	}

	return ops
}

// IntegrateOperations implements Document.
func (d *RGADocument) IntegrateOperations(ops []Operation) IntegrateResult {
	before := d.snapshot()

	pending := append(d.deferred, ops...)
	d.deferred = nil

	for progress := true; progress; {
		progress = false
		remaining := pending[:0:0]
		waiting := make(map[OpID]bool)
		for _, op := range pending {
			if _, ok := d.ops[op.ID]; ok || waiting[op.ID] {
				continue
			}
			if !d.ready(op) {
				waiting[op.ID] = true
				remaining = append(remaining, op)
				continue
			}
			d.integrate(copyOperation(op))
			progress = true
		}
		pending = remaining
	}
	d.deferred = pending

	return IntegrateResult{
		TextUpdates: d.diff(before),
		Unresolved:  len(d.deferred),
	}
}

// UndoOrRedoOperations implements Document.
func (d *RGADocument) UndoOrRedoOperations(ids []OpID) []TextUpdate {
	before := d.snapshot()
	seen := make(map[OpID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := d.ops[id]; ok {
			s.undoCount++
		}
	}
	return d.diff(before)
}

func (d *RGADocument) ready(op Operation) bool {
	switch op.Kind {
	case OpInsert:
		return op.After == startCharID || d.hasChar(op.After)
	case OpDelete:
		for _, t := range op.Targets {
			if !d.hasChar(t) {
				return false
			}
		}
		return true
	}
	return false
}

func (d *RGADocument) hasChar(c CharID) bool {
	s, ok := d.ops[c.opID()]
	if !ok || s.op.Kind != OpInsert {
		return false
	}
	return c.Offset >= 0 && c.Offset < len([]rune(s.op.Text))
}

func (d *RGADocument) integrate(op Operation) {
	if op.ID.Seq > d.clock {
		d.clock = op.ID.Seq
	}
	d.ops[op.ID] = &opState{op: op}
	d.log = append(d.log, op.ID)

	switch op.Kind {
	case OpInsert:
		d.insert(op)
	case OpDelete:
		targets := make(map[CharID]bool, len(op.Targets))
		for _, t := range op.Targets {
			targets[t] = true
		}
		for _, e := range d.elements {
			if targets[e.id] {
				e.deletedBy = append(e.deletedBy, op.ID)
			}
		}
	}
}

func (d *RGADocument) insert(op Operation) {
	pos := 0
	if op.After != startCharID {
		pos = d.indexOf(op.After) + 1
	}
	// Skip concurrent siblings with a greater timestamp, together with
	// everything anchored after them.
	for pos < len(d.elements) && op.ID.less(d.elements[pos].id.opID()) {
		pos++
	}

	runes := []rune(op.Text)
	added := make([]*element, len(runes))
	for i, r := range runes {
		added[i] = &element{
			id: CharID{Site: op.ID.Site, Seq: op.ID.Seq, Offset: i},
			r:  r,
		}
	}

	elements := make([]*element, 0, len(d.elements)+len(added))
	elements = append(elements, d.elements[:pos]...)
	elements = append(elements, added...)
	elements = append(elements, d.elements[pos:]...)
	d.elements = elements
}

func (d *RGADocument) indexOf(c CharID) int {
	for i, e := range d.elements {
		if e.id == c {
			return i
		}
	}
	return -1
}

func (d *RGADocument) visible(e *element) bool {
	if s, ok := d.ops[e.id.opID()]; !ok || !s.effective() {
		return false
	}
	for _, del := range e.deletedBy {
		if d.ops[del].effective() {
			return false
		}
	}
	return true
}

func (d *RGADocument) visibleElements() []*element {
	res := []*element{}
	for _, e := range d.elements {
		if d.visible(e) {
			res = append(res, e)
		}
	}
	return res
}

func (d *RGADocument) snapshot() map[*element]bool {
	res := make(map[*element]bool, len(d.elements))
	for _, e := range d.elements {
		if d.visible(e) {
			res[e] = true
		}
	}
	return res
}

// diff walks the element sequence and reports the regions whose visibility
// changed since the snapshot was taken.
func (d *RGADocument) diff(before map[*element]bool) []TextUpdate {
	updates := []TextUpdate{}

	var (
		oldPos, newPos Point
		open           bool
		cur            TextUpdate
		oldText        strings.Builder
		newText        strings.Builder
	)

	flush := func() {
		if !open {
			return
		}
		cur.OldText = oldText.String()
		cur.NewText = newText.String()
		cur.OldEnd = oldPos
		cur.NewEnd = newPos
		updates = append(updates, cur)
		oldText.Reset()
		newText.Reset()
		open = false
	}

	begin := func() {
		if open {
			return
		}
		cur = TextUpdate{OldStart: oldPos, NewStart: newPos}
		open = true
	}

	for _, e := range d.elements {
		was := before[e]
		is := d.visible(e)
		switch {
		case was && is:
			flush()
			oldPos = advance(oldPos, e.r)
			newPos = advance(newPos, e.r)
		case was:
			begin()
			oldText.WriteRune(e.r)
			oldPos = advance(oldPos, e.r)
		case is:
			begin()
			newText.WriteRune(e.r)
			newPos = advance(newPos, e.r)
		}
	}
	flush()

	return updates
}

func copyOperation(op Operation) Operation {
	if op.Targets != nil {
		op.Targets = append([]CharID(nil), op.Targets...)
	}
	return op
}
