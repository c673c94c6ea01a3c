package crdt

import "unicode/utf8"

// OffsetOf converts a Point into a rune offset in text. Points past the end of
// a line are clamped to the end of that line, points past the last line to
// the end of the text.
func OffsetOf(text string, p Point) int {
	row, col, offset := 0, 0, 0
	for _, r := range text {
		if row == p.Row && col == p.Column {
			return offset
		}
		if r == '\n' {
			if row == p.Row {
				return offset
			}
			row++
			col = 0
		} else {
			col++
		}
		offset++
	}
	return offset
}

// PointOf converts a rune offset in text into a Point.
func PointOf(text string, offset int) Point {
	p := Point{}
	i := 0
	for _, r := range text {
		if i == offset {
			break
		}
		p = advance(p, r)
		i++
	}
	return p
}

// EndOf returns the Point at the end of text.
func EndOf(text string) Point {
	return PointOf(text, utf8.RuneCountInString(text))
}

// Splice replaces the range [start, end) of text with replacement.
func Splice(text string, start, end Point, replacement string) string {
	runes := []rune(text)
	s := OffsetOf(text, start)
	e := OffsetOf(text, end)
	if e < s {
		s, e = e, s
	}
	res := make([]rune, 0, len(runes)-(e-s)+utf8.RuneCountInString(replacement))
	res = append(res, runes[:s]...)
	res = append(res, []rune(replacement)...)
	res = append(res, runes[e:]...)
	return string(res)
}

// DiffRange returns the smallest single range of oldText that must be
// replaced by newText to turn oldText into the target. The returned
// replacement is empty and start equals end when both texts are equal.
func DiffRange(oldText, target string) (start, end Point, replacement string) {
	o := []rune(oldText)
	n := []rune(target)

	prefix := 0
	for prefix < len(o) && prefix < len(n) && o[prefix] == n[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(o)-prefix && suffix < len(n)-prefix &&
		o[len(o)-1-suffix] == n[len(n)-1-suffix] {
		suffix++
	}

	start = PointOf(oldText, prefix)
	end = PointOf(oldText, len(o)-suffix)
	replacement = string(n[prefix : len(n)-suffix])
	return start, end, replacement
}

func advance(p Point, r rune) Point {
	if r == '\n' {
		return Point{Row: p.Row + 1}
	}
	return Point{Row: p.Row, Column: p.Column + 1}
}
