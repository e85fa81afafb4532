// Package dots holds the embossing output model: dot instructions grouped into pages
// grouped into a document
package dots

import "fmt"

// DotInstruction is one coordinate on the sheet, in millimetres from the page top-left,
// and whether the device must strike it
type DotInstruction struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Punch bool    `json:"punch"`
	Page  int     `json:"page"`
}

// Page is an ordered run of instructions sharing one page index. Print order follows it
type Page []DotInstruction

// PunchCount returns how many instructions request a strike
func (p Page) PunchCount() int {
	n := 0
	for _, d := range p {
		if d.Punch {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares nothing with p
func (p Page) Clone() Page {
	if p == nil {
		return Page{}
	}
	out := make(Page, len(p))
	copy(out, p)
	return out
}

// Document is the ordered page list produced by one transcription
type Document []Page

// PageCount returns the number of pages
func (d Document) PageCount() int {
	return len(d)
}

// Empty reports whether there is nothing to print
func (d Document) Empty() bool {
	return len(d) == 0
}

// Page returns a copy of page i
func (d Document) Page(i int) (Page, error) {
	if i < 0 || i >= len(d) {
		return nil, fmt.Errorf("page %d out of range [0, %d)", i, len(d))
	}
	return d[i].Clone(), nil
}

// Clamp bounds i to a valid page index. It returns 0 for an empty document
func (d Document) Clamp(i int) int {
	return ClampIndex(i, len(d))
}

// ClampIndex bounds i to [0, n-1], or 0 when n is zero
func ClampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Clone deep-copies the document
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for i, p := range d {
		out[i] = p.Clone()
	}
	return out
}

// Validate rejects instructions with a negative page index and returns the indices of
// pages whose instructions disagree with their position in the document
func (d Document) Validate() (mismatched []int, err error) {
	for i, p := range d {
		bad := false
		for j, dot := range p {
			if dot.Page < 0 {
				return nil, fmt.Errorf("page %d dot %d: negative page index %d", i, j, dot.Page)
			}
			if dot.Page != i {
				bad = true
			}
		}
		if bad {
			mismatched = append(mismatched, i)
		}
	}
	return mismatched, nil
}
