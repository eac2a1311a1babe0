// Package detector partitions a rendered page into visually distinct
// horizontal sections from a single geometry snapshot measured in-page.
package detector

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/faiz-00/screenshot/models"
)

// Minimum meaningful section size; anything smaller is decorative.
const (
	minSectionWidth  = 100
	minSectionHeight = 50
)

// megaShare is the fraction of the combined candidate height above which
// a single candidate is treated as a container masking the real sections.
const megaShare = 0.8

// Rect is a measured bounding rectangle in viewport coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Node is one qualifying element in the measured geometry tree. Children
// hold only the qualifying child elements; nodes failing the visibility
// predicate were dropped in-page and play no role in any later step.
type Node struct {
	Tag      string  `json:"tag,omitempty"`
	Rect     Rect    `json:"rect"`
	Children []*Node `json:"children"`
}

// Snapshot is the one-shot geometry measurement taken inside the page
// after scrolling settles. Body and Landmark are serialized trees rooted
// at document.body and the primary content landmark respectively.
type Snapshot struct {
	ScrollY       float64 `json:"scrollY"`
	ViewportWidth float64 `json:"viewportWidth"`
	DocHeight     float64 `json:"docHeight"`
	Body          *Node   `json:"body"`
	Landmark      *Node   `json:"landmark"`
}

// DecodeSnapshot converts a raw eval result (as decoded JSON) into a
// Snapshot.
func DecodeSnapshot(v any) (*Snapshot, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot value: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Detect converts a geometry snapshot into the ordered section list.
// Zero sections is a valid outcome, not an error: an empty page or one
// with no element above minimum size simply yields an empty slice.
// Identical snapshots always yield identical output.
func Detect(snap *Snapshot) []models.Section {
	if snap == nil {
		return []models.Section{}
	}

	cands := drill(snap.Body)

	// Body-level siblings like page chrome can suppress the real section
	// count; a sparse result re-roots the search at the content landmark
	// and keeps whichever candidate set is larger.
	if len(cands) <= 2 && snap.Landmark != nil {
		if lm := drill(snap.Landmark); len(lm) > len(cands) {
			cands = lm
		}
	}

	cands = collapseMega(cands)

	return finalize(cands, snap)
}

// drill strips structural wrapper elements: while the container holds
// exactly one qualifying child, descend into it. The candidates are the
// qualifying children at the level where the chain breaks, so the
// result length is never 1.
func drill(root *Node) []*Node {
	if root == nil {
		return nil
	}
	container := root
	for len(container.Children) == 1 {
		container = container.Children[0]
	}
	return container.Children
}

// collapseMega detects a candidate whose height dominates the combined
// candidate height and replaces it, in place, with its own qualifying
// children. Sibling candidates (a footer next to a content wrapper, for
// example) stay in the result untouched. At most one candidate can
// exceed the share, so the first hit is the only one.
func collapseMega(cands []*Node) []*Node {
	var total float64
	for _, c := range cands {
		total += c.Rect.Height
	}
	if total <= 0 {
		return cands
	}
	for i, c := range cands {
		if c.Rect.Height > megaShare*total {
			out := make([]*Node, 0, len(cands)-1+len(c.Children))
			out = append(out, cands[:i]...)
			out = append(out, c.Children...)
			out = append(out, cands[i+1:]...)
			return out
		}
	}
	return cands
}

// finalize drops undersized candidates, converts viewport-relative tops
// to absolute document offsets, orders ascending by top, and removes
// duplicate top offsets (the taller section wins so coverage is kept).
// Overlapping sections are intentionally left as they are.
func finalize(cands []*Node, snap *Snapshot) []models.Section {
	secs := make([]models.Section, 0, len(cands))
	for _, c := range cands {
		if c.Rect.Height <= minSectionHeight {
			continue
		}
		secs = append(secs, models.Section{
			Top:    c.Rect.Top + snap.ScrollY,
			Left:   0,
			Width:  snap.ViewportWidth,
			Height: c.Rect.Height,
		})
	}

	sort.SliceStable(secs, func(i, j int) bool {
		if secs[i].Top != secs[j].Top {
			return secs[i].Top < secs[j].Top
		}
		return secs[i].Height > secs[j].Height
	})

	out := make([]models.Section, 0, len(secs))
	for i, s := range secs {
		if i > 0 && s.Top == out[len(out)-1].Top {
			continue
		}
		out = append(out, s)
	}
	return out
}
