package detector

import "fmt"

// maxSnapshotDepth bounds the serialized geometry tree. Wrapper chains
// on real pages break within a few levels, and the collapse step only
// looks one level below the break point.
const maxSnapshotDepth = 12

// Script returns the in-page measurement function producing a geometry
// Snapshot. It must run only after scrolling has settled: visibility,
// layout, and lazily-loaded nodes keep changing while the page loads.
func Script() string {
	return fmt.Sprintf(snapshotJS, minSectionWidth, minSectionHeight, maxSnapshotDepth)
}

// snapshotJS measures the qualifying-element tree. The visibility
// predicate and bounding boxes need resolved styles and post-layout
// geometry, which only the live rendering engine can provide; the
// partitioning decision itself runs in Go over the returned value.
const snapshotJS = `() => {
	const MIN_W = %d;
	const MIN_H = %d;
	const MAX_DEPTH = %d;

	const qualifies = (el) => {
		const cs = window.getComputedStyle(el);
		if (cs.display === 'none') return false;
		if (cs.visibility === 'hidden') return false;
		if (parseFloat(cs.opacity) === 0) return false;
		if (cs.position === 'fixed') return false;
		const r = el.getBoundingClientRect();
		return r.height > MIN_H && r.width > MIN_W;
	};

	const describe = (el, depth) => {
		const r = el.getBoundingClientRect();
		const node = {
			tag: el.tagName.toLowerCase(),
			rect: { top: r.top, left: r.left, width: r.width, height: r.height },
			children: [],
		};
		if (depth >= MAX_DEPTH) return node;
		for (const child of el.children) {
			if (qualifies(child)) {
				node.children.push(describe(child, depth + 1));
			}
		}
		return node;
	};

	const landmark = document.querySelector('main, [role=main]');
	return {
		scrollY: window.scrollY,
		viewportWidth: window.innerWidth,
		docHeight: Math.max(
			document.body ? document.body.scrollHeight : 0,
			document.documentElement.scrollHeight
		),
		body: document.body ? describe(document.body, 0) : null,
		landmark: landmark ? describe(landmark, 0) : null,
	};
}`
