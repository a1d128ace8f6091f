package catalog

// Ellipsis is the placeholder entry in a compressed page-number list.
const Ellipsis = -1

// maxVisible is how many page numbers show before first/last-ellipsis
// compression kicks in.
const maxVisible = 5

// PageNumbers builds the page navigation list for the browse views. Lists of
// up to maxVisible pages show every number; longer lists keep the first page,
// the last page, and a window around the current page, with Ellipsis filling
// the gaps.
func PageNumbers(current, total int) []int {
	if total < 1 {
		total = 1
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	if total <= maxVisible {
		out := make([]int, 0, total)
		for p := 1; p <= total; p++ {
			out = append(out, p)
		}
		return out
	}

	out := []int{1}
	lo, hi := current-1, current+1
	if lo < 2 {
		lo, hi = 2, 4
	}
	if hi > total-1 {
		lo, hi = total-3, total-1
	}
	if lo > 2 {
		out = append(out, Ellipsis)
	}
	for p := lo; p <= hi; p++ {
		out = append(out, p)
	}
	if hi < total-1 {
		out = append(out, Ellipsis)
	}
	return append(out, total)
}
