package utils

// BinarySearch searches the index range [start, end) with cmp, which must return a
// negative number when the element at an index is smaller than the target, a positive
// number when it is larger and zero when it matches.
//
// It returns the matching index when found, otherwise the insertion point: the first
// index whose element is not less than the target.
func BinarySearch(start, end int, cmp func(int) int) (bool, int) {
	low := start
	high := end - 1

	for low <= high {
		mid := low + (high-low)/2
		switch c := cmp(mid); {
		case c < 0:
			low = mid + 1
		case c > 0:
			high = mid - 1
		default:
			return true, mid
		}
	}

	return false, low
}
