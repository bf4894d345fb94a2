package crashlog

import (
	"cmp"
	"slices"

	"github.com/blacktop/crashsym/internal/utils"
)

type imageRange struct {
	loadAddress uint64
	endAddress  uint64
	index       int
}

// ImageFinder looks up the binary image that contains an address.
type ImageFinder struct {
	images []BinaryImageEntry
	ranges []imageRange
}

// NewImageFinder builds a lookup table from the binary image entries of a report.
func NewImageFinder(images []BinaryImageEntry) (*ImageFinder, error) {
	ranges := make([]imageRange, 0, len(images))
	for idx, img := range images {
		load, err := utils.ParseAddress(img.LoadAddress)
		if err != nil {
			return nil, err
		}
		end, err := utils.ParseAddress(img.EndAddress)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, imageRange{loadAddress: load, endAddress: end, index: idx})
	}
	slices.SortStableFunc(ranges, func(a, b imageRange) int {
		return cmp.Compare(a.loadAddress, b.loadAddress)
	})
	return &ImageFinder{images: images, ranges: ranges}, nil
}

// Find returns the binary image whose [load, end] range contains addr.
func (f *ImageFinder) Find(addr string) (*BinaryImageEntry, bool) {
	address, err := utils.ParseAddress(addr)
	if err != nil {
		return nil, false
	}
	found, idx := utils.BinarySearch(0, len(f.ranges), func(i int) int {
		return cmp.Compare(f.ranges[i].loadAddress, address)
	})
	if !found {
		idx--
	}
	if idx < 0 || idx >= len(f.ranges) {
		return nil, false
	}
	r := f.ranges[idx]
	if address > r.endAddress {
		return nil, false
	}
	return &f.images[r.index], true
}
