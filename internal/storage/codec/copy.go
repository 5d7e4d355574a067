package codec

// CopyWithGap copies the first oldSize elements of src to dst, leaving dst
// [gapIndex] free for an insertion. dst must hold at least oldSize+1
// elements. src and dst may be the same slice.
func CopyWithGap[T any](src, dst []T, oldSize, gapIndex int) {
	if gapIndex < oldSize {
		copy(dst[gapIndex+1:], src[gapIndex:oldSize])
	}
	if gapIndex > 0 {
		copy(dst, src[:gapIndex])
	}
}

// CopyExcept copies the first oldSize elements of src to dst, skipping
// src[removeIndex]. dst must hold at least oldSize-1 elements. src and dst
// may be the same slice.
func CopyExcept[T any](src, dst []T, oldSize, removeIndex int) {
	if removeIndex > 0 && oldSize > 0 {
		copy(dst, src[:removeIndex])
	}
	if removeIndex < oldSize {
		copy(dst[removeIndex:], src[removeIndex+1:oldSize])
	}
}

// InsertAt returns a new slice with v inserted at index i.
func InsertAt[T any](s []T, i int, v T) []T {
	out := make([]T, len(s)+1)
	CopyWithGap(s, out, len(s), i)
	out[i] = v
	return out
}

// RemoveAt returns a new slice without the element at index i.
func RemoveAt[T any](s []T, i int) []T {
	out := make([]T, len(s)-1)
	CopyExcept(s, out, len(s), i)
	return out
}
