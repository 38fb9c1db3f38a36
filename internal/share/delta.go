package share

import "github.com/MikhailRaia/files-sharing/internal/model"

// NewlyShared returns the shares of after whose ID does not occur in before,
// in the order of after. Shares removed between the two snapshots are not
// reported.
func NewlyShared(before, after []model.Share) []model.Share {
	known := make(map[int64]struct{}, len(before))
	for _, s := range before {
		known[s.ID] = struct{}{}
	}

	result := []model.Share{}
	for _, s := range after {
		if _, ok := known[s.ID]; !ok {
			result = append(result, s)
		}
	}
	return result
}
