package service

import "github.com/lumia-app/lumia/internal/model"

// uniqueIDs drops repeated ids, keeping first occurrences in order.
func uniqueIDs(ids []model.ID) []model.ID {
	out := make([]model.ID, 0, len(ids))
	seen := make(map[model.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
