package consolidate

import (
	"context"
	"sort"
	"strings"

	"github.com/goliatone/go-tablebook/export"
)

// candidate is a file selected for consolidation.
type candidate struct {
	Key  string
	Size int64
}

// scan lists eligible inputs in the store, sorted by key. Skipped names are
// returned separately so they can be reported.
func scan(ctx context.Context, store export.ArtifactStore, opts Options) ([]candidate, []string, error) {
	infos, err := store.List(ctx)
	if err != nil {
		return nil, nil, export.NewError(export.KindParse, "list input directory failed", err)
	}

	allowed := export.AllowExtensions(opts.Extensions...)
	selected := make([]candidate, 0, len(infos))
	skipped := make([]string, 0)
	for _, info := range infos {
		if strings.EqualFold(info.Key, opts.OutputName) {
			continue
		}
		if !allowed.Allows(info.Key) {
			continue
		}
		if !opts.Filter.Allows(info.Key) {
			skipped = append(skipped, info.Key)
			continue
		}
		selected = append(selected, candidate{Key: info.Key, Size: info.Size})
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Key < selected[j].Key })
	return selected, skipped, nil
}
