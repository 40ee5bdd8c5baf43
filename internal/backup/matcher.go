package backup

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/starbak/starbak/internal/naming"
	"github.com/starbak/starbak/internal/storage"
)

// Match is the result of scanning storage for prior backups of one
// repository. Candidates are sorted newest-first.
type Match struct {
	Exists     bool
	Candidates []storage.ObjectInfo
}

// findExisting lists the entire bucket and keeps objects whose key ends
// with either naming-scheme suffix for this repository. The bucket has
// no server-side filter for suffix matching, so this is O(bucket size)
// per repository. The legacy suffix carries only the short repository
// name and can match a different owner's repository of the same name;
// that ambiguity is kept for migration compatibility. A listing error is
// non-fatal: it is logged and treated as no match, so the run creates a
// fresh backup instead of skipping one.
func findExisting(ctx context.Context, store storage.Storage, fullName string, log zerolog.Logger) Match {
	objects, err := store.List(ctx, "")
	if err != nil {
		log.Warn().Err(err).Str("repo", fullName).Msg("could not list existing backups")
		return Match{}
	}

	current := naming.CurrentSuffix(fullName)
	legacy := naming.LegacySuffix(fullName)

	var candidates []storage.ObjectInfo
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, current) || strings.HasSuffix(obj.Key, legacy) {
			candidates = append(candidates, obj)
		}
	}
	if len(candidates) == 0 {
		return Match{}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Modified.After(candidates[j].Modified)
	})
	return Match{Exists: true, Candidates: candidates}
}
