package naming

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// RepoID derives the deterministic identifier for one backup slot:
// {YYYYMMDD}_{hash8}_{owner_repo}. The hash is an md5 fingerprint of the
// clone URL and is part of the stored-object format; ids produced on the
// same calendar day for the same clone URL are identical, so a re-run
// updates the same slot instead of creating a new one.
func RepoID(fullName, cloneURL string, when time.Time) string {
	sum := md5.Sum([]byte(cloneURL))
	hash8 := hex.EncodeToString(sum[:])[:8]
	return when.Format("20060102") + "_" + hash8 + "_" + Slug(fullName)
}

// Slug flattens owner/repo into owner_repo.
func Slug(fullName string) string {
	return strings.ReplaceAll(fullName, "/", "_")
}

// CurrentSuffix is the archive-name suffix of the current naming scheme.
func CurrentSuffix(fullName string) string {
	return "_" + Slug(fullName) + ".zip"
}

// LegacySuffix is the archive-name suffix of the old naming scheme, which
// carried only the short repository name. It is ambiguous across owners;
// the matcher accepts that as a migration limitation.
func LegacySuffix(fullName string) string {
	name := fullName
	if idx := strings.LastIndex(fullName, "/"); idx >= 0 {
		name = fullName[idx+1:]
	}
	return "_" + name + ".zip"
}

// ArchiveName is the object key for a repository archive.
func ArchiveName(repoID string) string {
	return repoID + ".zip"
}
