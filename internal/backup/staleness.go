package backup

import "bimvault/internal/model"

// Stale reports whether the resource needs a fresh backup. backups must
// be sorted newest first, as the manager serves them.
//
// A resource is covered when its newest backup is at least as recent as
// its last modification. A resource with no backups at all is covered
// only when it has never been touched since upload; libraries behave
// this way after a plain content upload.
func Stale(resource model.Resource, backups []model.Backup) bool {
	if len(backups) > 0 {
		return backups[0].Time < resource.Modified
	}

	return resource.Modified != resource.Uploaded
}
