package cache

import (
	"context"

	"golang.org/x/sys/unix"

	"treadle/internal/services"
)

// Stats describes current cache usage.
type Stats struct {
	Entries        int            `json:"entries"`
	EntriesByStage map[string]int `json:"entries_by_stage"`
	FreeBytes      uint64         `json:"free_bytes"`
	TotalFSBytes   uint64         `json:"total_fs_bytes"`
}

// Stats reports entry counts and free space on the filesystem backing the
// cache database.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{EntriesByStage: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT stage_id, COUNT(*) FROM cache_entries GROUP BY stage_id`)
	if err != nil {
		return Stats{}, services.Wrap(services.ErrCacheUnavailable, "cache", "stats", "", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stageID string
		var count int
		if err := rows.Scan(&stageID, &count); err != nil {
			return Stats{}, services.Wrap(services.ErrCacheUnavailable, "cache", "stats", "scan", err)
		}
		stats.EntriesByStage[stageID] = count
		stats.Entries += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, services.Wrap(services.ErrCacheUnavailable, "cache", "stats", "", err)
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(s.path, &fs); err == nil {
		stats.FreeBytes = fs.Bavail * uint64(fs.Bsize)
		stats.TotalFSBytes = fs.Blocks * uint64(fs.Bsize)
	}
	return stats, nil
}
