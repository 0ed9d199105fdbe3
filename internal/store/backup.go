package store

import "fmt"

// BackupTo writes a consistent snapshot of the database to destPath
// using SQLite's online backup (VACUUM INTO), safe to run concurrently
// with readers and the scheduler's other jobs.
func (s *Store) BackupTo(destPath string) error {
	if _, err := s.db.Exec(`VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("backup to %s: %w", destPath, err)
	}
	return nil
}
