package objectstore

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ExportJSON marshals records to indented JSON and uploads them to the
// exports bucket under a batch-scoped name.
func (s *Store) ExportJSON(domain, layer, batchID string, records any) (string, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s/%s export: %w", domain, layer, err)
	}
	name := fmt.Sprintf("%s/%s_%s.json", batchID, domain, layer)
	return s.Upload(BucketExports, name, data)
}

// ExportCSV writes rows (first row is the header) to the exports bucket.
func (s *Store) ExportCSV(domain, batchID string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write %s csv: %w", domain, err)
	}
	name := fmt.Sprintf("%s/%s.csv", batchID, domain)
	return s.Upload(BucketExports, name, buf.Bytes())
}

// Backup copies the database file into the backups bucket with a
// timestamped name.
func (s *Store) Backup(dbPath string) (string, error) {
	data, err := os.ReadFile(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to read database for backup: %w", err)
	}
	name := fmt.Sprintf("datapulse_%s.db", time.Now().UTC().Format("20060102_150405"))
	return s.Upload(BucketBackups, name, data)
}
