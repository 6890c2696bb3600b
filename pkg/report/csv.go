package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Output file names. The raw record files are both written by collection
// and read back to recompute aggregates without network access.
const (
	CommitsFile            = "commits.csv"
	DiffStatsFile          = "diffstats.csv"
	MonthlyActivityFile    = "monthly_activity.csv"
	RepositoryActivityFile = "repository_activity.csv"
	AuthorActivityFile     = "author_activity.csv"
)

// WriteAll writes the raw records and all three aggregate views into dir.
func (d *Dataset) WriteAll(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if err := d.WriteCommits(filepath.Join(dir, CommitsFile)); err != nil {
		return err
	}
	if err := d.WriteDiffStats(filepath.Join(dir, DiffStatsFile)); err != nil {
		return err
	}
	if err := writeActivity(filepath.Join(dir, MonthlyActivityFile), "month", d.MonthlyActivity()); err != nil {
		return err
	}
	if err := writeActivity(filepath.Join(dir, RepositoryActivityFile), "repository", d.RepositoryActivity()); err != nil {
		return err
	}
	return writeActivity(filepath.Join(dir, AuthorActivityFile), "author", d.AuthorActivity())
}

// WriteCommits writes the raw commit records.
func (d *Dataset) WriteCommits(path string) error {
	return writeCSV(path, []string{"repository", "commit_hash", "author", "date", "month", "message"}, len(d.Commits), func(i int) []string {
		c := d.Commits[i]
		return []string{c.Repository, c.CommitHash, c.Author, c.Date.Format(time.RFC3339), c.Month, c.Message}
	})
}

// WriteDiffStats writes the raw diffstat records.
func (d *Dataset) WriteDiffStats(path string) error {
	return writeCSV(path, []string{"repository", "commit_hash", "lines_added", "lines_removed"}, len(d.DiffStats), func(i int) []string {
		ds := d.DiffStats[i]
		return []string{ds.Repository, ds.CommitHash, strconv.Itoa(ds.LinesAdded), strconv.Itoa(ds.LinesRemoved)}
	})
}

func writeActivity(path, keyColumn string, rows []Activity) error {
	return writeCSV(path, []string{keyColumn, "commits", "lines_added", "lines_removed"}, len(rows), func(i int) []string {
		a := rows[i]
		return []string{a.Key, strconv.Itoa(a.Commits), strconv.Itoa(a.LinesAdded), strconv.Itoa(a.LinesRemoved)}
	})
}

func writeCSV(path string, header []string, rows int, row func(int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for i := 0; i < rows; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a previously collected dataset (commits.csv and
// diffstats.csv) back from dir.
func Load(dir string) (*Dataset, error) {
	commits, err := readCommits(filepath.Join(dir, CommitsFile))
	if err != nil {
		return nil, err
	}
	diffstats, err := readDiffStats(filepath.Join(dir, DiffStatsFile))
	if err != nil {
		return nil, err
	}
	return &Dataset{Commits: commits, DiffStats: diffstats}, nil
}

func readCommits(path string) ([]CommitRecord, error) {
	rows, err := readCSV(path, 6)
	if err != nil {
		return nil, err
	}

	commits := make([]CommitRecord, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(time.RFC3339, row[3])
		if err != nil {
			return nil, fmt.Errorf("parse commit date %q in %s: %w", row[3], path, err)
		}
		commits = append(commits, CommitRecord{
			Repository: row[0],
			CommitHash: row[1],
			Author:     row[2],
			Date:       date,
			Month:      row[4],
			Message:    row[5],
		})
	}
	return commits, nil
}

func readDiffStats(path string) ([]DiffStatRecord, error) {
	rows, err := readCSV(path, 4)
	if err != nil {
		return nil, err
	}

	diffstats := make([]DiffStatRecord, 0, len(rows))
	for _, row := range rows {
		added, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("parse lines_added %q in %s: %w", row[2], path, err)
		}
		removed, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("parse lines_removed %q in %s: %w", row[3], path, err)
		}
		diffstats = append(diffstats, DiffStatRecord{
			Repository:   row[0],
			CommitHash:   row[1],
			LinesAdded:   added,
			LinesRemoved: removed,
		})
	}
	return diffstats, nil
}

// readCSV reads a headered CSV file and returns its data rows.
func readCSV(path string, fields int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: missing header row", path)
	}
	return rows[1:], nil
}
