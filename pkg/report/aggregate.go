// Package report aggregates collected workspace activity into per-month,
// per-repository, and per-author views and exchanges them as CSV files.
package report

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/nfriedli/bitbucket-stats/pkg/bitbucket"
)

// CommitRecord is one collected commit, flattened for aggregation and CSV
// exchange.
type CommitRecord struct {
	Repository string
	CommitHash string
	Author     string
	Date       time.Time
	Month      string
	Message    string
}

// DiffStatRecord is one commit's line-change summary. Only successful
// diffstat fetches produce records; failed commits simply have none.
type DiffStatRecord struct {
	Repository   string
	CommitHash   string
	LinesAdded   int
	LinesRemoved int
}

// Dataset is the full collected state of one run.
type Dataset struct {
	Commits   []CommitRecord
	DiffStats []DiffStatRecord
}

// AddRepository appends one repository's commits and batch diffstat
// results to the dataset.
func (d *Dataset) AddRepository(slug string, commits []bitbucket.Commit, results []bitbucket.BatchResult) {
	for _, commit := range commits {
		d.Commits = append(d.Commits, CommitRecord{
			Repository: slug,
			CommitHash: commit.Hash,
			Author:     commit.Author,
			Date:       commit.Date,
			Month:      commit.Month(),
			Message:    commit.Message,
		})
	}
	for _, result := range results {
		if !result.OK {
			continue
		}
		d.DiffStats = append(d.DiffStats, DiffStatRecord{
			Repository:   slug,
			CommitHash:   result.CommitHash,
			LinesAdded:   result.DiffStat.LinesAdded,
			LinesRemoved: result.DiffStat.LinesRemoved,
		})
	}
}

// FilterYear keeps only the commits whose date falls in the given year.
func FilterYear(commits []bitbucket.Commit, year int) []bitbucket.Commit {
	filtered := make([]bitbucket.Commit, 0, len(commits))
	for _, commit := range commits {
		if commit.Date.Year() == year {
			filtered = append(filtered, commit)
		}
	}
	return filtered
}

// Activity is one bucket's commit and line-change totals. The bucket key
// (month, repository slug, or author) lives in Key.
type Activity struct {
	Key          string
	Commits      int
	LinesAdded   int
	LinesRemoved int
}

// diffStatsByHash indexes line changes by commit hash for joining onto
// commit buckets.
func (d *Dataset) diffStatsByHash() map[string]DiffStatRecord {
	index := make(map[string]DiffStatRecord, len(d.DiffStats))
	for _, ds := range d.DiffStats {
		index[ds.CommitHash] = ds
	}
	return index
}

func (d *Dataset) activityBy(key func(CommitRecord) string) []Activity {
	index := d.diffStatsByHash()
	buckets := make(map[string]*Activity)

	for _, commit := range d.Commits {
		k := key(commit)
		bucket, ok := buckets[k]
		if !ok {
			bucket = &Activity{Key: k}
			buckets[k] = bucket
		}
		bucket.Commits++
		if ds, ok := index[commit.CommitHash]; ok {
			bucket.LinesAdded += ds.LinesAdded
			bucket.LinesRemoved += ds.LinesRemoved
		}
	}

	result := make([]Activity, 0, len(buckets))
	for _, bucket := range buckets {
		result = append(result, *bucket)
	}
	return result
}

// MonthlyActivity aggregates activity per year-month bucket, sorted
// chronologically.
func (d *Dataset) MonthlyActivity() []Activity {
	result := d.activityBy(func(c CommitRecord) string { return c.Month })
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// RepositoryActivity aggregates activity per repository, most active
// first.
func (d *Dataset) RepositoryActivity() []Activity {
	result := d.activityBy(func(c CommitRecord) string { return c.Repository })
	sort.Slice(result, func(i, j int) bool {
		if result[i].Commits != result[j].Commits {
			return result[i].Commits > result[j].Commits
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// AuthorActivity aggregates activity per authorship string, most active
// first.
func (d *Dataset) AuthorActivity() []Activity {
	result := d.activityBy(func(c CommitRecord) string { return c.Author })
	sort.Slice(result, func(i, j int) bool {
		if result[i].Commits != result[j].Commits {
			return result[i].Commits > result[j].Commits
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// Summary is the run-level overview.
type Summary struct {
	Repositories          int
	Commits               int
	LinesAdded            int
	LinesRemoved          int
	MeanCommitsPerMonth   float64
	MedianCommitsPerMonth float64
}

// Summarize computes run totals plus per-month commit distribution
// statistics. An empty dataset yields a zero summary.
func (d *Dataset) Summarize() Summary {
	s := Summary{Commits: len(d.Commits)}

	repos := make(map[string]struct{})
	for _, commit := range d.Commits {
		repos[commit.Repository] = struct{}{}
	}
	s.Repositories = len(repos)

	for _, ds := range d.DiffStats {
		s.LinesAdded += ds.LinesAdded
		s.LinesRemoved += ds.LinesRemoved
	}

	monthly := d.MonthlyActivity()
	if len(monthly) == 0 {
		return s
	}

	perMonth := make([]float64, 0, len(monthly))
	for _, bucket := range monthly {
		perMonth = append(perMonth, float64(bucket.Commits))
	}

	// stats errors only on empty input, which is excluded above.
	s.MeanCommitsPerMonth, _ = stats.Mean(perMonth)
	s.MedianCommitsPerMonth, _ = stats.Median(perMonth)

	return s
}
