package bitbucket

import (
	"encoding/json"
	"fmt"
	"time"
)

// Repository is a workspace repository. Immutable once fetched.
type Repository struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Commit is a single commit as returned by the commits endpoint. The hash
// is its stable identity.
type Commit struct {
	Hash       string
	Author     string
	Date       time.Time
	Message    string
	Repository string
}

// UnmarshalJSON accepts the upstream commit shape. The author field
// appears either as an object carrying a "raw" authorship string or as a
// plain string, depending on account linkage.
func (c *Commit) UnmarshalJSON(data []byte) error {
	var doc struct {
		Hash       string          `json:"hash"`
		Date       time.Time       `json:"date"`
		Message    string          `json:"message"`
		Author     json.RawMessage `json:"author"`
		Repository struct {
			Name string `json:"name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	c.Hash = doc.Hash
	c.Date = doc.Date
	c.Message = doc.Message
	c.Repository = doc.Repository.Name

	if len(doc.Author) > 0 {
		var obj struct {
			Raw string `json:"raw"`
		}
		if err := json.Unmarshal(doc.Author, &obj); err == nil && obj.Raw != "" {
			c.Author = obj.Raw
		} else {
			var s string
			if err := json.Unmarshal(doc.Author, &s); err == nil {
				c.Author = s
			}
		}
	}

	return nil
}

// Month returns the commit's year-month bucket (e.g. "2024-03").
func (c *Commit) Month() string {
	return c.Date.Format("2006-01")
}

// PRState is the pull request lifecycle state.
type PRState string

// Pull request states used by the pullrequests endpoint's state filter.
const (
	PRStateOpen     PRState = "OPEN"
	PRStateMerged   PRState = "MERGED"
	PRStateDeclined PRState = "DECLINED"
)

// PullRequest is a single pull request record.
type PullRequest struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	State     PRState   `json:"state"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// DiffStat summarizes lines added and removed by one commit across all of
// its changed files. Values default to zero when unavailable so
// downstream sums never need null handling.
type DiffStat struct {
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// BatchResult is the per-task outcome of a batch diffstat fetch. Every
// input task produces exactly one result; a failed task carries a zeroed
// DiffStat and an error description instead of aborting the batch.
type BatchResult struct {
	CommitHash string
	DiffStat   DiffStat
	OK         bool
	Err        string
	FromCache  bool
}

// ParseDiffStat decodes a diffstat payload. The endpoint returns either a
// page with a per-file "values" array whose lines_added/lines_removed are
// summed, or a flat object carrying the two counters directly. A payload
// exposing neither shape is malformed.
func ParseDiffStat(payload []byte) (DiffStat, error) {
	var doc struct {
		Values *[]struct {
			LinesAdded   *int `json:"lines_added"`
			LinesRemoved *int `json:"lines_removed"`
		} `json:"values"`
		LinesAdded   *int `json:"lines_added"`
		LinesRemoved *int `json:"lines_removed"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return DiffStat{}, fmt.Errorf("decode diffstat: %w", err)
	}

	if doc.Values != nil {
		var ds DiffStat
		for _, file := range *doc.Values {
			if file.LinesAdded != nil {
				ds.LinesAdded += *file.LinesAdded
			}
			if file.LinesRemoved != nil {
				ds.LinesRemoved += *file.LinesRemoved
			}
		}
		return ds, nil
	}

	if doc.LinesAdded != nil || doc.LinesRemoved != nil {
		var ds DiffStat
		if doc.LinesAdded != nil {
			ds.LinesAdded = *doc.LinesAdded
		}
		if doc.LinesRemoved != nil {
			ds.LinesRemoved = *doc.LinesRemoved
		}
		return ds, nil
	}

	return DiffStat{}, fmt.Errorf("diffstat payload missing lines_added/lines_removed")
}

// ValidDiffStat reports whether a cached diffstat payload still has the
// expected shape. Used as the cache read validator on the batch path.
func ValidDiffStat(payload []byte) bool {
	_, err := ParseDiffStat(payload)
	return err == nil
}
