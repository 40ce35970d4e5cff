// Package history records past scan scores per target and computes the
// trend between consecutive runs.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// DefaultLimit is the number of entries kept per store when no limit is set.
const DefaultLimit = 200

// ErrNoHistory is returned by Latest when a target has no recorded runs.
var ErrNoHistory = errors.New("history: no previous runs")

// Trend labels.
const (
	TrendImproving = "IMPROVING"
	TrendDeclining = "DECLINING"
	TrendSame      = "SAME"
	TrendFirstRun  = "FIRST_RUN"
)

// Entry is one recorded scan.
type Entry struct {
	ID         string         `json:"id"`
	Target     string         `json:"target"`
	Timestamp  time.Time      `json:"timestamp"`
	Score      int            `json:"score"`
	Grade      string         `json:"grade"`
	Critical   int            `json:"critical"`
	High       int            `json:"high"`
	Medium     int            `json:"medium"`
	Info       int            `json:"info"`
	Dimensions map[string]int `json:"dimensions,omitempty"`
}

// Store persists entries. List and Latest return entries newest first.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Latest(ctx context.Context, target string) (Entry, error)
	List(ctx context.Context, target string, limit int) ([]Entry, error)
	Close() error
}

// NewEntry builds an entry from a generated report.
func NewEntry(r *interfaces.Report) Entry {
	s := r.Summary
	e := Entry{
		ID:        r.ID,
		Target:    r.Target,
		Timestamp: r.Timestamp,
		Score:     s.Score,
		Grade:     s.Grade,
		Critical:  s.Critical,
		High:      s.High,
		Medium:    s.Medium,
		Info:      s.Info,
	}
	if len(s.Dimensions) > 0 {
		e.Dimensions = make(map[string]int, len(s.Dimensions))
		for dim, d := range s.Dimensions {
			e.Dimensions[string(dim)] = d.Score
		}
	}
	return e
}

// Trend compares the current run with the previous one.
type Trend struct {
	Previous      int    `json:"previous"`
	Current       int    `json:"current"`
	Delta         int    `json:"delta"`
	PreviousGrade string `json:"previous_grade,omitempty"`
	CurrentGrade  string `json:"current_grade"`
	Label         string `json:"label"`
}

// Compute returns the trend from prev to curr. A nil prev is a first run,
// reported with Previous -1.
func Compute(prev *Entry, curr Entry) Trend {
	t := Trend{Previous: -1, Current: curr.Score, CurrentGrade: curr.Grade, Label: TrendFirstRun}
	if prev == nil {
		return t
	}

	t.Previous = prev.Score
	t.PreviousGrade = prev.Grade
	t.Delta = curr.Score - prev.Score
	switch {
	case t.Delta > 0:
		t.Label = TrendImproving
	case t.Delta < 0:
		t.Label = TrendDeclining
	default:
		t.Label = TrendSame
	}
	return t
}

// Record fetches the latest entry for e.Target, appends e and returns the
// trend between them.
func Record(ctx context.Context, s Store, e Entry) (Trend, error) {
	var prev *Entry
	last, err := s.Latest(ctx, e.Target)
	switch {
	case err == nil:
		prev = &last
	case errors.Is(err, ErrNoHistory):
	default:
		return Trend{}, err
	}

	if err := s.Append(ctx, e); err != nil {
		return Trend{}, err
	}
	return Compute(prev, e), nil
}
