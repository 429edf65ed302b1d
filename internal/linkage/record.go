package linkage

import (
	"strconv"
	"time"
)

// HistoryRow is one ratings-history observation: a company in a given year.
type HistoryRow struct {
	CompanyName string
	CUSIP       string
	Ticker      string
	Year        int
	// Date is set by Prepare from Year.
	Date time.Time
}

// NameRow is one security name spell from the name history.
type NameRow struct {
	PermNo      int64
	NCUSIP      string
	Ticker      string
	CompanyName string
	NameDate    time.Time
	NameEndDate time.Time
}

// Stage identifies the matcher that produced a link.
type Stage string

// Matcher stages.
const (
	StagePrimary   Stage = "primary"
	StageSecondary Stage = "secondary"
)

// Link is one scored candidate between a source company and a security.
type Link struct {
	SourceIdentifier string
	Ticker           string
	PermNo           int64
	CompanyName      string
	TargetName       string
	NameSimilarity   int
	Score            int
	Stage            Stage
}

// TargetID returns the security identifier as written in link tables.
func (l Link) TargetID() string {
	return strconv.FormatInt(l.PermNo, 10)
}

// Better reports whether l ranks ahead of o: lower score, then higher
// similarity, then lower target and source identifiers.
func (l Link) Better(o Link) bool {
	if l.Score != o.Score {
		return l.Score < o.Score
	}
	if l.NameSimilarity != o.NameSimilarity {
		return l.NameSimilarity > o.NameSimilarity
	}
	if l.PermNo != o.PermNo {
		return l.PermNo < o.PermNo
	}
	return l.SourceIdentifier < o.SourceIdentifier
}

// Candidate is a joined (source, security) pair before scoring.
type Candidate struct {
	Source HistoryRow
	// SourceFirst and SourceLast bound the source identifier's window.
	SourceFirst time.Time
	SourceLast  time.Time
	Target      NameRow
	// TargetStart and TargetEnd bound the security identifier's window.
	TargetStart    time.Time
	TargetEnd      time.Time
	NameSimilarity int
}

// Overlaps reports whether the source and security windows intersect.
func (c Candidate) Overlaps() bool {
	return Overlap(c.SourceFirst, c.SourceLast, c.TargetStart, c.TargetEnd)
}

func (c Candidate) link(score int, stage Stage) Link {
	return Link{
		SourceIdentifier: c.Source.CUSIP,
		Ticker:           c.Source.Ticker,
		PermNo:           c.Target.PermNo,
		CompanyName:      c.Source.CompanyName,
		TargetName:       c.Target.CompanyName,
		NameSimilarity:   c.NameSimilarity,
		Score:            score,
		Stage:            stage,
	}
}
