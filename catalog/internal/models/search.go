package models

import (
	"fmt"
	"slices"
	"strings"
)

// SearchKind selects the single criterion of a search.
type SearchKind string

const (
	SearchAll         SearchKind = "all"
	SearchTitle       SearchKind = "title"
	SearchDirector    SearchKind = "director"
	SearchMainActor   SearchKind = "main_actor"
	SearchGenre       SearchKind = "genre"
	SearchRunningTime SearchKind = "running_time"
)

// Comparator applies to running-time searches.
type Comparator string

const (
	CompareEqual          Comparator = "EQUAL"
	CompareGreaterOrEqual Comparator = "GREATER_OR_EQUAL"
	CompareLessOrEqual    Comparator = "LESS_OR_EQUAL"
)

// ParseComparator defaults to EQUAL for an empty string.
func ParseComparator(s string) (Comparator, error) {
	if strings.TrimSpace(s) == "" {
		return CompareEqual, nil
	}
	c := Comparator(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CompareEqual, CompareGreaterOrEqual, CompareLessOrEqual:
		return c, nil
	}
	return "", fmt.Errorf("unknown comparator %q", s)
}

// SearchCriteria is a single-criterion filter over active assets.
type SearchCriteria struct {
	Kind        SearchKind
	Text        string
	Genre       Genre
	RunningTime int
	Comparator  Comparator
}

func ListAll() SearchCriteria { return SearchCriteria{Kind: SearchAll} }

func ByTitle(s string) SearchCriteria { return SearchCriteria{Kind: SearchTitle, Text: s} }

func ByDirector(s string) SearchCriteria { return SearchCriteria{Kind: SearchDirector, Text: s} }

func ByMainActor(s string) SearchCriteria { return SearchCriteria{Kind: SearchMainActor, Text: s} }

func ByGenre(g Genre) SearchCriteria { return SearchCriteria{Kind: SearchGenre, Genre: g} }

func ByRunningTime(minutes int, c Comparator) SearchCriteria {
	return SearchCriteria{Kind: SearchRunningTime, RunningTime: minutes, Comparator: c}
}

// Validate checks that the criterion is well-formed and fills defaults.
func (c *SearchCriteria) Validate() error {
	switch c.Kind {
	case SearchAll:
	case SearchTitle, SearchDirector, SearchMainActor:
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%s search requires a non-empty term", c.Kind)
		}
	case SearchGenre:
		if !slices.Contains(AllGenres, c.Genre) {
			return fmt.Errorf("unknown genre %q", c.Genre)
		}
	case SearchRunningTime:
		if c.Comparator == "" {
			c.Comparator = CompareEqual
		}
		if _, err := ParseComparator(string(c.Comparator)); err != nil {
			return err
		}
		if c.RunningTime < 0 {
			return fmt.Errorf("running time must not be negative")
		}
	default:
		return fmt.Errorf("unknown search kind %q", c.Kind)
	}
	return nil
}

// Matches reports whether an asset satisfies the criterion. Activity is
// checked by the caller.
func (c SearchCriteria) Matches(a *VideoAsset) bool {
	switch c.Kind {
	case SearchAll:
		return true
	case SearchTitle:
		return containsFold(a.Title, c.Text)
	case SearchDirector:
		return containsFold(a.DirectorName, c.Text)
	case SearchMainActor:
		return containsFold(a.MainActor, c.Text)
	case SearchGenre:
		return slices.Contains(a.Genres, c.Genre)
	case SearchRunningTime:
		switch c.Comparator {
		case CompareGreaterOrEqual:
			return a.RunningTime >= c.RunningTime
		case CompareLessOrEqual:
			return a.RunningTime <= c.RunningTime
		default:
			return a.RunningTime == c.RunningTime
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}
