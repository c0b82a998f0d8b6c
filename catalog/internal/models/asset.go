package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Genre is a member of the closed genre vocabulary.
type Genre string

const (
	GenreAction         Genre = "ACTION"
	GenreAdventure      Genre = "ADVENTURE"
	GenreAnimation      Genre = "ANIMATION"
	GenreComedy         Genre = "COMEDY"
	GenreCrime          Genre = "CRIME"
	GenreDocumentary    Genre = "DOCUMENTARY"
	GenreDrama          Genre = "DRAMA"
	GenreFantasy        Genre = "FANTASY"
	GenreHorror         Genre = "HORROR"
	GenreMystery        Genre = "MYSTERY"
	GenreRomance        Genre = "ROMANCE"
	GenreScienceFiction Genre = "SCIENCE_FICTION"
	GenreThriller       Genre = "THRILLER"
	GenreWestern        Genre = "WESTERN"
)

// AllGenres lists the vocabulary in declaration order.
var AllGenres = []Genre{
	GenreAction, GenreAdventure, GenreAnimation, GenreComedy, GenreCrime,
	GenreDocumentary, GenreDrama, GenreFantasy, GenreHorror, GenreMystery,
	GenreRomance, GenreScienceFiction, GenreThriller, GenreWestern,
}

// ParseGenre accepts a genre name in any case, with '-' or ' ' for '_'.
func ParseGenre(s string) (Genre, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	g := Genre(norm)
	if !slices.Contains(AllGenres, g) {
		return "", fmt.Errorf("unknown genre %q", s)
	}
	return g, nil
}

// Actor is a cast member reference.
type Actor struct {
	ID       int64  `json:"id,omitempty"`
	FullName string `json:"full_name"`
}

// AssetState is the lifecycle state of an asset. Inactive is terminal.
type AssetState string

const (
	AssetActive   AssetState = "active"
	AssetInactive AssetState = "inactive"
)

const (
	MinYearOfRelease = 1900
	MaxYearOfRelease = 2050
)

// VideoAsset is a video's metadata record.
type VideoAsset struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Synopsis      string  `json:"synopsis,omitempty"`
	DirectorName  string  `json:"director_name"`
	MainActor     string  `json:"main_actor"`
	Cast          []Actor `json:"cast"`
	Genres        []Genre `json:"genres"`
	YearOfRelease int     `json:"year_of_release,omitempty"`
	RunningTime   int     `json:"running_time"`

	// BlobKey locates the media in the blob store.
	BlobKey       string `json:"-"`
	FileName      string `json:"file_name"`
	FileExtension string `json:"file_extension"`
	FileSizeBytes int64  `json:"file_size_bytes"`

	PublishedAt   time.Time  `json:"published_at"`
	PublishedBy   string     `json:"published_by"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
	LastUpdatedBy string     `json:"last_updated_by,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	DeletedBy     string     `json:"deleted_by,omitempty"`

	State AssetState `json:"state"`
}

func (a *VideoAsset) IsActive() bool {
	return a.State == AssetActive
}

// Clone returns a deep copy so callers cannot alias repository state.
func (a *VideoAsset) Clone() *VideoAsset {
	if a == nil {
		return nil
	}
	c := *a
	c.Cast = slices.Clone(a.Cast)
	c.Genres = slices.Clone(a.Genres)
	if a.LastUpdatedAt != nil {
		t := *a.LastUpdatedAt
		c.LastUpdatedAt = &t
	}
	if a.DeletedAt != nil {
		t := *a.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// Summary is the projection returned by list and search.
type Summary struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	DirectorName  string  `json:"director_name"`
	MainActor     string  `json:"main_actor"`
	YearOfRelease int     `json:"year_of_release,omitempty"`
	Genres        []Genre `json:"genres"`
	RunningTime   int     `json:"running_time"`
}

func (a *VideoAsset) Summary() Summary {
	return Summary{
		ID:            a.ID,
		Title:         a.Title,
		DirectorName:  a.DirectorName,
		MainActor:     a.MainActor,
		YearOfRelease: a.YearOfRelease,
		Genres:        slices.Clone(a.Genres),
		RunningTime:   a.RunningTime,
	}
}

// AssetDraft carries the content fields of a publish or update request.
// ID must be zero on publish and equal the path id on update.
type AssetDraft struct {
	ID            int64   `json:"id,omitempty"`
	Title         string  `json:"title"`
	Synopsis      string  `json:"synopsis,omitempty"`
	DirectorName  string  `json:"director_name"`
	MainActor     string  `json:"main_actor"`
	Cast          []Actor `json:"cast,omitempty"`
	Genres        []Genre `json:"genres,omitempty"`
	YearOfRelease int     `json:"year_of_release,omitempty"`
	RunningTime   int     `json:"running_time"`
}

// Validate returns every violated constraint; an empty result means valid.
func (d *AssetDraft) Validate() []string {
	var violations []string
	if strings.TrimSpace(d.Title) == "" {
		violations = append(violations, "title is required")
	}
	if strings.TrimSpace(d.DirectorName) == "" {
		violations = append(violations, "director_name is required")
	}
	if strings.TrimSpace(d.MainActor) == "" {
		violations = append(violations, "main_actor is required")
	}
	if d.YearOfRelease != 0 && (d.YearOfRelease < MinYearOfRelease || d.YearOfRelease > MaxYearOfRelease) {
		violations = append(violations, fmt.Sprintf("year_of_release must be between %d and %d", MinYearOfRelease, MaxYearOfRelease))
	}
	if d.RunningTime < 0 {
		violations = append(violations, "running_time must not be negative")
	}
	for _, g := range d.Genres {
		if !slices.Contains(AllGenres, g) {
			violations = append(violations, fmt.Sprintf("genre %q is unknown", g))
		}
	}
	for i, a := range d.Cast {
		if strings.TrimSpace(a.FullName) == "" {
			violations = append(violations, fmt.Sprintf("cast[%d].full_name is required", i))
		}
	}
	return violations
}

// Normalized returns a copy with trimmed text and de-duplicated cast and
// genres, preserving first-seen order.
func (d AssetDraft) Normalized() AssetDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Synopsis = strings.TrimSpace(d.Synopsis)
	d.DirectorName = strings.TrimSpace(d.DirectorName)
	d.MainActor = strings.TrimSpace(d.MainActor)

	genres := make([]Genre, 0, len(d.Genres))
	for _, g := range d.Genres {
		if !slices.Contains(genres, g) {
			genres = append(genres, g)
		}
	}
	d.Genres = genres

	cast := make([]Actor, 0, len(d.Cast))
	for _, a := range d.Cast {
		a.FullName = strings.TrimSpace(a.FullName)
		if !slices.ContainsFunc(cast, func(x Actor) bool { return strings.EqualFold(x.FullName, a.FullName) }) {
			cast = append(cast, a)
		}
	}
	d.Cast = cast
	return d
}

// Apply copies every metadata field of d into a freshly published asset.
func (d *AssetDraft) Apply(a *VideoAsset) {
	a.MainActor = d.MainActor
	d.ApplyUpdate(a)
}

// ApplyUpdate overwrites the updatable fields of a with d. The main actor
// is fixed at publish time; file, ownership and state fields are untouched.
func (d *AssetDraft) ApplyUpdate(a *VideoAsset) {
	a.Title = d.Title
	a.Synopsis = d.Synopsis
	a.DirectorName = d.DirectorName
	a.Cast = slices.Clone(d.Cast)
	a.Genres = slices.Clone(d.Genres)
	a.YearOfRelease = d.YearOfRelease
	a.RunningTime = d.RunningTime
}
