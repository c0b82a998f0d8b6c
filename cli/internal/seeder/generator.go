package seeder

import (
	"regexp"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/nevc-media/vidstream/cli/internal/client"
)

// Genres mirrors the catalog's genre vocabulary.
var Genres = []string{
	"ACTION", "ADVENTURE", "ANIMATION", "COMEDY", "CRIME",
	"DOCUMENTARY", "DRAMA", "FANTASY", "HORROR", "MYSTERY",
	"ROMANCE", "SCIENCE_FICTION", "THRILLER", "WESTERN",
}

// Item is one generated video: its metadata and the fake media bytes.
type Item struct {
	FileName string
	Content  []byte
	Draft    client.Draft
}

// Generator produces catalog entries. A Generator is not safe for
// concurrent use.
type Generator struct {
	faker    *gofakeit.Faker
	minBytes int
	maxBytes int
}

// NewGenerator returns a generator. A zero seed picks a random one; any
// other seed makes the output reproducible.
func NewGenerator(seed int64, minBytes, maxBytes int) *Generator {
	return &Generator{faker: gofakeit.New(seed), minBytes: minBytes, maxBytes: maxBytes}
}

func (g *Generator) Next() Item {
	d := g.Draft()
	return Item{
		FileName: slug(d.Title) + ".mp4",
		Content:  []byte(g.faker.LetterN(uint(g.faker.IntRange(g.minBytes, g.maxBytes)))),
		Draft:    d,
	}
}

// Draft returns metadata that satisfies the catalog's validation rules.
func (g *Generator) Draft() client.Draft {
	f := g.faker

	lead := f.Name()
	cast := []client.Actor{{FullName: lead}}
	for range f.IntRange(1, 4) {
		cast = append(cast, client.Actor{FullName: f.Name()})
	}

	genres := make([]string, len(Genres))
	copy(genres, Genres)
	f.ShuffleStrings(genres)

	return client.Draft{
		Title:         f.MovieName(),
		Synopsis:      f.Sentence(f.IntRange(8, 20)),
		DirectorName:  f.Name(),
		MainActor:     lead,
		Cast:          cast,
		Genres:        genres[:f.IntRange(1, 3)],
		YearOfRelease: f.IntRange(1920, 2025),
		RunningTime:   f.IntRange(70, 200),
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(title string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if s == "" {
		return "untitled"
	}
	return s
}
