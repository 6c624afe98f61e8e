package catalog

import (
	"io/fs"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/neuromagic/academy/core"
)

const DefaultFeaturedLimit = 3

var ErrNotFound = core.NewDomainError(core.ErrNotFound, "course not found")

// Finder looks courses up by slug.
type Finder interface {
	GetBySlug(slug string) (Course, error)
}

var _ Finder = (*Catalog)(nil) // interface compliance check

// Catalog is the read-only list of courses on sale. It is safe for concurrent use.
type Catalog struct {
	courses []Course
	bySlug  map[string]int
	reviews []Review
}

type catalogDocument struct {
	Courses []struct {
		Slug          string   `yaml:"slug"`
		Title         string   `yaml:"title"`
		Tagline       string   `yaml:"tagline"`
		Description   string   `yaml:"description"`
		Price         string   `yaml:"price"`
		DurationWeeks int      `yaml:"duration_weeks"`
		Level         string   `yaml:"level"`
		Format        string   `yaml:"format"`
		Technologies  []string `yaml:"technologies"`
		Badges        []string `yaml:"badges"`
		Cover         string   `yaml:"cover"`
		Highlight     string   `yaml:"highlight"`
		Author        Author   `yaml:"author"`
	} `yaml:"courses"`
	Reviews []Review `yaml:"reviews"`
}

// Load reads the catalog YAML document `name` from fsys.
func Load(fsys fs.FS, name string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrap(err, "reading catalog")
	}

	var doc catalogDocument
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding catalog")
	}

	courses := make([]Course, 0, len(doc.Courses))
	for _, c := range doc.Courses {
		price, err := decimal.NewFromString(c.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "course %q: parsing price", c.Slug)
		}
		courses = append(courses, Course{
			Slug:          c.Slug,
			Title:         c.Title,
			Tagline:       c.Tagline,
			Description:   strings.TrimSpace(c.Description),
			Price:         price,
			DurationWeeks: c.DurationWeeks,
			Level:         Level(c.Level),
			Format:        Format(c.Format),
			Technologies:  c.Technologies,
			Badges:        c.Badges,
			Cover:         c.Cover,
			Highlight:     c.Highlight,
			Author:        c.Author,
		})
	}
	return New(courses, doc.Reviews)
}

// New builds a Catalog, checking that every course is well formed.
func New(courses []Course, reviews []Review) (*Catalog, error) {
	cat := &Catalog{
		courses: make([]Course, 0, len(courses)),
		bySlug:  make(map[string]int, len(courses)),
		reviews: reviews,
	}
	for _, c := range courses {
		switch {
		case c.Slug == "":
			return nil, errors.New("course without slug")
		case !c.Price.IsPositive():
			return nil, errors.Errorf("course %q: price must be positive", c.Slug)
		case !c.Level.IsValid():
			return nil, errors.Errorf("course %q: unknown level %q", c.Slug, c.Level)
		case !c.Format.IsValid():
			return nil, errors.Errorf("course %q: unknown format %q", c.Slug, c.Format)
		}
		if _, dup := cat.bySlug[c.Slug]; dup {
			return nil, errors.Errorf("course %q: duplicate slug", c.Slug)
		}
		cat.bySlug[c.Slug] = len(cat.courses)
		cat.courses = append(cat.courses, c)
	}
	return cat, nil
}

func (cat *Catalog) All() []Course {
	res := make([]Course, len(cat.courses))
	copy(res, cat.courses)
	return res
}

// Featured returns the first `limit` courses (DefaultFeaturedLimit when limit <= 0).
func (cat *Catalog) Featured(limit int) []Course {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}
	if limit > len(cat.courses) {
		limit = len(cat.courses)
	}
	res := make([]Course, limit)
	copy(res, cat.courses[:limit])
	return res
}

func (cat *Catalog) GetBySlug(slug string) (Course, error) {
	if idx, ok := cat.bySlug[core.CleanString(slug, true /* lower */)]; ok {
		return cat.courses[idx], nil
	}
	return Course{}, ErrNotFound
}

// Filter applies AND operation on available QueryFilter fields.
// QueryFilter.Search does a case-insensitive match on one of Course.Title, Course.Tagline or Course.Technologies.
func (cat *Catalog) Filter(filter QueryFilter) []Course {
	filter.Clean()
	if filter.IsEmpty() {
		return cat.All()
	}

	search := strings.ToLower(filter.Search)
	res := make([]Course, 0)
	for _, c := range cat.courses {
		if filter.Level != "" && string(c.Level) != filter.Level {
			continue
		}
		if filter.Format != "" && string(c.Format) != filter.Format {
			continue
		}
		if search != "" && !c.matches(search) {
			continue
		}
		res = append(res, c)
	}
	return res
}

func (c Course) matches(search string) bool {
	if strings.Contains(strings.ToLower(c.Title), search) || strings.Contains(strings.ToLower(c.Tagline), search) {
		return true
	}
	for _, tech := range c.Technologies {
		if strings.Contains(strings.ToLower(tech), search) {
			return true
		}
	}
	return false
}

func (cat *Catalog) Reviews() []Review {
	res := make([]Review, len(cat.reviews))
	copy(res, cat.reviews)
	return res
}
