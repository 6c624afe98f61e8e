package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/neuromagic/academy/core"
)

type Level string

const (
	LevelBeginner Level = "beginner"
	LevelJunior   Level = "junior"
	LevelMiddle   Level = "middle"
	LevelSenior   Level = "senior"
)

type Format string

const (
	FormatLive     Format = "live"
	FormatRecorded Format = "recorded"
	FormatHybrid   Format = "hybrid"
)

var (
	Levels  = []Level{LevelBeginner, LevelJunior, LevelMiddle, LevelSenior}
	Formats = []Format{FormatLive, FormatRecorded, FormatHybrid}
)

func (l Level) IsValid() bool {
	for _, lvl := range Levels {
		if l == lvl {
			return true
		}
	}
	return false
}

func (f Format) IsValid() bool {
	for _, fmt := range Formats {
		if f == fmt {
			return true
		}
	}
	return false
}

type Author struct {
	Name   string `json:"name" yaml:"name"`
	Title  string `json:"title" yaml:"title"`
	Avatar string `json:"avatar" yaml:"avatar"`
}

type Course struct {
	Slug          string          `json:"slug"`
	Title         string          `json:"title"`
	Tagline       string          `json:"tagline"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"` // RUB
	DurationWeeks int             `json:"duration_weeks"`
	Level         Level           `json:"level"`
	Format        Format          `json:"format"`
	Technologies  []string        `json:"technologies"`
	Badges        []string        `json:"badges"`
	Cover         string          `json:"cover"`
	Highlight     string          `json:"highlight"`
	Author        Author          `json:"author"`
}

type Review struct {
	Author string `json:"author" yaml:"author"`
	Role   string `json:"role" yaml:"role"`
	Quote  string `json:"quote" yaml:"quote"`
	Avatar string `json:"avatar" yaml:"avatar"`
}

type QueryFilter struct {
	Level  string `query:"level"`
	Format string `query:"format"`
	Search string `query:"search"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Level == "" && qf.Format == "" && qf.Search == ""
}

func (qf *QueryFilter) Clean() {
	qf.Level = core.CleanString(qf.Level, true /* lower */)
	qf.Format = core.CleanString(qf.Format, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}
