package learning

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/neuromagic/academy/core"
)

type (
	// CourseContent is the authoring format of a course program (YAML seeds and the admin API).
	CourseContent struct {
		CourseSlug string          `json:"course_slug" yaml:"course_slug" validate:"required,slug"`
		Modules    []ModuleContent `json:"modules" yaml:"modules" validate:"required,min=1,dive"`
	}

	ModuleContent struct {
		Order       int             `json:"order" yaml:"order" validate:"min=1"`
		Title       string          `json:"title" yaml:"title" validate:"required,notblank,max=200"`
		Description string          `json:"description" yaml:"description"`
		Lessons     []LessonContent `json:"lessons" yaml:"lessons" validate:"required,min=1,dive"`
	}

	LessonContent struct {
		Order                int          `json:"order" yaml:"order" validate:"min=1"`
		Title                string       `json:"title" yaml:"title" validate:"required,notblank,max=200"`
		ContentType          ContentType  `json:"content_type" yaml:"content_type" validate:"required,oneof=text video quiz"`
		ContentText          string       `json:"content_text" yaml:"content_text"`
		ContentHTML          string       `json:"content_html" yaml:"content_html"`
		VideoURL             string       `json:"video_url" yaml:"video_url" validate:"omitempty,web_url"`
		VideoDurationMinutes int          `json:"video_duration_minutes" yaml:"video_duration_minutes" validate:"min=0"`
		CoverImageURL        string       `json:"cover_image_url" yaml:"cover_image_url"`
		Quiz                 *QuizContent `json:"quiz" yaml:"quiz" validate:"omitempty"`
		EstimatedTimeMinutes int          `json:"estimated_time_minutes" yaml:"estimated_time_minutes" validate:"min=0"`
		IsFree               bool         `json:"is_free" yaml:"is_free"`
	}

	QuizContent struct {
		Questions []QuestionContent `json:"questions" yaml:"questions" validate:"required,min=1,dive"`
	}

	QuestionContent struct {
		Question    string   `json:"question" yaml:"question" validate:"required,notblank"`
		Answers     []string `json:"answers" yaml:"answers" validate:"required,min=1,dive,required"`
		Correct     int      `json:"correct" yaml:"correct" validate:"min=0"`
		Explanation string   `json:"explanation" yaml:"explanation"`
	}
)

// ParseCourseContent decodes a YAML (or JSON) course program.
func ParseCourseContent(data []byte) (CourseContent, error) {
	var cc CourseContent
	if err := yaml.Unmarshal(data, &cc); err != nil {
		return CourseContent{}, errors.Wrap(err, "decoding course content")
	}
	return cc, nil
}

// Validate checks the program structure: unique orders, answer keys within range, quiz lessons carrying a quiz.
func (cc *CourseContent) Validate(validate *validator.Validate) error {
	cc.CourseSlug = core.CleanString(cc.CourseSlug, true /* lower */)
	if err := validate.Struct(cc); err != nil {
		return err
	}

	modOrders := make(map[int]bool, len(cc.Modules))
	for mi, mod := range cc.Modules {
		if modOrders[mod.Order] {
			return contentError(fmt.Sprintf("modules[%d].order", mi), "duplicate module order")
		}
		modOrders[mod.Order] = true

		lsnOrders := make(map[int]bool, len(mod.Lessons))
		for li, lsn := range mod.Lessons {
			field := fmt.Sprintf("modules[%d].lessons[%d]", mi, li)
			if lsnOrders[lsn.Order] {
				return contentError(field+".order", "duplicate lesson order")
			}
			lsnOrders[lsn.Order] = true

			if lsn.ContentType == ContentQuiz && lsn.Quiz == nil {
				return contentError(field+".quiz", "a quiz lesson needs questions")
			}
			if lsn.Quiz == nil {
				continue
			}
			for qi, q := range lsn.Quiz.Questions {
				if q.Correct >= len(q.Answers) {
					return contentError(fmt.Sprintf("%s.quiz.questions[%d].correct", field, qi), "correct answer out of range")
				}
			}
		}
	}
	return nil
}

func contentError(field, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: msg})
}

// toModules maps the program to storable modules, sanitizing lesson HTML.
func (cc CourseContent) toModules(policy *bluemonday.Policy) []Module {
	mods := make([]Module, 0, len(cc.Modules))
	for _, mc := range cc.Modules {
		mod := Module{
			CourseSlug:  cc.CourseSlug,
			Order:       mc.Order,
			Title:       core.CleanString(mc.Title),
			Description: core.CleanString(mc.Description),
			Lessons:     make([]Lesson, 0, len(mc.Lessons)),
		}
		for _, lc := range mc.Lessons {
			lsn := Lesson{
				CourseSlug:           cc.CourseSlug,
				Order:                lc.Order,
				Title:                core.CleanString(lc.Title),
				ContentType:          lc.ContentType,
				ContentText:          lc.ContentText,
				ContentHTML:          policy.Sanitize(lc.ContentHTML),
				VideoURL:             lc.VideoURL,
				VideoDurationMinutes: lc.VideoDurationMinutes,
				CoverImageURL:        lc.CoverImageURL,
				EstimatedTimeMinutes: lc.EstimatedTimeMinutes,
				IsFree:               lc.IsFree,
			}
			if lsn.EstimatedTimeMinutes == 0 {
				lsn.EstimatedTimeMinutes = DefaultEstimatedTimeMinutes
			}
			if lc.Quiz != nil {
				quiz := &Quiz{Questions: make([]Question, 0, len(lc.Quiz.Questions))}
				for _, qc := range lc.Quiz.Questions {
					quiz.Questions = append(quiz.Questions, Question{
						Question:    qc.Question,
						Answers:     qc.Answers,
						Correct:     qc.Correct,
						Explanation: qc.Explanation,
					})
				}
				lsn.Quiz = quiz
			}
			mod.Lessons = append(mod.Lessons, lsn)
		}
		mods = append(mods, mod)
	}
	return mods
}
