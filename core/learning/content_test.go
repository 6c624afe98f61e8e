package learning_test

import (
	"io/fs"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/learning"
	appfs "github.com/neuromagic/academy/fs"
	"github.com/neuromagic/academy/tests"
)

func TestParseCourseContent_seed(t *testing.T) {
	validate, _ := testutil.NewValidator(t)

	data, err := fs.ReadFile(appfs.FS, "content/ai-for-beginners.yaml")
	require.NoError(t, err)
	cc, err := learning.ParseCourseContent(data)
	require.NoError(t, err)
	require.NoError(t, cc.Validate(validate))

	assert.Equal(t, "ai-for-beginners", cc.CourseSlug)
	require.Len(t, cc.Modules, 2)
	assert.Len(t, cc.Modules[0].Lessons, 3)
	assert.True(t, cc.Modules[0].Lessons[0].IsFree)
	assert.Equal(t, learning.ContentQuiz, cc.Modules[1].Lessons[1].ContentType)
}

func TestCourseContent_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator(t)

	fieldOf := func(err error) string {
		if verr, ok := errors.Cause(err).(*core.ValidationError); ok && len(verr.Fields) > 0 {
			return verr.Fields[0].Field
		}
		return ""
	}

	tests := []struct {
		name      string
		yaml      string
		wantErr   bool
		wantField string
	}{
		{
			name: "valid",
			yaml: `
course_slug: " Vibe-Coding "
modules:
  - order: 1
    title: Intro
    lessons:
      - {order: 1, title: Hello, content_type: text}
`,
		},
		{
			name: "bad slug",
			yaml: `
course_slug: "vibe coding"
modules:
  - order: 1
    title: Intro
    lessons:
      - {order: 1, title: Hello, content_type: text}
`,
			wantErr: true,
		},
		{
			name: "no modules",
			yaml: `
course_slug: vibe-coding
modules: []
`,
			wantErr: true,
		},
		{
			name: "unknown content type",
			yaml: `
course_slug: vibe-coding
modules:
  - order: 1
    title: Intro
    lessons:
      - {order: 1, title: Hello, content_type: podcast}
`,
			wantErr: true,
		},
		{
			name: "duplicate module order",
			yaml: `
course_slug: vibe-coding
modules:
  - order: 1
    title: Intro
    lessons:
      - {order: 1, title: Hello, content_type: text}
  - order: 1
    title: Again
    lessons:
      - {order: 1, title: Hello, content_type: text}
`,
			wantErr:   true,
			wantField: "modules[1].order",
		},
		{
			name: "duplicate lesson order",
			yaml: `
course_slug: vibe-coding
modules:
  - order: 1
    title: Intro
    lessons:
      - {order: 1, title: Hello, content_type: text}
      - {order: 2, title: World, content_type: text}
      - {order: 2, title: Again, content_type: video}
`,
			wantErr:   true,
			wantField: "modules[0].lessons[2].order",
		},
		{
			name: "quiz lesson without quiz",
			yaml: `
course_slug: vibe-coding
modules:
  - order: 1
    title: Intro
    lessons:
      - {order: 1, title: Test, content_type: quiz}
`,
			wantErr:   true,
			wantField: "modules[0].lessons[0].quiz",
		},
		{
			name: "correct answer out of range",
			yaml: `
course_slug: vibe-coding
modules:
  - order: 1
    title: Intro
    lessons:
      - order: 1
        title: Test
        content_type: quiz
        quiz:
          questions:
            - {question: "2+2?", answers: ["3", "4"], correct: 2}
`,
			wantErr:   true,
			wantField: "modules[0].lessons[0].quiz.questions[0].correct",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc, err := learning.ParseCourseContent([]byte(tt.yaml))
			require.NoError(t, err)

			err = cc.Validate(validate)
			if !tt.wantErr {
				assert.NoError(t, err)
				assert.Equal(t, "vibe-coding", cc.CourseSlug)
				return
			}
			assert.Error(t, err)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, fieldOf(err))
			}
		})
	}
}
