package learning_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/catalog"
	"github.com/neuromagic/academy/core/learning"
	dummydb "github.com/neuromagic/academy/storage/database/dummy"
	"github.com/neuromagic/academy/tests"
)

const program = `
course_slug: vibe-coding
modules:
  - order: 1
    title: Старт
    lessons:
      - order: 1
        title: Что такое вайбкодинг
        content_type: text
        is_free: true
        content_html: <p>Привет</p><script>alert(1)</script>
      - order: 2
        title: Проверка
        content_type: quiz
        quiz:
          questions:
            - question: Кто пишет код?
              answers: [Я, Модель]
              correct: 1
            - question: Нужно ли читать код?
              answers: [Да, Нет]
              correct: 0
  - order: 2
    title: Практика
    lessons:
      - order: 1
        title: Первый проект
        content_type: video
        video_url: https://www.youtube.com/watch?v=abc
        video_duration_minutes: 12
`

type fixture struct {
	svc    learning.Service
	access access.Service
	ids    []int // lesson IDs in program order
}

func setup(t *testing.T) fixture {
	db, err := dummydb.Open()
	require.NoError(t, err)

	cat := testutil.LoadCatalog(t)
	accessSvc := access.NewService(dummydb.NewEnrollmentRepository(db), cat)
	svc := learning.NewService(db, dummydb.NewLearningRepository(db), accessSvc, cat)

	validate, _ := testutil.NewValidator(t)
	cc, err := learning.ParseCourseContent([]byte(program))
	require.NoError(t, err)
	require.NoError(t, cc.Validate(validate))
	mods, err := svc.ImportCourse(context.Background(), cc)
	require.NoError(t, err)

	var ids []int
	for _, mod := range mods {
		for _, lsn := range mod.Lessons {
			ids = append(ids, lsn.ID)
		}
	}
	require.Len(t, ids, 3)
	return fixture{svc: svc, access: accessSvc, ids: ids}
}

func (f fixture) enroll(t *testing.T, userID string) {
	_, _, err := f.access.Grant(context.Background(), access.Grant{UserID: userID, CourseSlug: "vibe-coding", Method: access.MethodTest})
	require.NoError(t, err)
}

func (f fixture) enrollmentStatus(t *testing.T, userID string) access.Status {
	enr, err := f.access.Get(context.Background(), userID, "vibe-coding")
	require.NoError(t, err)
	return enr.Status
}

func TestService_ImportCourse(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	detail, err := f.svc.OpenLesson(ctx, "u1", f.ids[0])
	require.NoError(t, err)
	assert.Equal(t, "<p>Привет</p>", detail.Lesson.ContentHTML)
	assert.Equal(t, learning.DefaultEstimatedTimeMinutes, detail.Lesson.EstimatedTimeMinutes)

	// re-importing keeps lesson IDs, so progress survives
	validate, _ := testutil.NewValidator(t)
	cc, err := learning.ParseCourseContent([]byte(program))
	require.NoError(t, err)
	cc.Modules = cc.Modules[:1]
	cc.Modules[0].Lessons[0].Title = "Вайбкодинг: введение"
	require.NoError(t, cc.Validate(validate))
	mods, err := f.svc.ImportCourse(ctx, cc)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, f.ids[0], mods[0].Lessons[0].ID)
	assert.Equal(t, f.ids[1], mods[0].Lessons[1].ID)

	outline, err := f.svc.CourseOutline(ctx, "u1", "vibe-coding")
	require.NoError(t, err)
	require.Len(t, outline.Modules, 1)
	assert.Equal(t, "Вайбкодинг: введение", outline.Modules[0].Lessons[0].Title)
	assert.Equal(t, learning.StatusInProgress, outline.Modules[0].Lessons[0].Status)

	_, err = f.svc.OpenLesson(ctx, "u1", f.ids[2])
	assert.Equal(t, learning.ErrLessonNotFound, err)

	cc.CourseSlug = "unknown-course"
	_, err = f.svc.ImportCourse(ctx, cc)
	assert.Equal(t, catalog.ErrNotFound, err)
}

func TestService_CourseOutline(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	outline, err := f.svc.CourseOutline(ctx, "u1", "vibe-coding")
	require.NoError(t, err)
	assert.False(t, outline.Enrolled)
	assert.Equal(t, "vibe-coding", outline.Course.Slug)
	require.Len(t, outline.Modules, 2)

	first := outline.Modules[0].Lessons
	assert.False(t, first[0].Locked)
	assert.True(t, first[0].IsFree)
	assert.True(t, first[1].Locked)
	assert.True(t, first[1].HasQuiz)
	assert.Equal(t, learning.StatusNotStarted, first[1].Status)
	assert.True(t, outline.Modules[1].Lessons[0].Locked)

	f.enroll(t, "u1")
	outline, err = f.svc.CourseOutline(ctx, "u1", "vibe-coding")
	require.NoError(t, err)
	assert.True(t, outline.Enrolled)
	for _, mod := range outline.Modules {
		for _, lsn := range mod.Lessons {
			assert.False(t, lsn.Locked, lsn.Title)
		}
	}

	_, err = f.svc.CourseOutline(ctx, "u1", "nope")
	assert.Equal(t, catalog.ErrNotFound, err)
}

func TestService_OpenLesson(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	// free lessons are open to everybody
	detail, err := f.svc.OpenLesson(ctx, "u1", f.ids[0])
	require.NoError(t, err)
	assert.Equal(t, learning.StatusInProgress, detail.Progress.Status)
	assert.False(t, detail.Progress.StartedAt.IsZero())
	assert.Zero(t, detail.PrevLessonID)
	assert.Equal(t, f.ids[1], detail.NextLessonID)

	_, err = f.svc.OpenLesson(ctx, "u1", f.ids[1])
	assert.Equal(t, learning.ErrNoAccess, err)

	_, err = f.svc.OpenLesson(ctx, "u1", 9999)
	assert.Equal(t, learning.ErrLessonNotFound, err)

	f.enroll(t, "u1")
	assert.Equal(t, access.StatusPaid, f.enrollmentStatus(t, "u1"))

	detail, err = f.svc.OpenLesson(ctx, "u1", f.ids[2])
	require.NoError(t, err)
	assert.Equal(t, f.ids[1], detail.PrevLessonID)
	assert.Zero(t, detail.NextLessonID)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", detail.Lesson.VideoURL)
	assert.Equal(t, access.StatusActive, f.enrollmentStatus(t, "u1"))

	// answers stay hidden from the learner
	detail, err = f.svc.OpenLesson(ctx, "u1", f.ids[1])
	require.NoError(t, err)
	require.True(t, detail.Lesson.HasQuiz())
	assert.Len(t, detail.Lesson.Quiz.Questions, 2)
}

func TestService_TrackTime(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	for _, secs := range []int{0, -5, learning.MaxTrackedSeconds + 1} {
		_, err := f.svc.TrackTime(ctx, "u1", f.ids[0], secs)
		assert.Equal(t, learning.ErrInvalidSeconds, err)
	}

	_, err := f.svc.TrackTime(ctx, "u1", f.ids[0], 90)
	require.NoError(t, err)
	prog, err := f.svc.TrackTime(ctx, "u1", f.ids[0], 30)
	require.NoError(t, err)
	assert.Equal(t, 120, prog.TimeSpentSeconds)
	assert.Equal(t, learning.StatusInProgress, prog.Status)

	_, err = f.svc.TrackTime(ctx, "u1", f.ids[2], 30)
	assert.Equal(t, learning.ErrNoAccess, err)
}

func TestService_SubmitQuiz(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.enroll(t, "u1")

	_, err := f.svc.SubmitQuiz(ctx, "u1", f.ids[0], []int{0})
	assert.Equal(t, learning.ErrNoQuiz, err)

	_, err = f.svc.SubmitQuiz(ctx, "u1", f.ids[1], []int{1})
	assert.Equal(t, learning.ErrAnswersCount, err)

	_, err = f.svc.CompleteLesson(ctx, "u1", f.ids[1])
	assert.Equal(t, learning.ErrQuizNotPassed, err)

	res, err := f.svc.SubmitQuiz(ctx, "u1", f.ids[1], []int{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, learning.StatusInProgress, res.Progress.Status)
	assert.True(t, res.Feedback[0].IsCorrect)
	assert.False(t, res.Feedback[1].IsCorrect)

	res, err = f.svc.SubmitQuiz(ctx, "u1", f.ids[1], []int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
	assert.True(t, res.Passed)
	assert.Equal(t, learning.StatusCompleted, res.Progress.Status)

	// a worse retry keeps the best score and the completion
	res, err = f.svc.SubmitQuiz(ctx, "u1", f.ids[1], []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, 100, res.BestScore)
	assert.Equal(t, 3, res.Attempts)
	assert.True(t, res.Progress.QuizPassed)
	assert.Equal(t, learning.StatusCompleted, res.Progress.Status)
}

func TestService_courseCompletion(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.enroll(t, "u1")

	prog, err := f.svc.CourseProgress(ctx, "u1", "vibe-coding")
	require.NoError(t, err)
	assert.Equal(t, learning.CourseProgress{CourseSlug: "vibe-coding", TotalLessons: 3, NextLessonID: f.ids[0]}, prog)

	_, err = f.svc.TrackTime(ctx, "u1", f.ids[0], 300)
	require.NoError(t, err)
	p, err := f.svc.CompleteLesson(ctx, "u1", f.ids[0])
	require.NoError(t, err)
	assert.Equal(t, learning.StatusCompleted, p.Status)
	completedAt := p.CompletedAt

	// completing twice is harmless
	p, err = f.svc.CompleteLesson(ctx, "u1", f.ids[0])
	require.NoError(t, err)
	assert.Equal(t, completedAt, p.CompletedAt)

	_, err = f.svc.SubmitQuiz(ctx, "u1", f.ids[1], []int{1, 1})
	require.NoError(t, err)

	prog, err = f.svc.CourseProgress(ctx, "u1", "vibe-coding")
	require.NoError(t, err)
	assert.Equal(t, 1, prog.CompletedLessons)
	assert.Equal(t, 33, prog.Percent)
	assert.Equal(t, 300, prog.TimeSpentSeconds)
	assert.Equal(t, 50.0, prog.QuizAverage)
	assert.Equal(t, f.ids[1], prog.NextLessonID)
	assert.Equal(t, access.StatusActive, f.enrollmentStatus(t, "u1"))

	_, err = f.svc.SubmitQuiz(ctx, "u1", f.ids[1], []int{1, 0})
	require.NoError(t, err)
	_, err = f.svc.CompleteLesson(ctx, "u1", f.ids[2])
	require.NoError(t, err)

	prog, err = f.svc.CourseProgress(ctx, "u1", "vibe-coding")
	require.NoError(t, err)
	assert.Equal(t, 3, prog.CompletedLessons)
	assert.Equal(t, 100, prog.Percent)
	assert.Equal(t, 100.0, prog.QuizAverage)
	assert.Zero(t, prog.NextLessonID)
	assert.Equal(t, access.StatusCompleted, f.enrollmentStatus(t, "u1"))

	// other learners are unaffected
	prog, err = f.svc.CourseProgress(ctx, "u2", "vibe-coding")
	require.NoError(t, err)
	assert.Zero(t, prog.CompletedLessons)
}
