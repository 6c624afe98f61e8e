package learning

import (
	"context"
	"math"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/catalog"
)

var (
	// errors
	ErrLessonNotFound = core.NewDomainError(core.ErrNotFound, "lesson not found")
	ErrNoAccess       = core.NewDomainError(core.ErrForbidden, "buy the course to open this lesson")
	ErrNoQuiz         = core.NewValidationError(errors.New("this lesson has no quiz"))
	ErrAnswersCount   = core.NewValidationError(nil, core.FieldError{Field: "answers", Error: "one answer per question is required"})
	ErrQuizNotPassed  = core.NewValidationError(errors.New("pass the quiz to complete this lesson"))
	ErrInvalidSeconds = core.NewValidationError(nil, core.FieldError{Field: "seconds", Error: "must be between 1 and 3600"})

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// QueryModules returns the modules of a course with their lessons, both sorted by order.
		QueryModules(ctx context.Context, slug string, exec ...core.DBExecutor) ([]Module, error)
		GetLesson(ctx context.Context, id int, exec ...core.DBExecutor) (Lesson, error)
		// ReplaceCourseContent upserts modules by (course, order) and lessons by (module, order), keeping their IDs,
		// and deletes the modules and lessons missing from mods.
		ReplaceCourseContent(ctx context.Context, slug string, mods []Module, exec ...core.DBExecutor) ([]Module, error)

		// GetProgress returns a not started Progress when nothing is stored yet.
		GetProgress(ctx context.Context, userID string, lessonID int, exec ...core.DBExecutor) (Progress, error)
		QueryProgress(ctx context.Context, userID, slug string, exec ...core.DBExecutor) ([]Progress, error)
		SaveProgress(ctx context.Context, p Progress, exec ...core.DBExecutor) (Progress, error)
	}

	Service interface {
		CourseOutline(ctx context.Context, userID, slug string) (Outline, error)
		OpenLesson(ctx context.Context, userID string, lessonID int) (LessonDetail, error)
		TrackTime(ctx context.Context, userID string, lessonID, seconds int) (Progress, error)
		CompleteLesson(ctx context.Context, userID string, lessonID int) (Progress, error)
		SubmitQuiz(ctx context.Context, userID string, lessonID int, answers []int) (QuizResult, error)
		CourseProgress(ctx context.Context, userID, slug string) (CourseProgress, error)
		ImportCourse(ctx context.Context, cc CourseContent) ([]Module, error)
	}

	service struct {
		db      core.Transactor
		repo    Repository
		access  access.Service
		catalog catalog.Finder
		policy  *bluemonday.Policy
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.Transactor, repo Repository, accessSvc access.Service, cat catalog.Finder) Service {
	return &service{
		db:      db,
		repo:    repo,
		access:  accessSvc,
		catalog: cat,
		policy:  bluemonday.UGCPolicy(),
	}
}

func now() time.Time { return NowFunc().UTC() }

// lesson loads a lesson the user may read. enrolled is false for free lessons of courses not owned.
func (svc *service) lesson(ctx context.Context, userID string, lessonID int) (lsn Lesson, enrolled bool, err error) {
	lsn, err = svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Lesson{}, false, err
	}
	enrolled, err = svc.access.HasAccess(ctx, userID, lsn.CourseSlug)
	if err != nil {
		return Lesson{}, false, errors.Wrap(err, "checking course access")
	}
	if !enrolled && !lsn.IsFree {
		return Lesson{}, false, ErrNoAccess
	}
	return lsn, enrolled, nil
}

// touch marks the lesson opened.
func touch(p Progress, t time.Time) Progress {
	if p.Status == StatusNotStarted || p.Status == "" {
		p.Status = StatusInProgress
	}
	if p.StartedAt.IsZero() {
		p.StartedAt = t
	}
	p.LastAccessedAt = t
	return p
}

func complete(p Progress, t time.Time) Progress {
	p = touch(p, t)
	p.Status = StatusCompleted
	if p.CompletedAt.IsZero() {
		p.CompletedAt = t
	}
	return p
}

// updateProgress runs mutate on the stored progress within a transaction, then moves the enrollment forward.
func (svc *service) updateProgress(
	ctx context.Context,
	userID string,
	lsn Lesson,
	enrolled bool,
	mutate func(p Progress) (Progress, error),
) (Progress, error) {
	var prog Progress
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		p, err := svc.repo.GetProgress(ctx, userID, lsn.ID, exec)
		if err != nil {
			return errors.Wrap(err, "getting progress")
		}
		wasCompleted := p.IsCompleted()

		if p, err = mutate(p); err != nil {
			return err
		}
		if prog, err = svc.repo.SaveProgress(ctx, p, exec); err != nil {
			return errors.Wrap(err, "saving progress")
		}

		if !enrolled {
			return nil
		}
		if err = svc.access.MarkActive(ctx, userID, lsn.CourseSlug, exec); err != nil {
			return err
		}
		if !wasCompleted && prog.IsCompleted() {
			return svc.completeCourseIfDone(ctx, userID, lsn.CourseSlug, exec)
		}
		return nil
	})
	return prog, err
}

func (svc *service) completeCourseIfDone(ctx context.Context, userID, slug string, exec core.DBExecutor) error {
	mods, err := svc.repo.QueryModules(ctx, slug, exec)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	progs, err := svc.repo.QueryProgress(ctx, userID, slug, exec)
	if err != nil {
		return errors.Wrap(err, "querying progress")
	}
	done := completedLessons(progs)
	for _, lsn := range flatten(mods) {
		if !done[lsn.ID] {
			return nil
		}
	}
	return svc.access.MarkCompleted(ctx, userID, slug, exec)
}

func completedLessons(progs []Progress) map[int]bool {
	done := make(map[int]bool, len(progs))
	for _, p := range progs {
		if p.IsCompleted() {
			done[p.LessonID] = true
		}
	}
	return done
}

func flatten(mods []Module) []Lesson {
	var lessons []Lesson
	for _, mod := range mods {
		lessons = append(lessons, mod.Lessons...)
	}
	return lessons
}

func (svc *service) CourseOutline(ctx context.Context, userID, slug string) (Outline, error) {
	course, err := svc.catalog.GetBySlug(slug)
	if err != nil {
		return Outline{}, err
	}
	enrolled, err := svc.access.HasAccess(ctx, userID, course.Slug)
	if err != nil {
		return Outline{}, errors.Wrap(err, "checking course access")
	}
	mods, err := svc.repo.QueryModules(ctx, course.Slug)
	if err != nil {
		return Outline{}, errors.Wrap(err, "querying modules")
	}
	progs, err := svc.repo.QueryProgress(ctx, userID, course.Slug)
	if err != nil {
		return Outline{}, errors.Wrap(err, "querying progress")
	}
	byLesson := make(map[int]Progress, len(progs))
	for _, p := range progs {
		byLesson[p.LessonID] = p
	}

	outline := Outline{Course: course, Enrolled: enrolled, Modules: make([]ModuleOutline, 0, len(mods))}
	for _, mod := range mods {
		mo := ModuleOutline{
			ID:          mod.ID,
			Order:       mod.Order,
			Title:       mod.Title,
			Description: mod.Description,
			Lessons:     make([]LessonOutline, 0, len(mod.Lessons)),
		}
		for _, lsn := range mod.Lessons {
			p, ok := byLesson[lsn.ID]
			if !ok {
				p = newProgress(userID, lsn.ID)
			}
			mo.Lessons = append(mo.Lessons, LessonOutline{
				ID:                   lsn.ID,
				Order:                lsn.Order,
				Title:                lsn.Title,
				ContentType:          lsn.ContentType,
				EstimatedTimeMinutes: lsn.EstimatedTimeMinutes,
				VideoDurationMinutes: lsn.VideoDurationMinutes,
				HasQuiz:              lsn.HasQuiz(),
				IsFree:               lsn.IsFree,
				Locked:               !enrolled && !lsn.IsFree,
				Status:               p.Status,
				QuizPassed:           p.QuizPassed,
			})
		}
		outline.Modules = append(outline.Modules, mo)
	}
	return outline, nil
}

func (svc *service) OpenLesson(ctx context.Context, userID string, lessonID int) (LessonDetail, error) {
	lsn, enrolled, err := svc.lesson(ctx, userID, lessonID)
	if err != nil {
		return LessonDetail{}, err
	}

	t := now()
	prog, err := svc.updateProgress(ctx, userID, lsn, enrolled, func(p Progress) (Progress, error) {
		return touch(p, t), nil
	})
	if err != nil {
		return LessonDetail{}, err
	}

	detail := LessonDetail{Lesson: lsn, Progress: prog}
	mods, err := svc.repo.QueryModules(ctx, lsn.CourseSlug)
	if err != nil {
		return LessonDetail{}, errors.Wrap(err, "querying modules")
	}
	lessons := flatten(mods)
	for i, l := range lessons {
		if l.ID != lsn.ID {
			continue
		}
		if i > 0 {
			detail.PrevLessonID = lessons[i-1].ID
		}
		if i < len(lessons)-1 {
			detail.NextLessonID = lessons[i+1].ID
		}
		break
	}
	return detail, nil
}

func (svc *service) TrackTime(ctx context.Context, userID string, lessonID, seconds int) (Progress, error) {
	if seconds < 1 || seconds > MaxTrackedSeconds {
		return Progress{}, ErrInvalidSeconds
	}
	lsn, enrolled, err := svc.lesson(ctx, userID, lessonID)
	if err != nil {
		return Progress{}, err
	}

	t := now()
	return svc.updateProgress(ctx, userID, lsn, enrolled, func(p Progress) (Progress, error) {
		p = touch(p, t)
		p.TimeSpentSeconds += seconds
		return p, nil
	})
}

func (svc *service) CompleteLesson(ctx context.Context, userID string, lessonID int) (Progress, error) {
	lsn, enrolled, err := svc.lesson(ctx, userID, lessonID)
	if err != nil {
		return Progress{}, err
	}

	t := now()
	return svc.updateProgress(ctx, userID, lsn, enrolled, func(p Progress) (Progress, error) {
		if p.IsCompleted() {
			return p, nil
		}
		if lsn.HasQuiz() && !p.QuizPassed {
			return Progress{}, ErrQuizNotPassed
		}
		return complete(p, t), nil
	})
}

func (svc *service) SubmitQuiz(ctx context.Context, userID string, lessonID int, answers []int) (QuizResult, error) {
	lsn, enrolled, err := svc.lesson(ctx, userID, lessonID)
	if err != nil {
		return QuizResult{}, err
	}
	if !lsn.HasQuiz() {
		return QuizResult{}, ErrNoQuiz
	}
	if len(answers) != len(lsn.Quiz.Questions) {
		return QuizResult{}, ErrAnswersCount
	}

	score, feedback := grade(*lsn.Quiz, answers)
	t := now()
	prog, err := svc.updateProgress(ctx, userID, lsn, enrolled, func(p Progress) (Progress, error) {
		p = touch(p, t)
		p.QuizAttempts++
		if score > p.QuizScore {
			p.QuizScore = score
		}
		if score >= QuizPassingScore {
			p.QuizPassed = true
		}
		if p.QuizPassed {
			p = complete(p, t)
		}
		return p, nil
	})
	if err != nil {
		return QuizResult{}, err
	}

	return QuizResult{
		Score:     score,
		Passed:    score >= QuizPassingScore,
		BestScore: prog.QuizScore,
		Attempts:  prog.QuizAttempts,
		Feedback:  feedback,
		Progress:  prog,
	}, nil
}

func (svc *service) CourseProgress(ctx context.Context, userID, slug string) (CourseProgress, error) {
	course, err := svc.catalog.GetBySlug(slug)
	if err != nil {
		return CourseProgress{}, err
	}
	mods, err := svc.repo.QueryModules(ctx, course.Slug)
	if err != nil {
		return CourseProgress{}, errors.Wrap(err, "querying modules")
	}
	progs, err := svc.repo.QueryProgress(ctx, userID, course.Slug)
	if err != nil {
		return CourseProgress{}, errors.Wrap(err, "querying progress")
	}

	res := CourseProgress{CourseSlug: course.Slug}
	var quizTotal, quizCount int
	for _, p := range progs {
		res.TimeSpentSeconds += p.TimeSpentSeconds
		if p.QuizAttempts > 0 {
			quizTotal += p.QuizScore
			quizCount++
		}
	}
	if quizCount > 0 {
		res.QuizAverage = math.Round(float64(quizTotal)/float64(quizCount)*10) / 10
	}

	done := completedLessons(progs)
	for _, lsn := range flatten(mods) {
		res.TotalLessons++
		if done[lsn.ID] {
			res.CompletedLessons++
		} else if res.NextLessonID == 0 {
			res.NextLessonID = lsn.ID
		}
	}
	if res.TotalLessons > 0 {
		res.Percent = int(math.Round(100 * float64(res.CompletedLessons) / float64(res.TotalLessons)))
	}
	return res, nil
}

// ImportCourse replaces the program of a catalog course. cc must have been validated.
func (svc *service) ImportCourse(ctx context.Context, cc CourseContent) ([]Module, error) {
	course, err := svc.catalog.GetBySlug(cc.CourseSlug)
	if err != nil {
		return nil, err
	}
	cc.CourseSlug = course.Slug

	var mods []Module
	err = svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		mods, err = svc.repo.ReplaceCourseContent(ctx, course.Slug, cc.toModules(svc.policy), exec)
		return errors.Wrap(err, "replacing course content")
	})
	if err != nil {
		return nil, err
	}
	return mods, nil
}
