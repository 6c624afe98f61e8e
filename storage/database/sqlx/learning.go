package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/learning"
)

const lessonColumns = `l.id, l.module_id, m.course_slug, l."order", l.title, l.content_type, l.content_text,
	l.content_html, l.video_url, l.video_duration_minutes, l.cover_image_url, l.quiz, l.estimated_time_minutes, l.is_free`

type (
	moduleRow struct {
		ID          int    `db:"id"`
		CourseSlug  string `db:"course_slug"`
		Order       int    `db:"order"`
		Title       string `db:"title"`
		Description string `db:"description"`
	}

	lessonRow struct {
		ID                   int         `db:"id"`
		ModuleID             int         `db:"module_id"`
		CourseSlug           string      `db:"course_slug"`
		Order                int         `db:"order"`
		Title                string      `db:"title"`
		ContentType          string      `db:"content_type"`
		ContentText          null.String `db:"content_text"`
		ContentHTML          null.String `db:"content_html"`
		VideoURL             null.String `db:"video_url"`
		VideoDurationMinutes null.Int    `db:"video_duration_minutes"`
		CoverImageURL        null.String `db:"cover_image_url"`
		Quiz                 null.JSON   `db:"quiz"`
		EstimatedTimeMinutes int         `db:"estimated_time_minutes"`
		IsFree               bool        `db:"is_free"`
	}

	progressRow struct {
		UserID           string    `db:"user_id"`
		LessonID         int       `db:"lesson_id"`
		Status           string    `db:"status"`
		StartedAt        null.Time `db:"started_at"`
		CompletedAt      null.Time `db:"completed_at"`
		TimeSpentSeconds int       `db:"time_spent_seconds"`
		QuizScore        null.Int  `db:"quiz_score"`
		QuizAttempts     int       `db:"quiz_attempts"`
		QuizPassed       bool      `db:"quiz_passed"`
		LastAccessedAt   time.Time `db:"last_accessed_at"`
	}

	// storedQuestion keeps the answer key, which learning.Question hides from JSON.
	storedQuestion struct {
		Question    string   `json:"question"`
		Answers     []string `json:"answers"`
		Correct     int      `json:"correct"`
		Explanation string   `json:"explanation,omitempty"`
	}
)

func marshalQuiz(quiz *learning.Quiz) (null.JSON, error) {
	if quiz == nil {
		return null.JSON{}, nil
	}
	qs := make([]storedQuestion, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		qs = append(qs, storedQuestion(q))
	}
	data, err := json.Marshal(qs)
	if err != nil {
		return null.JSON{}, errors.Wrap(err, "encoding quiz")
	}
	return null.JSONFrom(data), nil
}

func unmarshalQuiz(data null.JSON) (*learning.Quiz, error) {
	if !data.Valid || len(data.JSON) == 0 {
		return nil, nil
	}
	var qs []storedQuestion
	if err := json.Unmarshal(data.JSON, &qs); err != nil {
		return nil, errors.Wrap(err, "decoding quiz")
	}
	quiz := &learning.Quiz{Questions: make([]learning.Question, 0, len(qs))}
	for _, q := range qs {
		quiz.Questions = append(quiz.Questions, learning.Question(q))
	}
	return quiz, nil
}

func (row lessonRow) toLesson() (learning.Lesson, error) {
	quiz, err := unmarshalQuiz(row.Quiz)
	if err != nil {
		return learning.Lesson{}, err
	}
	return learning.Lesson{
		ID:                   row.ID,
		ModuleID:             row.ModuleID,
		CourseSlug:           row.CourseSlug,
		Order:                row.Order,
		Title:                row.Title,
		ContentType:          learning.ContentType(row.ContentType),
		ContentText:          row.ContentText.String,
		ContentHTML:          row.ContentHTML.String,
		VideoURL:             row.VideoURL.String,
		VideoDurationMinutes: row.VideoDurationMinutes.Int,
		CoverImageURL:        row.CoverImageURL.String,
		Quiz:                 quiz,
		EstimatedTimeMinutes: row.EstimatedTimeMinutes,
		IsFree:               row.IsFree,
	}, nil
}

func (row progressRow) toProgress() learning.Progress {
	return learning.Progress{
		UserID:           row.UserID,
		LessonID:         row.LessonID,
		Status:           learning.ProgressStatus(row.Status),
		StartedAt:        row.StartedAt.Time.UTC(),
		CompletedAt:      row.CompletedAt.Time.UTC(),
		TimeSpentSeconds: row.TimeSpentSeconds,
		QuizScore:        row.QuizScore.Int,
		QuizAttempts:     row.QuizAttempts,
		QuizPassed:       row.QuizPassed,
		LastAccessedAt:   row.LastAccessedAt.UTC(),
	}
}

type learningRepository struct {
	repository
}

var _ learning.Repository = (*learningRepository)(nil) // interface compliance check

func NewLearningRepository(exec core.DBExecutor) learning.Repository {
	return &learningRepository{repository{exec: exec}}
}

func (repo learningRepository) QueryModules(ctx context.Context, slug string, exec ...core.DBExecutor) ([]learning.Module, error) {
	exe := repo.getExec(exec)

	var modRows []moduleRow
	err := sqlx.SelectContext(ctx, exe, &modRows,
		`SELECT id, course_slug, "order", title, description FROM course_module WHERE course_slug = $1 ORDER BY "order"`,
		slug)
	if err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}

	var lsnRows []lessonRow
	err = sqlx.SelectContext(ctx, exe, &lsnRows,
		`SELECT `+lessonColumns+` FROM lesson l JOIN course_module m ON m.id = l.module_id
		WHERE m.course_slug = $1 ORDER BY m."order", l."order"`,
		slug)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}

	lessons := make(map[int][]learning.Lesson, len(modRows)) // {module_id: lessons}
	for _, row := range lsnRows {
		lsn, err := row.toLesson()
		if err != nil {
			return nil, err
		}
		lessons[lsn.ModuleID] = append(lessons[lsn.ModuleID], lsn)
	}

	mods := make([]learning.Module, 0, len(modRows))
	for _, row := range modRows {
		mod := learning.Module{
			ID:          row.ID,
			CourseSlug:  row.CourseSlug,
			Order:       row.Order,
			Title:       row.Title,
			Description: row.Description,
			Lessons:     lessons[row.ID],
		}
		if mod.Lessons == nil {
			mod.Lessons = make([]learning.Lesson, 0)
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

func (repo learningRepository) GetLesson(ctx context.Context, id int, exec ...core.DBExecutor) (learning.Lesson, error) {
	var row lessonRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		`SELECT `+lessonColumns+` FROM lesson l JOIN course_module m ON m.id = l.module_id WHERE l.id = $1`, id)
	if err != nil {
		return learning.Lesson{}, trapNoRowsErr(err, learning.ErrLessonNotFound, "getting lesson")
	}
	return row.toLesson()
}

func (repo learningRepository) ReplaceCourseContent(ctx context.Context, slug string, mods []learning.Module, exec ...core.DBExecutor) ([]learning.Module, error) {
	exe := repo.getExec(exec)

	modOrders := make([]int64, 0, len(mods))
	for _, mod := range mods {
		var modID int
		err := sqlx.GetContext(ctx, exe, &modID,
			`INSERT INTO course_module (course_slug, "order", title, description) VALUES ($1, $2, $3, $4)
			ON CONFLICT (course_slug, "order") DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description
			RETURNING id`,
			slug, mod.Order, mod.Title, mod.Description)
		if err != nil {
			return nil, errors.Wrapf(err, "upserting module %d", mod.Order)
		}
		modOrders = append(modOrders, int64(mod.Order))

		lsnOrders := make([]int64, 0, len(mod.Lessons))
		for _, lsn := range mod.Lessons {
			quiz, err := marshalQuiz(lsn.Quiz)
			if err != nil {
				return nil, err
			}
			_, err = exe.ExecContext(ctx,
				`INSERT INTO lesson (module_id, "order", title, content_type, content_text, content_html, video_url,
				video_duration_minutes, cover_image_url, quiz, estimated_time_minutes, is_free)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (module_id, "order") DO UPDATE SET title = EXCLUDED.title,
				content_type = EXCLUDED.content_type, content_text = EXCLUDED.content_text,
				content_html = EXCLUDED.content_html, video_url = EXCLUDED.video_url,
				video_duration_minutes = EXCLUDED.video_duration_minutes, cover_image_url = EXCLUDED.cover_image_url,
				quiz = EXCLUDED.quiz, estimated_time_minutes = EXCLUDED.estimated_time_minutes, is_free = EXCLUDED.is_free`,
				modID, lsn.Order, lsn.Title, string(lsn.ContentType), nullString(lsn.ContentText),
				nullString(lsn.ContentHTML), nullString(lsn.VideoURL), nullInt(lsn.VideoDurationMinutes),
				nullString(lsn.CoverImageURL), quiz, lsn.EstimatedTimeMinutes, lsn.IsFree)
			if err != nil {
				return nil, errors.Wrapf(err, "upserting lesson %d.%d", mod.Order, lsn.Order)
			}
			lsnOrders = append(lsnOrders, int64(lsn.Order))
		}

		if _, err = exe.ExecContext(ctx,
			`DELETE FROM lesson WHERE module_id = $1 AND NOT ("order" = ANY($2))`,
			modID, pq.Array(lsnOrders)); err != nil {
			return nil, errors.Wrap(err, "deleting removed lessons")
		}
	}

	// lessons go with their module (ON DELETE CASCADE)
	if _, err := exe.ExecContext(ctx,
		`DELETE FROM course_module WHERE course_slug = $1 AND NOT ("order" = ANY($2))`,
		slug, pq.Array(modOrders)); err != nil {
		return nil, errors.Wrap(err, "deleting removed modules")
	}

	return repo.QueryModules(ctx, slug, exe)
}

func (repo learningRepository) GetProgress(ctx context.Context, userID string, lessonID int, exec ...core.DBExecutor) (learning.Progress, error) {
	var row progressRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		"SELECT * FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2", userID, lessonID)
	if err != nil {
		if err = trapNoRowsErr(err, nil, "getting progress"); err != nil {
			return learning.Progress{}, err
		}
		return learning.Progress{UserID: userID, LessonID: lessonID, Status: learning.StatusNotStarted}, nil
	}
	return row.toProgress(), nil
}

func (repo learningRepository) QueryProgress(ctx context.Context, userID, slug string, exec ...core.DBExecutor) ([]learning.Progress, error) {
	var rows []progressRow
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows,
		`SELECT p.* FROM lesson_progress p
		JOIN lesson l ON l.id = p.lesson_id
		JOIN course_module m ON m.id = l.module_id
		WHERE p.user_id = $1 AND m.course_slug = $2
		ORDER BY p.lesson_id`,
		userID, slug)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	progs := make([]learning.Progress, 0, len(rows))
	for _, row := range rows {
		progs = append(progs, row.toProgress())
	}
	return progs, nil
}

func (repo learningRepository) SaveProgress(ctx context.Context, p learning.Progress, exec ...core.DBExecutor) (learning.Progress, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO lesson_progress (user_id, lesson_id, status, started_at, completed_at, time_spent_seconds,
		quiz_score, quiz_attempts, quiz_passed, last_accessed_at)
		VALUES (:user_id, :lesson_id, :status, :started_at, :completed_at, :time_spent_seconds,
		:quiz_score, :quiz_attempts, :quiz_passed, :last_accessed_at)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET status = EXCLUDED.status, started_at = EXCLUDED.started_at,
		completed_at = EXCLUDED.completed_at, time_spent_seconds = EXCLUDED.time_spent_seconds,
		quiz_score = EXCLUDED.quiz_score, quiz_attempts = EXCLUDED.quiz_attempts,
		quiz_passed = EXCLUDED.quiz_passed, last_accessed_at = EXCLUDED.last_accessed_at`,
		progressRow{
			UserID:           p.UserID,
			LessonID:         p.LessonID,
			Status:           string(p.Status),
			StartedAt:        nullTime(p.StartedAt),
			CompletedAt:      nullTime(p.CompletedAt),
			TimeSpentSeconds: p.TimeSpentSeconds,
			QuizScore:        null.NewInt(p.QuizScore, p.QuizAttempts > 0),
			QuizAttempts:     p.QuizAttempts,
			QuizPassed:       p.QuizPassed,
			LastAccessedAt:   p.LastAccessedAt.UTC(),
		})
	if err != nil {
		return learning.Progress{}, errors.Wrap(err, "saving progress")
	}
	return p, nil
}
