package learning

import (
	"time"

	"github.com/neuromagic/academy/core/catalog"
)

type ContentType string

const (
	ContentText  ContentType = "text"
	ContentVideo ContentType = "video"
	ContentQuiz  ContentType = "quiz"
)

func (ct ContentType) IsValid() bool {
	switch ct {
	case ContentText, ContentVideo, ContentQuiz:
		return true
	}
	return false
}

const (
	DefaultEstimatedTimeMinutes = 15
	QuizPassingScore            = 70
	MaxTrackedSeconds           = 3600
)

type Module struct {
	ID          int      `json:"id"`
	CourseSlug  string   `json:"course_slug"`
	Order       int      `json:"order"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Lessons     []Lesson `json:"lessons,omitempty"`
}

type Lesson struct {
	ID                   int         `json:"id"`
	ModuleID             int         `json:"module_id"`
	CourseSlug           string      `json:"course_slug"`
	Order                int         `json:"order"`
	Title                string      `json:"title"`
	ContentType          ContentType `json:"content_type"`
	ContentText          string      `json:"content_text,omitempty"` // markdown
	ContentHTML          string      `json:"content_html,omitempty"` // sanitized
	VideoURL             string      `json:"video_url,omitempty"`
	VideoDurationMinutes int         `json:"video_duration_minutes,omitempty"`
	CoverImageURL        string      `json:"cover_image_url,omitempty"`
	Quiz                 *Quiz       `json:"quiz,omitempty"`
	EstimatedTimeMinutes int         `json:"estimated_time_minutes"`
	IsFree               bool        `json:"is_free"`
}

func (l Lesson) HasQuiz() bool {
	return l.Quiz != nil && len(l.Quiz.Questions) > 0
}

// Quiz is served to learners without its answer key.
type Quiz struct {
	Questions []Question `json:"questions"`
}

type Question struct {
	Question    string   `json:"question"`
	Answers     []string `json:"answers"`
	Correct     int      `json:"-"`
	Explanation string   `json:"-"`
}

type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
)

type Progress struct {
	UserID           string         `json:"-"`
	LessonID         int            `json:"lesson_id"`
	Status           ProgressStatus `json:"status"`
	StartedAt        time.Time      `json:"started_at"`   // UTC
	CompletedAt      time.Time      `json:"completed_at"` // UTC
	TimeSpentSeconds int            `json:"time_spent_seconds"`
	QuizScore        int            `json:"quiz_score"` // best score, 0-100
	QuizAttempts     int            `json:"quiz_attempts"`
	QuizPassed       bool           `json:"quiz_passed"`
	LastAccessedAt   time.Time      `json:"last_accessed_at"` // UTC
}

func newProgress(userID string, lessonID int) Progress {
	return Progress{UserID: userID, LessonID: lessonID, Status: StatusNotStarted}
}

func (p Progress) IsCompleted() bool { return p.Status == StatusCompleted }

// LessonDetail is an opened lesson with the learner's progress and its neighbours.
type LessonDetail struct {
	Lesson       Lesson   `json:"lesson"`
	Progress     Progress `json:"progress"`
	PrevLessonID int      `json:"prev_lesson_id,omitempty"`
	NextLessonID int      `json:"next_lesson_id,omitempty"`
}

type LessonOutline struct {
	ID                   int            `json:"id"`
	Order                int            `json:"order"`
	Title                string         `json:"title"`
	ContentType          ContentType    `json:"content_type"`
	EstimatedTimeMinutes int            `json:"estimated_time_minutes"`
	VideoDurationMinutes int            `json:"video_duration_minutes,omitempty"`
	HasQuiz              bool           `json:"has_quiz"`
	IsFree               bool           `json:"is_free"`
	Locked               bool           `json:"locked"`
	Status               ProgressStatus `json:"status"`
	QuizPassed           bool           `json:"quiz_passed"`
}

type ModuleOutline struct {
	ID          int             `json:"id"`
	Order       int             `json:"order"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Lessons     []LessonOutline `json:"lessons"`
}

type Outline struct {
	Course   catalog.Course  `json:"course"`
	Enrolled bool            `json:"enrolled"`
	Modules  []ModuleOutline `json:"modules"`
}

type CourseProgress struct {
	CourseSlug       string  `json:"course_slug"`
	TotalLessons     int     `json:"total_lessons"`
	CompletedLessons int     `json:"completed_lessons"`
	Percent          int     `json:"percent"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
	QuizAverage      float64 `json:"quiz_average"` // over attempted quizzes
	NextLessonID     int     `json:"next_lesson_id,omitempty"`
}

type QuestionFeedback struct {
	Question    string `json:"question"`
	Chosen      int    `json:"chosen"`
	Correct     int    `json:"correct"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
}

type QuizResult struct {
	Score     int                `json:"score"`
	Passed    bool               `json:"passed"`
	BestScore int                `json:"best_score"`
	Attempts  int                `json:"attempts"`
	Feedback  []QuestionFeedback `json:"feedback"`
	Progress  Progress           `json:"progress"`
}
