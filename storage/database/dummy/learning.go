package dummydb

import (
	"context"
	"sort"
	"sync"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/learning"
)

type (
	contentTable struct {
		sync.RWMutex
		modules  map[int]*learning.Module // without Lessons
		lessons  map[int]*learning.Lesson
		moduleID int
		lessonID int
	}

	progressKey struct {
		userID   string
		lessonID int
	}

	progressTable struct {
		sync.RWMutex
		table map[progressKey]*learning.Progress
	}
)

type learningRepository struct {
	content  *contentTable
	progress *progressTable
}

var _ learning.Repository = (*learningRepository)(nil) // interface compliance check

func NewLearningRepository(db *DB) learning.Repository {
	return &learningRepository{content: db.content, progress: db.progress}
}

func (repo *learningRepository) queryModules(slug string) []learning.Module {
	mods := make([]learning.Module, 0)
	for _, m := range repo.content.modules {
		if m.CourseSlug != slug {
			continue
		}
		mod := *m
		mod.Lessons = make([]learning.Lesson, 0)
		for _, l := range repo.content.lessons {
			if l.ModuleID == mod.ID {
				mod.Lessons = append(mod.Lessons, *l)
			}
		}
		sort.Slice(mod.Lessons, func(i, j int) bool { return mod.Lessons[i].Order < mod.Lessons[j].Order })
		mods = append(mods, mod)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Order < mods[j].Order })
	return mods
}

func (repo *learningRepository) QueryModules(_ context.Context, slug string, _ ...core.DBExecutor) ([]learning.Module, error) {
	repo.content.RLock()
	defer repo.content.RUnlock()
	return repo.queryModules(slug), nil
}

func (repo *learningRepository) GetLesson(_ context.Context, id int, _ ...core.DBExecutor) (learning.Lesson, error) {
	repo.content.RLock()
	defer repo.content.RUnlock()

	if l, ok := repo.content.lessons[id]; ok {
		return *l, nil
	}
	return learning.Lesson{}, learning.ErrLessonNotFound
}

func (repo *learningRepository) ReplaceCourseContent(_ context.Context, slug string, mods []learning.Module, _ ...core.DBExecutor) ([]learning.Module, error) {
	repo.content.Lock()
	defer repo.content.Unlock()

	existingMods := make(map[int]*learning.Module) // {order: module}
	for _, m := range repo.content.modules {
		if m.CourseSlug == slug {
			existingMods[m.Order] = m
		}
	}

	keptMods := make(map[int]bool, len(mods))
	for _, mod := range mods {
		stored, ok := existingMods[mod.Order]
		if !ok {
			repo.content.moduleID++
			stored = &learning.Module{ID: repo.content.moduleID}
			repo.content.modules[stored.ID] = stored
		}
		stored.CourseSlug = slug
		stored.Order = mod.Order
		stored.Title = mod.Title
		stored.Description = mod.Description
		keptMods[stored.ID] = true

		existingLsns := make(map[int]*learning.Lesson) // {order: lesson}
		for _, l := range repo.content.lessons {
			if l.ModuleID == stored.ID {
				existingLsns[l.Order] = l
			}
		}
		keptLsns := make(map[int]bool, len(mod.Lessons))
		for _, lsn := range mod.Lessons {
			var id int
			if l, ok := existingLsns[lsn.Order]; ok {
				id = l.ID
			} else {
				repo.content.lessonID++
				id = repo.content.lessonID
			}
			lsn := lsn
			lsn.ID = id
			lsn.ModuleID = stored.ID
			lsn.CourseSlug = slug
			repo.content.lessons[id] = &lsn
			keptLsns[id] = true
		}
		for _, l := range existingLsns {
			if !keptLsns[l.ID] {
				delete(repo.content.lessons, l.ID)
			}
		}
	}

	for _, m := range existingMods {
		if keptMods[m.ID] {
			continue
		}
		for id, l := range repo.content.lessons {
			if l.ModuleID == m.ID {
				delete(repo.content.lessons, id)
			}
		}
		delete(repo.content.modules, m.ID)
	}

	return repo.queryModules(slug), nil
}

func (repo *learningRepository) GetProgress(_ context.Context, userID string, lessonID int, _ ...core.DBExecutor) (learning.Progress, error) {
	repo.progress.RLock()
	defer repo.progress.RUnlock()

	if p, ok := repo.progress.table[progressKey{userID, lessonID}]; ok {
		return *p, nil
	}
	return learning.Progress{UserID: userID, LessonID: lessonID, Status: learning.StatusNotStarted}, nil
}

func (repo *learningRepository) QueryProgress(_ context.Context, userID, slug string, _ ...core.DBExecutor) ([]learning.Progress, error) {
	repo.content.RLock()
	lessonIDs := make(map[int]bool)
	for _, l := range repo.content.lessons {
		if l.CourseSlug == slug {
			lessonIDs[l.ID] = true
		}
	}
	repo.content.RUnlock()

	repo.progress.RLock()
	defer repo.progress.RUnlock()

	progs := make([]learning.Progress, 0)
	for key, p := range repo.progress.table {
		if key.userID == userID && lessonIDs[key.lessonID] {
			progs = append(progs, *p)
		}
	}
	sort.Slice(progs, func(i, j int) bool { return progs[i].LessonID < progs[j].LessonID })
	return progs, nil
}

func (repo *learningRepository) SaveProgress(_ context.Context, p learning.Progress, _ ...core.DBExecutor) (learning.Progress, error) {
	repo.progress.Lock()
	defer repo.progress.Unlock()

	repo.progress.table[progressKey{p.UserID, p.LessonID}] = &p
	return p, nil
}
