package inmemdb

import (
	"sort"
	"strings"

	"github.com/recedu/reconline/core/course"
)

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses
}

func (repo *courseRepository) enrollmentQuery() []course.Enrollment {
	enrs := make([]course.Enrollment, 0, len(repo.db.enrollments))
	for _, e := range repo.db.enrollments {
		enrs = append(enrs, *e)
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].ID < enrs[j].ID })
	return enrs
}

func (repo *courseRepository) CheckCodeUniqueness(code string, excludedCourses ...course.Course) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, crs := range repo.query() {
		if crs.Code != code {
			continue
		}
		excluded := false
		for _, excl := range excludedCourses {
			if excl.ID == crs.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs.ID = repo.db.nextID()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryAllCourses() ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *courseRepository) GetCourseByID(id int) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) GetCourseByCode(code string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, crs := range repo.query() {
		if crs.Code == code {
			return crs, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) FilterCourses(filter course.QueryFilter) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	search := strings.ToLower(filter.Search)
	var courses []course.Course
	for _, crs := range repo.query() {
		if search != "" &&
			!strings.Contains(crs.Code, search) &&
			!strings.Contains(strings.ToLower(crs.Title), search) {
			continue
		}
		if filter.TeacherID != 0 && crs.TeacherID != filter.TeacherID {
			continue
		}
		if filter.IsPublished != nil && crs.IsPublished != *filter.IsPublished {
			continue
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(crs course.Course, capacity *int, autoApprove, isPublished *bool) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	origCrs, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if crs.Code != "" {
		origCrs.Code = crs.Code
	}
	if crs.Title != "" {
		origCrs.Title = crs.Title
	}
	if crs.Description != "" {
		origCrs.Description = crs.Description
	}
	if crs.TeacherID != 0 {
		origCrs.TeacherID = crs.TeacherID
	}
	if capacity != nil {
		origCrs.Capacity = *capacity
	}
	if autoApprove != nil {
		origCrs.AutoApprove = *autoApprove
	}
	if isPublished != nil {
		origCrs.IsPublished = *isPublished
	}
	if !crs.UpdatedAt.IsZero() {
		origCrs.UpdatedAt = crs.UpdatedAt
	}
	return *origCrs, nil
}

func (repo *courseRepository) DeleteCoursesByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.courses, id)
	}
	return nil
}

func (repo *courseRepository) CreateEnrollment(enr course.Enrollment) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	enr.ID = repo.db.nextID()
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *courseRepository) GetEnrollmentByID(id int) (course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if enr, ok := repo.db.enrollments[id]; ok {
		return *enr, nil
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) GetEnrollment(courseID, studentID int) (course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	// latest application wins
	var found *course.Enrollment
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID && enr.StudentID == studentID {
			if found == nil || enr.ID > found.ID {
				found = enr
			}
		}
	}
	if found == nil {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	return *found, nil
}

func (repo *courseRepository) QueryEnrollmentsByCourse(courseID int) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var enrs []course.Enrollment
	for _, enr := range repo.enrollmentQuery() {
		if enr.CourseID == courseID {
			enrs = append(enrs, enr)
		}
	}
	return enrs, nil
}

func (repo *courseRepository) QueryEnrollmentsByStudent(studentID int) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var enrs []course.Enrollment
	for _, enr := range repo.enrollmentQuery() {
		if enr.StudentID == studentID {
			enrs = append(enrs, enr)
		}
	}
	return enrs, nil
}

func (repo *courseRepository) CountEnrollments(courseID int, status string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID && enr.Status == status {
			count++
		}
	}
	return count, nil
}

func (repo *courseRepository) UpdateEnrollment(enr course.Enrollment) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.enrollments[enr.ID]
	if !ok {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	*orig = enr
	return enr, nil
}
