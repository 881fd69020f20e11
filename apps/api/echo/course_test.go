package echoapi_test

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/recedu/reconline/core/course"
	"github.com/recedu/reconline/core/user"
)

func Test_courseApi_create(t *testing.T) {
	env := setup(t)

	student := env.createUser(t, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	teacher := env.createUser(t, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)

	body := marchallObj(t, course.NewCourse{Code: "go101", Title: "Intro to Go", TeacherID: teacher.ID})

	t.Run("students may not create courses", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", env.getToken(t, student), body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("teacher creates a course", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", env.getToken(t, teacher), body)
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var crs course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &crs); err != nil {
			t.Fatalf("unmarshalling Course failed, %v", err)
		}
		if crs.ID == 0 || crs.Code != "go101" || crs.IsPublished {
			t.Errorf("unexpected course %+v", crs)
		}
	})

	t.Run("duplicate code is rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", env.getToken(t, teacher), body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": course.ErrCodeExists.Error()}),
		}, rec)
	})
}

func Test_courseApi_query(t *testing.T) {
	env := setup(t)

	student := env.createUser(t, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	teacher := env.createUser(t, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)

	published := env.createCourse(t, "go101", "Intro to Go", teacher.ID, true, false, 0)
	draft := env.createCourse(t, "go201", "Advanced Go", teacher.ID, false, false, 0)

	tests := []httpTest{
		{
			name: "students only see the catalog", token: env.getToken(t, student),
			wantCode: http.StatusOK, wantData: marchallList(t, published),
		},
		{
			name: "staff see drafts too", token: env.getToken(t, teacher),
			wantCode: http.StatusOK, wantData: marchallList(t, published, draft),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/courses", tt.token)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_enrollmentFlow(t *testing.T) {
	env := setup(t)

	student := env.createUser(t, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	teacher := env.createUser(t, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	admin := env.createUser(t, "Admin", "oldmin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	draft := env.createCourse(t, "go101", "Intro to Go", teacher.ID, false, false, 0)
	studentToken := env.getToken(t, student)

	applyPath := "/v1/courses/" + strconv.Itoa(draft.ID) + "/apply"

	t.Run("draft course rejects applications", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, applyPath, studentToken)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotPublished.Error()}),
		}, rec)
	})

	t.Run("teacher publishes", func(t *testing.T) {
		isPublished := true
		body := marchallObj(t, course.UpdateCourse{IsPublished: &isPublished})
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+strconv.Itoa(draft.ID), env.getToken(t, teacher), body)
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	var enr course.Enrollment
	t.Run("student applies", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, applyPath, studentToken)
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &enr); err != nil {
			t.Fatalf("unmarshalling Enrollment failed, %v", err)
		}
		if enr.Status != course.StatusPending || enr.StudentID != student.ID {
			t.Errorf("unexpected enrollment %+v", enr)
		}
	})

	approvePath := "/v1/enrollments/" + strconv.Itoa(enr.ID) + "/approve"

	t.Run("teachers may not decide", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, approvePath, env.getToken(t, teacher))
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: course.ErrReviewForbidden.Error()}),
		}, rec)
	})

	t.Run("admin approves", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, approvePath, env.getToken(t, admin))
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got course.Enrollment
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling Enrollment failed, %v", err)
		}
		if got.Status != course.StatusApproved || got.DecidedBy != admin.ID {
			t.Errorf("unexpected enrollment %+v", got)
		}
	})

	t.Run("double application is rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, applyPath, studentToken)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: course.ErrAlreadyEnrolled.Error()}),
		}, rec)
	})

	t.Run("student withdraws", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+strconv.Itoa(draft.ID)+"/withdraw", studentToken)
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got course.Enrollment
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling Enrollment failed, %v", err)
		}
		if got.Status != course.StatusWithdrawn {
			t.Errorf("Status = %q, want %q", got.Status, course.StatusWithdrawn)
		}
	})
}

func Test_courseApi_capacity(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	first := env.createUser(t, "First", "first1", "first@test.cd", "", []string{user.RoleStudent}, true)
	second := env.createUser(t, "Second", "second1", "second@test.cd", "", []string{user.RoleStudent}, true)

	// one seat, auto approved on application
	crs := env.createCourse(t, "go101", "Intro to Go", teacher.ID, true, true, 1)
	applyPath := "/v1/courses/" + strconv.Itoa(crs.ID) + "/apply"

	req, rec := newAuthRequest(http.MethodPost, applyPath, env.getToken(t, first))
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var enr course.Enrollment
	if err := json.Unmarshal(rec.Body.Bytes(), &enr); err != nil {
		t.Fatalf("unmarshalling Enrollment failed, %v", err)
	}
	if enr.Status != course.StatusApproved {
		t.Errorf("Status = %q, want %q", enr.Status, course.StatusApproved)
	}

	req, rec = newAuthRequest(http.MethodPost, applyPath, env.getToken(t, second))
	env.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: course.ErrCourseFull.Error()}),
	}, rec)
}
