package attendance_test

import (
	"testing"
	"time"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/attendance"
	"github.com/recedu/reconline/core/user"
	inmemdb "github.com/recedu/reconline/storage/database/inmem"
)

func newTestService(t *testing.T) (*attendance.Service, *core.Config) {
	t.Helper()
	conf := core.NewTestConfig()
	return attendance.NewService(inmemdb.NewAttendanceRepository(inmemdb.NewDB()), conf), conf
}

func newTestSession(t *testing.T, svc *attendance.Service, teacher user.User) attendance.Session {
	t.Helper()
	now := time.Now().UTC()
	ses, err := svc.CreateSession(teacher, attendance.NewSession{
		CourseID: 1,
		Title:    "Lecture 1",
		StartsAt: now,
		EndsAt:   now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return ses
}

func TestCheckIn(t *testing.T) {
	svc, _ := newTestService(t)
	teacher := user.User{ID: 1, Roles: []string{user.RoleTeacher}}
	student := user.User{ID: 2, Roles: []string{user.RoleStudent}}
	ses := newTestSession(t, svc, teacher)

	t.Run("students cannot mint tokens", func(t *testing.T) {
		if _, err := svc.MintCheckInToken(ses.ID, student); err != attendance.ErrMintForbidden {
			t.Errorf("MintCheckInToken() error = %v, want %v", err, attendance.ErrMintForbidden)
		}
	})

	token, err := svc.MintCheckInToken(ses.ID, teacher)
	if err != nil {
		t.Fatalf("MintCheckInToken() error = %v", err)
	}

	t.Run("valid token records attendance", func(t *testing.T) {
		rec, err := svc.CheckIn(ses.ID, token, student)
		if err != nil {
			t.Fatalf("CheckIn() error = %v", err)
		}
		if rec.SessionID != ses.ID || rec.StudentID != student.ID {
			t.Errorf("got record %+v", rec)
		}
	})

	t.Run("repeat scan rejected", func(t *testing.T) {
		if _, err := svc.CheckIn(ses.ID, token, student); err != attendance.ErrAlreadyCheckedIn {
			t.Errorf("CheckIn() error = %v, want %v", err, attendance.ErrAlreadyCheckedIn)
		}
	})

	t.Run("token bound to its session", func(t *testing.T) {
		other := newTestSession(t, svc, teacher)
		if _, err := svc.CheckIn(other.ID, token, user.User{ID: 3}); err != attendance.ErrInvalidCheckInToken {
			t.Errorf("CheckIn() error = %v, want %v", err, attendance.ErrInvalidCheckInToken)
		}
	})
}

func TestVerifyCheckInToken(t *testing.T) {
	conf := core.NewTestConfig()

	validToken, err := attendance.MakeCheckInToken(conf, 1)
	if err != nil {
		t.Fatalf("MakeCheckInToken() error = %v", err)
	}

	// mint a token outside the window
	attendance.NowFunc = func() time.Time { return time.Now().Add(-(conf.Attendance.CheckInWindow + time.Minute)) }
	expiredToken, err := attendance.MakeCheckInToken(conf, 1)
	if err != nil {
		t.Fatalf("MakeCheckInToken() error = %v", err)
	}
	attendance.NowFunc = time.Now // reset

	tests := []struct {
		name      string
		sessionID int
		token     string
		wantErr   error
	}{
		{name: "no token", sessionID: 1, wantErr: attendance.ErrInvalidCheckInToken},
		{name: "invalid parts len", sessionID: 1, token: "lol", wantErr: attendance.ErrInvalidCheckInToken},
		{name: "invalid base32", sessionID: 1, token: "hahaha-nonce-sig", wantErr: attendance.ErrInvalidCheckInToken},
		{name: "invalid timestamp", sessionID: 1, token: "NRXWY-nonce-sig", wantErr: attendance.ErrInvalidCheckInToken},
		{name: "wrong session", sessionID: 2, token: validToken, wantErr: attendance.ErrInvalidCheckInToken},
		{name: "window closed", sessionID: 1, token: expiredToken, wantErr: attendance.ErrCheckInWindowClosed},
		{name: "valid token", sessionID: 1, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := attendance.VerifyCheckInToken(conf, tt.sessionID, tt.token); err != tt.wantErr {
				t.Errorf("VerifyCheckInToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
