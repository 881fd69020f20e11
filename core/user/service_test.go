package user_test

import (
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/user"
	dummymail "github.com/recedu/reconline/services/email/dummy"
	inmemdb "github.com/recedu/reconline/storage/database/inmem"
)

func newTestService(t *testing.T) (*user.Service, user.Repository) {
	t.Helper()

	conf := core.NewTestConfig()
	repo := inmemdb.NewUserRepository(inmemdb.NewDB())
	return user.NewService(repo, dummymail.NewService(conf), conf), repo
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)

	usr, err := svc.Create(user.NewUser{
		Name:            "Awesome User",
		Username:        "awesome",
		Email:           "awe@test.cd",
		Password:        "v3ry.s3cret",
		PasswordConfirm: "v3ry.s3cret",
		Roles:           []string{user.RoleStudent},
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	if usr.ID == 0 {
		t.Error("expected an assigned ID")
	}
	if !usr.IsActive {
		t.Error("new users must be active")
	}
	if err := usr.CheckPassword("v3ry.s3cret"); err != nil {
		t.Errorf("CheckPassword() failed, %v", err)
	}

	for _, lookup := range []string{"awesome", "awe@test.cd"} {
		got, err := svc.GetByUsernameOrEmail(lookup)
		if err != nil {
			t.Fatalf("GetByUsernameOrEmail(%q) failed, %v", lookup, err)
		}
		if got.ID != usr.ID {
			t.Errorf("GetByUsernameOrEmail(%q) = %d, want %d", lookup, got.ID, usr.ID)
		}
	}
}

func TestNewUserValidateUniqueness(t *testing.T) {
	svc, _ := newTestService(t)

	validate := validator.New()
	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	if _, err := svc.Create(user.NewUser{
		Name:            "Awesome User",
		Username:        "awesome",
		Email:           "awe@test.cd",
		Password:        "V3ry.s3cret",
		PasswordConfirm: "V3ry.s3cret",
	}); err != nil {
		t.Fatalf("Create() failed, %v", err)
	}

	nu := user.NewUser{
		Name:            "Impostor",
		Username:        "awesome",
		Email:           "other@test.cd",
		Password:        "V3ry.s3cret",
		PasswordConfirm: "V3ry.s3cret",
	}
	err := nu.Validate(validate, svc)
	if err == nil {
		t.Fatal("expected a uniqueness error")
	}
	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("expected *core.ValidationError, got %T", err)
	}
	if len(vErr.Fields) == 0 || vErr.Fields[0].Field != "username" {
		t.Errorf("expected a username field error, got %+v", vErr.Fields)
	}
}

func TestUpdateKeepsUnsetFields(t *testing.T) {
	svc, _ := newTestService(t)

	usr, err := svc.Create(user.NewUser{
		Name:            "Awesome User",
		Username:        "awesome",
		Email:           "awe@test.cd",
		Password:        "v3ry.s3cret",
		PasswordConfirm: "v3ry.s3cret",
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}

	updated, err := svc.Update(usr.ID, user.UpdateUser{Name: "Renamed User"})
	if err != nil {
		t.Fatalf("Update() failed, %v", err)
	}
	if updated.Name != "Renamed User" {
		t.Errorf("Name = %q, want %q", updated.Name, "Renamed User")
	}
	if updated.Username != usr.Username || updated.Email != usr.Email {
		t.Error("unset fields must keep their values")
	}
	if !updated.IsActive {
		t.Error("IsActive must keep its value")
	}

	deactivated := false
	updated, err = svc.Update(usr.ID, user.UpdateUser{IsActive: &deactivated})
	if err != nil {
		t.Fatalf("Update() failed, %v", err)
	}
	if updated.IsActive {
		t.Error("expected a deactivated user")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _ := newTestService(t)
	conf := core.NewTestConfig()

	usr, err := svc.Create(user.NewUser{
		Name:            "Awesome User",
		Email:           "awe@test.cd",
		Password:        "v3ry.s3cret",
		PasswordConfirm: "v3ry.s3cret",
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}

	if err := svc.RequestPasswordReset("unknown@test.cd"); err != user.ErrNotFound {
		t.Errorf("RequestPasswordReset() error = %v, want %v", err, user.ErrNotFound)
	}
	if err := svc.RequestPasswordReset(usr.Email); err != nil {
		t.Fatalf("RequestPasswordReset() failed, %v", err)
	}

	token, err := user.MakeToken(conf, usr)
	if err != nil {
		t.Fatalf("MakeToken() failed, %v", err)
	}

	if _, err := svc.ConfirmPasswordReset("bogus-uid", token, "brand.n3w"); err != user.ErrInvalidToken {
		t.Errorf("ConfirmPasswordReset() error = %v, want %v", err, user.ErrInvalidToken)
	}

	updated, err := svc.ConfirmPasswordReset(user.EncodeUID(usr), token, "brand.n3w")
	if err != nil {
		t.Fatalf("ConfirmPasswordReset() failed, %v", err)
	}
	if err := updated.CheckPassword("brand.n3w"); err != nil {
		t.Errorf("CheckPassword() failed after reset, %v", err)
	}

	// the password change invalidates the old token
	if _, err := svc.ConfirmPasswordReset(user.EncodeUID(usr), token, "an0ther.one"); err == nil {
		t.Error("expected a used token to be rejected")
	}
}

func TestSetLastLogin(t *testing.T) {
	svc, _ := newTestService(t)

	usr, err := svc.Create(user.NewUser{
		Name:            "Awesome User",
		Username:        "awesome",
		Password:        "v3ry.s3cret",
		PasswordConfirm: "v3ry.s3cret",
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	if !usr.LastLogin.IsZero() {
		t.Error("expected zero LastLogin on a fresh user")
	}

	usr, err = svc.SetLastLogin(usr)
	if err != nil {
		t.Fatalf("SetLastLogin() failed, %v", err)
	}
	if time.Since(usr.LastLogin) > time.Minute {
		t.Errorf("LastLogin = %v, want recent", usr.LastLogin)
	}
}
