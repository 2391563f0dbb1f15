package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/klabu/core"
	"github.com/trezcool/klabu/core/member"
)

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	core.InitValidators(validate, translator)
	member.InitValidators(validate, translator)
	return validate, translator
}

func NewConfig() *core.Config {
	return &core.Config{
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Klabu",
		SecretKey:        "s3cr3t-t3st-k3y",
		WorkDir:          core.Getwd(),
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Klabu", Address: "noreply@localhost"},
		Server: core.ServerConfig{
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Mail: core.MailConfig{
			Backend:    "console",
			BatchSize:  100,
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		},
		Member: core.MemberConfig{
			PictureUploadWindow:   72 * time.Hour,
			PictureReminderWindow: 24 * time.Hour,
		},
	}
}

func CreateDepartment(
	t *testing.T,
	repo member.DepartmentRepository,
	name, slug, leaderID string,
) member.Department {
	t.Helper()

	dept, err := repo.CreateDepartment(context.Background(), member.Department{
		Name:     name,
		Slug:     slug,
		LeaderID: leaderID,
	})
	if err != nil {
		t.Fatalf("CreateDepartment() failed: %v", err)
	}
	return dept
}

func CreateMember(
	t *testing.T,
	repo member.Repository,
	regNum, name, email, deptID string,
	status member.Status,
	isStaff bool,
	registeredAt ...time.Time,
) member.Member {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(registeredAt) > 0 {
		tstamp = registeredAt[0].UTC()
	}
	mbr := member.Member{
		RegNumber:    regNum,
		FullName:     name,
		Email:        email,
		DepartmentID: deptID,
		Status:       status,
		IsStaff:      isStaff,
		RegisteredAt: tstamp,
		UpdatedAt:    tstamp,
	}
	if status == member.StatusApproved {
		approvedAt := tstamp.Add(time.Minute)
		mbr.ApprovedAt = &approvedAt
	}
	if err := mbr.SetPassword("Secr3t.Pa55"); err != nil {
		t.Fatalf("CreateMember() failed: %v", err)
	}
	mbr, err := repo.CreateMember(context.Background(), mbr)
	if err != nil {
		t.Fatalf("CreateMember() failed: %v", err)
	}
	return mbr
}
