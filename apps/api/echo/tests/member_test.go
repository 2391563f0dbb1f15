package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/klabu/core/member"
	testutil "github.com/trezcool/klabu/tests"
)

const testPassword = "Secr3t.Pa55" // what testutil.CreateMember sets

func registrationBody(t *testing.T, regNum, name, email, deptID string) []byte {
	return marchallObj(t, map[string]string{
		"reg_number":       regNum,
		"full_name":        name,
		"email":            email,
		"department_id":    deptID,
		"password":         "Xk9#mQ2$vZ",
		"password_confirm": "Xk9#mQ2$vZ",
	})
}

func Test_memberApi_register(t *testing.T) {
	app := setup(t)

	dept := testutil.CreateDepartment(t, deptRepo, "Programming", "programming", "")
	testutil.CreateMember(t, mbrRepo, "T/DEG/2024/001", "Taken Member", "taken@test.cd", dept.ID, member.StatusApproved, false)

	tests := []httpTest{
		{
			name: "reg number is normalized", path: "/v1/members/register",
			body: registrationBody(t, " t/deg/2025/100 ", "Asha Mwinyi", "asha@test.cd", dept.ID), wantCode: http.StatusCreated,
		},
		{
			name: "full name required", path: "/v1/members/register",
			body:     registrationBody(t, "T/DEG/2025/101", "", "juma@test.cd", dept.ID),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"full_name": "this field is required"}),
		},
		{
			name: "invalid reg number format", path: "/v1/members/register",
			body:     registrationBody(t, "DEG-2025-102", "Juma Bakari", "juma@test.cd", dept.ID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"reg_number": "invalid registration number; expected format: T/DEG/2025/001"}),
		},
		{
			name: "duplicate reg number", path: "/v1/members/register",
			body:     registrationBody(t, "T/DEG/2024/001", "Juma Bakari", "juma@test.cd", dept.ID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"reg_number": "a member with this registration number already exists"}),
		},
		{
			name: "duplicate email", path: "/v1/members/register",
			body:     registrationBody(t, "T/DEG/2025/102", "Juma Bakari", "taken@test.cd", dept.ID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a member with this email already exists"}),
		},
		{
			name: "unknown department", path: "/v1/members/register",
			body:     registrationBody(t, "T/DEG/2025/103", "Juma Bakari", "juma@test.cd", "no-such-dept"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"department_id": "department not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport.Reset()
			req, rec := newRequest(http.MethodPost, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body = %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				mbr := unmarshalMember(t, rec.Body.Bytes())
				if mbr.ID == "" {
					t.Error("expected a member ID")
				}
				if mbr.RegNumber != "T/DEG/2025/100" {
					t.Errorf("reg_number = %q; want %q", mbr.RegNumber, "T/DEG/2025/100")
				}
				if !mbr.IsPending() {
					t.Errorf("status = %q; want %q", mbr.Status, member.StatusPending)
				}

				// registrant confirmation goes out first
				msgs := transport.SentMessages()
				if len(msgs) == 0 {
					t.Fatal("expected a registration confirmation email")
				}
				if got := msgs[0].To[0].Address; got != "asha@test.cd" {
					t.Errorf("confirmation recipient = %q; want %q", got, "asha@test.cd")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("password mismatch", func(t *testing.T) {
		body := marchallObj(t, map[string]string{
			"reg_number":       "T/DEG/2025/104",
			"full_name":        "Juma Bakari",
			"email":            "juma@test.cd",
			"department_id":    dept.ID,
			"password":         "Xk9#mQ2$vZ",
			"password_confirm": "nope",
		})
		req, rec := newRequest(http.MethodPost, "/v1/members/register", body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusBadRequest)
		}
		var fldErrs map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &fldErrs); err != nil {
			t.Fatalf("unmarshalling field errors: %v", err)
		}
		if _, ok := fldErrs["password_confirm"]; !ok {
			t.Errorf("expected a password_confirm error; got %v", fldErrs)
		}
	})
}

func Test_memberApi_login(t *testing.T) {
	app := setup(t)

	dept := testutil.CreateDepartment(t, deptRepo, "Programming", "programming", "")
	approved := testutil.CreateMember(t, mbrRepo, "T/DEG/2025/001", "Asha Mwinyi", "asha@test.cd", dept.ID, member.StatusApproved, false)
	testutil.CreateMember(t, mbrRepo, "T/DEG/2025/002", "Neno Rejected", "neno@test.cd", dept.ID, member.StatusRejected, false)

	loginBody := func(uname, pwd string) []byte {
		return marchallObj(t, map[string]string{"username": uname, "password": pwd})
	}

	tests := []httpTest{
		{name: "via reg number", path: "/v1/members/login", body: loginBody(approved.RegNumber, testPassword), wantCode: http.StatusOK},
		{name: "via email", path: "/v1/members/login", body: loginBody(approved.Email, testPassword), wantCode: http.StatusOK},
		{
			name: "wrong password", path: "/v1/members/login", body: loginBody(approved.RegNumber, "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "unknown member", path: "/v1/members/login", body: loginBody("T/DEG/2025/999", testPassword),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "rejected member is denied", path: "/v1/members/login", body: loginBody("neno@test.cd", testPassword),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "registration was rejected"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body = %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var resp struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling login response: %v", err)
				}
				if resp.Token == "" {
					t.Error("expected a token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_memberApi_query(t *testing.T) {
	app := setup(t)

	dept := testutil.CreateDepartment(t, deptRepo, "Programming", "programming", "")
	staff := testutil.CreateMember(t, mbrRepo, "T/DEG/2020/001", "Staff Member", "staff@test.cd", dept.ID, member.StatusApproved, true)
	approved := testutil.CreateMember(t, mbrRepo, "T/DEG/2025/001", "Asha Mwinyi", "asha@test.cd", dept.ID, member.StatusApproved, false)
	pending := testutil.CreateMember(t, mbrRepo, "T/DEG/2025/002", "Juma Bakari", "juma@test.cd", dept.ID, member.StatusPending, false)

	staffToken := getToken(t, staff)

	tests := []httpTest{
		{name: "auth required", path: "/v1/members", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "staff required", path: "/v1/members", token: getToken(t, approved),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "get all", path: "/v1/members", token: staffToken,
			wantCode: http.StatusOK, wantData: marchallList(t, staff, approved, pending),
		},
		{
			name: "status=pending", path: "/v1/members?status=pending", token: staffToken,
			wantCode: http.StatusOK, wantData: marchallList(t, pending),
		},
		{
			name: "search", path: "/v1/members?search=asha", token: staffToken,
			wantCode: http.StatusOK, wantData: marchallList(t, approved),
		},
		{
			name: "search (unknown)", path: "/v1/members?search=lol", token: staffToken,
			wantCode: http.StatusOK, wantData: marchallList(t),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_memberApi_retrieve(t *testing.T) {
	app := setup(t)

	dept := testutil.CreateDepartment(t, deptRepo, "Programming", "programming", "")
	staff := testutil.CreateMember(t, mbrRepo, "T/DEG/2020/001", "Staff Member", "staff@test.cd", dept.ID, member.StatusApproved, true)
	approved := testutil.CreateMember(t, mbrRepo, "T/DEG/2025/001", "Asha Mwinyi", "asha@test.cd", dept.ID, member.StatusApproved, false)
	other := testutil.CreateMember(t, mbrRepo, "T/DEG/2025/002", "Juma Bakari", "juma@test.cd", dept.ID, member.StatusApproved, false)

	tests := []httpTest{
		{
			name: "own detail", path: "/v1/members/" + approved.ID, token: getToken(t, approved),
			wantCode: http.StatusOK, wantData: marchallObj(t, approved),
		},
		{
			name: "staff can see anyone", path: "/v1/members/" + approved.ID, token: getToken(t, staff),
			wantCode: http.StatusOK, wantData: marchallObj(t, approved),
		},
		{
			name: "someone else's detail", path: "/v1/members/" + other.ID, token: getToken(t, approved),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "unknown member", path: "/v1/members/no-such-id", token: getToken(t, staff),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_memberApi_moderation(t *testing.T) {
	app := setup(t)

	leader := testutil.CreateMember(t, mbrRepo, "T/DEG/2021/001", "Leader Member", "leader@test.cd", "", member.StatusApproved, false)
	dept := testutil.CreateDepartment(t, deptRepo, "Programming", "programming", leader.ID)
	otherDept := testutil.CreateDepartment(t, deptRepo, "Networking", "networking", "")
	staff := testutil.CreateMember(t, mbrRepo, "T/DEG/2020/001", "Staff Member", "staff@test.cd", dept.ID, member.StatusApproved, true)

	pending1 := testutil.CreateMember(t, mbrRepo, "T/DEG/2025/001", "Asha Mwinyi", "asha@test.cd", dept.ID, member.StatusPending, false)
	pending2 := testutil.CreateMember(t, mbrRepo, "T/DEG/2025/002", "Juma Bakari", "juma@test.cd", dept.ID, member.StatusPending, false)
	pendingOther := testutil.CreateMember(t, mbrRepo, "T/DEG/2025/003", "Neno Kito", "neno@test.cd", otherDept.ID, member.StatusPending, false)

	approvePath := func(id string) string { return "/v1/members/" + id + "/approve" }
	rejectPath := func(id string) string { return "/v1/members/" + id + "/reject" }

	t.Run("staff approves", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, approvePath(pending1.ID), getToken(t, staff))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		mbr := unmarshalMember(t, rec.Body.Bytes())
		if !mbr.IsApproved() || mbr.ApprovedAt == nil {
			t.Errorf("expected an approved member; got status %q", mbr.Status)
		}
	})

	t.Run("approval is terminal", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "member registration has already been decided"}),
		}
		req, rec := newAuthRequest(http.MethodPost, approvePath(pending1.ID), getToken(t, staff))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("own department leader rejects", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"reason": "incomplete application"})
		req, rec := newAuthRequest(http.MethodPost, rejectPath(pending2.ID), getToken(t, leader), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		mbr := unmarshalMember(t, rec.Body.Bytes())
		if !mbr.IsRejected() {
			t.Errorf("expected a rejected member; got status %q", mbr.Status)
		}
		if mbr.ApprovedAt != nil {
			t.Error("rejected member must not have an approval timestamp")
		}
	})

	t.Run("leader of another department is denied", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}
		req, rec := newAuthRequest(http.MethodPost, approvePath(pendingOther.ID), getToken(t, leader))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("regular member is denied", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}
		req, rec := newAuthRequest(http.MethodPost, approvePath(pendingOther.ID), getToken(t, pending2))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown member", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "member not found"}),
		}
		req, rec := newAuthRequest(http.MethodPost, approvePath("no-such-id"), getToken(t, staff))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("auth required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		req, rec := newRequest(http.MethodPost, approvePath(pendingOther.ID))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_memberApi_uploadPicture(t *testing.T) {
	app := setup(t)
	conf.WorkDir = t.TempDir() // keep uploads out of the tree; templates are already cached

	dept := testutil.CreateDepartment(t, deptRepo, "Programming", "programming", "")
	approved := testutil.CreateMember(t, mbrRepo, "T/DEG/2025/001", "Asha Mwinyi", "asha@test.cd", dept.ID, member.StatusApproved, false)
	token := getToken(t, approved)

	t.Run("upload", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/members/picture", token, "picture", "me.png", []byte("fake-png-bytes"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		mbr := unmarshalMember(t, rec.Body.Bytes())
		if !mbr.HasPicture() {
			t.Error("expected picture_uploaded_at to be set")
		}
	})

	t.Run("bad format", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"picture": "only JPEG and PNG pictures are allowed"}),
		}
		req, rec := newUploadRequest(t, "/v1/members/picture", token, "picture", "me.gif", []byte("fake-gif-bytes"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("missing file", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"picture": "a picture file is required"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/members/picture", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_memberApi_pictureDeadline(t *testing.T) {
	app := setup(t)
	conf.WorkDir = t.TempDir()

	dept := testutil.CreateDepartment(t, deptRepo, "Programming", "programming", "")
	// approved long ago, never uploaded a picture
	overdue := testutil.CreateMember(
		t, mbrRepo, "T/DEG/2024/001", "Zamani Overdue", "zamani@test.cd", dept.ID, member.StatusApproved, false,
		time.Now().Add(-80*time.Hour),
	)
	token := getToken(t, overdue)

	t.Run("locked out", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "profile picture upload deadline has passed"}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/members/"+overdue.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("token refresh is exempt", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/members/token-refresh", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("picture upload is exempt and restores access", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/members/picture", token, "picture", "me.jpg", []byte("fake-jpg-bytes"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/members/"+overdue.ID, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})
}

func Test_departmentApi_query(t *testing.T) {
	app := setup(t)

	prog := testutil.CreateDepartment(t, deptRepo, "Programming", "programming", "")
	net := testutil.CreateDepartment(t, deptRepo, "Networking", "networking", "")

	tests := []httpTest{
		{name: "departments are public", path: "/v1/departments", wantCode: http.StatusOK, wantData: marchallList(t, net, prog)},
		{name: "courses are public", path: "/v1/courses", wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
