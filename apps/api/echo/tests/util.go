package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/klabu/apps/api/echo"
	"github.com/trezcool/klabu/core"
	"github.com/trezcool/klabu/core/member"
	emailsvc "github.com/trezcool/klabu/services/email"
	inmemrepos "github.com/trezcool/klabu/storage/database/inmem"
	testutil "github.com/trezcool/klabu/tests"
)

var (
	conf      *core.Config
	mbrRepo   member.Repository
	deptRepo  member.DepartmentRepository
	transport *emailsvc.RecordingTransport

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func setup(t *testing.T) *Server {
	conf = testutil.NewConfig()
	validate, translator := testutil.NewValidator()
	core.ParseEmailTemplates(conf, core.NewNopLogger())

	mbrRepo = inmemrepos.NewMemberRepository()
	deptRepo = inmemrepos.NewDepartmentRepository()
	transport = emailsvc.NewRecordingTransport(conf)
	mailSvc := emailsvc.NewGateway(transport, conf, core.NewNopLogger())
	mbrSvc := member.NewService(mbrRepo, deptRepo, mailSvc, core.NewNopLogger(), conf, validate)

	return NewServer(ServerDeps{
		Conf:           conf,
		Logger:         core.NewNopLogger(),
		MemberSvc:      mbrSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func newUploadRequest(t *testing.T, path, token, field, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	if _, err = io.Copy(fw, bytes.NewReader(content)); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, mbr member.Member) string {
	claims := GetMemberClaims(conf, mbr)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshalMember(t *testing.T, data []byte) member.Member {
	var mbr member.Member
	if err := json.Unmarshal(data, &mbr); err != nil {
		t.Fatalf("unmarshalMember() failed: %v", err)
	}
	return mbr
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
