package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/fees"
	emailsvc "github.com/trezcool/campus/services/email"
	inmemdb "github.com/trezcool/campus/storage/database/inmem"
)

type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

func testConfig() *core.Config {
	return &core.Config{
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Campus",
		DefaultFromEmail: mail.Address{Name: "Campus", Address: "noreply@localhost"},
		Server:           core.ServerConfig{Address: ":0"},
		Fees: core.FeesConfig{
			AgentName:       "Finance Agent",
			RunLogRetention: 24,
			DefaultProgram:  "B.Tech",
			DefaultYear:     1,
		},
	}
}

// initApp wires a full API server over the in-memory store.
func initApp(t *testing.T) (Server, *fees.Service) {
	t.Helper()

	conf := testConfig()
	repo := inmemdb.NewFeesRepository(inmemdb.NewDB())
	svc := fees.NewService(repo, conf)
	agent := fees.NewAgent(svc, emailsvc.NewConsoleServiceMock(conf), testLogger{}, conf)

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)
	fees.InitValidators(validate, translator)

	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     testLogger{},
		FeeSvc:     svc,
		Agent:      agent,
		Validate:   validate,
		Translator: translator,
	})
	return srv, svc
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// catalog fixtures; due dates are pinned far in the past/future so the tests
// do not depend on the wall clock.
var (
	pastDue   = "2000-01-01"
	futureDue = "2999-01-01"
)

func seedCategory(t *testing.T, svc *fees.Service, name string) fees.Category {
	t.Helper()
	cat, err := svc.CreateCategory(context.Background(), fees.NewCategory{Name: name})
	if err != nil {
		t.Fatalf("CreateCategory() failed: %v", err)
	}
	return cat
}

func seedStructure(t *testing.T, svc *fees.Service, categoryID, program string, year int, amount float64, dueDate string) fees.Structure {
	t.Helper()
	s, err := svc.CreateStructure(context.Background(), fees.NewStructure{
		CategoryID: categoryID,
		Program:    program,
		Year:       year,
		Semester:   1,
		Amount:     decimal.NewFromFloat(amount),
		DueDate:    dueDate,
	})
	if err != nil {
		t.Fatalf("CreateStructure() failed: %v", err)
	}
	return s
}
