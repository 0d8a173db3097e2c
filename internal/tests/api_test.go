// internal/tests/api_test.go
package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/cache"
	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/geoip"
	"github.com/saptechnologies/sap-backend/internal/mailer"
	"github.com/saptechnologies/sap-backend/internal/middleware"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/router"
	"github.com/saptechnologies/sap-backend/internal/services"
	"github.com/saptechnologies/sap-backend/internal/testutil"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type APITestSuite struct {
	suite.Suite
	cfg      *config.Config
	db       *gorm.DB
	svcs     *services.Services
	router   *router.Router
	category *models.AwardCategory
	cookies  []*http.Cookie
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta json.RawMessage `json:"meta"`
}

func (suite *APITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (suite *APITestSuite) SetupTest() {
	t := suite.T()
	suite.cfg = testutil.Config(t)
	suite.db = testutil.NewTestDBWithConfig(t, suite.cfg)
	utils.SetJWTSecret(suite.cfg.JWT.SecretKey)

	appCache := cache.NewMemoryCache(suite.cfg.Cache.NominationTTL, 0)
	geo, err := geoip.Open("")
	suite.Require().NoError(err)

	suite.svcs, err = services.New(suite.db, suite.cfg, appCache, mailer.NewLogMailer("noreply@example.com"), geo)
	suite.Require().NoError(err)

	sessions := middleware.NewSessionManager(suite.cfg, appCache)
	suite.router = router.Initialize(suite.db, suite.cfg, suite.svcs, sessions)
	t.Cleanup(suite.router.Close)

	testutil.CreateUser(t, suite.db, "admin@example.com", "AdminPass123!", models.UserRoleAdmin)
	testutil.CreateUser(t, suite.db, "editor@example.com", "EditorPass123!", models.UserRoleEditor)
	suite.category = testutil.CreateCategory(t, suite.db, "Innovation Excellence")
	suite.cookies = nil
}

func (suite *APITestSuite) request(method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return suite.serve(req)
}

func (suite *APITestSuite) serve(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	for _, c := range suite.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var resp envelope
	if w.Body.Len() > 0 {
		suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func (suite *APITestSuite) login(email, password string) {
	suite.cookies = nil
	w, resp := suite.request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Require().True(resp.Success)
	suite.cookies = w.Result().Cookies()
	suite.Require().NotEmpty(suite.cookies)
}

func (suite *APITestSuite) submitNomination() models.Nomination {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	fields := map[string]string{
		"nominee_name":      "Jane Doe",
		"nominee_country":   "Uganda",
		"category_id":       suite.category.ID.String(),
		"nomination_reason": "Built the national payments switch.",
		"nominator_name":    "John",
		"nominator_email":   "john@x.com",
	}
	for k, v := range fields {
		suite.Require().NoError(form.WriteField(k, v))
	}
	suite.Require().NoError(form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/awards/nominations", body)
	req.Header.Set("Content-Type", form.FormDataContentType())

	w, resp := suite.serve(req)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var nomination models.Nomination
	suite.Require().NoError(json.Unmarshal(resp.Data, &nomination))
	return nomination
}

func (suite *APITestSuite) TestHealth() {
	w, _ := suite.request(http.MethodGet, "/health", nil)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *APITestSuite) TestLoginMeLogout() {
	w, resp := suite.request(http.MethodGet, "/api/auth/me", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Equal("UNAUTHORIZED", resp.Error.Code)

	suite.login("admin@example.com", "AdminPass123!")

	w, resp = suite.request(http.MethodGet, "/api/auth/me", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(string(resp.Data), "admin@example.com")
	suite.NotContains(string(resp.Data), "password")

	w, _ = suite.request(http.MethodPost, "/api/auth/logout", nil)
	suite.Equal(http.StatusOK, w.Code)

	w, _ = suite.request(http.MethodGet, "/api/auth/me", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *APITestSuite) TestLoginRejectsBadPassword() {
	w, resp := suite.request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	})
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.False(resp.Success)
}

func (suite *APITestSuite) TestAdminRoutesRequireSession() {
	id := suite.category.ID.String()
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/dashboard/stats"},
		{http.MethodGet, "/api/admin/nominations"},
		{http.MethodPost, "/api/admin/categories"},
		{http.MethodDelete, "/api/admin/categories/" + id},
		{http.MethodGet, "/api/admin/tasks"},
		{http.MethodGet, "/api/admin/contacts"},
		{http.MethodGet, "/api/admin/subscribers"},
		{http.MethodPatch, "/api/awards/nominations/" + id + "/status"},
		{http.MethodPut, "/api/awards/nominations/" + id},
		{http.MethodDelete, "/api/awards/nominations/" + id},
	}

	for _, route := range routes {
		w, _ := suite.request(route.method, route.path, map[string]string{})
		suite.Equal(http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func (suite *APITestSuite) TestEditorCannotDelete() {
	nomination := suite.submitNomination()
	suite.login("editor@example.com", "EditorPass123!")

	w, _ := suite.request(http.MethodDelete, "/api/awards/nominations/"+nomination.ID.String(), nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w, _ = suite.request(http.MethodPatch, "/api/awards/nominations/"+nomination.ID.String()+"/status", map[string]string{
		"status": "approved",
	})
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *APITestSuite) TestNominationWorkflow() {
	nomination := suite.submitNomination()
	suite.Equal(models.NominationStatusPending, nomination.Status)
	path := "/api/awards/nominations/" + nomination.ID.String()

	// Voting before approval is a state conflict
	w, resp := suite.request(http.MethodPost, path+"/vote", map[string]string{"voter_email": "a@b.com"})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("STATE_CONFLICT", resp.Error.Code)

	// Pending nominations are not public
	w, _ = suite.request(http.MethodGet, path, nil)
	suite.Equal(http.StatusNotFound, w.Code)

	suite.login("admin@example.com", "AdminPass123!")
	w, _ = suite.request(http.MethodPatch, path+"/status", map[string]string{
		"status":      "approved",
		"admin_notes": "Strong nomination",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.cookies = nil

	w, resp = suite.request(http.MethodPost, path+"/vote", map[string]string{"voter_email": "a@b.com"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.JSONEq(`{"message":"Vote recorded","total_votes":1}`, string(resp.Data))

	w, resp = suite.request(http.MethodPost, path+"/vote", map[string]string{"voter_email": "A@B.com "})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("STATE_CONFLICT", resp.Error.Code)

	w, resp = suite.request(http.MethodGet, path+"/vote-status?email=A@b.com", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"has_voted":true,"total_votes":1}`, string(resp.Data))

	w, resp = suite.request(http.MethodGet, "/api/awards/nominations?category="+suite.category.ID.String(), nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("1", w.Header().Get("X-Total-Count"))

	var items []models.Nomination
	suite.Require().NoError(json.Unmarshal(resp.Data, &items))
	suite.Require().Len(items, 1)
	suite.Equal(1, items[0].TotalVotes)
	suite.Empty(items[0].NominatorEmail)

	// Approval and the winner decision each queue a certificate task
	suite.login("admin@example.com", "AdminPass123!")
	w, _ = suite.request(http.MethodPatch, path+"/status", map[string]string{"status": "winner"})
	suite.Require().Equal(http.StatusOK, w.Code)

	var certificateTasks int64
	suite.Require().NoError(suite.db.Model(&models.OutboxTask{}).
		Where("kind = ? AND reference_id = ?", models.TaskKindCertificate, nomination.ID).
		Count(&certificateTasks).Error)
	suite.EqualValues(2, certificateTasks)

	w, resp = suite.request(http.MethodGet, "/api/admin/tasks?kind=certificate", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(string(resp.Data), nomination.ID.String())

	w, _ = suite.request(http.MethodDelete, path, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w, _ = suite.request(http.MethodGet, "/api/admin/nominations/"+nomination.ID.String(), nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *APITestSuite) TestSubmitValidation() {
	w, resp := suite.request(http.MethodPost, "/api/awards/nominations", map[string]string{
		"nominee_name":    "Jane Doe",
		"category_id":     suite.category.ID.String(),
		"nominator_name":  "John",
		"nominator_email": "not-an-email",
	})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("VALIDATION_ERROR", resp.Error.Code)
}

func (suite *APITestSuite) TestCategoryDeleteBlockedByNominations() {
	suite.submitNomination()
	suite.login("admin@example.com", "AdminPass123!")

	path := "/api/admin/categories/" + suite.category.ID.String()
	w, resp := suite.request(http.MethodDelete, path, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("STATE_CONFLICT", resp.Error.Code)

	w, resp = suite.request(http.MethodPost, "/api/admin/categories", map[string]interface{}{
		"name":        "Community Champion",
		"description": "Sustained contribution",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var created models.AwardCategory
	suite.Require().NoError(json.Unmarshal(resp.Data, &created))
	suite.Equal("community-champion", created.Slug)

	w, _ = suite.request(http.MethodDelete, "/api/admin/categories/"+created.ID.String(), nil)
	suite.Equal(http.StatusOK, w.Code)

	w, resp = suite.request(http.MethodGet, "/api/awards/categories", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.NotContains(string(resp.Data), "Community Champion")
}

func (suite *APITestSuite) TestInvalidIDs() {
	w, _ := suite.request(http.MethodGet, "/api/awards/nominations/not-a-uuid", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w, resp := suite.request(http.MethodGet, "/api/awards/nominations?status=pending", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("VALIDATION_ERROR", resp.Error.Code)
}

func (suite *APITestSuite) TestContactAndNewsletter() {
	w, _ := suite.request(http.MethodPost, "/api/contact", map[string]string{
		"name":    "Grace",
		"email":   "grace@example.com",
		"subject": "Partnership",
		"message": "We would like to sponsor the awards.",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	for i := 0; i < 2; i++ {
		w, _ = suite.request(http.MethodPost, "/api/newsletter/subscribe", map[string]string{"email": "Reader@Example.com"})
		suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	}

	token, err := utils.GenerateUnsubscribeToken("reader@example.com", time.Hour)
	suite.Require().NoError(err)
	w, _ = suite.request(http.MethodGet, "/api/newsletter/unsubscribe?token="+token, nil)
	suite.Equal(http.StatusOK, w.Code)

	w, _ = suite.request(http.MethodGet, "/api/newsletter/unsubscribe?token=garbage", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	suite.login("admin@example.com", "AdminPass123!")
	w, resp := suite.request(http.MethodGet, "/api/admin/contacts", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(string(resp.Data), "grace@example.com")

	w, resp = suite.request(http.MethodGet, "/api/admin/subscribers?status=unsubscribed", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(string(resp.Data), "reader@example.com")
}

func (suite *APITestSuite) TestSoftwareCatalog() {
	suite.login("admin@example.com", "AdminPass123!")
	w, resp := suite.request(http.MethodPost, "/api/admin/software", map[string]interface{}{
		"name":        "School Manager",
		"summary":     "Fees, grades and timetables",
		"description": "**Fast** setup",
		"category":    "Education",
		"features":    []string{"Fees", "Grades"},
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var item models.Software
	suite.Require().NoError(json.Unmarshal(resp.Data, &item))

	suite.cookies = nil
	w, resp = suite.request(http.MethodGet, "/api/software/"+item.Slug, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var detail models.Software
	suite.Require().NoError(json.Unmarshal(resp.Data, &detail))
	suite.Contains(detail.DescriptionHTML, "<strong>Fast</strong>")

	w, resp = suite.request(http.MethodGet, fmt.Sprintf("/api/software?category=%s", "education"), nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(string(resp.Data), "School Manager")
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
