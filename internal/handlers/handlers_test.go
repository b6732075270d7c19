package handlers

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/M365x55907051/juice-shop/internal/auth"
	"github.com/M365x55907051/juice-shop/internal/database"
	"github.com/M365x55907051/juice-shop/internal/ingest"
	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/M365x55907051/juice-shop/internal/middleware"
	"github.com/M365x55907051/juice-shop/internal/models"
	"github.com/M365x55907051/juice-shop/internal/repository"
	"github.com/M365x55907051/juice-shop/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testEmail    = "jim@juice-sh.op"
	testPassword = "ncc-1701"
	errorHeading = "<h1>OWASP Juice Shop (Express"
)

var (
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0x01}, 64)...)
	pdfBytes  = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
)

// docxBytes builds a minimal OOXML word document
func docxBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"_rels/.rels":         `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`,
		"word/document.xml":   `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`,
	} {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// HandlersTestSuite drives the HTTP surface end to end
type HandlersTestSuite struct {
	suite.Suite
	db        *gorm.DB
	router    *gin.Engine
	users     repository.UserRepository
	uploadDir string
	remote    *httptest.Server
	testUser  *models.User
}

func (suite *HandlersTestSuite) SetupTest() {
	t := suite.T()
	gin.SetMode(gin.TestMode)
	logger.InitializeNop()

	db, err := database.Open("sqlite", ":memory:", false)
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))
	database.DB = db
	suite.db = db
	suite.users = repository.NewUserRepository(db)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	suite.testUser = &models.User{Email: testEmail, Username: "jim", PasswordHash: string(hash)}
	require.NoError(t, suite.users.CreateUser(context.Background(), suite.testUser))

	suite.uploadDir = t.TempDir()
	store, err := storage.NewLocalStore(suite.uploadDir, UploadsPath)
	require.NoError(t, err)

	suite.remote = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cat.jpg" {
			w.Write(jpegBytes)
			return
		}
		http.NotFound(w, r)
	}))

	authService := auth.NewService(suite.users, auth.NewMemoryStore(), []byte("test-secret"), time.Hour)
	ingestor := ingest.NewIngestor(store, suite.users, ingest.NewRemoteFetcher(suite.remote.Client(), 1024), ingest.Policy{
		MaxBytes:   1024,
		RedirectTo: "/profile",
	})

	h := NewHandlers(authService, suite.users, ingestor, Options{
		AppName:   "OWASP Juice Shop",
		Banner:    "Express ^4.21.2",
		UploadDir: suite.uploadDir,
	})

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SessionMiddleware(authService))
	h.RegisterRoutes(router, RouteOptions{
		Upload: []gin.HandlerFunc{middleware.BodyLimitMiddleware(8 << 10)},
	})
	suite.router = router
}

func (suite *HandlersTestSuite) TearDownTest() {
	suite.remote.Close()
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
	database.DB = nil
}

func (suite *HandlersTestSuite) login() string {
	t := suite.T()
	body, _ := json.Marshal(map[string]string{"email": testEmail, "password": testPassword})

	req := httptest.NewRequest(http.MethodPost, "/rest/user/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Authentication struct {
			Token string `json:"token"`
			Umail string `json:"umail"`
		} `json:"authentication"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotEmpty(t, response.Authentication.Token)
	assert.Equal(t, testEmail, response.Authentication.Umail)
	return response.Authentication.Token
}

func createMultipartForm(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func (suite *HandlersTestSuite) uploadFile(token, field, filename string, data []byte) *httptest.ResponseRecorder {
	body, contentType := createMultipartForm(suite.T(), field, filename, data)
	req := httptest.NewRequest(http.MethodPost, "/profile/image/file", body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) uploadURL(token, imageURL string) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(suite.T(), writer.WriteField("imageUrl", imageURL))
	require.NoError(suite.T(), writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/profile/image/url", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) record() *models.ProfileImage {
	img, err := suite.users.GetProfileImage(context.Background(), suite.testUser.ID)
	require.NoError(suite.T(), err)
	return img
}

func (suite *HandlersTestSuite) TestLoginRejectsBadCredentials() {
	body := strings.NewReader(`{"email":"jim@juice-sh.op","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/rest/user/login", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "Invalid email or password.")
}

func (suite *HandlersTestSuite) TestLoginRejectsMalformedJSON() {
	req := httptest.NewRequest(http.MethodPost, "/rest/user/login", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestWhoAmI() {
	t := suite.T()

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rest/user/whoami", nil))
	assert.JSONEq(t, `{"user":{}}`, w.Body.String())

	token := suite.login()
	req := httptest.NewRequest(http.MethodGet, "/rest/user/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.JSONEq(t, fmt.Sprintf(`{"user":{"id":%q,"email":%q,"profileImage":%q}}`,
		suite.testUser.ID, testEmail, models.DefaultProfileImage), w.Body.String())
}

func (suite *HandlersTestSuite) TestLogoutRevokesSession() {
	t := suite.T()
	token := suite.login()

	req := httptest.NewRequest(http.MethodPost, "/rest/user/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = suite.uploadFile(token, "file", "cat.jpg", jpegBytes)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Blocked illegal activity")
}

func (suite *HandlersTestSuite) TestUploadJPEGRedirects() {
	t := suite.T()
	token := suite.login()

	w := suite.uploadFile(token, "file", "validProfileImage.jpg", jpegBytes)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile", w.Header().Get("Location"))

	img := suite.record()
	require.NotNil(t, img)
	assert.True(t, strings.HasPrefix(img.StorageKey, suite.testUser.ID+"-"), img.StorageKey)
	assert.Equal(t, UploadsPath+"/"+img.StorageKey, img.Location)
	assert.FileExists(t, filepath.Join(suite.uploadDir, img.StorageKey))
}

func (suite *HandlersTestSuite) TestUploadNonImageIsUnsupported() {
	t := suite.T()
	token := suite.login()

	w := suite.uploadFile(token, "file", "invalidProfileImageType.docx", docxBytes(t))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), errorHeading)
	assert.Contains(t, w.Body.String(), "Error: Profile image upload does not accept this file type: application/")
	assert.Nil(t, suite.record())

	w = suite.uploadFile(token, "file", "invalidProfileImageType.pdf", pdfBytes)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Contains(t, w.Body.String(), "Error: Profile image upload does not accept this file type: application/pdf")
}

func (suite *HandlersTestSuite) TestUploadEmptyFileIsIllegal() {
	t := suite.T()
	token := suite.login()

	w := suite.uploadFile(token, "file", "empty.jpg", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), errorHeading)
	assert.Contains(t, w.Body.String(), "Error: Illegal file type")
	assert.Nil(t, suite.record())

	entries, err := os.ReadDir(suite.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (suite *HandlersTestSuite) TestUploadFileAnonymous() {
	t := suite.T()

	w := suite.uploadFile("", "file", "validProfileImage.jpg", jpegBytes)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), errorHeading)
	assert.Contains(t, w.Body.String(), "Error: Blocked illegal activity")
	assert.Nil(t, suite.record())
}

func (suite *HandlersTestSuite) TestUploadFileWithForgedToken() {
	w := suite.uploadFile("eyJhbGciOiJub25lIn0.e30.", "file", "validProfileImage.jpg", jpegBytes)
	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "Error: Blocked illegal activity")
}

func (suite *HandlersTestSuite) TestUploadFileAnonymousJSON() {
	body, contentType := createMultipartForm(suite.T(), "file", "cat.jpg", jpegBytes)
	req := httptest.NewRequest(http.MethodPost, "/profile/image/file", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
	assert.JSONEq(suite.T(), `{"code":"BLOCKED_ILLEGAL_ACTIVITY","message":"Blocked illegal activity by 192.0.2.1"}`, w.Body.String())
}

func (suite *HandlersTestSuite) TestUploadFileMissingPart() {
	t := suite.T()
	token := suite.login()

	w := suite.uploadFile(token, "picture", "validProfileImage.jpg", jpegBytes)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Error: Illegal file type")
}

func (suite *HandlersTestSuite) TestUploadFileTooLarge() {
	t := suite.T()
	token := suite.login()

	big := append(append([]byte{}, jpegBytes...), bytes.Repeat([]byte{0x01}, 2048)...)
	w := suite.uploadFile(token, "file", "big.jpg", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "Error: File too large")

	// over the body limit as well as the image limit
	huge := append(append([]byte{}, jpegBytes...), bytes.Repeat([]byte{0x01}, 16<<10)...)
	w = suite.uploadFile(token, "file", "huge.jpg", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func (suite *HandlersTestSuite) TestRejectedUploadKeepsRecord() {
	t := suite.T()
	token := suite.login()

	require.Equal(t, http.StatusFound, suite.uploadFile(token, "file", "cat.jpg", jpegBytes).Code)
	before := suite.record()

	assert.Equal(t, http.StatusUnsupportedMediaType, suite.uploadFile(token, "file", "doc.pdf", pdfBytes).Code)
	assert.Equal(t, http.StatusInternalServerError, suite.uploadFile("", "file", "cat.jpg", jpegBytes).Code)

	after := suite.record()
	assert.Equal(t, before.Location, after.Location)
	assert.Equal(t, before.Size, after.Size)
	assert.Equal(t, before.UpdatedAt.UnixNano(), after.UpdatedAt.UnixNano())
}

func (suite *HandlersTestSuite) TestUploadURLRedirects() {
	t := suite.T()
	token := suite.login()

	for _, imageURL := range []string{
		suite.remote.URL + "/cat.jpg",
		suite.remote.URL + "/missing.jpg",
		"cataas.com/cat",
		"http://127.0.0.1:1/100.jpg",
	} {
		w := suite.uploadURL(token, imageURL)
		assert.Equal(t, http.StatusFound, w.Code, imageURL)
		assert.Equal(t, "/profile", w.Header().Get("Location"), imageURL)
	}

	img := suite.record()
	assert.Equal(t, models.ImageSourceLink, img.Source)
	assert.Equal(t, "http://127.0.0.1:1/100.jpg", img.Location)
}

func (suite *HandlersTestSuite) TestUploadURLStoresFetchedCopy() {
	t := suite.T()
	token := suite.login()

	require.Equal(t, http.StatusFound, suite.uploadURL(token, suite.remote.URL+"/cat.jpg").Code)

	img := suite.record()
	assert.Equal(t, models.ImageSourceURL, img.Source)
	assert.Equal(t, UploadsPath+"/"+img.StorageKey, img.Location)
	assert.FileExists(t, filepath.Join(suite.uploadDir, img.StorageKey))
}

func (suite *HandlersTestSuite) TestUploadURLAnonymous() {
	t := suite.T()

	w := suite.uploadURL("", "https://cataas.com/cat")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), errorHeading)
	assert.Contains(t, w.Body.String(), "Error: Blocked illegal activity")
}

func (suite *HandlersTestSuite) TestUploadURLFormEncoded() {
	t := suite.T()
	token := suite.login()

	form := url.Values{"imageUrl": {"cataas.com/cat"}}
	req := httptest.NewRequest(http.MethodPost, "/profile/image/url", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "cataas.com/cat", suite.record().Location)
}

func (suite *HandlersTestSuite) TestUploadURLWithoutFieldChangesNothing() {
	t := suite.T()
	token := suite.login()

	req := httptest.NewRequest(http.MethodPost, "/profile/image/url", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Nil(t, suite.record())
}

// A Content-Length shorter than the multipart body cuts the form off
func (suite *HandlersTestSuite) TestTruncatedBodyIsUnexpectedEndOfForm() {
	t := suite.T()
	token := suite.login()

	server := httptest.NewServer(suite.router)
	defer server.Close()

	body, contentType := createMultipartForm(t, "file", "validProfileImage.jpg", jpegBytes)

	conn, err := net.Dial("tcp", server.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	fmt.Fprintf(conn, "POST /profile/image/file HTTP/1.1\r\n")
	fmt.Fprintf(conn, "Host: %s\r\n", server.Listener.Addr().String())
	fmt.Fprintf(conn, "Cookie: %s=%s\r\n", middleware.SessionCookie, token)
	fmt.Fprintf(conn, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(conn, "Content-Length: 42\r\n")
	fmt.Fprintf(conn, "Connection: close\r\n\r\n")
	_, err = conn.Write(body.Bytes())
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var page bytes.Buffer
	_, err = page.ReadFrom(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, page.String(), errorHeading)
	assert.Contains(t, page.String(), "Error: Unexpected end of form")
	assert.Nil(t, suite.record())
}

func (suite *HandlersTestSuite) TestBodyCutInsidePartHeaders() {
	t := suite.T()
	token := suite.login()

	body, contentType := createMultipartForm(t, "file", "validProfileImage.jpg", jpegBytes)
	full := body.Bytes()
	openingLine := bytes.Index(full, []byte("\r\n")) + 2
	headersEnd := bytes.Index(full, []byte("\r\n\r\n"))
	require.Greater(t, headersEnd, openingLine)

	for _, keep := range []int{openingLine, openingLine + 10, headersEnd, headersEnd + 2} {
		req := httptest.NewRequest(http.MethodPost, "/profile/image/file", bytes.NewReader(full[:keep]))
		req.Header.Set("Content-Type", contentType)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
		w := httptest.NewRecorder()
		suite.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code, "keep=%d", keep)
		assert.Contains(t, w.Body.String(), "Error: Unexpected end of form", "keep=%d", keep)
	}
	assert.Nil(t, suite.record())
}

func (suite *HandlersTestSuite) TestProfilePage() {
	t := suite.T()

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Error: Blocked illegal access by 192.0.2.1")

	token := suite.login()
	require.Equal(t, http.StatusFound, suite.uploadFile(token, "file", "cat.jpg", jpegBytes).Code)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testEmail)
	assert.Contains(t, w.Body.String(), suite.record().Location)
	assert.Contains(t, w.Body.String(), `action="/profile/image/file"`)
}

func (suite *HandlersTestSuite) TestServeUploads() {
	t := suite.T()

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, UploadsPath+"/default.svg", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<svg")

	require.NoError(t, os.WriteFile(filepath.Join(suite.uploadDir, "someone.jpg"), jpegBytes, 0644))
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, UploadsPath+"/someone.jpg", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, jpegBytes, w.Body.Bytes())

	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, UploadsPath+"/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestHealth() {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), `"status":"healthy"`)
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
