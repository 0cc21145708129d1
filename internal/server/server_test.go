package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/promptdock/internal/config"
	gormdb "github.com/thebtf/promptdock/internal/db/gorm"
	"github.com/thebtf/promptdock/internal/folders"
	"github.com/thebtf/promptdock/internal/locale"
	"github.com/thebtf/promptdock/internal/onboarding"
	"github.com/thebtf/promptdock/internal/recommend"
	"github.com/thebtf/promptdock/internal/stats"
)

type fakePins struct {
	pins    map[string][]int64
	answers map[string]gormdb.OnboardingAnswers
	err     error
}

func newFakePins() *fakePins {
	return &fakePins{
		pins:    make(map[string][]int64),
		answers: make(map[string]gormdb.OnboardingAnswers),
	}
}

func (f *fakePins) GetPinnedFolderIDs(_ context.Context, userID string) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]int64(nil), f.pins[userID]...), nil
}

func (f *fakePins) MergePinnedFolderIDs(_ context.Context, userID string, ids []int64) error {
	if f.err != nil {
		return f.err
	}
	seen := make(map[int64]bool)
	var merged []int64
	for _, id := range append(f.pins[userID], ids...) {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	f.pins[userID] = merged
	return nil
}

func (f *fakePins) RemovePinnedFolderID(_ context.Context, userID string, folderID int64) error {
	if f.err != nil {
		return f.err
	}
	var remaining []int64
	for _, id := range f.pins[userID] {
		if id != folderID {
			remaining = append(remaining, id)
		}
	}
	f.pins[userID] = remaining
	return nil
}

func (f *fakePins) SaveOnboardingAnswers(_ context.Context, userID string, a gormdb.OnboardingAnswers) error {
	if f.err != nil {
		return f.err
	}
	f.answers[userID] = a
	return nil
}

type fakeListing struct {
	folders []folders.Folder
	err     error
}

func (f *fakeListing) ListForUser(_ context.Context, _ string) ([]folders.Folder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.folders, nil
}

func (f *fakeListing) ExistingIDs(_ context.Context, ids []int64) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	known := make(map[int64]bool, len(f.folders))
	for _, fo := range f.folders {
		known[fo.ID] = true
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeListing) GetFolderDisplayFields(_ context.Context, ids []int64) ([]folders.Folder, error) {
	if f.err != nil {
		return nil, f.err
	}
	byID := make(map[int64]folders.Folder, len(f.folders))
	for _, fo := range f.folders {
		byID[fo.ID] = fo
	}
	out := make([]folders.Folder, 0, len(ids))
	for _, id := range ids {
		if fo, ok := byID[id]; ok {
			out = append(out, fo)
		}
	}
	return out, nil
}

type fakeUsage struct {
	data *gormdb.UsageData
	err  error
}

func (f *fakeUsage) GetUsageData(_ context.Context, _ string) (*gormdb.UsageData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func testFolder(id int64, parentID int64, priority int, en, fr string) folders.Folder {
	f := folders.Folder{ID: id, ParentID: parentID, Priority: priority}
	f.Title.ByLocale = map[string]string{"en": en, "fr": fr}
	f.Description.ByLocale = map[string]string{"en": en + " prompts", "fr": fr + " prompts"}
	return f
}

type ServerSuite struct {
	suite.Suite

	pins    *fakePins
	listing *fakeListing
	usage   *fakeUsage
	svc     *Service
}

func (s *ServerSuite) SetupTest() {
	s.pins = newFakePins()
	s.listing = &fakeListing{folders: []folders.Folder{
		testFolder(1, 0, 10, "Getting Started", "Premiers pas"),
		testFolder(2, 1, 5, "Daily Work", "Travail quotidien"),
		testFolder(4, 0, 8, "Leadership", "Leadership"),
		testFolder(5, 0, 7, "Tech Management", "Gestion technique"),
	}}
	s.usage = &fakeUsage{data: &gormdb.UsageData{}}

	s.svc = s.newService(&config.Config{
		Port:        0,
		AuthEnabled: false,
		Locale:      locale.Default,
	})
}

// newService wires a Service around the fakes without running async init.
func (s *ServerSuite) newService(cfg *config.Config) *Service {
	mapping := &recommend.Mapping{
		StarterPack: []int64{1},
		Roles:       map[string][]int64{"leadership": {4, 5}},
	}

	svc := &Service{
		version:   "test",
		config:    cfg,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	svc.pins = s.pins
	svc.listing = s.listing
	svc.usage = s.usage
	svc.onboarding = onboarding.NewService(recommend.NewEngine(mapping), s.pins, s.listing)
	svc.setupRoutes()
	svc.ready.Store(true)
	return svc
}

func (s *ServerSuite) request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-ID", "user-1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.svc.router.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) decode(rec *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) TestHealthAlwaysResponds() {
	s.svc.ready.Store(false)

	rec := s.request(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal("starting", body["status"])
	s.Equal("test", body["version"])
	s.Equal([]interface{}{"en", "fr"}, body["locales"])
}

func (s *ServerSuite) TestReadyGate() {
	s.svc.ready.Store(false)

	rec := s.request(http.MethodGet, "/api/ready", nil, nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)

	rec = s.request(http.MethodGet, "/api/folders", nil, nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)

	s.svc.ready.Store(true)
	rec = s.request(http.MethodGet, "/api/ready", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *ServerSuite) TestAuthDisabledRequiresUserHeader() {
	req := httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	rec := httptest.NewRecorder()
	s.svc.router.ServeHTTP(rec, req)

	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *ServerSuite) TestAuthEnabledVerifiesBearerToken() {
	s.svc = s.newService(&config.Config{AuthEnabled: true, AuthSecret: "test-secret"})

	// No token
	req := httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	rec := httptest.NewRecorder()
	s.svc.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)

	// Token signed with the wrong secret
	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).
		SignedString([]byte("wrong-secret"))
	s.Require().NoError(err)
	req = httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	rec = httptest.NewRecorder()
	s.svc.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)

	// Valid token
	good, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).
		SignedString([]byte("test-secret"))
	s.Require().NoError(err)
	req = httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	req.Header.Set("Authorization", "Bearer "+good)
	rec = httptest.NewRecorder()
	s.svc.router.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *ServerSuite) TestOnboardingComplete() {
	rec := s.request(http.MethodPost, "/api/onboarding/complete", map[string]interface{}{
		"job_type":      "leadership",
		"signup_source": "other",
		"other_source":  "a friend",
	}, nil)

	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(true, body["success"])
	s.Equal("Added 3 personalized folders based on your profile", body["message"])
	s.Equal([]interface{}{float64(1), float64(4), float64(5)}, body["total_pinned"])
	s.Len(body["new_folders"], 3)
	s.NotNil(body["explanation"])

	// Answers were persisted with the "other:" recombination applied.
	saved := s.pins.answers["user-1"]
	s.Equal("leadership", saved.JobType)
	s.Equal("other:a friend", saved.SignupSource)
}

func (s *ServerSuite) TestOnboardingCompleteRecombinesOtherJobType() {
	rec := s.request(http.MethodPost, "/api/onboarding/complete", map[string]interface{}{
		"job_type":          "other",
		"job_other_details": "circus performer",
	}, nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("other:circus performer", s.pins.answers["user-1"].JobType)

	// An unmapped "other" answer still yields the starter pack.
	body := s.decode(rec)
	s.Equal([]interface{}{float64(1)}, body["total_recommended"])
}

func (s *ServerSuite) TestOnboardingCompleteStorageFailure() {
	s.pins.err = errors.New("db down")

	rec := s.request(http.MethodPost, "/api/onboarding/complete", map[string]interface{}{
		"job_type": "leadership",
	}, nil)

	s.Equal(http.StatusInternalServerError, rec.Code)
	body := s.decode(rec)
	s.Equal(false, body["success"])
}

func (s *ServerSuite) TestOnboardingCompleteRejectsBadBody() {
	req := httptest.NewRequest(http.MethodPost, "/api/onboarding/complete", bytes.NewBufferString("{not json"))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	s.svc.router.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestOnboardingPreviewDoesNotPersist() {
	rec := s.request(http.MethodPost, "/api/onboarding/preview-folder-recommendations", map[string]interface{}{
		"job_type": "leadership",
	}, nil)

	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(true, body["success"])
	s.Equal("Found 3 recommended folders", body["message"])
	s.Equal([]interface{}{float64(1), float64(4), float64(5)}, body["recommended_folder_ids"])
	s.Equal(float64(3), body["total_count"])

	s.Empty(s.pins.pins["user-1"])
}

func (s *ServerSuite) TestGetFoldersLocalized() {
	s.pins.pins["user-1"] = []int64{1}

	rec := s.request(http.MethodGet, "/api/folders?locale=fr", nil, nil)

	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(true, body["success"])
	s.Equal([]interface{}{float64(1)}, body["pinned_folder_ids"])

	tree := body["folders"].([]interface{})
	// Roots ordered by priority desc: 1 (10), 4 (8), 5 (7). Folder 2 nests
	// under folder 1.
	s.Require().Len(tree, 3)
	root := tree[0].(map[string]interface{})
	s.Equal("Premiers pas", root["title"])
	s.Require().Len(root["children"], 1)
}

func (s *ServerSuite) TestGetFoldersAcceptLanguageFallback() {
	rec := s.request(http.MethodGet, "/api/folders", nil, map[string]string{
		"Accept-Language": "fr-CA,fr;q=0.9",
	})

	s.Equal(http.StatusOK, rec.Code)
	tree := s.decode(rec)["folders"].([]interface{})
	root := tree[0].(map[string]interface{})
	s.Equal("Premiers pas", root["title"])
}

func (s *ServerSuite) TestPinFolders() {
	rec := s.request(http.MethodPost, "/api/folders/pin", map[string]interface{}{
		"folder_ids": []int64{4, 5},
	}, nil)

	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal([]interface{}{float64(4), float64(5)}, body["pinned_folder_ids"])
}

func (s *ServerSuite) TestPinUnknownFolderRejected() {
	rec := s.request(http.MethodPost, "/api/folders/pin", map[string]interface{}{
		"folder_ids": []int64{4, 999},
	}, nil)

	s.Equal(http.StatusNotFound, rec.Code)
	s.Empty(s.pins.pins["user-1"])
}

func (s *ServerSuite) TestUnpinFolder() {
	s.pins.pins["user-1"] = []int64{1, 4, 5}

	rec := s.request(http.MethodPost, "/api/folders/unpin", map[string]interface{}{
		"folder_ids": []int64{4},
	}, nil)

	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal([]interface{}{float64(1), float64(5)}, body["pinned_folder_ids"])
}

func (s *ServerSuite) TestGetStats() {
	now := time.Now()
	s.usage.data = &gormdb.UsageData{
		TotalChats:     2,
		ChatCreatedAts: []time.Time{now, now.Add(-30 * 24 * time.Hour)},
		Messages: []stats.Message{
			{ChatID: "c1", Role: "user", Content: "Hello there", Model: "gpt-4", CreatedAt: now},
			{ChatID: "c1", Role: "assistant", Content: "Hi! How can I help?", Model: "gpt-4", CreatedAt: now},
		},
	}

	rec := s.request(http.MethodGet, "/api/stats", nil, nil)

	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(true, body["success"])

	summary := body["stats"].(map[string]interface{})
	s.Equal(float64(2), summary["total_chats"])
	s.Equal(float64(1), summary["recent_chats"])
	s.Equal(float64(2), summary["total_messages"])
	s.Equal(float64(1), summary["avg_messages_per_chat"])
}

func (s *ServerSuite) TestGetStatsFailure() {
	s.usage.err = errors.New("db down")

	rec := s.request(http.MethodGet, "/api/stats", nil, nil)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal(false, s.decode(rec)["success"])
}
