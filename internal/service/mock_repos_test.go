package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"intake-forms/backend/config"
	"intake-forms/backend/internal/model"
	"intake-forms/backend/internal/repository"
	pkgerrors "intake-forms/backend/pkg/errors"
	"intake-forms/backend/pkg/storage"
)

// ── Mock AdminRepository ──

type mockAdminRepo struct {
	mu     sync.Mutex
	admins map[string]*model.Admin // key: admin_id
}

func newMockAdminRepo() *mockAdminRepo {
	return &mockAdminRepo{admins: make(map[string]*model.Admin)}
}

func (m *mockAdminRepo) Create(_ context.Context, admin *model.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Username == admin.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	if admin.AdminID == "" {
		admin.AdminID = "admin-" + admin.Username
	}
	admin.CreatedAt = time.Now()
	m.admins[admin.AdminID] = admin
	return nil
}

func (m *mockAdminRepo) GetByID(_ context.Context, id string) (*model.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.admins[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAdminRepo) GetByUsername(_ context.Context, username string) (*model.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAdminRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

// ── Mock FormTemplateRepository ──

type mockFormTemplateRepo struct {
	mu    sync.RWMutex
	forms map[string]*model.FormTemplate // key: form_id
	seq   int
	subs  *mockSubmissionRepo
	// takenOnCreate 模拟并发抢占：Create 时这些 slug 视为已被占用
	takenOnCreate map[string]bool
}

func newMockFormTemplateRepo() *mockFormTemplateRepo {
	return &mockFormTemplateRepo{
		forms:         make(map[string]*model.FormTemplate),
		takenOnCreate: make(map[string]bool),
	}
}

func (m *mockFormTemplateRepo) Create(_ context.Context, form *model.FormTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takenOnCreate[form.Slug] {
		return pkgerrors.ErrSlugTaken
	}
	for _, f := range m.forms {
		if f.Slug == form.Slug {
			return pkgerrors.ErrSlugTaken
		}
	}
	m.seq++
	if form.FormID == "" {
		form.FormID = fmt.Sprintf("form-%d", m.seq)
	}
	now := time.Now().Add(time.Duration(m.seq) * time.Millisecond)
	form.CreatedAt, form.UpdatedAt = now, now
	cp := *form
	m.forms[form.FormID] = &cp
	return nil
}

func (m *mockFormTemplateRepo) GetByID(_ context.Context, id string) (*model.FormTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f, ok := m.forms[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFormTemplateRepo) GetByIDForAdmin(ctx context.Context, id, adminID string) (*model.FormTemplate, error) {
	f, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.AdminID != adminID {
		return nil, gorm.ErrRecordNotFound
	}
	return f, nil
}

func (m *mockFormTemplateRepo) GetBySlug(_ context.Context, slug string) (*model.FormTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.forms {
		if f.Slug == slug {
			cp := *f
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFormTemplateRepo) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.forms {
		if f.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFormTemplateRepo) ListByAdmin(_ context.Context, adminID string) ([]model.FormTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []model.FormTemplate
	for _, f := range m.forms {
		if f.AdminID == adminID {
			result = append(result, *f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockFormTemplateRepo) Update(_ context.Context, form *model.FormTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[form.FormID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	f.Title = form.Title
	f.Fields = form.Fields
	f.Styling = form.Styling
	f.UpdatedAt = time.Now()
	return nil
}

func (m *mockFormTemplateRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.forms[id]; !ok {
		m.mu.Unlock()
		return gorm.ErrRecordNotFound
	}
	delete(m.forms, id)
	m.mu.Unlock()
	if m.subs != nil {
		m.subs.deleteByForm(id)
	}
	return nil
}

// ── Mock SubmissionRepository ──
//
// Create 在锁内检查 (form_id, unique_id)，等价于数据库唯一约束。

type mockSubmissionRepo struct {
	mu    sync.Mutex
	subs  map[string]*model.Submission // key: submission_id
	seq   int
	forms *mockFormTemplateRepo
	// conflictsLeft 大于 0 时 Create 直接返回冲突（模拟并发抢占）
	conflictsLeft int
	createCalls   int
}

func newMockSubmissionRepo(forms *mockFormTemplateRepo) *mockSubmissionRepo {
	m := &mockSubmissionRepo{subs: make(map[string]*model.Submission), forms: forms}
	forms.subs = m
	return m
}

func (m *mockSubmissionRepo) Create(_ context.Context, sub *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return pkgerrors.ErrUniqueIDConflict
	}
	for _, s := range m.subs {
		if s.FormID == sub.FormID && s.UniqueID == sub.UniqueID {
			return pkgerrors.ErrUniqueIDConflict
		}
	}
	m.seq++
	if sub.SubmissionID == "" {
		sub.SubmissionID = fmt.Sprintf("sub-%d", m.seq)
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
	}
	cp := *sub
	m.subs[sub.SubmissionID] = &cp
	return nil
}

func (m *mockSubmissionRepo) GetByIDForAdmin(ctx context.Context, id, adminID string) (*model.Submission, error) {
	m.mu.Lock()
	s, ok := m.subs[id]
	m.mu.Unlock()
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if _, err := m.forms.GetByIDForAdmin(ctx, s.FormID, adminID); err != nil {
		return nil, err
	}
	cp := *s
	return &cp, nil
}

func (m *mockSubmissionRepo) ListByForm(_ context.Context, formID string) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Submission
	for _, s := range m.subs {
		if s.FormID == formID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].SubmittedAt.Equal(result[j].SubmittedAt) {
			return result[i].SubmittedAt.Before(result[j].SubmittedAt)
		}
		return result[i].UniqueID < result[j].UniqueID
	})
	return result, nil
}

func (m *mockSubmissionRepo) UniqueIDExists(_ context.Context, formID string, uniqueID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.FormID == formID && s.UniqueID == uniqueID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSubmissionRepo) ListUniqueIDs(_ context.Context, formID string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int
	for _, s := range m.subs {
		if s.FormID == formID {
			ids = append(ids, s.UniqueID)
		}
	}
	return ids, nil
}

func (m *mockSubmissionRepo) CountByForm(_ context.Context, formID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.subs {
		if s.FormID == formID {
			n++
		}
	}
	return n, nil
}

func (m *mockSubmissionRepo) CountByForms(ctx context.Context, formIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(formIDs))
	for _, id := range formIDs {
		n, _ := m.CountByForm(ctx, id)
		counts[id] = n
	}
	return counts, nil
}

func (m *mockSubmissionRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *mockSubmissionRepo) deleteByForm(formID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.subs {
		if s.FormID == formID {
			delete(m.subs, id)
		}
	}
}

// ── 内存文件存储 ──

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (s *memStore) Save(_ context.Context, p string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	actual := p
	for i := 1; ; i++ {
		if _, exists := s.files[actual]; !exists {
			break
		}
		dot := strings.LastIndex(p, ".")
		actual = fmt.Sprintf("%s_%d%s", p[:dot], i, p[dot:])
	}
	s.files[actual] = data
	return actual, nil
}

func (s *memStore) URL(p string) string { return "http://files.test/" + p }

func (s *memStore) Open(_ context.Context, p string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[p]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Exists(_ context.Context, p string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[p]
	return ok, nil
}

func (s *memStore) Delete(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, p)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *memStore) has(p string) bool {
	ok, _ := s.Exists(context.Background(), p)
	return ok
}

// ── 测试辅助 ──

type testDeps struct {
	repo  *repository.Repository
	admin *mockAdminRepo
	forms *mockFormTemplateRepo
	subs  *mockSubmissionRepo
	store *memStore
	cfg   *config.Config
}

func newTestDeps() *testDeps {
	forms := newMockFormTemplateRepo()
	subs := newMockSubmissionRepo(forms)
	admin := newMockAdminRepo()
	return &testDeps{
		repo: &repository.Repository{
			Admin:        admin,
			FormTemplate: forms,
			Submission:   subs,
		},
		admin: admin,
		forms: forms,
		subs:  subs,
		store: newMemStore(),
		cfg:   testConfig(),
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret-key-at-least-16",
			AccessTokenTTL: time.Hour,
			Issuer:         "intake-forms",
		},
		Upload: config.UploadConfig{
			MaxFileBytes:     1 << 20,
			PhotoMaxEdge:     0,
			PhotoJPEGQuality: 90,
		},
		Query: config.QueryConfig{
			SortableFields:  []string{"Full Name", "Roll Number"},
			DefaultPageSize: 50,
		},
	}
}
