package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"intake-forms/backend/config"
	"intake-forms/backend/internal/dto"
	"intake-forms/backend/internal/model"
	"intake-forms/backend/internal/repository"
	pkgerrors "intake-forms/backend/pkg/errors"
	"intake-forms/backend/pkg/photo"
	"intake-forms/backend/pkg/slug"
	"intake-forms/backend/pkg/storage"
)

// ── 表单模块业务错误 ──

var (
	ErrFormNotFound    = errors.New("表单不存在")
	ErrSlugUnavailable = errors.New("无法生成可用的表单链接")
)

const (
	// slug 冲突时最多尝试的后缀数
	maxSlugAttempts = 50
	defaultSlug     = "form"
	copyTitleSuffix = " (Copy)"
)

// FormService 表单模板业务接口
//
// 所有管理端方法显式接收 adminID，非本人表单一律视为不存在。
type FormService interface {
	Create(ctx context.Context, adminID string, req *dto.CreateFormRequest) (*dto.FormResponse, error)
	Get(ctx context.Context, adminID, formID string) (*dto.FormResponse, error)
	Dashboard(ctx context.Context, adminID string) (*dto.DashboardResponse, error)
	// Update 修改标题/字段/背景；slug 不随标题变化
	Update(ctx context.Context, adminID, formID string, req *dto.UpdateFormRequest) (*dto.FormResponse, error)
	// Duplicate 复制为 "<title> (Copy)"，生成新的 slug
	Duplicate(ctx context.Context, adminID, formID string) (*dto.FormResponse, error)
	// Delete 删除表单及其全部提交，并尽力清理存储中的文件
	Delete(ctx context.Context, adminID, formID string) error
	UploadLogo(ctx context.Context, adminID, formID string, file *dto.UploadedFile) (*dto.FormResponse, error)
	UploadBackgroundImage(ctx context.Context, adminID, formID string, file *dto.UploadedFile) (*dto.FormResponse, error)
	// GetPublic 公开填写页按 slug 获取表单
	GetPublic(ctx context.Context, slug string) (*dto.PublicFormResponse, error)
}

type formService struct {
	cfg    *config.Config
	repo   *repository.Repository
	store  storage.Store
	logger *zap.Logger
}

// NewFormService 创建 FormService 实例
func NewFormService(cfg *config.Config, repo *repository.Repository, store storage.Store, logger *zap.Logger) FormService {
	return &formService{cfg: cfg, repo: repo, store: store, logger: logger}
}

// ────── Create ──────

func (s *formService) Create(ctx context.Context, adminID string, req *dto.CreateFormRequest) (*dto.FormResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, newValidationError("title", "不能为空")
	}
	fields := append([]model.FieldDescriptor(nil), req.Fields...)
	if err := validateFieldDescriptors(fields); err != nil {
		return nil, err
	}

	form := &model.FormTemplate{
		AdminID: adminID,
		Title:   title,
		Fields:  fields,
		Styling: datatypes.NewJSONType(model.Styling{Background: toBackground(req.Background, nil)}),
		BaseModel: model.BaseModel{
			CreatedBy: &adminID,
			UpdatedBy: &adminID,
		},
	}

	base := req.Slug
	if strings.TrimSpace(base) == "" {
		base = title
	}
	if err := s.createWithSlug(ctx, form, base); err != nil {
		return nil, err
	}

	s.logger.Info("表单创建成功",
		zap.String("form_id", form.FormID),
		zap.String("slug", form.Slug),
		zap.String("admin_id", adminID),
	)
	return toFormResponse(s.store, form, 0), nil
}

// createWithSlug 依次尝试 base、base-1、base-2 …；并发抢占同一 slug 时由唯一索引兜底并继续尝试
func (s *formService) createWithSlug(ctx context.Context, form *model.FormTemplate, base string) error {
	base = slug.Make(base)
	if base == "" {
		base = defaultSlug
	}

	candidate := base
	for n := 1; n <= maxSlugAttempts; n++ {
		exists, err := s.repo.FormTemplate.SlugExists(ctx, candidate)
		if err != nil {
			s.logger.Error("检查 slug 失败", zap.String("slug", candidate), zap.Error(err))
			return err
		}
		if !exists {
			form.Slug = candidate
			err := s.repo.FormTemplate.Create(ctx, form)
			if err == nil {
				return nil
			}
			if !errors.Is(err, pkgerrors.ErrSlugTaken) {
				s.logger.Error("创建表单失败", zap.Error(err))
				return err
			}
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return ErrSlugUnavailable
}

// ────── Read ──────

func (s *formService) Get(ctx context.Context, adminID, formID string) (*dto.FormResponse, error) {
	form, err := s.getOwned(ctx, adminID, formID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.Submission.CountByForm(ctx, form.FormID)
	if err != nil {
		return nil, err
	}
	return toFormResponse(s.store, form, count), nil
}

func (s *formService) Dashboard(ctx context.Context, adminID string) (*dto.DashboardResponse, error) {
	forms, err := s.repo.FormTemplate.ListByAdmin(ctx, adminID)
	if err != nil {
		s.logger.Error("查询表单列表失败", zap.Error(err))
		return nil, err
	}

	ids := make([]string, len(forms))
	for i := range forms {
		ids[i] = forms[i].FormID
	}
	counts, err := s.repo.Submission.CountByForms(ctx, ids)
	if err != nil {
		s.logger.Error("统计提交数失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.DashboardResponse{
		Forms:      make([]dto.FormResponse, 0, len(forms)),
		TotalForms: len(forms),
	}
	for i := range forms {
		c := counts[forms[i].FormID]
		resp.TotalSubmissions += c
		resp.Forms = append(resp.Forms, *toFormResponse(s.store, &forms[i], c))
	}
	return resp, nil
}

func (s *formService) GetPublic(ctx context.Context, slugValue string) (*dto.PublicFormResponse, error) {
	form, err := s.repo.FormTemplate.GetBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	styling := form.Styling.Data()
	return &dto.PublicFormResponse{
		Title:      form.Title,
		Slug:       form.Slug,
		Fields:     form.Fields,
		LogoURL:    urlOf(s.store, styling.LogoPath),
		Background: toBackgroundResponse(s.store, styling.Background),
	}, nil
}

// ────── Update ──────

func (s *formService) Update(ctx context.Context, adminID, formID string, req *dto.UpdateFormRequest) (*dto.FormResponse, error) {
	form, err := s.getOwned(ctx, adminID, formID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, newValidationError("title", "不能为空")
		}
		form.Title = title
	}
	if req.Fields != nil {
		fields := append([]model.FieldDescriptor(nil), req.Fields...)
		if err := validateFieldDescriptors(fields); err != nil {
			return nil, err
		}
		form.Fields = fields
	}
	var staleImage string
	if req.Background != nil {
		styling := form.Styling.Data()
		if styling.Background != nil && req.Background.Kind != model.BackgroundImage {
			staleImage = styling.Background.ImagePath
		}
		styling.Background = toBackground(req.Background, styling.Background)
		form.Styling = datatypes.NewJSONType(styling)
	}
	form.UpdatedBy = &adminID

	if err := s.repo.FormTemplate.Update(ctx, form); err != nil {
		s.logger.Error("更新表单失败", zap.String("form_id", formID), zap.Error(err))
		return nil, err
	}
	if staleImage != "" {
		deleteFiles(ctx, s.store, s.logger, []string{staleImage})
	}
	return s.Get(ctx, adminID, formID)
}

// ────── Duplicate ──────

func (s *formService) Duplicate(ctx context.Context, adminID, formID string) (*dto.FormResponse, error) {
	src, err := s.getOwned(ctx, adminID, formID)
	if err != nil {
		return nil, err
	}

	title := src.Title + copyTitleSuffix
	copied := &model.FormTemplate{
		AdminID: adminID,
		Title:   title,
		Fields:  append(datatypes.JSONSlice[model.FieldDescriptor](nil), src.Fields...),
		BaseModel: model.BaseModel{
			CreatedBy: &adminID,
			UpdatedBy: &adminID,
		},
	}
	styling := src.Styling.Data()
	if styling.Background != nil {
		bg := *styling.Background
		styling.Background = &bg
	}
	// 资源文件在新表单 ID 确定后再复制
	logoPath, bgPath := styling.LogoPath, ""
	styling.LogoPath = ""
	if styling.Background != nil {
		bgPath = styling.Background.ImagePath
		styling.Background.ImagePath = ""
	}
	copied.Styling = datatypes.NewJSONType(styling)

	if err := s.createWithSlug(ctx, copied, title); err != nil {
		return nil, err
	}

	if logoPath != "" || bgPath != "" {
		if logoPath != "" {
			styling.LogoPath = s.copyAsset(ctx, logoPath, assetPath(copied.FormID, "logo", logoPath))
		}
		if bgPath != "" {
			styling.Background.ImagePath = s.copyAsset(ctx, bgPath, assetPath(copied.FormID, "background", bgPath))
		}
		copied.Styling = datatypes.NewJSONType(styling)
		if err := s.repo.FormTemplate.Update(ctx, copied); err != nil {
			s.logger.Error("更新复制表单样式失败", zap.String("form_id", copied.FormID), zap.Error(err))
			return nil, err
		}
	}

	s.logger.Info("表单复制成功",
		zap.String("source_form_id", src.FormID),
		zap.String("form_id", copied.FormID),
		zap.String("slug", copied.Slug),
	)
	return toFormResponse(s.store, copied, 0), nil
}

// copyAsset 复制样式文件，失败时记录日志并返回空路径
func (s *formService) copyAsset(ctx context.Context, from, to string) string {
	r, err := s.store.Open(ctx, from)
	if err != nil {
		s.logger.Warn("读取样式文件失败，跳过复制", zap.String("path", from), zap.Error(err))
		return ""
	}
	defer r.Close()

	actual, err := s.store.Save(ctx, to, r, -1, photo.ContentType(extOf(from)))
	if err != nil {
		s.logger.Warn("复制样式文件失败", zap.String("path", from), zap.Error(err))
		return ""
	}
	return actual
}

// ────── Delete ──────

func (s *formService) Delete(ctx context.Context, adminID, formID string) error {
	form, err := s.getOwned(ctx, adminID, formID)
	if err != nil {
		return err
	}

	subs, err := s.repo.Submission.ListByForm(ctx, form.FormID)
	if err != nil {
		return err
	}
	var paths []string
	for i := range subs {
		paths = append(paths, subs[i].FilePaths()...)
	}
	styling := form.Styling.Data()
	paths = append(paths, styling.LogoPath)
	if styling.Background != nil {
		paths = append(paths, styling.Background.ImagePath)
	}

	if err := s.repo.FormTemplate.Delete(ctx, form.FormID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFormNotFound
		}
		s.logger.Error("删除表单失败", zap.String("form_id", formID), zap.Error(err))
		return err
	}

	removed := deleteFiles(ctx, s.store, s.logger, paths)
	s.logger.Info("表单已删除",
		zap.String("form_id", formID),
		zap.Int("submissions", len(subs)),
		zap.Int("files_removed", removed),
	)
	return nil
}

// ────── Styling uploads ──────

func (s *formService) UploadLogo(ctx context.Context, adminID, formID string, file *dto.UploadedFile) (*dto.FormResponse, error) {
	return s.uploadStylingImage(ctx, adminID, formID, file, "logo", func(st *model.Styling, p string) string {
		old := st.LogoPath
		st.LogoPath = p
		return old
	})
}

func (s *formService) UploadBackgroundImage(ctx context.Context, adminID, formID string, file *dto.UploadedFile) (*dto.FormResponse, error) {
	return s.uploadStylingImage(ctx, adminID, formID, file, "background", func(st *model.Styling, p string) string {
		old := ""
		if st.Background != nil {
			old = st.Background.ImagePath
		}
		st.Background = &model.Background{Kind: model.BackgroundImage, ImagePath: p}
		return old
	})
}

// uploadStylingImage apply 写入新路径并返回被替换的旧路径
func (s *formService) uploadStylingImage(
	ctx context.Context,
	adminID, formID string,
	file *dto.UploadedFile,
	name string,
	apply func(st *model.Styling, p string) string,
) (*dto.FormResponse, error) {
	form, err := s.getOwned(ctx, adminID, formID)
	if err != nil {
		return nil, err
	}
	if file == nil || len(file.Content) == 0 {
		return nil, newValidationError(name, "请选择图片")
	}

	img, err := photo.Normalize(file.Content, file.Filename, s.photoOptions())
	if err != nil {
		return nil, newValidationError(name, "不是有效的图片")
	}

	target := fmt.Sprintf("forms/%s/%s%s", form.FormID, name, img.Extension)
	actual, err := s.store.Save(ctx, target, bytes.NewReader(img.Data), int64(len(img.Data)), photo.ContentType(img.Extension))
	if err != nil {
		s.logger.Error("保存样式图片失败", zap.String("form_id", formID), zap.Error(err))
		return nil, err
	}

	styling := form.Styling.Data()
	old := apply(&styling, actual)
	form.Styling = datatypes.NewJSONType(styling)
	form.UpdatedBy = &adminID
	if err := s.repo.FormTemplate.Update(ctx, form); err != nil {
		deleteFiles(ctx, s.store, s.logger, []string{actual})
		return nil, err
	}
	if old != "" && old != actual {
		deleteFiles(ctx, s.store, s.logger, []string{old})
	}
	return s.Get(ctx, adminID, formID)
}

// ── helpers ──

func (s *formService) getOwned(ctx context.Context, adminID, formID string) (*model.FormTemplate, error) {
	form, err := s.repo.FormTemplate.GetByIDForAdmin(ctx, formID, adminID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		s.logger.Error("查询表单失败", zap.String("form_id", formID), zap.Error(err))
		return nil, err
	}
	return form, nil
}

func (s *formService) photoOptions() photo.Options {
	return photo.Options{MaxEdge: s.cfg.Upload.PhotoMaxEdge, JPEGQuality: s.cfg.Upload.PhotoJPEGQuality}
}

func urlOf(store storage.Store, p string) string {
	if p == "" {
		return ""
	}
	return store.URL(p)
}

func toBackgroundResponse(store storage.Store, bg *model.Background) *dto.BackgroundResponse {
	if bg == nil {
		return nil
	}
	return &dto.BackgroundResponse{
		Kind:     bg.Kind,
		Color:    bg.Color,
		ImageURL: urlOf(store, bg.ImagePath),
	}
}

func toFormResponse(store storage.Store, form *model.FormTemplate, count int64) *dto.FormResponse {
	styling := form.Styling.Data()
	fields := []model.FieldDescriptor(form.Fields)
	if fields == nil {
		fields = []model.FieldDescriptor{}
	}
	return &dto.FormResponse{
		ID:              form.FormID,
		Title:           form.Title,
		Slug:            form.Slug,
		PublicPath:      "/form/" + form.Slug + "/",
		Fields:          fields,
		LogoURL:         urlOf(store, styling.LogoPath),
		Background:      toBackgroundResponse(store, styling.Background),
		SubmissionCount: count,
		CreatedAt:       form.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       form.UpdatedAt.Format(time.RFC3339),
	}
}

// toBackground 合并请求中的背景配置；切换到图片背景时保留已上传的图片
func toBackground(req *dto.BackgroundRequest, current *model.Background) *model.Background {
	if req == nil {
		return current
	}
	bg := &model.Background{Kind: req.Kind}
	switch req.Kind {
	case model.BackgroundColor:
		bg.Color = req.Color
	case model.BackgroundImage:
		if current != nil {
			bg.ImagePath = current.ImagePath
		}
	}
	return bg
}

func assetPath(formID, name, from string) string {
	return fmt.Sprintf("forms/%s/%s%s", formID, name, extOf(from))
}

// deleteFiles 尽力删除文件，返回成功删除的数量；失败仅记录日志
func deleteFiles(ctx context.Context, store storage.Store, logger *zap.Logger, paths []string) int {
	removed := 0
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := store.Delete(ctx, p); err != nil {
			logger.Warn("删除文件失败", zap.String("path", p), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}
