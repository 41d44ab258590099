package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"intake-forms/backend/config"
	"intake-forms/backend/internal/dto"
	"intake-forms/backend/internal/model"
	"intake-forms/backend/internal/query"
	"intake-forms/backend/internal/repository"
	pkgerrors "intake-forms/backend/pkg/errors"
	"intake-forms/backend/pkg/photo"
	"intake-forms/backend/pkg/storage"
)

// ── 提交模块业务错误 ──

var (
	ErrSubmissionNotFound = errors.New("提交记录不存在")
	ErrSubmitConflict     = errors.New("提交编号分配冲突，请稍后重试")
)

const (
	// 编号冲突后重新分配的最大次数
	maxSubmitAttempts = 5
	defaultFileExt    = ".jpg"
)

// SubmissionService 学生提交业务接口
type SubmissionService interface {
	// Submit 公开提交：校验 → 分配编号 → 保存文件 → 写入记录；编号冲突时清理文件并重试
	Submit(ctx context.Context, slug string, in *dto.SubmissionInput) (*dto.SubmitResponse, error)
	// List 管理端筛选/排序/分页
	List(ctx context.Context, adminID, formID string, req *dto.SubmissionQueryRequest) (*dto.SubmissionListResult, error)
	Get(ctx context.Context, adminID, submissionID string) (*dto.SubmissionResponse, error)
	// Delete 删除单条提交及其文件
	Delete(ctx context.Context, adminID, submissionID string) error
}

type submissionService struct {
	cfg       *config.Config
	repo      *repository.Repository
	allocator UniqueIDAllocator
	store     storage.Store
	logger    *zap.Logger
}

// NewSubmissionService 创建 SubmissionService 实例
func NewSubmissionService(
	cfg *config.Config,
	repo *repository.Repository,
	allocator UniqueIDAllocator,
	store storage.Store,
	logger *zap.Logger,
) SubmissionService {
	return &submissionService{
		cfg:       cfg,
		repo:      repo,
		allocator: allocator,
		store:     store,
		logger:    logger,
	}
}

// pendingFile 已校验、待写入存储的上传文件
type pendingFile struct {
	field       string
	suffix      string
	ext         string
	content     []byte
	contentType string
	primary     bool
}

// ════════════════════════════════════════
// Submit
// ════════════════════════════════════════

func (s *submissionService) Submit(ctx context.Context, slugValue string, in *dto.SubmissionInput) (*dto.SubmitResponse, error) {
	form, err := s.repo.FormTemplate.GetBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		s.logger.Error("查询表单失败", zap.String("slug", slugValue), zap.Error(err))
		return nil, err
	}

	// 1. 校验（任何写入之前）
	data, files, err := s.collectAnswers(form, in)
	if err != nil {
		return nil, err
	}

	// 2. 分配编号 → 保存文件 → 插入；冲突时重试
	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		uid, err := s.allocator.Allocate(ctx, form.FormID)
		if err != nil {
			if !errors.Is(err, ErrUniqueIDExhausted) {
				s.logger.Error("分配提交编号失败", zap.String("form_id", form.FormID), zap.Error(err))
			}
			return nil, err
		}

		sub := &model.Submission{
			FormID:   form.FormID,
			UniqueID: uid,
			Data:     append(model.Answers(nil), data...),
		}
		saved, err := s.saveFiles(ctx, form.FormID, uid, files, sub)
		if err != nil {
			deleteFiles(ctx, s.store, s.logger, saved)
			s.logger.Error("保存上传文件失败", zap.String("form_id", form.FormID), zap.Error(err))
			return nil, err
		}

		err = s.repo.Submission.Create(ctx, sub)
		if err == nil {
			s.logger.Info("提交成功",
				zap.String("form_id", form.FormID),
				zap.Int("unique_id", uid),
				zap.Int("files", len(saved)),
				zap.Int("attempt", attempt),
			)
			return &dto.SubmitResponse{
				UniqueID:    sub.UniqueID,
				SubmittedAt: sub.SubmittedAt.Format(time.RFC3339),
			}, nil
		}

		deleteFiles(ctx, s.store, s.logger, saved)
		if !errors.Is(err, pkgerrors.ErrUniqueIDConflict) {
			s.logger.Error("写入提交失败", zap.String("form_id", form.FormID), zap.Error(err))
			return nil, err
		}
		s.logger.Warn("提交编号冲突，重新分配",
			zap.String("form_id", form.FormID),
			zap.Int("unique_id", uid),
			zap.Int("attempt", attempt),
		)
	}
	return nil, ErrSubmitConflict
}

// collectAnswers 按模板字段顺序构造答案并校验；文件字段先占位为 null
func (s *submissionService) collectAnswers(form *model.FormTemplate, in *dto.SubmissionInput) (model.Answers, []pendingFile, error) {
	if in == nil {
		in = &dto.SubmissionInput{}
	}
	data := make(model.Answers, 0, len(form.Fields))
	var files []pendingFile
	primaryTaken := false

	for _, fd := range form.Fields {
		switch {
		case fd.IsFile():
			f, ok := in.Files[fd.Name]
			if !ok || len(f.Content) == 0 {
				if fd.Required {
					return nil, nil, newValidationError(fd.Name, "请上传文件")
				}
				data.Set(fd.Name, model.NullAnswer())
				continue
			}
			if limit := s.cfg.Upload.MaxFileBytes; limit > 0 && int64(len(f.Content)) > limit {
				return nil, nil, newValidationError(fd.Name, fmt.Sprintf("文件不能超过 %d 字节", limit))
			}
			pf, err := s.prepareFile(fd, f)
			if err != nil {
				return nil, nil, err
			}
			if fd.Type == model.FieldTypePhotoCroppable && !primaryTaken {
				pf.primary = true
				primaryTaken = true
			}
			files = append(files, pf)
			data.Set(fd.Name, model.NullAnswer())

		case fd.Type == model.FieldTypeCheckbox:
			values := nonEmpty(in.Values[fd.Name])
			if fd.Required && len(values) == 0 {
				return nil, nil, newValidationError(fd.Name, "至少选择一项")
			}
			if len(fd.Options) > 0 {
				for _, v := range values {
					if !containsString(fd.Options, v) {
						return nil, nil, newValidationError(fd.Name, fmt.Sprintf("%q 不是可选值", v))
					}
				}
			}
			data.Set(fd.Name, model.ListAnswer(values))

		default:
			raw, ok := in.Values[fd.Name]
			if !ok || len(raw) == 0 {
				if fd.Required {
					return nil, nil, newValidationError(fd.Name, "不能为空")
				}
				data.Set(fd.Name, model.NullAnswer())
				continue
			}
			v := strings.TrimSpace(raw[0])
			if v == "" && fd.Required {
				return nil, nil, newValidationError(fd.Name, "不能为空")
			}
			if v != "" {
				if err := validateAnswerValue(fd, v); err != nil {
					return nil, nil, err
				}
			}
			data.Set(fd.Name, model.TextAnswer(v))
		}
	}

	return data, files, nil
}

// prepareFile 照片字段解码校验并按配置缩放，文档字段原样保存
func (s *submissionService) prepareFile(fd model.FieldDescriptor, f dto.UploadedFile) (pendingFile, error) {
	pf := pendingFile{
		field:  fd.Name,
		suffix: fd.FileSuffix(),
		ext:    extOf(f.Filename),
	}
	if fd.Type == model.FieldTypePhotoCroppable {
		img, err := photo.Normalize(f.Content, f.Filename, photo.Options{
			MaxEdge:     s.cfg.Upload.PhotoMaxEdge,
			JPEGQuality: s.cfg.Upload.PhotoJPEGQuality,
		})
		if err != nil {
			return pf, newValidationError(fd.Name, "不是有效的图片")
		}
		pf.content = img.Data
		pf.ext = img.Extension
		pf.contentType = photo.ContentType(img.Extension)
		return pf, nil
	}

	pf.content = f.Content
	pf.contentType = f.ContentType
	if pf.contentType == "" {
		pf.contentType = mime.TypeByExtension(pf.ext)
	}
	return pf, nil
}

// saveFiles 写入 submissions/{form_id}/{unique_id}{suffix}{ext}，并回填答案与主照片
// 返回已写入的路径，供失败时清理
func (s *submissionService) saveFiles(ctx context.Context, formID string, uid int, files []pendingFile, sub *model.Submission) ([]string, error) {
	saved := make([]string, 0, len(files))
	for _, pf := range files {
		target := fmt.Sprintf("submissions/%s/%d%s%s", formID, uid, pf.suffix, pf.ext)
		actual, err := s.store.Save(ctx, target, bytes.NewReader(pf.content), int64(len(pf.content)), pf.contentType)
		if err != nil {
			return saved, err
		}
		saved = append(saved, actual)
		sub.Data.Set(pf.field, model.FileAnswer(actual))
		if pf.primary {
			sub.PhotoPath = actual
		}
	}
	return saved, nil
}

// ════════════════════════════════════════
// List / Get / Delete
// ════════════════════════════════════════

func (s *submissionService) List(ctx context.Context, adminID, formID string, req *dto.SubmissionQueryRequest) (*dto.SubmissionListResult, error) {
	if req == nil {
		req = &dto.SubmissionQueryRequest{}
	}
	form, res, err := selectSubmissions(ctx, s.repo, adminID, formID, specFromRequest(req), s.cfg.Query.SortableFields)
	if err != nil {
		return nil, err
	}

	page := req.GetPage()
	size := req.GetPageSize(s.cfg.Query.DefaultPageSize)
	total := len(res.Submissions)
	start, end := req.Window(total, s.cfg.Query.DefaultPageSize)

	list := make([]dto.SubmissionResponse, 0, end-start)
	for i := start; i < end; i++ {
		list = append(list, toSubmissionResponse(s.store, &res.Submissions[i]))
	}

	categories := res.Categories
	if categories == nil {
		categories = []string{}
	}
	return &dto.SubmissionListResult{
		List:  list,
		Total: int64(total),
		Page:  page,
		Size:  size,
		Extra: dto.SubmissionListExtra{
			Form:          *toFormResponse(s.store, form, int64(total)),
			CategoryField: res.CategoryField,
			Categories:    categories,
			SortableKeys:  query.SortKeys(s.cfg.Query.SortableFields),
		},
	}, nil
}

func (s *submissionService) Get(ctx context.Context, adminID, submissionID string) (*dto.SubmissionResponse, error) {
	sub, err := s.getOwned(ctx, adminID, submissionID)
	if err != nil {
		return nil, err
	}
	resp := toSubmissionResponse(s.store, sub)
	return &resp, nil
}

func (s *submissionService) Delete(ctx context.Context, adminID, submissionID string) error {
	sub, err := s.getOwned(ctx, adminID, submissionID)
	if err != nil {
		return err
	}
	if err := s.repo.Submission.Delete(ctx, sub.SubmissionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		s.logger.Error("删除提交失败", zap.String("submission_id", submissionID), zap.Error(err))
		return err
	}
	removed := deleteFiles(ctx, s.store, s.logger, sub.FilePaths())
	s.logger.Info("提交已删除",
		zap.String("submission_id", submissionID),
		zap.Int("unique_id", sub.UniqueID),
		zap.Int("files_removed", removed),
	)
	return nil
}

func (s *submissionService) getOwned(ctx context.Context, adminID, submissionID string) (*model.Submission, error) {
	sub, err := s.repo.Submission.GetByIDForAdmin(ctx, submissionID, adminID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		s.logger.Error("查询提交失败", zap.String("submission_id", submissionID), zap.Error(err))
		return nil, err
	}
	return sub, nil
}

// ── 共享辅助 ──

// selectSubmissions 校验归属后加载并筛选某表单的提交（列表与导出共用）
func selectSubmissions(
	ctx context.Context,
	repo *repository.Repository,
	adminID, formID string,
	spec query.Spec,
	sortable []string,
) (*model.FormTemplate, query.Result, error) {
	form, err := repo.FormTemplate.GetByIDForAdmin(ctx, formID, adminID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, query.Result{}, ErrFormNotFound
		}
		return nil, query.Result{}, err
	}
	subs, err := repo.Submission.ListByForm(ctx, form.FormID)
	if err != nil {
		return nil, query.Result{}, err
	}
	return form, query.Apply(form, subs, spec, sortable), nil
}

func specFromRequest(req *dto.SubmissionQueryRequest) query.Spec {
	return query.Spec{
		Text:      req.Q,
		Category:  req.ClassFilter,
		SortKey:   req.SortBy,
		Direction: query.ParseDirection(req.Order),
	}
}

func toSubmissionResponse(store storage.Store, sub *model.Submission) dto.SubmissionResponse {
	return dto.SubmissionResponse{
		ID:          sub.SubmissionID,
		UniqueID:    sub.UniqueID,
		Data:        sub.Data.WithURLs(store.URL),
		PhotoURL:    urlOf(store, sub.PhotoPath),
		SubmittedAt: sub.SubmittedAt.Format(time.RFC3339),
	}
}

// extOf 小写扩展名，缺省为 .jpg
func extOf(filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
	if ext == "" || ext == "." {
		return defaultFileExt
	}
	return ext
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
