package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"intake-forms/backend/config"
	"intake-forms/backend/internal/model"
	"intake-forms/backend/internal/query"
	"intake-forms/backend/internal/repository"
	"intake-forms/backend/pkg/slug"
	"intake-forms/backend/pkg/storage"
)

// ── 导出模块业务错误 ──

var (
	// ErrExportEmpty 筛选结果为空，不生成文件
	ErrExportEmpty        = errors.New("没有符合条件的提交可导出")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

const (
	exportSheetName  = "Submissions"
	exportTimeLayout = "2006-01-02 15:04:05"
	headerUniqueID   = "Unique ID"
	headerSubmitted  = "Submitted At"
)

// SkippedFile 打包时被跳过的文件
type SkippedFile struct {
	UniqueID int    `json:"unique_id"`
	Field    string `json:"field"`
	Path     string `json:"path"`
	Reason   string `json:"reason"`
}

// ArchiveResult 压缩包导出结果
type ArchiveResult struct {
	Buffer   *bytes.Buffer
	Filename string
	Added    int
	Skipped  []SkippedFile
}

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出前按与列表相同的筛选/排序规则选出提交；结果为空时返回 ErrExportEmpty
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - 表格列：Unique ID、模板字段（模板顺序）、Submitted At
//   - 压缩包条目：{unique_id}{字段后缀}{扩展名}，缺失文件跳过并记录
type ExportService interface {
	// ExportSpreadsheet 导出为 Excel，返回 buf、文件名
	ExportSpreadsheet(ctx context.Context, adminID, formID string, spec query.Spec) (*bytes.Buffer, string, error)
	// ExportArchive 打包全部上传文件为 zip
	ExportArchive(ctx context.Context, adminID, formID string, spec query.Spec) (*ArchiveResult, error)
}

type exportService struct {
	cfg    *config.Config
	repo   *repository.Repository
	store  storage.Store
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.Config, repo *repository.Repository, store storage.Store, logger *zap.Logger) ExportService {
	return &exportService{cfg: cfg, repo: repo, store: store, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportSpreadsheet 导出提交为 Excel
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportSpreadsheet(ctx context.Context, adminID, formID string, spec query.Spec) (*bytes.Buffer, string, error) {
	form, res, err := selectSubmissions(ctx, s.repo, adminID, formID, spec, s.cfg.Query.SortableFields)
	if err != nil {
		return nil, "", err
	}
	if res.Empty() {
		return nil, "", ErrExportEmpty
	}

	rows := BuildRows(form, res.Submissions, s.store.URL)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, "", ErrExportGenerateFail
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i := range rows {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(exportSheetName, cellName, &rows[i]); err != nil {
			s.logger.Error("写入 Excel 行失败", zap.Int("row", i+1), zap.Error(err))
			return nil, "", ErrExportGenerateFail
		}
	}

	lastCol := colName(len(rows[0]) - 1)
	_ = f.SetCellStyle(exportSheetName, "A1", lastCol+"1", headerStyle)
	_ = f.SetColWidth(exportSheetName, "A", lastCol, 18)
	_ = f.SetPanes(exportSheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	s.logger.Info("导出 Excel",
		zap.String("form_id", form.FormID),
		zap.Int("rows", len(res.Submissions)),
	)
	return buf, exportBaseName(form) + "_submissions.xlsx", nil
}

// BuildRows 生成表格数据（含表头）：N 条提交得到 N+1 行，每行 2+len(fields) 列
// 列表答案以 ", " 连接，文件答案取 resolve(path)，缺失/空值为空串
func BuildRows(form *model.FormTemplate, subs []model.Submission, resolve func(string) string) [][]interface{} {
	header := make([]interface{}, 0, len(form.Fields)+2)
	header = append(header, headerUniqueID)
	for _, fd := range form.Fields {
		header = append(header, fd.Name)
	}
	header = append(header, headerSubmitted)

	rows := make([][]interface{}, 0, len(subs)+1)
	rows = append(rows, header)
	for i := range subs {
		sub := &subs[i]
		row := make([]interface{}, 0, len(header))
		row = append(row, sub.UniqueID)
		for _, fd := range form.Fields {
			a, ok := sub.Data.Get(fd.Name)
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, a.Render(resolve))
		}
		row = append(row, sub.SubmittedAt.UTC().Format(exportTimeLayout))
		rows = append(rows, row)
	}
	return rows
}

// ═══════════════════════════════════════════════════════════
// ExportArchive 打包上传文件
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportArchive(ctx context.Context, adminID, formID string, spec query.Spec) (*ArchiveResult, error) {
	form, res, err := selectSubmissions(ctx, s.repo, adminID, formID, spec, s.cfg.Query.SortableFields)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, ErrExportEmpty
	}

	fileFields := form.FileFields()
	primary := form.PrimaryPhotoField()

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	result := &ArchiveResult{Buffer: buf, Filename: exportBaseName(form) + "_photos.zip"}
	used := make(map[string]int)

	for i := range res.Submissions {
		sub := &res.Submissions[i]
		for _, fd := range fileFields {
			p := referencedPath(sub, fd.Name, primary)
			if p == "" {
				continue
			}

			content, reason := s.readFile(ctx, p)
			if reason != "" {
				s.logger.Warn("打包时跳过文件",
					zap.String("form_id", form.FormID),
					zap.Int("unique_id", sub.UniqueID),
					zap.String("field", fd.Name),
					zap.String("path", p),
					zap.String("reason", reason),
				)
				result.Skipped = append(result.Skipped, SkippedFile{UniqueID: sub.UniqueID, Field: fd.Name, Path: p, Reason: reason})
				continue
			}

			name := uniqueEntryName(used, fmt.Sprintf("%d%s%s", sub.UniqueID, fd.FileSuffix(), extOf(p)))
			w, err := zw.CreateHeader(&zip.FileHeader{
				Name:     name,
				Method:   zip.Deflate,
				Modified: sub.SubmittedAt,
			})
			if err != nil {
				s.logger.Error("创建压缩条目失败", zap.String("entry", name), zap.Error(err))
				return nil, ErrExportGenerateFail
			}
			if _, err := w.Write(content); err != nil {
				s.logger.Error("写入压缩条目失败", zap.String("entry", name), zap.Error(err))
				return nil, ErrExportGenerateFail
			}
			result.Added++
		}
	}

	if err := zw.Close(); err != nil {
		s.logger.Error("关闭压缩包失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}

	s.logger.Info("导出压缩包",
		zap.String("form_id", form.FormID),
		zap.Int("submissions", len(res.Submissions)),
		zap.Int("added", result.Added),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// readFile 读取文件全部内容；失败时返回跳过原因
func (s *exportService) readFile(ctx context.Context, p string) ([]byte, string) {
	exists, err := s.store.Exists(ctx, p)
	if err != nil {
		return nil, "检查文件失败: " + err.Error()
	}
	if !exists {
		return nil, "文件不存在"
	}
	r, err := s.store.Open(ctx, p)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "文件不存在"
		}
		return nil, "打开文件失败: " + err.Error()
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, "读取文件失败: " + err.Error()
	}
	return content, ""
}

// ── 辅助函数 ──

// referencedPath data[field] 中的文件引用；主照片字段缺失时回退到 photo_path
func referencedPath(sub *model.Submission, field, primary string) string {
	if a, ok := sub.Data.Get(field); ok && a.IsFile() && a.File.Path != "" {
		return a.File.Path
	}
	if field == primary {
		return sub.PhotoPath
	}
	return ""
}

// uniqueEntryName 重名条目追加 _2、_3 …
func uniqueEntryName(used map[string]int, name string) string {
	used[name]++
	if used[name] == 1 {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := used[name]; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if used[candidate] == 0 {
			used[candidate] = 1
			return candidate
		}
	}
}

func exportBaseName(form *model.FormTemplate) string {
	if base := slug.Make(form.Title); base != "" {
		return base
	}
	return form.Slug
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}
