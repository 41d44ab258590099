package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"intake-forms/backend/pkg/slug"
)

// ── 字段类型 ──

const (
	FieldTypeText           = "text"
	FieldTypeTextarea       = "textarea"
	FieldTypeEmail          = "email"
	FieldTypeNumber         = "number"
	FieldTypeDate           = "date"
	FieldTypeSelect         = "select"
	FieldTypeCheckbox       = "checkbox"
	FieldTypeFileDocument   = "file_document"
	FieldTypePhotoCroppable = "photo_croppable"
)

// FieldDescriptor 表单字段定义；顺序决定填写页布局与导出列顺序
type FieldDescriptor struct {
	Name     string   `json:"name"              validate:"required,max=100"`
	Type     string   `json:"type"              validate:"required,oneof=text textarea email number date select checkbox file_document photo_croppable"`
	Required bool     `json:"required"`
	Suffix   string   `json:"suffix,omitempty"  validate:"omitempty,max=50"`
	Options  []string `json:"options,omitempty" validate:"omitempty,max=100,dive,max=200"`
}

// IsFile 是否为文件类字段
func (f FieldDescriptor) IsFile() bool {
	return f.Type == FieldTypeFileDocument || f.Type == FieldTypePhotoCroppable
}

// FileSuffix 文件名后缀：未配置 suffix 时取字段名的 slug，统一以 "-" 开头
func (f FieldDescriptor) FileSuffix() string {
	if f.Suffix != "" {
		if s := slug.Suffix(f.Suffix); s != "" {
			return s
		}
	}
	if s := slug.Suffix(f.Name); s != "" {
		return s
	}
	return "-file"
}

// ── 样式 ──

const (
	BackgroundColor = "color"
	BackgroundImage = "image"
)

// Background 表单背景配置
type Background struct {
	Kind      string `json:"kind"`
	Color     string `json:"color,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
}

// Styling 表单外观（Logo 与背景）
type Styling struct {
	LogoPath   string      `json:"logo_path,omitempty"`
	Background *Background `json:"background,omitempty"`
}

// FormTemplate 表单模板，对应 form_templates 表
type FormTemplate struct {
	FormID  string                               `gorm:"type:uuid;primaryKey"                      json:"form_id"`
	AdminID string                               `gorm:"type:uuid;not null;index"                  json:"admin_id"`
	Title   string                               `gorm:"type:varchar(255);not null"                json:"title"`
	Slug    string                               `gorm:"type:varchar(255);not null;uniqueIndex"    json:"slug"`
	Fields  datatypes.JSONSlice[FieldDescriptor] `gorm:"not null"                                  json:"fields"`
	Styling datatypes.JSONType[Styling]          `gorm:"not null"                                  json:"styling"`
	BaseModel

	// 关联：删除模板级联删除其全部提交
	Submissions []Submission `gorm:"foreignKey:FormID;references:FormID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (FormTemplate) TableName() string { return "form_templates" }

// BeforeCreate 生成主键
func (f *FormTemplate) BeforeCreate(*gorm.DB) error {
	ensureID(&f.FormID)
	return nil
}

// FileFields 返回全部文件类字段（保持声明顺序）
func (f *FormTemplate) FileFields() []FieldDescriptor {
	var out []FieldDescriptor
	for _, fd := range f.Fields {
		if fd.IsFile() {
			out = append(out, fd)
		}
	}
	return out
}

// PrimaryPhotoField 第一个 photo_croppable 字段名，不存在时返回空串
func (f *FormTemplate) PrimaryPhotoField() string {
	for _, fd := range f.Fields {
		if fd.Type == FieldTypePhotoCroppable {
			return fd.Name
		}
	}
	return ""
}
