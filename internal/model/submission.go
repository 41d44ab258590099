package model

import (
	"time"

	"gorm.io/gorm"
)

// unique_id 取值范围
const (
	UniqueIDMin = 1000
	UniqueIDMax = 9999
)

// Submission 学生提交，对应 submissions 表
type Submission struct {
	SubmissionID string    `gorm:"type:uuid;primaryKey"                                                                           json:"submission_id"`
	FormID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_submissions_form_unique,priority:1;index:idx_submissions_form_submitted,priority:1" json:"form_id"`
	UniqueID     int       `gorm:"not null;uniqueIndex:idx_submissions_form_unique,priority:2;check:chk_submissions_unique_id,unique_id BETWEEN 1000 AND 9999" json:"unique_id"`
	Data         Answers   `gorm:"not null"                                                                                       json:"data"`
	PhotoPath    string    `gorm:"type:varchar(512);not null;default:''"                                                          json:"photo_path"`
	SubmittedAt  time.Time `gorm:"not null;autoCreateTime;index:idx_submissions_form_submitted,priority:2"                        json:"submitted_at"`
}

// TableName 指定表名
func (Submission) TableName() string { return "submissions" }

// BeforeCreate 生成主键
func (s *Submission) BeforeCreate(*gorm.DB) error {
	ensureID(&s.SubmissionID)
	return nil
}

// FilePaths 提交关联的全部存储文件（去重）
func (s *Submission) FilePaths() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range s.Data.Files() {
		add(p)
	}
	add(s.PhotoPath)
	return out
}
