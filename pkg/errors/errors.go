package errors

import "errors"

// ErrUniqueIDConflict 同一表单下 unique_id 已被占用（数据库唯一约束冲突）
var ErrUniqueIDConflict = errors.New("提交编号冲突，请重试")

// ErrSlugTaken 表单 slug 已被占用（数据库唯一约束冲突）
var ErrSlugTaken = errors.New("表单链接标识已被占用")
