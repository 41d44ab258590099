// Package query 将管理端的筛选/排序请求应用到某个表单的提交集合上
//
// 所有字段名都先与模板字段或排序白名单比对后才参与计算，不会拼接进 SQL。
package query

import (
	"sort"
	"strconv"
	"strings"

	"intake-forms/backend/internal/model"
)

// Direction 排序方向
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// 结构字段排序键
const (
	SortUniqueID    = "unique_id"
	SortSubmittedAt = "submitted_at"
)

// ParseDirection 只接受 asc，其余一律视为 desc
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Asc)) {
		return Asc
	}
	return Desc
}

// Spec 一次查询请求
type Spec struct {
	Text      string
	Category  string
	SortKey   string
	Direction Direction
}

// Result 查询结果
type Result struct {
	Submissions   []model.Submission
	CategoryField string   // 模板中名称包含 "class" 的字段；不存在时为空
	Categories    []string // 结果集中该字段的非空取值（去重、升序）
}

// Empty 结果集是否为空
func (r Result) Empty() bool { return len(r.Submissions) == 0 }

// CategoryField 第一个名称包含 "class"（不区分大小写）的字段名
func CategoryField(fields []model.FieldDescriptor) string {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.Name), "class") {
			return f.Name
		}
	}
	return ""
}

// SortKeys 合法排序键：结构字段 + 答案字段白名单
func SortKeys(sortable []string) []string {
	keys := []string{SortSubmittedAt, SortUniqueID}
	return append(keys, sortable...)
}

// Apply 过滤并排序；输入切片不会被修改
// subs 应按 submitted_at 升序传入，作为所有排序的稳定基准
func Apply(form *model.FormTemplate, subs []model.Submission, spec Spec, sortable []string) Result {
	res := Result{CategoryField: CategoryField(form.Fields)}

	text := strings.ToLower(strings.TrimSpace(spec.Text))
	out := make([]model.Submission, 0, len(subs))
	for i := range subs {
		s := &subs[i]
		if text != "" && !matchText(s, text) {
			continue
		}
		if res.CategoryField != "" && spec.Category != "" && answerText(s, res.CategoryField) != spec.Category {
			continue
		}
		out = append(out, *s)
	}

	if res.CategoryField != "" {
		res.Categories = distinct(out, res.CategoryField)
	}

	sortSubmissions(out, spec, sortable)
	res.Submissions = out
	return res
}

// matchText data 的 JSON 文本或 unique_id 包含查询词
func matchText(s *model.Submission, lowered string) bool {
	if strings.Contains(strconv.Itoa(s.UniqueID), lowered) {
		return true
	}
	raw, err := s.Data.MarshalJSON()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(raw)), lowered)
}

func answerText(s *model.Submission, field string) string {
	a, ok := s.Data.Get(field)
	if !ok {
		return ""
	}
	return a.Render(nil)
}

func distinct(subs []model.Submission, field string) []string {
	seen := make(map[string]struct{})
	values := []string{}
	for i := range subs {
		v := answerText(&subs[i], field)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func isSortable(key string, sortable []string) bool {
	for _, k := range sortable {
		if k == key {
			return true
		}
	}
	return false
}

func sortSubmissions(subs []model.Submission, spec Spec, sortable []string) {
	desc := spec.Direction != Asc

	switch {
	case spec.SortKey == SortUniqueID:
		sort.SliceStable(subs, func(i, j int) bool {
			if desc {
				return subs[i].UniqueID > subs[j].UniqueID
			}
			return subs[i].UniqueID < subs[j].UniqueID
		})
	case spec.SortKey == SortSubmittedAt:
		sortBySubmittedAt(subs, desc)
	case spec.SortKey != "" && isSortable(spec.SortKey, sortable):
		type keyed struct {
			key string
			sub model.Submission
		}
		rows := make([]keyed, len(subs))
		for i := range subs {
			rows[i] = keyed{key: strings.ToLower(answerText(&subs[i], spec.SortKey)), sub: subs[i]}
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].key != rows[j].key {
				if desc {
					return rows[i].key > rows[j].key
				}
				return rows[i].key < rows[j].key
			}
			// 同值按提交时间升序
			return rows[i].sub.SubmittedAt.Before(rows[j].sub.SubmittedAt)
		})
		for i := range rows {
			subs[i] = rows[i].sub
		}
	default:
		sortBySubmittedAt(subs, true)
	}
}

func sortBySubmittedAt(subs []model.Submission, desc bool) {
	sort.SliceStable(subs, func(i, j int) bool {
		if desc {
			return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
		}
		return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
	})
}
