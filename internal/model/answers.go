package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// AnswerKind 答案的取值形态
type AnswerKind uint8

const (
	AnswerNull AnswerKind = iota
	AnswerText
	AnswerList
	AnswerFile
)

// FileRef 已上传文件的存储引用；URL 在读取时由存储层生成
type FileRef struct {
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}

// Answer 单个字段的答案：文本 / 多选列表 / 文件引用 / 空
type Answer struct {
	Kind AnswerKind
	Text string
	List []string
	File *FileRef
}

func TextAnswer(s string) Answer       { return Answer{Kind: AnswerText, Text: s} }
func ListAnswer(items []string) Answer { return Answer{Kind: AnswerList, List: items} }
func FileAnswer(path string) Answer    { return Answer{Kind: AnswerFile, File: &FileRef{Path: path}} }
func NullAnswer() Answer               { return Answer{} }
func (a Answer) IsNull() bool          { return a.Kind == AnswerNull }
func (a Answer) IsFile() bool          { return a.Kind == AnswerFile && a.File != nil }

// Render 导出/筛选使用的文本形式：列表以 ", " 连接，文件取 resolve(path)，空值为 ""
// resolve 为 nil 时文件直接输出存储路径
func (a Answer) Render(resolve func(path string) string) string {
	switch a.Kind {
	case AnswerText:
		return a.Text
	case AnswerList:
		return strings.Join(a.List, ", ")
	case AnswerFile:
		if a.File == nil {
			return ""
		}
		if a.File.URL != "" {
			return a.File.URL
		}
		if resolve != nil {
			return resolve(a.File.Path)
		}
		return a.File.Path
	default:
		return ""
	}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerText:
		return marshalRaw(a.Text)
	case AnswerList:
		if a.List == nil {
			return []byte("[]"), nil
		}
		return marshalRaw(a.List)
	case AnswerFile:
		if a.File == nil {
			return []byte("null"), nil
		}
		return marshalRaw(a.File)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON 兼容历史数据：数字、布尔等标量按原文作为文本
func (a *Answer) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*a = NullAnswer()
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				s = string(bytes.TrimSpace(item))
			}
			list = append(list, s)
		}
		*a = ListAnswer(list)
	case '{':
		var ref FileRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			return err
		}
		*a = Answer{Kind: AnswerFile, File: &ref}
	default:
		*a = TextAnswer(string(raw))
	}
	return nil
}

// AnswerEntry 有序映射中的一项
type AnswerEntry struct {
	Name  string
	Value Answer
}

// Answers 提交数据：字段名 → 答案，保持写入顺序
// 对应 submissions.data JSONB 列；不要求与当前模板字段一致
type Answers []AnswerEntry

// Get 按字段名取值
func (as Answers) Get(name string) (Answer, bool) {
	for _, e := range as {
		if e.Name == name {
			return e.Value, true
		}
	}
	return Answer{}, false
}

// Set 存在则覆盖，否则追加
func (as *Answers) Set(name string, v Answer) {
	for i := range *as {
		if (*as)[i].Name == name {
			(*as)[i].Value = v
			return
		}
	}
	*as = append(*as, AnswerEntry{Name: name, Value: v})
}

// Files 返回全部文件引用的存储路径
func (as Answers) Files() []string {
	var out []string
	for _, e := range as {
		if e.Value.IsFile() && e.Value.File.Path != "" {
			out = append(out, e.Value.File.Path)
		}
	}
	return out
}

// WithURLs 返回副本，文件答案填充可访问地址
func (as Answers) WithURLs(resolve func(path string) string) Answers {
	out := make(Answers, len(as))
	for i, e := range as {
		if e.Value.IsFile() {
			ref := *e.Value.File
			ref.URL = resolve(ref.Path)
			e.Value = Answer{Kind: AnswerFile, File: &ref}
		}
		out[i] = e
	}
	return out
}

func (as Answers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range as {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalRaw(e.Name)
		if err != nil {
			return nil, err
		}
		val, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 逐个读取键值以保留顺序
func (as *Answers) UnmarshalJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*as = Answers{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("answers: 期望 JSON 对象，实际 %v", tok)
	}
	out := Answers{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("answers: 非法键 %v", keyTok)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return err
		}
		var a Answer
		if err := a.UnmarshalJSON(val); err != nil {
			return fmt.Errorf("answers[%s]: %w", key, err)
		}
		out.Set(key, a)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*as = out
	return nil
}

// Scan 实现 sql.Scanner 接口
func (as *Answers) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*as = Answers{}
		return nil
	case []byte:
		return as.UnmarshalJSON(v)
	case string:
		return as.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("answers: 不支持的类型 %T", value)
	}
}

// Value 实现 driver.Valuer 接口
func (as Answers) Value() (driver.Value, error) {
	b, err := as.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GormDataType gorm 通用类型
func (Answers) GormDataType() string { return "json" }

// GormDBDataType PostgreSQL 使用 JSONB，其余方言使用 JSON
func (Answers) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "JSON"
}

// marshalRaw 序列化时不转义 <>&，存储文本与搜索文本保持原样
func marshalRaw(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
