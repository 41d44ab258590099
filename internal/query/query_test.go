package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-forms/backend/internal/model"
)

var (
	testForm = &model.FormTemplate{
		Fields: []model.FieldDescriptor{
			{Name: "Full Name", Type: model.FieldTypeText},
			{Name: "Roll Number", Type: model.FieldTypeText},
			{Name: "Student Class", Type: model.FieldTypeSelect},
			{Name: "Hobbies", Type: model.FieldTypeCheckbox},
		},
	}
	sortable = []string{"Full Name", "Roll Number"}
	t0       = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
)

func sub(uid int, minute int, name, class string) model.Submission {
	var data model.Answers
	data.Set("Full Name", model.TextAnswer(name))
	data.Set("Student Class", model.TextAnswer(class))
	return model.Submission{UniqueID: uid, Data: data, SubmittedAt: t0.Add(time.Duration(minute) * time.Minute)}
}

func uids(subs []model.Submission) []int {
	out := make([]int, len(subs))
	for i, s := range subs {
		out[i] = s.UniqueID
	}
	return out
}

func fixture() []model.Submission {
	return []model.Submission{
		sub(1111, 0, "Bob", "5A"),
		sub(2222, 1, "alice", "5B"),
		sub(3333, 2, "Carol", "5A"),
		sub(4444, 3, "alice", ""),
	}
}

func TestApply_DefaultOrderIsSubmittedAtDesc(t *testing.T) {
	res := Apply(testForm, fixture(), Spec{}, sortable)
	assert.Equal(t, []int{4444, 3333, 2222, 1111}, uids(res.Submissions))
}

func TestApply_UnknownSortKeyFallsBack(t *testing.T) {
	res := Apply(testForm, fixture(), Spec{SortKey: "Hobbies", Direction: Asc}, sortable)
	assert.Equal(t, []int{4444, 3333, 2222, 1111}, uids(res.Submissions))
}

func TestApply_CategoryFilter(t *testing.T) {
	res := Apply(testForm, fixture(), Spec{Category: "5A"}, sortable)
	assert.Equal(t, "Student Class", res.CategoryField)
	assert.Equal(t, []int{3333, 1111}, uids(res.Submissions))
	assert.Equal(t, []string{"5A"}, res.Categories)
}

func TestApply_CategoryFilterNoMatchIsEmpty(t *testing.T) {
	res := Apply(testForm, fixture(), Spec{Category: "9Z"}, sortable)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Categories)
}

func TestApply_DistinctCategoriesSkipEmpty(t *testing.T) {
	res := Apply(testForm, fixture(), Spec{}, sortable)
	assert.Equal(t, []string{"5A", "5B"}, res.Categories)
}

func TestApply_NoCategoryFieldIgnoresFilter(t *testing.T) {
	form := &model.FormTemplate{Fields: []model.FieldDescriptor{{Name: "Full Name", Type: model.FieldTypeText}}}
	res := Apply(form, fixture(), Spec{Category: "5A"}, sortable)
	assert.Len(t, res.Submissions, 4)
	assert.Empty(t, res.CategoryField)
	assert.Nil(t, res.Categories)
}

func TestApply_TextQuery(t *testing.T) {
	res := Apply(testForm, fixture(), Spec{Text: "ALICE"}, sortable)
	assert.ElementsMatch(t, []int{2222, 4444}, uids(res.Submissions))

	res = Apply(testForm, fixture(), Spec{Text: "333"}, sortable)
	assert.Equal(t, []int{3333}, uids(res.Submissions))
}

func TestApply_TextQueryMatchesSpecialCharacters(t *testing.T) {
	var data model.Answers
	data.Set("Full Name", model.TextAnswer("Tom & Jerry"))
	subs := []model.Submission{{UniqueID: 1234, Data: data, SubmittedAt: t0}}

	res := Apply(testForm, subs, Spec{Text: "tom & j"}, sortable)
	assert.Len(t, res.Submissions, 1)
}

func TestApply_AnswerSortCaseInsensitiveWithTiebreak(t *testing.T) {
	res := Apply(testForm, fixture(), Spec{SortKey: "Full Name", Direction: Asc}, sortable)
	// alice(2222, 较早) 与 alice(4444) 同名，按提交时间升序
	assert.Equal(t, []int{2222, 4444, 1111, 3333}, uids(res.Submissions))

	res = Apply(testForm, fixture(), Spec{SortKey: "Full Name", Direction: Desc}, sortable)
	assert.Equal(t, []int{3333, 1111, 2222, 4444}, uids(res.Submissions))
}

func TestApply_UniqueIDSort(t *testing.T) {
	subs := []model.Submission{sub(5000, 0, "a", ""), sub(1200, 1, "b", ""), sub(9999, 2, "c", "")}

	res := Apply(testForm, subs, Spec{SortKey: SortUniqueID, Direction: Asc}, sortable)
	assert.Equal(t, []int{1200, 5000, 9999}, uids(res.Submissions))

	res = Apply(testForm, subs, Spec{SortKey: SortUniqueID}, sortable)
	assert.Equal(t, []int{9999, 5000, 1200}, uids(res.Submissions))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := fixture()
	_ = Apply(testForm, in, Spec{SortKey: SortUniqueID}, sortable)
	require.Len(t, in, 4)
	assert.Equal(t, []int{1111, 2222, 3333, 4444}, uids(in))
}

func TestParseDirection(t *testing.T) {
	assert.Equal(t, Asc, ParseDirection("ASC"))
	assert.Equal(t, Desc, ParseDirection("desc"))
	assert.Equal(t, Desc, ParseDirection(""))
	assert.Equal(t, Desc, ParseDirection("sideways"))
}
