package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"intake-forms/backend/internal/model"
)

func setupTestAllocator() (*uniqueIDAllocator, *mockSubmissionRepo) {
	forms := newMockFormTemplateRepo()
	subs := newMockSubmissionRepo(forms)
	a := NewUniqueIDAllocator(subs, zap.NewNop()).(*uniqueIDAllocator)
	return a, subs
}

func fill(subs *mockSubmissionRepo, formID string, from, to int) {
	for uid := from; uid <= to; uid++ {
		_ = subs.Create(context.Background(), &model.Submission{FormID: formID, UniqueID: uid})
	}
}

func TestUniqueIDAllocator_Allocate_InRange(t *testing.T) {
	a, _ := setupTestAllocator()

	for i := 0; i < 200; i++ {
		uid, err := a.Allocate(context.Background(), "form-1")
		if err != nil {
			t.Fatalf("Allocate 应成功: %v", err)
		}
		if uid < 1000 || uid > 9999 {
			t.Fatalf("编号应在 1000-9999 之间，实际: %d", uid)
		}
	}
}

func TestUniqueIDAllocator_Allocate_SkipsTaken(t *testing.T) {
	a, subs := setupTestAllocator()
	fill(subs, "form-1", 1000, 1001)

	// 依次给出 0、1、2 → 1000、1001 已占用，应得到 1002
	seq := []int{0, 1, 2}
	a.intN = func(int) int {
		v := seq[0]
		seq = seq[1:]
		return v
	}

	uid, err := a.Allocate(context.Background(), "form-1")
	if err != nil {
		t.Fatalf("Allocate 应成功: %v", err)
	}
	if uid != 1002 {
		t.Errorf("期望 1002，实际: %d", uid)
	}
}

func TestUniqueIDAllocator_Allocate_ScopedPerForm(t *testing.T) {
	a, subs := setupTestAllocator()
	fill(subs, "form-1", 1000, 1000)
	a.intN = func(int) int { return 0 }

	uid, err := a.Allocate(context.Background(), "form-2")
	if err != nil {
		t.Fatalf("Allocate 应成功: %v", err)
	}
	if uid != 1000 {
		t.Errorf("其他表单占用的编号不影响当前表单，期望 1000，实际: %d", uid)
	}
}

func TestUniqueIDAllocator_Allocate_FallsBackToFreeList(t *testing.T) {
	a, subs := setupTestAllocator()
	fill(subs, "form-1", 1000, 1010)
	// 探测永远命中已占用的 1000
	calls := 0
	a.intN = func(int) int {
		calls++
		return 0
	}

	uid, err := a.Allocate(context.Background(), "form-1")
	if err != nil {
		t.Fatalf("Allocate 应成功: %v", err)
	}
	if uid != 1011 {
		t.Errorf("期望空闲列表第一个编号 1011，实际: %d", uid)
	}
	if calls != defaultMaxProbes+1 {
		t.Errorf("期望探测 %d 次后改用空闲列表，实际调用随机数 %d 次", defaultMaxProbes, calls)
	}
}

func TestUniqueIDAllocator_Allocate_DenseUsesFreeList(t *testing.T) {
	a, subs := setupTestAllocator()
	fill(subs, "form-1", 1000, 9998)
	a.intN = func(n int) int {
		if n != 1 {
			t.Fatalf("稠密表单应直接从空闲列表抽取，实际随机范围: %d", n)
		}
		return 0
	}

	uid, err := a.Allocate(context.Background(), "form-1")
	if err != nil {
		t.Fatalf("Allocate 应成功: %v", err)
	}
	if uid != 9999 {
		t.Errorf("唯一空闲编号为 9999，实际: %d", uid)
	}
}

func TestUniqueIDAllocator_Allocate_Exhausted(t *testing.T) {
	a, subs := setupTestAllocator()
	fill(subs, "form-1", 1000, 9999)

	_, err := a.Allocate(context.Background(), "form-1")
	if !errors.Is(err, ErrUniqueIDExhausted) {
		t.Errorf("期望 ErrUniqueIDExhausted，实际: %v", err)
	}
}

func TestUniqueIDAllocator_Allocate_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection reset")
	a := &uniqueIDAllocator{
		subs:      &failingCountRepo{mockSubmissionRepo: newMockSubmissionRepo(newMockFormTemplateRepo()), err: storeErr},
		intN:      func(int) int { return 0 },
		maxProbes: defaultMaxProbes,
		logger:    zap.NewNop(),
	}

	_, err := a.Allocate(context.Background(), "form-1")
	if !errors.Is(err, storeErr) {
		t.Errorf("期望存储错误向上传递，实际: %v", err)
	}
}

type failingCountRepo struct {
	*mockSubmissionRepo
	err error
}

func (f *failingCountRepo) UniqueIDExists(context.Context, string, int) (bool, error) {
	return false, f.err
}
