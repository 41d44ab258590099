package service

import (
	"context"
	"errors"
	"math/rand/v2"

	"go.uber.org/zap"

	"intake-forms/backend/internal/model"
	"intake-forms/backend/internal/repository"
)

// ErrUniqueIDExhausted 表单的 4 位编号已全部占用
var ErrUniqueIDExhausted = errors.New("该表单的提交编号已用尽")

const (
	uniqueIDSpace = model.UniqueIDMax - model.UniqueIDMin + 1

	// 随机探测次数上限
	defaultMaxProbes = 16
	// 已用比例超过该值时直接走空闲列表
	denseRatio = 0.75
)

// UniqueIDAllocator 为某个表单分配 1000-9999 之间的编号
//
// 分配只做存在性检查，不做预留；真正的唯一性由 submissions(form_id, unique_id)
// 唯一约束保证，调用方在插入冲突时重新分配。
type UniqueIDAllocator interface {
	Allocate(ctx context.Context, formID string) (int, error)
}

type uniqueIDAllocator struct {
	subs      repository.SubmissionRepository
	intN      func(n int) int
	maxProbes int
	logger    *zap.Logger
}

// NewUniqueIDAllocator 创建编号分配器
func NewUniqueIDAllocator(subs repository.SubmissionRepository, logger *zap.Logger) UniqueIDAllocator {
	return &uniqueIDAllocator{
		subs:      subs,
		intN:      rand.IntN,
		maxProbes: defaultMaxProbes,
		logger:    logger,
	}
}

func (a *uniqueIDAllocator) Allocate(ctx context.Context, formID string) (int, error) {
	used, err := a.subs.CountByForm(ctx, formID)
	if err != nil {
		return 0, err
	}
	if used >= uniqueIDSpace {
		return 0, ErrUniqueIDExhausted
	}

	// ── 稀疏：随机探测 ──
	if float64(used)/uniqueIDSpace < denseRatio {
		for i := 0; i < a.maxProbes; i++ {
			candidate := model.UniqueIDMin + a.intN(uniqueIDSpace)
			exists, err := a.subs.UniqueIDExists(ctx, formID, candidate)
			if err != nil {
				return 0, err
			}
			if !exists {
				return candidate, nil
			}
		}
		a.logger.Debug("随机探测未命中，改用空闲列表",
			zap.String("form_id", formID),
			zap.Int64("used", used),
		)
	}

	// ── 稠密：从空闲编号中均匀抽取 ──
	return a.fromFreeList(ctx, formID)
}

func (a *uniqueIDAllocator) fromFreeList(ctx context.Context, formID string) (int, error) {
	ids, err := a.subs.ListUniqueIDs(ctx, formID)
	if err != nil {
		return 0, err
	}

	var taken [uniqueIDSpace]bool
	for _, id := range ids {
		if id >= model.UniqueIDMin && id <= model.UniqueIDMax {
			taken[id-model.UniqueIDMin] = true
		}
	}
	free := make([]int, 0, uniqueIDSpace)
	for i, t := range taken {
		if !t {
			free = append(free, model.UniqueIDMin+i)
		}
	}
	if len(free) == 0 {
		return 0, ErrUniqueIDExhausted
	}
	return free[a.intN(len(free))], nil
}
