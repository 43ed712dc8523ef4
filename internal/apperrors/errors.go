package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound 目标文档（队伍/邀请/用户）在变更时已不存在
	ErrNotFound = errors.New("record not found")
	// ErrNotLeader 非队长调用了队长专属操作
	ErrNotLeader = errors.New("leader permission required")
	// ErrNotReceiver 非邀请接收人试图应答该邀请
	ErrNotReceiver = errors.New("only the invitation receiver can respond")
	// ErrAlreadyResponded 邀请已被接受或拒绝，不能再次处理
	ErrAlreadyResponded = errors.New("invitation already responded")
	// ErrAlreadyMember 已是队伍成员
	ErrAlreadyMember = errors.New("already a member of this group")
	// ErrGroupFull 队伍已满员
	ErrGroupFull = errors.New("group is full")
	// ErrNotEligible 不满足队伍的报名条件
	ErrNotEligible = errors.New("not eligible for this group")
)

// ValidationError 远端文档缺字段或字段非法。
// 带此错误的快照只记录日志并丢弃，绝不发布给下游。
type ValidationError struct {
	Collection string
	ID         string
	Fields     []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s document %s: missing or malformed fields [%s]",
		e.Collection, e.ID, strings.Join(e.Fields, ", "))
}

// PartialFailureError 扇出序列在中途失败。
// Completed 记录已提交的步骤；各步骤均为幂等实现，调用方可安全重放整个序列。
type PartialFailureError struct {
	Saga      string
	Step      string
	Completed []string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("saga %s failed at step %s (completed: %s): %v",
		e.Saga, e.Step, strings.Join(e.Completed, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
