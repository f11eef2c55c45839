package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：指派或账本记录已被并发操作修改
// 调用方捕获后可在有限次数内重读重试
var ErrOptimisticLock = errors.New("记录已被并发修改，请重试")
