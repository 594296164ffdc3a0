package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：日程记录已被其他操作修改
// Repository 层在 version CAS 写入失败（RowsAffected == 0）时返回，
// Service 层据此重新读取最新记录并向调用方报告冲突
var ErrOptimisticLock = errors.New("记录已被其他操作修改，请刷新后重试")
