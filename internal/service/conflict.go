package service

import (
	"strconv"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/dto"
	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/model"
)

// ── 冲突检测器 ──
//
// 乐观并发控制：编辑者提交其上次读取的快照，与存储中的当前记录
// 逐字段比较比较键（session: 日期+时间对；recurring: 星期+时间对，
// 外加 status 与 schedule_change_type）。任一字段不一致即判定冲突，
// 由调用方选择「重载最新」或「强制保存」。不做合并与三方 diff。

// detectConflict 比较当前记录与快照
// snapshot 为 nil 表示调用方显式放弃检测（force 模式），恒视为一致
func detectConflict(current *model.ScheduleRecord, snapshot *dto.ScheduleSnapshot) bool {
	if snapshot == nil {
		return false
	}
	return current.CompareKey() != snapshotKey(current.Kind, snapshot)
}

// snapshotKey 将调用方快照转为比较键
// 锚点字段依记录种类取 date 或 day_of_week，与 model.CompareKey 对齐
func snapshotKey(kind model.ScheduleKind, snap *dto.ScheduleSnapshot) model.CompareKey {
	key := model.CompareKey{
		StartTime: snap.StartTime,
		EndTime:   snap.EndTime,
		Status:    model.ScheduleStatus(snap.Status),
	}
	if kind == model.KindRecurring {
		if snap.DayOfWeek != nil {
			key.Anchor = strconv.Itoa(*snap.DayOfWeek)
		}
	} else if snap.Date != nil {
		key.Anchor = *snap.Date
	}
	if snap.ScheduleChangeType != nil {
		key.ChangeType = *snap.ScheduleChangeType
	}
	return key
}
