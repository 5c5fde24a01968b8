// Package sinks 采集结果输出
//
// 每个输出目标独立消费 HarvestSession 的记录,保持记录顺序。
// 写入失败只中止当前输出目标,不影响其他目标与内存中的记录。
package sinks
