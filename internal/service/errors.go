package service

import "errors"

// 信息流管线错误分类。单事件/单请求级别的失败绝不中断整批或波及其他用户，
// 只有日志/存储级别的不可用才向上传播。
var (
	// ErrEnqueueFailed 扇出事件写入日志失败，阻断发帖成功
	ErrEnqueueFailed = errors.New("enqueue fan-out event failed")
	// ErrEventParse 事件字段不完整或非法，跳过该事件（不 ack，等待重试）
	ErrEventParse = errors.New("malformed fan-out event")
	// ErrSourceLookup 帖子或关注数据查不到/查不动，跳过该事件
	ErrSourceLookup = errors.New("source lookup failed")
	// ErrCacheWrite 缓存写入失败，跳过该事件，批次继续
	ErrCacheWrite = errors.New("cache write failed")
	// ErrRebuildFailed 重建信息流失败，作为可重试错误抛给调用方
	ErrRebuildFailed = errors.New("news feed rebuild failed")
)
