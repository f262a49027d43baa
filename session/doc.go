// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package session 持有进程内唯一的生成后端句柄与生成参数。

# 概述

Session 在启动时通过 Open 创建（校验配置并探活后端），在退出时通过
Close 释放。它只负责"发送一次请求、返回原始文本"，不理解 schema，
也不做结构校验；上层以 Prompt 接口传入编译好的文本。

# 并发模型

所有生成调用共享同一个 Session：

  - 加权信号量限制在途请求数（MaxConcurrent = 1 时完全串行）
  - 可选令牌桶限流（RequestsPerSecond / Burst）
  - 等待信号量或令牌时遵守调用方 context，取消一个调用不影响其他调用

# 错误语义

  - types.ErrBackendUnavailable：后端不可达、配置被拒绝或会话已关闭
  - types.ErrBackendRequest：后端请求失败，Retryable 区分瞬时（限流、5xx、
    超时）与永久（格式错误、鉴权失败、配额用尽）错误
  - types.ErrTimeout：调用方截止时间到达或主动取消

# 会话记忆

启用 Memory 后，每次成功调用把用户提示与回复追加到记忆中，下次请求前
按 MaxMessages 与 TokenLimit 裁剪后作为历史消息发送。记忆只追加，
仅在 Close 时重置。BufferMemory 为进程内实现，RedisMemory 基于
Redis 列表（RPUSH + LTRIM），适用于多实例共享。
*/
package session
