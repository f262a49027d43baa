// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 generation 实现结构化生成的重试控制：把契约编译为请求、调用后端、
校验响应，并把违规信息回灌到下一次请求，直到得到合法值或预算耗尽。

# 状态机

	Compiling → Requesting → Validating → Succeeded
	                ↓             ↓
	             Retrying ←───────┘
	                ↓
	      Compiling | Exhausted | Failed

转移规则：

  - 校验失败：进入 Retrying，违规作为下一次请求的纠正段落
  - 瞬时后端错误：消耗一次尝试，按退避策略等待，保留上一次的违规
  - 永久后端错误、调用方超时或取消：立即进入 Failed
  - 尝试次数达到 MaxAttempts 仍未通过校验：进入 Exhausted

# 核心类型

  - Engine：绑定 schema、模板、会话和策略，可并发复用
  - Controller：单次生成的状态机，只能运行一次
  - Outcome：终态结果，含最后一次校验报告与每次尝试的记录
  - Policy：尝试预算、退避参数与单次尝试超时

# 可观测性

每次生成创建 generation.produce_artifact span，每次尝试创建
generation.attempt 子 span；结果写入 Prometheus 指标。
*/
package generation
