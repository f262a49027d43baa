// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 llm 定义生成后端的窄接口与请求/响应模型。

# 概述

后端只负责"把编译好的提示词变成一段原始文本"，不提供任何结构保证。
结构约束、校验与重试全部由上层的 contract / generation 包负责。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name

# 核心类型

  - [ChatRequest] / [ChatResponse]：与 OpenAI Chat Completions 对齐的请求与响应
  - [Error]：后端原始错误，携带 HTTP 状态与 Retryable 标记，
    由 session 包翻译为 types.Error

# 子包

  - providers / providers/openaicompat：OpenAI 兼容后端实现与错误映射
  - retry：指数退避策略与重试器
  - tokenizer：会话记忆窗口的 token 计数
  - circuitbreaker：后端熔断，连续瞬时失败后快速失败
*/
package llm
