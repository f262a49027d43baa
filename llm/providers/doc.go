// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供生成后端适配的公共基础层：OpenAI 兼容格式的请求/响应
结构、消息转换以及 HTTP 状态码到 llm.Error 的错误映射。具体后端实现
（openaicompat）依赖本包完成共享逻辑。

# 核心类型

  - CompletionRequest / CompletionResponse / ErrorBody：Chat Completions 线上格式
  - ResponseFormat：json_object 输出模式

# 核心函数

  - MapHTTPError：将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - ReadErrorMessage：读取错误响应体，优先解析 JSON 错误消息
  - NewCompletionRequest：llm.ChatRequest 到线上请求的转换
  - CompletionResponse.ChatResponse：线上响应到 llm.ChatResponse 的转换
  - ChooseModel：按优先级选择模型（请求 > 默认 > 兜底）

# 错误语义

  - 401/403/400 与配额错误为永久错误，不重试
  - 408/429/502/503/504/529 以及其余 5xx 为瞬时错误，可重试
*/
package providers
