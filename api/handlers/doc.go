// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package handlers 提供 strictgen HTTP API 的请求处理器实现。

# 核心类型

  - ArtifactHandler：POST /v1/artifacts，调用 Producer 生成并返回结构化结果
  - HealthHandler：/health、/healthz、/ready、/version
  - Response：统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo：结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter：包装 http.ResponseWriter 以捕获状态码
  - HealthCheck：可插拔健康检查接口（后端、Redis）

# 错误映射

types.ErrorCode 映射为 HTTP 状态码：INVALID_REQUEST → 400，
VALIDATION_EXHAUSTED → 422，BACKEND_REQUEST → 502，
BACKEND_UNAVAILABLE → 503，TIMEOUT → 504。失败的生成结果仍在 data 中
返回尝试次数与诊断信息。
*/
package handlers
