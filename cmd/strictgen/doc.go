// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package main 提供 strictgen 服务端程序入口。

# 概述

cmd/strictgen 在进程启动时按配置打开唯一的后端会话，装配配方契约与
生成引擎，然后以 HTTP API 或一次性命令行的方式对外提供生成能力。

# 子命令

  - serve：启动 HTTP 服务，SIGINT/SIGTERM 触发优雅关闭
  - generate：对一段 vibe 生成一份配方并打印，失败时输出诊断
  - version：打印构建信息（Version、BuildTime、GitCommit 由 ldflags 注入）
  - health：请求运行中服务的 /health

# 路由

  - POST /v1/artifacts：生成配方
  - GET  /health /healthz /ready：健康与就绪检查（后端、Redis）
  - GET  /version：版本信息
  - GET  /metrics：Prometheus 指标

# 中间件

Recovery、RequestID、SecurityHeaders、OTelTracing、MetricsMiddleware、
RequestLogger，依次包裹 chi 路由。
*/
package main
