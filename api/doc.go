// Package api 定义 strictgen HTTP 接口的请求与响应结构。
//
// # API Overview
//
//   - POST /v1/artifacts 从一段描述生成经过校验的结构化对象
//   - GET /health、/healthz 存活检查
//   - GET /ready 就绪检查（后端会话与 Redis）
//   - GET /version 版本信息
//   - GET /metrics Prometheus 指标
//
// 表现层只会看到通过校验的值，或者带有状态、尝试次数与诊断信息的
// 结构化失败，不会看到后端原始错误。
package api
