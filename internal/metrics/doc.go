// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、生成流程
与生成后端三个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标。注册表由调用方注入
（promauto.With），测试可使用独立的 prometheus.NewRegistry 避免重复注册；
cmd 中使用默认注册表并通过 /metrics 暴露。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 生成指标：终态计数（succeeded/exhausted/failed）、端到端耗时、
    每次生成消耗的尝试次数、单次尝试结果、按字段与类型统计的契约违规。
  - 后端指标：后端请求总数与耗时，按 provider 分组。
*/
package metrics
