// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package types 提供 strictgen 全局共享的错误体系。

# 概述

types 是最底层的公共包，不依赖任何内部包。contract、session、generation、
api 等上层模块通过统一的 Error / ErrorCode 报告构造期错误与请求期错误。

# 错误分类

  - ErrSchemaDefinition：Schema 定义错误，启动期致命
  - ErrTemplate：指令模板错误，启动期致命
  - ErrBackendUnavailable：后端不可达或拒绝配置
  - ErrBackendRequest：单次请求失败，Retryable 区分瞬时 / 永久
  - ErrTimeout：调用方截止时间到达或被取消
  - ErrValidationExhausted：校验重试预算耗尽

# 错误工具链

  - AsError / IsCode / GetErrorCode：基于 errors.As，可穿透 %w 包装
  - IsRetryable：判断是否为可重试的瞬时错误
*/
package types
