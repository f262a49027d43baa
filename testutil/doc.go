// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package testutil 提供 strictgen 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，避免各包重复实现
相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout，自动注册 Cleanup 防止泄漏
  - 日志辅助: TestLogger 将 zap 日志输出到 t.Log
  - 等待: WaitFor 轮询并发状态（例如信号量占用数）

# 子包

  - testutil/mocks: MockProvider（按脚本返回响应或错误的生成后端）、
    MockMemory（会话记忆），均支持 Builder 模式与错误注入
  - testutil/fixtures: 鸡尾酒配方的合法与违规响应样例

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithScript(
	    mocks.Reply(fixtures.RecipeJSON(fixtures.WithScore(150))),
	    mocks.Reply(fixtures.ValidRecipeJSON()),
	)
*/
package testutil
