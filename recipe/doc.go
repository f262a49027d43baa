// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 recipe 定义 Strict Mixologist 的鸡尾酒契约：字段 schema、指令模板，
以及把成功结果解码为强类型 Recipe 的辅助函数。

	engine, err := generation.NewEngine(recipe.Schema(), recipe.Template, sess, generation.DefaultPolicy())
	outcome := engine.ProduceArtifact(ctx, "rainy jazz night")
	if outcome.Succeeded() {
		r, _ := recipe.Decode(outcome.Value)
		fmt.Print(r)
	}
*/
package recipe
