// Copyright 2026 strictgen Authors
// Use of this source code is governed by the project license.

/*
# 概述

包 contract 定义结构化生成的"契约"：目标结构的 Schema 描述、
请求编译以及对后端原始文本的确定性校验。

契约本身是数据（Schema + FieldSpec），由普通控制流校验，而不是通过反射推断。
Schema 在启动时构建一次，之后只读共享；Compiler 与 Validate 均为纯函数，
可被多个并发生成流程安全复用。

# 主要类型

  - FieldSpec / FieldKind：单个字段：有界整数、枚举字符串、字符串列表、自由字符串
  - Schema：有序、字段名唯一的字段集合，附带产物用途描述
  - Compiler / GenerationRequest：将指令模板、契约、用户输入与上次违规合并为请求
  - ValidationReport / Violation：单次校验结果，违规以数据形式返回

# 典型用法

	schema := contract.MustSchema("A cocktail recipe.",
		contract.IntegerField("score", 1, 100),
		contract.EnumField("glass", "Coupe", "Rocks"),
	)
	compiler, _ := contract.NewCompiler(schema, "{{contract}}\n\nUser vibe:\n{{input}}")
	req := compiler.Compile("rainy jazz club", nil)
	report := contract.Validate(schema, raw)
	if !report.Succeeded {
		req = compiler.Compile("rainy jazz club", report.Violations)
	}

# 错误

  - Schema 构造失败返回 types.ErrSchemaDefinition
  - 模板缺少 {{contract}} / {{input}} 或含未知占位符返回 types.ErrTemplate
*/
package contract
