// Package config 提供 strictgen 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → STRICTGEN_* 环境变量 的顺序叠加，
// 最后运行校验器。SessionConfig 与 GenerationPolicy 把配置转换为
// session 与 generation 包使用的运行时结构。
package config
