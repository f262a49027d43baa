// Copyright 2026 strictgen Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理。

Manager 封装 net/http.Server：Start/StartTLS 非阻塞启动，Run 阻塞到
context 结束（通常由 signal.NotifyContext 触发）或服务异常退出，
随后在 ShutdownTimeout 内排空请求，再按注册顺序执行关闭钩子
（关闭后端会话、刷新遥测数据等）。
*/
package server
