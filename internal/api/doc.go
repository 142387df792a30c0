// Package api 通过 REST 接口暴露对局会话：无头模拟、提交转录、查询证明结果、
// 导出证明输入与渲染对局报告，同时提供健康检查与指标端点。
package api
