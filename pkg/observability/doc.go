// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xmetrics: 调度池观测接口与 OpenTelemetry metrics 实现
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 观测接口与实现分离，调度热路径默认零开销（Noop）
//   - 指标记录使用不可取消的 context，失败路径同样可观测
package observability
