// Package xconf 提供统一的配置加载和解析功能，基于 koanf 实现。
//
// # 设计理念
//
// xconf 定位为最小化配置加载器，负责文件/字节数据的加载、反序列化和
// 热重载，调度池与压测工具的配置都经由它读取。不负责配置治理
// （必选字段校验、默认值注入、环境变量覆盖），这些能力由调用方按需实现。
//
//   - 工厂函数：New, NewFromBytes
//   - Client() 暴露底层 koanf 实例，基础读取操作直接用它
//   - 增值功能：并发安全的 Reload、类型安全的 Unmarshal、文件监视
//
// # 支持的格式
//
//   - YAML（默认，推荐）：.yaml, .yml
//   - JSON：.json
//
// # 并发安全
//
// 当前配置保存在 atomic.Pointer 中：
//   - Client() 与 Unmarshal() 无锁读取当前快照
//   - Reload() 由互斥锁串行化，解析成功后原子替换快照指针，
//     失败时保留旧快照，读方不会看到半新半旧的配置
//
// Client() 返回的指针在 Reload 后仍然有效，但指向旧快照（快照语义）。
// 推荐每次需要时调用 Client()，不要长期缓存返回的指针。
//
// # Unmarshal
//
// Unmarshal 基于 mapstructure，默认允许弱类型转换（字符串 "8080" 可
// 自动转为 int 8080）。需要严格校验时在 Unmarshal 后自行验证。
// MustUnmarshal 是包级函数，适用于程序启动时加载必要配置，失败即 panic。
//
// # 配置监视
//
// Watch 基于 fsnotify 监视配置文件所在目录，变更经防抖合并后自动
// Reload 并回调通知。支持编辑器原子写入（写临时文件后 rename）。
// Stop 幂等，返回后不再有新的重载被调度；回调中的 panic 不会终止
// 监视循环。从字节数据创建的配置不支持监视。
package xconf
