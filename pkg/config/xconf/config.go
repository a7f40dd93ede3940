package xconf

import "github.com/knadh/koanf/v2"

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// Config 定义配置接口。
// 只提供增值功能，基础操作请直接使用 Client() 返回的 koanf 实例。
type Config interface {
	// Client 返回当前生效的 koanf 实例快照。
	// Reload 后旧快照仍可安全读取，但数据停留在重载前；
	// 每次需要时重新调用 Client()，不要长期缓存返回的指针。
	Client() *koanf.Koanf

	// Unmarshal 将指定路径的配置反序列化到目标结构体。
	// path 为空字符串时反序列化整个配置。
	Unmarshal(path string, target any) error

	// Reload 重新读取并解析配置文件，原子替换当前快照。
	// 并发安全。从字节数据创建的配置返回 [ErrNotFromFile]。
	Reload() error

	// Path 返回配置文件路径。
	// 从字节数据创建的配置返回空字符串。
	Path() string

	// Format 返回配置格式。
	Format() Format
}

// MustUnmarshal 与 [Config.Unmarshal] 相同，但失败时 panic。
// 适用于程序启动时加载缺了就无法运行的配置。
func MustUnmarshal(cfg Config, path string, target any) {
	if err := cfg.Unmarshal(path, target); err != nil {
		panic(err)
	}
}
