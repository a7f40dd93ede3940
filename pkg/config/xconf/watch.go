package xconf

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchCallback 是文件变更回调。
// 每次自动重载后调用一次，err 表示本次重载是否成功。
type WatchCallback func(cfg Config, err error)

// WatchOption 定义监视器配置选项函数类型。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

func defaultWatchOptions() watchOptions {
	return watchOptions{
		debounce: 100 * time.Millisecond,
	}
}

// WithDebounce 设置防抖时间：该时间窗口内的多次变更只触发一次重载。
// 默认 100ms。不为正数时 Watch 返回 [ErrInvalidDebounce]。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		o.debounce = d
	}
}

// Watcher 监视配置文件变更并自动重载。
// 必须通过 [Watch] 创建；零值不可用。
type Watcher struct {
	cfg      *koanfConfig
	watcher  *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopped bool
	timer   *time.Timer // 待触发的防抖定时器，Stop 时取消
	quit    chan struct{}
}

// Watch 创建配置文件监视器。
//
// 文件变更时自动调用 Reload 并通过 callback 通知结果。返回的
// Watcher 需调用 Start（阻塞）或 StartAsync（后台）开始监视，
// Stop 停止并释放资源。只有从文件创建的 Config 支持监视，
// 从字节数据创建的返回 [ErrNotFromFile]。
func Watch(cfg Config, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	kc, ok := cfg.(*koanfConfig)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported config type %T", ErrWatchFailed, cfg)
	}
	if !kc.fromFile {
		return nil, ErrNotFromFile
	}
	if kc.path == "" {
		return nil, ErrEmptyPath
	}
	if callback == nil {
		return nil, ErrNilCallback
	}

	o := defaultWatchOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	if o.debounce <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDebounce, o.debounce)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWatchFailed, err)
	}

	// 监视配置文件所在目录而非文件本身：编辑器保存时可能先删除
	// 再创建，直接监视文件会在第一次替换后丢失后续事件。
	dir := filepath.Dir(kc.path)
	if err := fsWatcher.Add(dir); err != nil {
		closeErr := fsWatcher.Close()
		return nil, errors.Join(
			fmt.Errorf("%w: watch directory %s: %w", ErrWatchFailed, dir, err),
			closeErr,
		)
	}

	return &Watcher{
		cfg:      kc,
		watcher:  fsWatcher,
		callback: callback,
		debounce: o.debounce,
		quit:     make(chan struct{}),
	}, nil
}

// Start 启动监视并阻塞到 Stop 被调用，通常在独立 goroutine 中运行。
// 重复调用与 Stop 后调用都直接返回。
func (w *Watcher) Start() {
	if !w.markRunning() {
		return
	}
	w.run()
}

// StartAsync 在后台 goroutine 中启动监视，立即返回。
// 先置运行标志再启动 goroutine，与紧随其后的 Stop 不构成竞态。
func (w *Watcher) StartAsync() {
	if !w.markRunning() {
		return
	}
	go w.run()
}

func (w *Watcher) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return false
	}
	w.running = true
	return true
}

// Stop 停止监视并释放 fsnotify 资源。幂等；未启动时调用同样生效。
// 返回后不再有新的重载被调度，已在执行中的回调会自然结束。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	close(w.quit)
	return w.watcher.Close()
}

// run 是监视循环。
func (w *Watcher) run() {
	filename := filepath.Base(w.cfg.path)

	for {
		select {
		case <-w.quit:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, filename)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		}
	}
}

// handleEvent 处理文件系统事件，对目标文件的变更做防抖重载。
func (w *Watcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}

	// Write 为直接修改；Create 与 Rename 覆盖编辑器原子写入模式
	// （写临时文件后 rename 替换原文件）。
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	// 防抖：新事件重置计时器，窗口内的连续变更合并为一次重载
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reloadAndNotify)
}

// reloadAndNotify 在防抖窗口结束后执行重载并通知回调。
func (w *Watcher) reloadAndNotify() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	// 回调 panic 只终止本次通知，不终止监视循环
	defer func() { _ = recover() }()

	err := w.cfg.Reload()
	w.callback(w.cfg, err)
}

// handleError 把 fsnotify 的错误转交回调。
func (w *Watcher) handleError(err error) {
	if w.callback == nil {
		return
	}
	w.callback(w.cfg, fmt.Errorf("xconf: watch error: %w", err))
}

// WatchConfig 在 Config 基础上扩展监视能力。
type WatchConfig interface {
	Config

	// Watch 监视配置文件变更，变更时自动重载并调用 callback。
	Watch(callback WatchCallback, opts ...WatchOption) (*Watcher, error)
}

// Watch 实现 WatchConfig 接口。
func (c *koanfConfig) Watch(callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	return Watch(c, callback, opts...)
}
