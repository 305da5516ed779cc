package configwatcher

import (
	"context"
	"path/filepath"
	"step_tracker_backend/internal/config"
	"step_tracker_backend/pkg/logger"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ConfigReloader 接收重新加载成功的配置
type ConfigReloader func(cfg *config.Config)

// DebounceInterval 连续写入合并为一次重载
const DebounceInterval = time.Second

// WatchConfig 监听配置文件所在目录，阻塞直到 ctx 结束
// 监听目录而不是文件本身，编辑器的 rename 保存方式也能触发重载
func WatchConfig(ctx context.Context, configFile string, reloader ConfigReloader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(configFile)
	if err != nil {
		return err
	}
	dirPath := filepath.Dir(absPath)

	if err := watcher.Add(dirPath); err != nil {
		return err
	}

	timer := time.NewTimer(DebounceInterval)
	stopTimer(timer)

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// 防抖处理
			stopTimer(timer)
			timer.Reset(DebounceInterval)
		case <-timer.C:
			newCfg, err := config.LoadConfig(dirPath)
			if err != nil {
				logger.Log.Error("Failed to reload config", zap.Error(err))
				continue
			}
			logger.Log.Info("Config reloaded", zap.String("path", absPath))
			reloader(newCfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
