package logger

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

var debugEnabled atomic.Bool

// SetDebug 打开或关闭Debug级别的输出，由启动流程根据运行模式设置。
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

func stamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

// Info 以黄色输出普通信息
func Info(format string, v ...any) {
	color.Yellow("[%s] [INFO] %s", stamp(), fmt.Sprintf(format, v...))
}

// Success 以绿色输出成功信息
func Success(format string, v ...any) {
	color.Green("[%s] [OK] %s", stamp(), fmt.Sprintf(format, v...))
}

// Warn 以洋红色输出警告
func Warn(format string, v ...any) {
	color.Magenta("[%s] [WARN] %s", stamp(), fmt.Sprintf(format, v...))
}

// Error 以红色输出错误
func Error(format string, v ...any) {
	color.Red("[%s] [ERROR] %s", stamp(), fmt.Sprintf(format, v...))
}

// Debug 以青色输出调试信息，仅在 SetDebug(true) 之后生效
func Debug(format string, v ...any) {
	if !debugEnabled.Load() {
		return
	}
	color.Cyan("[%s] [DEBUG] %s", stamp(), fmt.Sprintf(format, v...))
}
