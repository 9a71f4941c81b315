package goroutine

import (
	"runtime/debug"

	"github.com/thankatech/backend/internal/logger"
)

// SafeGo запускает фоновую горутину и гасит panic: упавшая отправка письма
// или push-уведомления не должна ронять процесс.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil && logger.Log != nil {
				logger.Log.Errorf("panic в фоновой горутине: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}
