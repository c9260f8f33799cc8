package utils

import (
	"fmt"
	"runtime/debug"
)

// GoSafe runs fn in a goroutine and hands any panic to onPanic.
func GoSafe(fn func(), onPanic func(err error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if onPanic != nil {
					onPanic(fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
				}
			}
		}()
		fn()
	}()
}
