package core

import (
	"fmt"
	"runtime"
)

// If 类似三目运算。
// 但是这不是真正的三目运算, 因为不论 e为何值, a, b的表达式都会被运算
//
//	比如: If(a != nil, a.XX, "default"), 如果a为nil, a.XX运算会导致程序崩溃
func If[T any](e bool, a, b T) T {
	if e {
		return a
	}
	return b
}

// GetFrame 获取调用栈中的某一帧
//
//	GetFrame(0) 是调用 GetFrame 的函数, GetFrame(1) 是它的调用者, 以此类推
func GetFrame(skipFrames int) runtime.Frame {
	// runtime.Callers 和 GetFrame 本身占了2帧
	targetFrameIndex := skipFrames + 2

	// 多申请1帧, 保证 frames.Next 能返回 more
	programCounters := make([]uintptr, targetFrameIndex+2)
	n := runtime.Callers(0, programCounters)

	frame := runtime.Frame{Function: "unknown"}
	if n > 0 {
		frames := runtime.CallersFrames(programCounters[:n])
		for more, frameIndex := true, 0; more && frameIndex <= targetFrameIndex; frameIndex++ {
			var frameCandidate runtime.Frame
			frameCandidate, more = frames.Next()
			if frameIndex == targetFrameIndex {
				frame = frameCandidate
			}
		}
	}

	return frame
}

// FrameString 输出 file:line 格式, 未知帧返回函数名
func FrameString(frame runtime.Frame) string {
	if frame.File == "" {
		return frame.Function
	}
	return fmt.Sprintf("%s:%d", frame.File, frame.Line)
}
