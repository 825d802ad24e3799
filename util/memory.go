package util

import (
	"log/slog"
	"runtime"
)

func LogMemory(logger *slog.Logger) {
	s := &runtime.MemStats{}
	runtime.ReadMemStats(s)
	logger.Info("memory",
		"alloc", s.Alloc,
		"heap-alloc", s.HeapAlloc,
		"heap-objects", s.HeapObjects,
		"heap-released", s.HeapReleased,
		"mallocs", s.Mallocs,
		"frees", s.Frees,
		"stack-inuse", s.StackInuse,
	)
}
