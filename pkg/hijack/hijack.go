// Package hijack implements the hijacked POSIX entry points of
// SPEC_FULL.md #4.7: the collaborator surface a linker `--wrap` stub (or,
// in this Go translation, a direct call site in application code built
// against this module) dispatches through. Each function here does
// exactly the three things the spec describes: fall through to the real
// POSIX call when no graph is active, otherwise walk to the frontier node,
// CheckArgs, and Issue.
package hijack

import (
	"golang.org/x/sys/unix"

	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/nodes"
	"github.com/perf-analysis/internal/posix"
	"github.com/perf-analysis/internal/registry"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/pkg/errors"
)

// result converts the engine's raw rc convention (non-negative on success,
// negative errno on failure — SPEC_FULL.md #7) into idiomatic Go, without
// altering the numeric value a caller inspecting the raw return would see:
// the exact same rc that an unwrapped POSIX call would have produced.
func result(rc int64) (int, error) {
	if rc < 0 {
		return int(rc), unix.Errno(-rc)
	}
	return int(rc), nil
}

// frontier fetches g's current frontier node and type-asserts it to T,
// panicking with a plugin-misuse AppError on mismatch — the graph the
// plugin built doesn't agree with the call sequence the host function is
// actually making, a programming error per SPEC_FULL.md #7.
func frontier[T any](g *scgraph.Graph) (T, *epoch.List) {
	n, ep := scgraph.GetFrontier(g)
	t, ok := n.(T)
	if !ok {
		errors.Fatal(errors.CodePluginMisuse, "hijack: frontier node type does not match the intercepted call")
	}
	return t, ep
}

// Open is the hijacked open(2) entry point.
func Open(lane *registry.LaneKey, path string, flags int, mode uint32) (int, error) {
	g := registry.Active(lane)
	if g == nil {
		return result(posix.Open(path, flags, mode))
	}
	n, ep := frontier[*nodes.OpenNode](g)
	n.CheckArgs(ep, path, flags, mode)
	return result(n.Issue(ep, nil))
}

// Openat is the hijacked openat(2) entry point.
func Openat(lane *registry.LaneKey, dirfd int, path string, flags int, mode uint32) (int, error) {
	g := registry.Active(lane)
	if g == nil {
		return result(posix.Openat(dirfd, path, flags, mode))
	}
	n, ep := frontier[*nodes.OpenatNode](g)
	n.CheckArgs(ep, dirfd, path, flags, mode)
	return result(n.Issue(ep, nil))
}

// Close is the hijacked close(2) entry point.
func Close(lane *registry.LaneKey, fd int) error {
	g := registry.Active(lane)
	if g == nil {
		_, err := result(posix.Close(fd))
		return err
	}
	n, ep := frontier[*nodes.CloseNode](g)
	n.CheckArgs(ep, fd)
	_, err := result(n.Issue(ep, nil))
	return err
}

// Pread is the hijacked pread(2) entry point. buf is the caller's
// destination; the synchronous path reads straight into it, and the
// asynchronous path's ReflectResult memcpys an internal buffer into it.
func Pread(lane *registry.LaneKey, fd int, buf []byte, offset int64) (int, error) {
	g := registry.Active(lane)
	if g == nil {
		return result(posix.Pread(fd, buf, offset))
	}
	n, ep := frontier[*nodes.PreadNode](g)
	n.CheckArgs(ep, fd, len(buf), offset)
	return result(n.Issue(ep, buf))
}

// Pwrite is the hijacked pwrite(2) entry point.
func Pwrite(lane *registry.LaneKey, fd int, buf []byte, offset int64) (int, error) {
	g := registry.Active(lane)
	if g == nil {
		return result(posix.Pwrite(fd, buf, offset))
	}
	n, ep := frontier[*nodes.PwriteNode](g)
	n.CheckArgs(ep, fd, buf, offset)
	return result(n.Issue(ep, nil))
}

// Lseek is the hijacked lseek(2) entry point. Per SPEC_FULL.md #4.4's
// syscall table lseek is never pre-issued, so the frontier path and the
// fallback path both always execute synchronously; CheckArgs/Issue still
// drive it through the common node machinery so rcsave/the stage pools
// observe it uniformly with every other call.
func Lseek(lane *registry.LaneKey, fd int, offset int64, whence int) (int64, error) {
	g := registry.Active(lane)
	if g == nil {
		rc := posix.Seek(fd, offset, whence)
		if rc < 0 {
			return rc, unix.Errno(-rc)
		}
		return rc, nil
	}
	n, ep := frontier[*nodes.LseekNode](g)
	n.CheckArgs(ep, fd, offset, whence)
	rc := n.Issue(ep, nil)
	if rc < 0 {
		return rc, unix.Errno(-rc)
	}
	return rc, nil
}

// Fstat is the hijacked fstat(2) entry point. out is always populated on
// success, on both the graph-active and fallback paths, with the same
// ModernStat translation (SPEC_FULL.md #4.4/#12).
func Fstat(lane *registry.LaneKey, fd int, out *nodes.ModernStat) error {
	g := registry.Active(lane)
	if g == nil {
		raw, rc := posix.Fstat(fd)
		if rc == 0 {
			*out = nodes.TranslateStat(&raw)
		}
		_, err := result(rc)
		return err
	}
	n, ep := frontier[*nodes.FstatNode](g)
	n.CheckArgs(ep, fd)
	_, err := result(n.Issue(ep, out))
	return err
}

// Fstatat is the hijacked fstatat(2)/newfstatat(2) entry point.
func Fstatat(lane *registry.LaneKey, dirfd int, path string, flags int, out *nodes.ModernStat) error {
	g := registry.Active(lane)
	if g == nil {
		raw, rc := posix.Fstatat(dirfd, path, flags)
		if rc == 0 {
			*out = nodes.TranslateStat(&raw)
		}
		_, err := result(rc)
		return err
	}
	n, ep := frontier[*nodes.FstatatNode](g)
	n.CheckArgs(ep, dirfd, path, flags)
	_, err := result(n.Issue(ep, out))
	return err
}
