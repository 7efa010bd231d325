package nodes

import (
	"time"

	"golang.org/x/sys/unix"
)

// ModernStat is the fstat/fstatat result surface handed back to callers. The
// source blits the raw struct stat bytes across the async boundary; Go has
// no equivalent untyped memcpy between distinct struct layouts, so the
// async path here populates an unix.Stat_t internally and ReflectResult
// translates it field by field into this caller-facing type instead
// (SPEC_FULL.md #12).
type ModernStat struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32
	Nlink   uint64
	Uid     uint32
	Gid     uint32
	Rdev    uint64
	Size    int64
	Blksize int64
	Blocks  int64
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
}

// TranslateStat exposes translateStat for callers outside this package that
// need the same field-by-field translation on the no-active-graph
// fallback path (package hijack), so both paths deliver an identical
// ModernStat shape regardless of whether a graph intercepted the call.
func TranslateStat(raw *unix.Stat_t) ModernStat { return translateStat(raw) }

func translateStat(raw *unix.Stat_t) ModernStat {
	return ModernStat{
		Dev:     uint64(raw.Dev),
		Ino:     raw.Ino,
		Mode:    raw.Mode,
		Nlink:   uint64(raw.Nlink),
		Uid:     raw.Uid,
		Gid:     raw.Gid,
		Rdev:    uint64(raw.Rdev),
		Size:    raw.Size,
		Blksize: int64(raw.Blksize),
		Blocks:  raw.Blocks,
		Atime:   time.Unix(raw.Atim.Sec, raw.Atim.Nsec),
		Mtime:   time.Unix(raw.Mtim.Sec, raw.Mtim.Nsec),
		Ctime:   time.Unix(raw.Ctim.Sec, raw.Ctim.Nsec),
	}
}
