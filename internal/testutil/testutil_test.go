package testutil

import (
	"errors"
	"testing"

	"github.com/banshee-data/depthcloud/internal/depthcloud"
	"github.com/banshee-data/depthcloud/internal/fsutil"
	"github.com/banshee-data/depthcloud/internal/monitoring"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestAssertNoError_FailurePath(t *testing.T) {
	t.Parallel()

	ok := t.Run("non-nil error", func(t *testing.T) {
		AssertNoError(t, errors.New("boom"))
	})
	if ok {
		t.Fatal("expected subtest to fail on non-nil error")
	}
}

func TestAssertError(t *testing.T) {
	t.Parallel()
	AssertError(t, errors.New("test error"))
}

func TestAssertError_FailurePath(t *testing.T) {
	t.Parallel()

	ok := t.Run("nil error", func(t *testing.T) {
		AssertError(t, nil)
	})
	if ok {
		t.Fatal("expected subtest to fail on nil error")
	}
}

func TestCaptureLogs(t *testing.T) {
	prev := monitoring.Logf
	defer monitoring.SetLogger(prev)

	var calls int
	monitoring.SetLogger(func(string, ...interface{}) { calls++ })

	t.Run("inner", func(t *testing.T) {
		CaptureLogs(t)
		monitoring.Logf("routed to %s", t.Name())
	})
	if calls != 0 {
		t.Fatalf("inner log reached the outer logger")
	}

	monitoring.Logf("after")
	if calls != 1 {
		t.Errorf("logger was not restored after the subtest")
	}
}

func TestWriteRecording(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	clouds := WriteRecording(t, mfs, "/rec.dc", depthcloud.ModeCompressed, 6, 4, 3)
	if len(clouds) != 3 {
		t.Fatalf("got %d clouds, want 3", len(clouds))
	}
	for i, c := range clouds {
		if want := uint64(1_000_000 + i*FramePeriodUs); c.Timestamp() != want {
			t.Errorf("cloud %d timestamp = %d, want %d", i, c.Timestamp(), want)
		}
	}

	info, err := mfs.Stat("/rec.dc")
	AssertNoError(t, err)
	if want := int64(3 * depthcloud.EncodedSize(6, 4, depthcloud.ModeCompressed)); info.Size() != want {
		t.Errorf("file size = %d, want %d", info.Size(), want)
	}
}
