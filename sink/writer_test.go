package sink_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/teeql/query/types"
	"github.com/wkalt/teeql/sink"
	"github.com/wkalt/teeql/storage"
)

type failingWriter struct {
	closes int
}

func (w *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func (w *failingWriter) Close() error {
	w.closes++
	return nil
}

type abortingWriter struct {
	written []byte
	closes  int
	aborted error
}

func (w *abortingWriter) Write(p []byte) (int, error) {
	w.written = append(w.written, p...)
	return len(p), nil
}

func (w *abortingWriter) Close() error {
	w.closes++
	return nil
}

func (w *abortingWriter) CloseWithError(err error) error {
	w.aborted = err
	return nil
}

type staticOpener struct {
	w   io.WriteCloser
	err error
}

func (o staticOpener) Create(context.Context, string) (io.WriteCloser, error) {
	return o.w, o.err
}

func TestWriter(t *testing.T) {
	ctx := context.Background()

	t.Run("header and rows", func(t *testing.T) {
		store := storage.NewMemStore()
		w, err := sink.Open(ctx, store, "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.WriteHeader([]string{"a", "b"}))
		require.NoError(t, w.WriteRow([]types.Value{types.Int(1), types.String("x")}))
		require.NoError(t, w.WriteRow([]types.Value{types.Int(2), types.NullValue()}))
		require.NoError(t, w.Close())

		data, err := store.Get("out.csv")
		require.NoError(t, err)
		require.Equal(t, "a,b\n1,x\n2,\n", string(data))
		require.Equal(t, int64(2), w.Rows())
		require.Equal(t, int64(len(data)), w.Bytes())
		require.Equal(t, "out.csv", w.Path())
	})

	t.Run("header only", func(t *testing.T) {
		store := storage.NewMemStore()
		w, err := sink.Open(ctx, store, "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.WriteHeader([]string{"a"}))
		require.NoError(t, w.Close())
		data, err := store.Get("out.csv")
		require.NoError(t, err)
		require.Equal(t, "a\n", string(data))
	})

	t.Run("custom delimiter", func(t *testing.T) {
		store := storage.NewMemStore()
		w, err := sink.Open(ctx, store, "out.csv", sink.WithDelimiter('|'), sink.WithBufferSize(4))
		require.NoError(t, err)
		require.NoError(t, w.WriteHeader([]string{"a", "b"}))
		require.NoError(t, w.WriteRow([]types.Value{types.Int(1), types.Int(2)}))
		require.NoError(t, w.Close())
		data, err := store.Get("out.csv")
		require.NoError(t, err)
		require.Equal(t, "a|b\n1|2\n", string(data))
	})

	t.Run("header written twice", func(t *testing.T) {
		w, err := sink.Open(ctx, storage.NewMemStore(), "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.WriteHeader([]string{"a"}))
		require.ErrorIs(t, w.WriteHeader([]string{"a"}), sink.ErrHeaderWritten)
	})

	t.Run("header after rows", func(t *testing.T) {
		w, err := sink.Open(ctx, storage.NewMemStore(), "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.WriteRow([]types.Value{types.Int(1)}))
		require.ErrorIs(t, w.WriteHeader([]string{"a"}), sink.ErrHeaderWritten)
	})

	t.Run("row width mismatch", func(t *testing.T) {
		w, err := sink.Open(ctx, storage.NewMemStore(), "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.WriteHeader([]string{"a", "b"}))
		err = w.WriteRow([]types.Value{types.Int(1)})
		require.ErrorIs(t, err, sink.SerializationError{})
		require.Equal(t, int64(0), w.Rows())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		fw := &failingWriter{}
		w, err := sink.Open(ctx, staticOpener{w: fw}, "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())
		require.True(t, w.Closed())
		require.Equal(t, 1, fw.closes)
	})

	t.Run("write after close", func(t *testing.T) {
		w, err := sink.Open(ctx, storage.NewMemStore(), "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.Close())
		err = w.WriteRow([]types.Value{types.Int(1)})
		require.ErrorIs(t, err, sink.FileIOError{})
		require.ErrorIs(t, err, sink.ErrClosed)
		require.ErrorIs(t, w.WriteHeader([]string{"a"}), sink.ErrClosed)
	})

	t.Run("open failure", func(t *testing.T) {
		_, err := sink.Open(ctx, staticOpener{err: errors.New("denied")}, "out.csv")
		require.ErrorIs(t, err, sink.FileIOError{})
		require.ErrorContains(t, err, "failed to open out.csv: denied")
	})

	t.Run("failing destination surfaces on flush", func(t *testing.T) {
		fw := &failingWriter{}
		w, err := sink.Open(ctx, staticOpener{w: fw}, "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.WriteHeader([]string{"a"}))
		err = w.Close()
		require.ErrorIs(t, err, sink.FileIOError{})
		require.ErrorContains(t, err, "flush")
		require.Equal(t, 1, fw.closes)
	})

	t.Run("failing destination surfaces on write", func(t *testing.T) {
		fw := &failingWriter{}
		w, err := sink.Open(ctx, staticOpener{w: fw}, "out.csv", sink.WithBufferSize(16))
		require.NoError(t, err)
		err = w.WriteLine([]byte("this line is longer than sixteen bytes\n"))
		require.ErrorIs(t, err, sink.FileIOError{})
	})
}

func TestWriterAbort(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("query failed")

	t.Run("aborting destination discards content", func(t *testing.T) {
		dst := &abortingWriter{}
		w, err := sink.Open(ctx, staticOpener{w: dst}, "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.WriteHeader([]string{"a"}))
		require.NoError(t, w.WriteRow([]types.Value{types.Int(1)}))
		require.NoError(t, w.Abort(cause))
		require.ErrorIs(t, dst.aborted, cause)
		require.Empty(t, dst.written)
		require.Equal(t, 0, dst.closes)
		require.True(t, w.Closed())

		require.NoError(t, w.Close())
		require.NoError(t, w.Abort(cause))
		require.Equal(t, 0, dst.closes)
	})

	t.Run("other destinations keep partial content", func(t *testing.T) {
		store := storage.NewMemStore()
		w, err := sink.Open(ctx, store, "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.WriteHeader([]string{"a"}))
		require.NoError(t, w.WriteRow([]types.Value{types.Int(1)}))
		require.NoError(t, w.Abort(cause))
		data, err := store.Get("out.csv")
		require.NoError(t, err)
		require.Equal(t, "a\n1\n", string(data))
	})

	t.Run("abort after close is a no-op", func(t *testing.T) {
		dst := &abortingWriter{}
		w, err := sink.Open(ctx, staticOpener{w: dst}, "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.WriteHeader([]string{"a"}))
		require.NoError(t, w.Close())
		require.NoError(t, w.Abort(cause))
		require.NoError(t, dst.aborted)
		require.Equal(t, "a\n", string(dst.written))
	})
}

func TestWriterFilesystem(t *testing.T) {
	ctx := context.Background()

	t.Run("truncates existing file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.csv")
		require.NoError(t, os.WriteFile(path, []byte("stale content that is long\n"), 0600))

		w, err := sink.Open(ctx, storage.NewDirectoryStore(dir), "out.csv")
		require.NoError(t, err)
		require.NoError(t, w.WriteHeader([]string{"a"}))
		require.NoError(t, w.WriteRow([]types.Value{types.Int(42)}))
		require.NoError(t, w.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "a\n42\n", string(data))
	})

	t.Run("missing directory", func(t *testing.T) {
		dir := t.TempDir()
		_, err := sink.Open(ctx, storage.NewDirectoryStore(dir), "missing/out.csv")
		require.ErrorIs(t, err, sink.FileIOError{})
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("overwrite is idempotent", func(t *testing.T) {
		dir := t.TempDir()
		store := storage.NewDirectoryStore(dir)
		write := func() []byte {
			w, err := sink.Open(ctx, store, "out.csv")
			require.NoError(t, err)
			require.NoError(t, w.WriteHeader([]string{"a", "b"}))
			for i := int64(0); i < 100; i++ {
				require.NoError(t, w.WriteRow([]types.Value{types.Int(i), types.Int(i * 2)}))
			}
			require.NoError(t, w.Close())
			data, err := os.ReadFile(filepath.Join(dir, "out.csv"))
			require.NoError(t, err)
			return data
		}
		require.Equal(t, write(), write())
	})
}
