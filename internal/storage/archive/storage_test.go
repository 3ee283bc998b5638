package archive

import (
	"context"
	"errors"
	"testing"
)

var (
	_ Storage = (*LocalFS)(nil)
	_ Storage = (*Memory)(nil)
	_ Storage = (*S3Storage)(nil)
)

// backends returns a fresh instance of every local backend.
func backends(t *testing.T) map[string]Storage {
	t.Helper()
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	return map[string]Storage{
		"localfs": fs,
		"memory":  NewMemory(),
	}
}

func TestStorage_WriteReadOverwrite(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := st.Write(ctx, "logs/signals_log.json", []byte("[1]")); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := st.Write(ctx, "logs/signals_log.json", []byte("[1,2]")); err != nil {
				t.Fatalf("Write: %v", err)
			}

			got, err := st.Read(ctx, "logs/signals_log.json")
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if string(got) != "[1,2]" {
				t.Errorf("got %q, want [1,2]", got)
			}
		})
	}
}

func TestStorage_ReadMissing(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Read(context.Background(), "missing.json")
			if !errors.Is(err, ErrNotExist) {
				t.Errorf("Read() error = %v, want ErrNotExist", err)
			}
		})
	}
}

func TestStorage_ExistsListDelete(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			exists, _ := st.Exists(ctx, "a.json")
			if exists {
				t.Error("expected false for nonexistent file")
			}

			st.Write(ctx, "bars/2024/a.parquet", []byte("a"))
			st.Write(ctx, "bars/2024/b.parquet", []byte("b"))
			st.Write(ctx, "summary.json", []byte("{}"))

			paths, err := st.List(ctx, "bars/2024")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(paths) != 2 {
				t.Errorf("expected 2 paths, got %v", paths)
			}

			missing, err := st.List(ctx, "nope")
			if err != nil || len(missing) != 0 {
				t.Errorf("List(nope) = %v, %v", missing, err)
			}

			if err := st.Delete(ctx, "summary.json"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if exists, _ := st.Exists(ctx, "summary.json"); exists {
				t.Error("file should be deleted")
			}
		})
	}
}

func TestLocalFS_WriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewLocalFS(dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := fs.Write(ctx, "doc.json", []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}

	paths, _ := fs.List(ctx, "")
	if len(paths) != 1 || paths[0] != "doc.json" {
		t.Errorf("expected only doc.json, got %v", paths)
	}
}

func TestNew(t *testing.T) {
	st, err := New(Config{Type: "localfs", Path: t.TempDir()})
	if err != nil {
		t.Fatalf("New(localfs): %v", err)
	}
	if _, ok := st.(*LocalFS); !ok {
		t.Errorf("expected *LocalFS, got %T", st)
	}

	if m, err := New(Config{Type: "memory"}); err != nil || m == nil {
		t.Errorf("New(memory) = %v, %v", m, err)
	}
	if _, err := New(Config{Type: "ftp"}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := New(Config{Type: "s3"}); err == nil {
		t.Error("expected error for s3 without bucket")
	}
}
