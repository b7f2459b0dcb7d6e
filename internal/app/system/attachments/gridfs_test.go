package attachments_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/testutil"
)

func TestGridFSStore_Lifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	st := attachments.NewGridFSStore(db)

	obj, err := st.Put(ctx, "enquiries_temp/u/a.pdf", "application/pdf", bytes.NewReader([]byte("%PDF-1.4")))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if obj.Size != 8 || obj.ContentType != "application/pdf" {
		t.Errorf("unexpected object: %+v", obj)
	}

	if _, err := st.Put(ctx, "enquiries_temp/u/a.pdf", "application/pdf", bytes.NewReader([]byte("x"))); !errors.Is(err, attachments.ErrExists) {
		t.Errorf("second Put: got %v, want ErrExists", err)
	}

	if err := st.Move(ctx, "enquiries_temp/u/a.pdf", "enquiries/e/a.pdf"); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if _, err := st.Stat(ctx, "enquiries_temp/u/a.pdf"); !errors.Is(err, attachments.ErrNotFound) {
		t.Errorf("Stat old path: got %v, want ErrNotFound", err)
	}

	tok, err := st.IssueToken(ctx, "enquiries/e/a.pdf")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	rc, got, err := st.OpenByToken(ctx, tok)
	if err != nil {
		t.Fatalf("OpenByToken failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4" || got.Path != "enquiries/e/a.pdf" {
		t.Errorf("download mismatch: %q %+v", data, got)
	}

	n, err := st.DeletePrefix(ctx, "enquiries/e/")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if n != 1 {
		t.Errorf("DeletePrefix removed %d, want 1", n)
	}
	if _, _, err := st.OpenByToken(ctx, tok); !errors.Is(err, attachments.ErrNotFound) {
		t.Errorf("OpenByToken after delete: got %v, want ErrNotFound", err)
	}
}
