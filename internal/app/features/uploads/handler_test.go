package uploads_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/features/uploads"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/testutil"
	"go.uber.org/zap"
)

func uploadRequest(t *testing.T, postType, filename, contentType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("post_type", postType); err != nil {
		t.Fatal(err)
	}
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(part, content)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func newHandler(files attachments.Store) *uploads.Handler {
	return uploads.NewHandler(files, errorsfeature.NewErrorLogger(zap.NewNop()), zap.NewNop())
}

func TestUpload_StoresUnderTempPrefix(t *testing.T) {
	files := attachments.NewMemStore()
	router := uploads.Routes(newHandler(files))
	user := testutil.TeamUser("NZ")

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, testutil.WithUser(uploadRequest(t, "response", "sail plan.pdf", "application/pdf", "%PDF-1.7"), user))
		if rec.Code != http.StatusCreated {
			t.Fatalf("upload %d status = %d, body %s", i, rec.Code, rec.Body.String())
		}
	}

	want := []string{
		"responses_temp/" + user.ID + "/sail_plan-1.pdf",
		"responses_temp/" + user.ID + "/sail_plan.pdf",
	}
	got := files.Paths()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestUpload_Rejections(t *testing.T) {
	router := uploads.Routes(newHandler(attachments.NewMemStore()))
	user := testutil.TeamUser("NZ")

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"comment type", uploadRequest(t, "comment", "a.pdf", "application/pdf", "x"), http.StatusBadRequest},
		{"image", uploadRequest(t, "enquiry", "a.png", "image/png", "x"), http.StatusPreconditionFailed},
		{"empty", uploadRequest(t, "enquiry", "a.pdf", "application/pdf", ""), http.StatusBadRequest},
		{"not multipart", testutil.NewJSONRequest(t, http.MethodPost, "/", map[string]string{}), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, testutil.WithUser(tt.req, user))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	files := attachments.NewMemStore()
	p := "enquiries/abc/rule.pdf"
	if _, err := files.Put(ctx, p, "application/pdf", strings.NewReader("%PDF-1.7 body")); err != nil {
		t.Fatal(err)
	}
	tok, err := files.IssueToken(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	router := uploads.FileRoutes(newHandler(files))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"+tok))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "%PDF-1.7 body" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="rule.pdf"` {
		t.Errorf("disposition = %q", cd)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/unknown-token"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown token status = %d, want 404", rec.Code)
	}
}
