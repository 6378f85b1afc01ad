package tutaexport

import "testing"

func TestFolderTypeFromCode(t *testing.T) {
	cases := []struct {
		code float64
		want FolderType
	}{
		{0, FolderCustom},
		{1, FolderInbox},
		{2, FolderSent},
		{3, FolderTrash},
		{4, FolderArchive},
		{5, FolderSpam},
		{6, FolderDraft},
		{99, FolderCustom},
	}
	for _, c := range cases {
		if got := folderTypeFromCode(c.code); got != c.want {
			t.Errorf("folderTypeFromCode(%v) = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestFolderType_String(t *testing.T) {
	cases := map[FolderType]string{
		FolderInbox:   "inbox",
		FolderSent:    "sent",
		FolderTrash:   "trash",
		FolderArchive: "archive",
		FolderSpam:    "spam",
		FolderDraft:   "draft",
		FolderCustom:  "custom",
	}
	for ft, want := range cases {
		if got := ft.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(ft), got, want)
		}
	}
}

func TestExportSummary_HadFailures(t *testing.T) {
	if (ExportSummary{}).HadFailures() {
		t.Error("zero-value summary should report no failures")
	}
	if !(ExportSummary{Failed: 1}).HadFailures() {
		t.Error("summary with Failed > 0 should report failures")
	}
}
