package hdfs_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mimicpipe/hdfs"
	"mimicpipe/mimic"
)

func localFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestPutCreatesTableLayout(t *testing.T) {
	fs := newFakeFS()
	u := &hdfs.Uploader{FS: fs, Root: "/mimic"}

	src := localFile(t, "icustays.avro", "Obj\x01payload")
	target, err := u.Put(context.Background(), src, mimic.ICUStays)
	require.NoError(t, err)

	assert.Equal(t, "/mimic/icustays/icustays.avro", target)
	assert.Equal(t, []string{"/mimic/icustays/icustays.avro"}, fs.names())
	assert.Equal(t, "Obj\x01payload", string(fs.files[target]))
	assert.Equal(t, 1, fs.renames, "upload must be published by rename")
}

func TestPutExistingWithoutOverwrite(t *testing.T) {
	fs := newFakeFS()
	u := &hdfs.Uploader{FS: fs, Root: "/mimic"}
	src := localFile(t, "patients.avro", "v1")

	_, err := u.Put(context.Background(), src, mimic.Patients)
	require.NoError(t, err)

	_, err = u.Put(context.Background(), src, mimic.Patients)
	assert.ErrorIs(t, err, hdfs.ErrExists)
}

func TestPutOverwriteReplaces(t *testing.T) {
	fs := newFakeFS()
	u := &hdfs.Uploader{FS: fs, Root: "/mimic"}

	_, err := u.Put(context.Background(), localFile(t, "patients.avro", "v1"), mimic.Patients)
	require.NoError(t, err)

	u.Overwrite = true
	target, err := u.Put(context.Background(), localFile(t, "patients.avro", "v2"), mimic.Patients)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(fs.files[target]))
	assert.Empty(t, fs.hidden())
}

func TestPutFailedRenameCleansUp(t *testing.T) {
	fs := newFakeFS()
	fs.failRename = true
	u := &hdfs.Uploader{FS: fs, Root: "/mimic"}

	_, err := u.Put(context.Background(), localFile(t, "admissions.avro", "data"), mimic.Admissions)
	require.Error(t, err)
	assert.Empty(t, fs.names(), "no partial files may remain")
}

func TestPutCanceled(t *testing.T) {
	fs := newFakeFS()
	u := &hdfs.Uploader{FS: fs, Root: "/mimic"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := u.Put(ctx, localFile(t, "admissions.avro", "data"), mimic.Admissions)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fs.names())
}

func TestList(t *testing.T) {
	fs := newFakeFS()
	u := &hdfs.Uploader{FS: fs, Root: "/mimic"}
	ctx := context.Background()

	for _, tbl := range []*mimic.Table{mimic.DiagnosesICD, mimic.Patients} {
		_, err := u.Put(ctx, localFile(t, tbl.Name+".avro", tbl.Name), tbl)
		require.NoError(t, err)
	}
	// An in-flight upload is not listed.
	require.NoError(t, fs.MkdirAll("/mimic/icustays", 0755))
	fs.files["/mimic/icustays/._icustays.avro.tmp"] = []byte("partial")

	entries, err := u.List(mimic.Tables())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/mimic/diagnoses_icd/diagnoses_icd.avro", entries[0].Path)
	assert.Equal(t, "/mimic/patients/patients.avro", entries[1].Path)
	assert.Equal(t, int64(len("patients")), entries[1].Size)

	var buf bytes.Buffer
	hdfs.PrintList(&buf, entries)
	assert.Contains(t, buf.String(), "/mimic/patients/patients.avro")
}
