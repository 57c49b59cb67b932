package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/benchline/pkg/artifact"
)

func writeFile(t *testing.T, root, key, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(Config{Root: "  "})
	assert.Error(t, err)
}

func TestProvider_ListPrefixAndPages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "1/7/stage-1/out.smt2", "a")
	writeFile(t, root, "1/7/stage-1/log.txt", "bb")
	writeFile(t, root, "1/7/stage-10/other", "c")
	writeFile(t, root, "1/8/stage-1/out.smt2", "d")

	p, err := New(Config{Root: root})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := p.List(ctx, artifact.ListOptions{Prefix: "1/7/stage-1/"})
	require.NoError(t, err)
	require.Len(t, res.Objects, 2)
	assert.Equal(t, "1/7/stage-1/log.txt", res.Objects[0].Key)
	assert.Equal(t, int64(2), res.Objects[0].Size)
	assert.False(t, res.IsTruncated)

	var keys []string
	token := ""
	for {
		page, err := p.List(ctx, artifact.ListOptions{Prefix: "1/", MaxKeys: 1, ContinuationToken: token})
		require.NoError(t, err)
		for _, o := range page.Objects {
			keys = append(keys, o.Key)
		}
		if !page.IsTruncated {
			break
		}
		token = page.ContinuationToken
	}
	assert.Len(t, keys, 4)

	res, err = p.List(ctx, artifact.ListOptions{Prefix: "9/"})
	require.NoError(t, err)
	assert.Empty(t, res.Objects)
}

func TestProvider_Head(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "1/7/stage-1/out.smt2", "abc")
	p, err := New(Config{Root: root})
	require.NoError(t, err)

	meta, err := p.Head(context.Background(), "/1/7/stage-1/out.smt2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.Size)

	_, err = p.Head(context.Background(), "1/7/stage-1/missing")
	assert.True(t, artifact.IsNotFound(err))

	_, err = p.Head(context.Background(), "1/7")
	assert.True(t, artifact.IsNotFound(err), "directories are not objects")

	_, err = p.Head(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}
