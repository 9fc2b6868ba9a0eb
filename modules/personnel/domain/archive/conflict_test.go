package archive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConflictMatches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "single resource",
			body: `{"tittel":"x","_links":{"self":[{"href":"https://archive/folder/7"}]}}`,
			want: []string{"https://archive/folder/7"},
		},
		{
			name: "collection with one entry",
			body: `{"_embedded":{"_entries":[{"_links":{"self":[{"href":"https://archive/folder/7"}]}}]},"total_items":1}`,
			want: []string{"https://archive/folder/7"},
		},
		{
			name: "collection with two entries",
			body: `{"_embedded":{"_entries":[{"_links":{"self":[{"href":"a"}]}},{"_links":{"self":[{"href":"b"}]}}]},"total_items":2}`,
			want: []string{"a", "b"},
		},
		{
			name: "empty collection",
			body: `{"_embedded":{"_entries":[]},"total_items":0}`,
			want: nil,
		},
		{
			name: "resource without self link",
			body: `{"tittel":"x"}`,
			want: nil,
		},
	}

	for _, tc := range cases {
		got, err := ConflictMatches([]byte(tc.body))
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.want, got, tc.name)
	}

	_, err := ConflictMatches([]byte("<html>"))
	require.Error(t, err)
}
