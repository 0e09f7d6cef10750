package recipients

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MixedSeparators(t *testing.T) {
	list := Parse("a@x.com, b@y.com\nc@z.com")

	assert.Equal(t, List{"a@x.com", "b@y.com", "c@z.com"}, list)
}

func TestParse_Empty(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.NotNil(t, Parse(""))
}

func TestParse_DropsBlankTokens(t *testing.T) {
	list := Parse(" ,\n\n  a@x.com ,, \r\n b@y.com\t\n , ")

	assert.Equal(t, List{"a@x.com", "b@y.com"}, list)
	for _, addr := range list {
		assert.NotEmpty(t, strings.TrimSpace(addr))
	}
}

func TestParse_KeepsOrderAndDuplicates(t *testing.T) {
	list := Parse("c@z.com\na@x.com,c@z.com\nb@y.com")

	assert.Equal(t, List{"c@z.com", "a@x.com", "c@z.com", "b@y.com"}, list)
}

func TestParse_NoSyntaxValidation(t *testing.T) {
	list := Parse("not-an-address\n@@@")

	assert.Equal(t, List{"not-an-address", "@@@"}, list)
}

func TestRead_File(t *testing.T) {
	list, err := Read(strings.NewReader("one@x.com\ntwo@x.com\n"))

	require.NoError(t, err)
	assert.Equal(t, List{"one@x.com", "two@x.com"}, list)
}

func TestRead_NilReader(t *testing.T) {
	list, err := Read(nil)

	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRead_InvalidUTF8(t *testing.T) {
	_, err := Read(strings.NewReader("ok@x.com\n\xff\xfe"))

	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestResolve_TextWins(t *testing.T) {
	list, err := Resolve("text@x.com", strings.NewReader("file@x.com"))

	require.NoError(t, err)
	assert.Equal(t, List{"text@x.com"}, list)
}

func TestResolve_FallsBackToFile(t *testing.T) {
	list, err := Resolve("  \n", strings.NewReader("file@x.com"))

	require.NoError(t, err)
	assert.Equal(t, List{"file@x.com"}, list)
}

func TestResolve_BothAbsent(t *testing.T) {
	list, err := Resolve("", nil)

	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPreview_Truncates(t *testing.T) {
	var list List
	for i := 0; i < 25; i++ {
		list = append(list, fmt.Sprintf("user%d@x.com", i))
	}

	shown, total := Preview(list, 0)

	assert.Equal(t, 25, total)
	require.Len(t, shown, DefaultPreviewLimit)
	assert.Equal(t, "user0@x.com", shown[0])
	assert.Equal(t, "user19@x.com", shown[19])
}

func TestPreview_ShortList(t *testing.T) {
	shown, total := Preview(List{"a@x.com"}, 20)

	assert.Equal(t, 1, total)
	assert.Equal(t, List{"a@x.com"}, shown)
}

func TestList_StringsCopies(t *testing.T) {
	list := List{"a@x.com"}
	out := list.Strings()
	out[0] = "changed"

	assert.Equal(t, "a@x.com", list[0])
}
