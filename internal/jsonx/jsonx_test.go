package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDirect(t *testing.T) {
	doc, err := Decode(`{"beats": []}`)
	require.NoError(t, err)
	assert.Contains(t, doc, "beats")
}

func TestDecodeFencedBlock(t *testing.T) {
	text := "Here is the outline:\n```json\n{\"beats\": [{\"beat_id\": 1}]}\n```\nDone."
	doc, err := Decode(text)
	require.NoError(t, err)
	assert.Contains(t, doc, "beats")
}

func TestDecodeBraceSlice(t *testing.T) {
	text := `Sure! The result is {"section_id": 2, "summary": "ok"} — hope that helps.`
	doc, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, float64(2), doc["section_id"])
}

func TestDecodeFailsWithSnippet(t *testing.T) {
	_, err := Decode("no json here at all")
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Snippet, "no json here")
}

func TestDecodeTolerantRepairsInnerQuotes(t *testing.T) {
	// The value contains an unescaped inner quote pair around "Vess".
	text := `{"final_script": "She said "Vess" and left.", "editor_report": {"overall_assessment": "fine"}}`
	doc, repaired, err := DecodeTolerant(text)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Equal(t, `She said "Vess" and left.`, doc["final_script"])
}

func TestDecodeTolerantReportsNoRepairForCleanInput(t *testing.T) {
	doc, repaired, err := DecodeTolerant(`{"a": "b"}`)
	require.NoError(t, err)
	assert.False(t, repaired)
	assert.Equal(t, "b", doc["a"])
}

func TestRepairLeavesEscapedQuotesAlone(t *testing.T) {
	in := `{"a": "already \"escaped\" here"}`
	assert.Equal(t, in, RepairUnescapedQuotes(in))
}

func TestSliceObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, SliceObject(`xx {"a":1} yy`))
	assert.Equal(t, "", SliceObject("no braces"))
}
