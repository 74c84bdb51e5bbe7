package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "short content", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: `{"a":1,"b":"This is a much longer payload that should still hash consistently"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, IDFromContent(tt.content), IDFromContent(tt.content))
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	assert.NotEqual(t, IDFromContent("content1"), IDFromContent("content2"))
}

func TestPayload_Clone(t *testing.T) {
	orig := Payload{"a": 1, "b": "two"}
	clone := orig.Clone()
	clone["c"] = 3

	assert.Len(t, orig, 2)
	assert.Equal(t, 1, clone["a"])
	assert.Equal(t, 3, clone["c"])
}

func TestOverride_Apply(t *testing.T) {
	dest := Destination{Target: "t", Table: "tbl", CollectionID: "c"}
	table := "other"
	target := "t2"

	t.Run("nil override", func(t *testing.T) {
		var o *Override
		assert.Equal(t, dest, o.Apply(dest))
	})

	t.Run("partial override", func(t *testing.T) {
		o := &Override{Table: &table}
		got := o.Apply(dest)
		assert.Equal(t, Destination{Target: "t", Table: "other", CollectionID: "c"}, got)
	})

	t.Run("does not modify input", func(t *testing.T) {
		o := &Override{Target: &target, Table: &table}
		_ = o.Apply(dest)
		assert.Equal(t, "t", dest.Target)
	})
}

func TestMetadata_SetGet(t *testing.T) {
	var md Metadata
	_, ok := md.Get("missing")
	assert.False(t, ok)

	md.Set("rows", 3)
	v, ok := md.Get("rows")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestJobContext_DefaultCollectionID(t *testing.T) {
	job := JobContext{JobName: "nightly", OperationID: "op-17"}
	assert.Equal(t, "nightly|op-17", job.DefaultCollectionID())
}
