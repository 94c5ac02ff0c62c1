// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plantuml

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode64(t *testing.T) {
	assert.Equal(t, "0000", encode64([]byte{0, 0, 0}))
	assert.Equal(t, "____", encode64([]byte{0xFF, 0xFF, 0xFF}))
	assert.Len(t, encode64([]byte{1}), 4, "partial groups are padded")
}

func TestDecodeReferenceString(t *testing.T) {
	// Reference encoding published by plantuml.com.
	text, err := Decode("SyfFKj2rKt3CoKnELR1Io4ZDoSa70000")
	require.NoError(t, err)
	assert.Equal(t, "Bob -> Alice : hello", text)
}

func TestEncodeDecode(t *testing.T) {
	src := "@startuml\nclass Foo\nclass Bär\nFoo --> Bär\n@enduml"
	enc := Encode(src)
	for _, r := range enc {
		assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
	}
	got, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode("abc")
	assert.True(t, errors.Is(err, ErrInvalidEncoding))

	_, err = Decode("ab!d")
	assert.True(t, errors.Is(err, ErrInvalidEncoding))
}

func TestRender(t *testing.T) {
	src := "@startuml\nclass Foo\n@enduml"

	t.Run("deterministic", func(t *testing.T) {
		a := Render(src)
		b := Render(src)
		assert.Equal(t, a, b)
		assert.True(t, strings.HasPrefix(a, "http://www.plantuml.com/plantuml/svg/"))
		assert.True(t, strings.HasSuffix(a, Encode(src)))
	})

	t.Run("blank is idle", func(t *testing.T) {
		assert.Equal(t, "", Render(""))
		assert.Equal(t, "", Render("  \n\t"))
	})

	t.Run("custom renderer", func(t *testing.T) {
		r := Renderer{BaseURL: "https://plantuml.internal/", Format: "png"}
		assert.Equal(t, "https://plantuml.internal/png/"+Encode(src), r.Render(src))
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  @startuml\nclass A\n@enduml\n", "@startuml\nclass A\n@enduml"},
		{"fenced", "```plantuml\n@startuml\nclass A\n@enduml\n```", "@startuml\nclass A\n@enduml"},
		{"bare fence", "```\n@startuml\n@enduml\n```\n", "@startuml\n@enduml"},
		{"crlf", "```puml\r\n@startuml\r\n@enduml\r\n```", "@startuml\r\n@enduml"},
		{"inner fence kept", "@startuml\nnote: ```x```\n@enduml", "@startuml\nnote: ```x```\n@enduml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
