package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Jane Doe", SanitizeText("  <b>Jane</b> Doe "))
	assert.Equal(t, "Hi", SanitizeText("<script>alert(1)</script>Hi"))
	assert.Equal(t, "R&D lead", SanitizeText("R&D lead"))
}

func TestSanitizeFields(t *testing.T) {
	name, title := "<i>Ada</i>", " CTO "
	SanitizeFields(&name, &title, nil)
	assert.Equal(t, "Ada", name)
	assert.Equal(t, "CTO", title)
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("Congratulations **Jane**!\n\n<script>alert(1)</script>")
	assert.Contains(t, out, "<strong>Jane</strong>")
	assert.NotContains(t, out, "<script")
	assert.Equal(t, "", RenderMarkdown("   "))
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Innovation Excellence": "innovation-excellence",
		"Café Déjà Vu":          "cafe-deja-vu",
		"  R&D / AI  ":          "rd-ai",
		"Привет мир":            "privet-mir",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.com "))
}

func TestUnsubscribeTokenRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateUnsubscribeToken("reader@example.com", time.Hour)
	require.NoError(t, err)

	email, err := ParseUnsubscribeToken(token)
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", email)

	expired, err := GenerateUnsubscribeToken("reader@example.com", -time.Minute)
	require.NoError(t, err)
	_, err = ParseUnsubscribeToken(expired)
	assert.Error(t, err)

	SetJWTSecret("another-secret")
	_, err = ParseUnsubscribeToken(token)
	assert.Error(t, err)
}

func TestValidationMessages(t *testing.T) {
	type input struct {
		NomineeName string `validate:"not_blank"`
		Status      string `validate:"nomination_status"`
	}

	errs := GetValidationErrors(ValidateStruct(&input{NomineeName: "   ", Status: "promoted"}))
	require.Len(t, errs, 2)
	assert.Equal(t, "nomineeName", errs[0].Field)
	assert.Equal(t, "nomineeName is required", errs[0].Message)
	assert.Equal(t, "nomination_status", errs[1].Tag)
}
