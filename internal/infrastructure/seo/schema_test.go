package seo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentSetRejectsDuplicates(t *testing.T) {
	set := NewFragmentSet()

	injected, err := set.Inject(OrganizationSchemaID, OrganizationSchema())
	require.NoError(t, err)
	assert.True(t, injected)
	assert.True(t, set.Has(OrganizationSchemaID))

	injected, err = set.Inject(OrganizationSchemaID, OrganizationSchema())
	require.NoError(t, err)
	assert.False(t, injected, "second injection of the same id is a no-op")
	assert.Len(t, set.Fragments(), 1)
}

func TestFragmentSetPreservesInjectionOrder(t *testing.T) {
	set := NewFragmentSet()

	_, err := set.Inject(OrganizationSchemaID, OrganizationSchema())
	require.NoError(t, err)
	_, err = set.Inject(FAQSchemaID, FAQSchema())
	require.NoError(t, err)

	fragments := set.Fragments()
	require.Len(t, fragments, 2)
	assert.Equal(t, OrganizationSchemaID, fragments[0].ID)
	assert.Equal(t, FAQSchemaID, fragments[1].ID)
}

func TestFragmentSetRender(t *testing.T) {
	set := NewFragmentSet()
	_, err := set.Inject(FAQSchemaID, FAQSchema())
	require.NoError(t, err)

	html := set.Render()
	assert.Contains(t, html, `type="application/ld+json"`)
	assert.Contains(t, html, `id="faq-schema"`)
	assert.Contains(t, html, "FAQPage")
	assert.Equal(t, 1, strings.Count(html, "<script"))
}

func TestOrganizationSchemaShape(t *testing.T) {
	schema := OrganizationSchema()
	assert.Equal(t, "EducationalOrganization", schema["@type"])
	assert.Equal(t, "https://schema.org", schema["@context"])
	assert.NotEmpty(t, schema["hasOfferCatalog"])
}
